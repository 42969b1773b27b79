//go:build windows

package process

import (
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"github.com/NikitaDmitryuk/media-download-server/internal/logutils"
)

// setSysProcAttr gives the child its own console process group so a later
// interrupt or tree kill does not take the parent down with it.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

func signalGroupTerm(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return os.ErrProcessDone
	}
	// Interrupt delivery is not implemented for arbitrary processes on
	// Windows; the error just advances the caller to the next rung.
	return cmd.Process.Signal(os.Interrupt)
}

func terminateGroupCooperative(h *Handle) bool {
	if err := signalGroupTerm(h.cmd); err != nil {
		logutils.Log.WithError(err).Debug("Interrupt not delivered")
		return false
	}
	return true
}

// terminateTreeForced kills the whole tree through taskkill.
func terminateTreeForced(h *Handle) bool {
	pid := h.cmd.Process.Pid
	output, err := exec.Command("taskkill", "/PID", strconv.Itoa(pid), "/T", "/F").CombinedOutput()
	if err != nil {
		logutils.Log.WithFields(map[string]any{
			"pid":    pid,
			"output": strings.TrimSpace(string(output)),
		}).WithError(err).Debug("taskkill tree kill failed")
		return false
	}
	return true
}

// terminateDescendants walks ParentProcessId links from the process table
// and force-kills each child before asking the parent to stop.
func terminateDescendants(h *Handle) bool {
	descendants := listDescendantsWindows(h.cmd.Process.Pid)
	if len(descendants) == 0 {
		return false
	}
	for i := len(descendants) - 1; i >= 0; i-- {
		output, err := exec.Command("taskkill", "/PID", strconv.Itoa(descendants[i]), "/F").CombinedOutput()
		if err != nil {
			logutils.Log.WithFields(map[string]any{
				"pid":    descendants[i],
				"output": strings.TrimSpace(string(output)),
			}).WithError(err).Debug("Failed to kill descendant")
		}
	}
	if err := h.cmd.Process.Kill(); err != nil {
		logutils.Log.WithError(err).Debug("Parent kill not delivered")
	}
	return true
}

func listDescendantsWindows(pid int) []int {
	var out []int
	queue := []int{pid}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		output, err := exec.Command("wmic", "process", "where",
			"(ParentProcessId="+strconv.Itoa(parent)+")", "get", "ProcessId").Output()
		if err != nil {
			continue
		}
		for _, field := range strings.Fields(string(output)) {
			child, err := strconv.Atoi(field)
			if err != nil {
				// Skips the ProcessId column header.
				continue
			}
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}
