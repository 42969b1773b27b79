//go:build !windows

package process

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/NikitaDmitryuk/media-download-server/internal/logutils"
)

// setSysProcAttr places the child in its own process group so the whole
// tool tree can be signaled at once.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalGroupTerm(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return os.ErrProcessDone
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	return syscall.Kill(-pgid, syscall.SIGTERM)
}

func terminateGroupCooperative(h *Handle) bool {
	if err := signalGroupTerm(h.cmd); err != nil {
		logutils.Log.WithError(err).Debug("Group SIGTERM not delivered")
		return false
	}
	return true
}

func terminateTreeForced(h *Handle) bool {
	pgid, err := syscall.Getpgid(h.cmd.Process.Pid)
	if err != nil {
		return false
	}
	if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil {
		logutils.Log.WithError(err).Debug("Group SIGKILL not delivered")
		return false
	}
	return true
}

// terminateDescendants handles trees that escaped the process group, e.g.
// a helper that called setsid. Children are killed deepest-first from the
// process table, then the parent is asked to exit.
func terminateDescendants(h *Handle) bool {
	descendants := listDescendants(h.cmd.Process.Pid)
	if len(descendants) == 0 {
		return false
	}
	for i := len(descendants) - 1; i >= 0; i-- {
		err := syscall.Kill(descendants[i], syscall.SIGKILL)
		if err != nil && !errors.Is(err, syscall.ESRCH) {
			logutils.Log.WithField("pid", descendants[i]).WithError(err).Debug("Failed to kill descendant")
		}
	}
	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		logutils.Log.WithError(err).Debug("Parent SIGTERM not delivered")
	}
	return true
}

// listDescendants returns every live descendant of pid, parents before
// their children, read from the OS process table.
func listDescendants(pid int) []int {
	children := childrenByProc()
	if children == nil {
		return descendantsByPgrep(pid)
	}

	var out []int
	queue := []int{pid}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, child := range children[parent] {
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}

// childrenByProc builds a parent-to-children map from /proc, or nil where
// /proc is unavailable.
func childrenByProc() map[int][]int {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil
	}

	children := make(map[int][]int)
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join("/proc", entry.Name(), "stat"))
		if err != nil {
			continue
		}
		if ppid := ppidFromStat(string(data)); ppid > 0 {
			children[ppid] = append(children[ppid], pid)
		}
	}
	return children
}

// ppidFromStat extracts the parent pid from a /proc/<pid>/stat line. The
// comm field may contain spaces and parentheses, so parsing starts after
// the last ')'.
func ppidFromStat(stat string) int {
	end := strings.LastIndexByte(stat, ')')
	if end < 0 || end+1 >= len(stat) {
		return 0
	}
	fields := strings.Fields(stat[end+1:])
	if len(fields) < 2 {
		return 0
	}
	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}
	return ppid
}

func descendantsByPgrep(pid int) []int {
	var out []int
	queue := []int{pid}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		output, err := exec.Command("pgrep", "-P", strconv.Itoa(parent)).Output()
		if err != nil {
			// pgrep exits 1 when the process has no children.
			continue
		}
		for _, field := range strings.Fields(string(output)) {
			child, err := strconv.Atoi(field)
			if err != nil {
				continue
			}
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}
