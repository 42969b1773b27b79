package process

import (
	"bufio"
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/NikitaDmitryuk/media-download-server/internal/logutils"
	"github.com/NikitaDmitryuk/media-download-server/internal/utils"
)

const (
	defaultGracefulTimeout = 3 * time.Second
	defaultForceTimeout    = 2 * time.Second

	// errorTailLines bounds how much stderr is kept for failure messages.
	errorTailLines = 40
)

// Supervisor starts external tool subprocesses and guarantees bounded-time
// termination of the whole descendant tree, not just the direct child.
type Supervisor struct {
	gracefulTimeout time.Duration
	forceTimeout    time.Duration
}

func NewSupervisor(gracefulTimeout, forceTimeout time.Duration) *Supervisor {
	if gracefulTimeout <= 0 {
		gracefulTimeout = defaultGracefulTimeout
	}
	if forceTimeout <= 0 {
		forceTimeout = defaultForceTimeout
	}
	return &Supervisor{
		gracefulTimeout: gracefulTimeout,
		forceTimeout:    forceTimeout,
	}
}

// Handle owns one running subprocess. Nothing outside this package signals
// the process directly; all control goes through Supervisor.Terminate.
type Handle struct {
	cmd *exec.Cmd

	lines    chan string
	stopRead chan struct{}
	stopOnce sync.Once

	done     chan struct{}
	exitCode int
	waitErr  error

	mu   sync.Mutex
	tail []string
}

// Start launches command in its own process group with workDir as the
// working directory and streams its stdout line by line through Lines.
// Stderr is collected separately for failure messages.
func (s *Supervisor) Start(ctx context.Context, command string, args []string, workDir string) (*Handle, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = workDir
	setSysProcAttr(cmd)

	h := &Handle{
		cmd:      cmd,
		lines:    make(chan string),
		stopRead: make(chan struct{}),
		done:     make(chan struct{}),
		exitCode: -1,
	}

	// Context cancellation goes through the cooperative group signal
	// instead of the default single-process kill, so the tool's helper
	// children receive it too. WaitDelay bounds Wait when an inherited
	// pipe is held open past the child's exit.
	cmd.Cancel = func() error { return signalGroupTerm(cmd) }
	cmd.WaitDelay = s.gracefulTimeout + s.forceTimeout

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, utils.WrapError(err, "failed to create stdout pipe", map[string]any{"command": command})
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, utils.WrapError(err, "failed to create stderr pipe", map[string]any{"command": command})
	}

	if err := cmd.Start(); err != nil {
		return nil, utils.WrapError(err, "failed to start command", map[string]any{
			"command": command,
			"workdir": workDir,
		})
	}

	logutils.Log.WithFields(map[string]any{
		"command": command,
		"pid":     cmd.Process.Pid,
	}).Debug("Subprocess started")

	var readers sync.WaitGroup
	readers.Add(2)

	go func() {
		defer readers.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			select {
			case h.lines <- scanner.Text():
			case <-h.stopRead:
				return
			}
		}
	}()

	go func() {
		defer readers.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			h.appendTail(scanner.Text())
		}
	}()

	go func() {
		waitErr := cmd.Wait()
		h.waitErr = waitErr
		if cmd.ProcessState != nil {
			h.exitCode = cmd.ProcessState.ExitCode()
		}
		readers.Wait()
		close(h.done)
		close(h.lines)
	}()

	return h, nil
}

// Lines returns the subprocess's stdout as a lazy sequence of lines. The
// channel closes at subprocess EOF. A consumer that stops reading without
// draining must call Terminate, which releases the sender.
func (h *Handle) Lines() <-chan string {
	return h.lines
}

// Wait blocks until the subprocess has exited and its output is fully
// consumed, then returns the exit code. A non-zero exit is reported
// through the code, not the error; the error is reserved for failures of
// the wait itself.
func (h *Handle) Wait() (int, error) {
	<-h.done
	if h.waitErr == nil {
		return h.exitCode, nil
	}
	var exitErr *exec.ExitError
	if errors.As(h.waitErr, &exitErr) || errors.Is(h.waitErr, exec.ErrWaitDelay) {
		return h.exitCode, nil
	}
	return h.exitCode, h.waitErr
}

// Exited reports whether the subprocess has fully finished.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// PID returns the subprocess id, or 0 before the process started.
func (h *Handle) PID() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// ErrorTail returns the last collected stderr lines for failure messages.
func (h *Handle) ErrorTail() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return strings.Join(h.tail, "\n")
}

func (h *Handle) appendTail(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tail = append(h.tail, line)
	if len(h.tail) > errorTailLines {
		h.tail = h.tail[len(h.tail)-errorTailLines:]
	}
}

// waitExit waits up to d for the subprocess to finish.
func (h *Handle) waitExit(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-h.done:
		return true
	case <-timer.C:
		return false
	}
}

// Terminate kills the subprocess and all of its descendants. The
// escalation rungs run in order, each bounded by a short wait, so the call
// returns within the combined timeout budget even for a stuck tree:
// cooperative group signal, forced tree kill, per-descendant kill from the
// process table, direct kill of the handle. Failure to confirm death is
// returned as ErrTerminationTimeout; callers treat it as a warning.
func (s *Supervisor) Terminate(h *Handle) error {
	if h == nil || h.cmd == nil || h.cmd.Process == nil {
		return nil
	}
	h.stopOnce.Do(func() { close(h.stopRead) })
	if h.Exited() {
		return nil
	}

	pid := h.cmd.Process.Pid
	logutils.Log.WithField("pid", pid).Debug("Terminating subprocess tree")

	if terminateGroupCooperative(h) && h.waitExit(s.gracefulTimeout) {
		logutils.Log.WithField("pid", pid).Debug("Subprocess tree exited after cooperative signal")
		return nil
	}
	if terminateTreeForced(h) && h.waitExit(s.forceTimeout) {
		logutils.Log.WithField("pid", pid).Debug("Subprocess tree exited after forced tree kill")
		return nil
	}
	if terminateDescendants(h) && h.waitExit(s.forceTimeout) {
		logutils.Log.WithField("pid", pid).Debug("Subprocess tree exited after descendant walk")
		return nil
	}
	if err := h.cmd.Process.Kill(); err == nil && h.waitExit(s.forceTimeout) {
		logutils.Log.WithField("pid", pid).Debug("Subprocess exited after direct kill")
		return nil
	}
	if h.Exited() {
		return nil
	}

	return utils.WrapError(utils.ErrTerminationTimeout, "subprocess tree may have orphaned processes", map[string]any{
		"pid": pid,
	})
}
