// Package tool runs collaborator binaries (COBS, minimap2, xz) as external
// processes: stdout is streamed to the caller, stderr is captured for
// diagnostics, and cancellation kills the whole process group.
package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"

	"github.com/Francii-B/Phylign-Fulgor/internal/ctxlog"
)

// stderrTailLimit bounds how much collaborator stderr is kept for the error
// message.
const stderrTailLimit = 4 * 1024

// Run executes name with args, streaming its stdout into stdout. On non-zero
// exit the returned error carries the exit code and the tail of stderr. On
// context cancellation the process group is killed so collaborator helper
// processes do not outlive the run.
func Run(ctx context.Context, stdout io.Writer, name string, args ...string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Invoking collaborator.", "bin", name, "args", strings.Join(args, " "))

	cmd := exec.Command(name, args...)
	cmd.Stdout = stdout

	var stderr tailBuffer
	cmd.Stderr = &stderr

	// Own process group, so cancellation can take down the collaborator and
	// anything it forked in one signal.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", name, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done
		return fmt.Errorf("%s cancelled: %w", name, ctx.Err())
	case err := <-done:
		if err == nil {
			return nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%s exited with code %d: %s", name, exitErr.ExitCode(), stderr.Tail())
		}
		return fmt.Errorf("running %s: %w", name, err)
	}
}

// tailBuffer keeps only the last stderrTailLimit bytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf.Write(p)
	if t.buf.Len() > stderrTailLimit {
		trimmed := t.buf.Bytes()[t.buf.Len()-stderrTailLimit:]
		var nb bytes.Buffer
		nb.Write(trimmed)
		t.buf = nb
	}
	return len(p), nil
}

// Tail returns the captured stderr tail as a single trimmed line block.
func (t *tailBuffer) Tail() string {
	return strings.TrimSpace(t.buf.String())
}
