package adapter

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"time"
)

// killGrace is how long after SIGKILL we wait for the child's output to
// drain before giving up on a hung process tree.
const killGrace = 3 * time.Second

// processResult captures everything a child process produced.
type processResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	TimedOut bool
}

// runProcess starts argv as an isolated child process and waits for it
// under ctx. A fired deadline guarantees the process has been killed
// (not merely abandoned) before the result is returned as TimedOut.
// A non-nil error means the process could not even be launched.
//
// Output goes into in-memory buffers that Wait drains completely before
// returning, so the captured stdout is always the full document the
// tool emitted.
func runProcess(ctx context.Context, argv []string) (*processResult, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.WaitDelay = killGrace
	// Minimal environment: the tools themselves decide what they need
	// beyond PATH and HOME.
	env := []string{}
	if v := os.Getenv("PATH"); v != "" {
		env = append(env, "PATH="+v)
	}
	if v := os.Getenv("HOME"); v != "" {
		env = append(env, "HOME="+v)
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	waitErr := cmd.Wait()

	res := &processResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	if ctx.Err() == context.DeadlineExceeded {
		// CommandContext already delivered the kill; Wait returning
		// means the process is gone.
		res.TimedOut = true
		res.ExitCode = -1
		return res, nil
	}

	if waitErr != nil {
		var ee *exec.ExitError
		if errors.As(waitErr, &ee) && ee.ProcessState != nil {
			res.ExitCode = ee.ProcessState.ExitCode()
			return res, nil
		}
		if errors.Is(waitErr, exec.ErrWaitDelay) {
			// Exited fine but an orphaned grandchild held the output
			// pipe past the grace period; keep what was captured.
			res.ExitCode = cmd.ProcessState.ExitCode()
			return res, nil
		}
		return nil, waitErr
	}

	res.ExitCode = 0
	return res, nil
}
