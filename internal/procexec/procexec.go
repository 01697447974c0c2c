// Package procexec implements the execution layer (component G):
// foreground spawning with fail-fast/drain semantics across a batch of
// handles, and a captured-output background run. Grounded on
// original_source/base/execute.py; the green/red status colouring follows
// that file's use of ANSI colour codes, swapped for
// github.com/fatih/color, the library other_examples/compilator.go (and
// its duplicate) and this pack's go.mod show as the idiomatic Go way to do
// it rather than hand-rolled escape sequences. The process-spawning shape
// itself mirrors
// _examples/VKCOM-nocc/internal/client/compile-locally.go's exec.Command
// usage.
package procexec

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/fatih/color"
)

// Handle is a foreground-spawned child process.
type Handle struct {
	cmd  *exec.Cmd
	Argv []string
}

// ForegroundSpawn starts argv with stdin/stdout/stderr inherited from this
// process, printing the command in green, and returns immediately without
// waiting.
func ForegroundSpawn(argv []string) (*Handle, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	color.Green("executing %s", strings.Join(argv, " "))

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %q failed: %w", argv[0], err)
	}
	return &Handle{cmd: cmd, Argv: argv}, nil
}

// WaitAll waits on handles in order. The first non-zero exit switches the
// walk from fail-fast to draining: every later handle is killed if still
// running, or checked for its own exit code if it already finished.
// Because stdio was inherited at spawn time, a failing child's stderr is
// already on the terminal — WaitAll reports the command and exit code, not
// a re-captured copy of output the user already saw.
func WaitAll(handles []*Handle) error {
	type failure struct {
		argv string
		code int
	}
	var failures []failure
	draining := false

	for _, h := range handles {
		if !draining {
			err := h.cmd.Wait()
			if err != nil {
				draining = true
				failures = append(failures, failure{strings.Join(h.Argv, " "), exitCodeOf(h.cmd, err)})
			}
			continue
		}

		_ = h.cmd.Process.Kill()
		_ = h.cmd.Wait()
		if h.cmd.ProcessState != nil && h.cmd.ProcessState.ExitCode() > 0 {
			failures = append(failures, failure{strings.Join(h.Argv, " "), h.cmd.ProcessState.ExitCode()})
		}
	}

	if len(failures) == 0 {
		return nil
	}
	for _, f := range failures {
		color.Red("execute %q failed, returns %d", f.argv, f.code)
	}
	return fmt.Errorf("compilation stopped")
}

func exitCodeOf(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return 1
}

// ForegroundExecute runs argv to completion with inherited stdio, returning
// its exit code.
func ForegroundExecute(argv []string) (int, error) {
	h, err := ForegroundSpawn(argv)
	if err != nil {
		return 0, err
	}
	if err := h.cmd.Wait(); err != nil {
		return exitCodeOf(h.cmd, err), nil
	}
	return 0, nil
}

// BackgroundExecute runs argv with stdout/stderr captured, returning them
// once the process exits. A non-zero exit is reported in red and is fatal.
func BackgroundExecute(argv []string) (stdout, stderr string, err error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	stdout, stderr = outBuf.String(), errBuf.String()
	if runErr != nil {
		code := exitCodeOf(cmd, runErr)
		color.Red("execute %q failed, returns %d", strings.Join(argv, " "), code)
		fmt.Fprintln(os.Stderr, stderr)
		return stdout, stderr, fmt.Errorf("command failed with exit code %d", code)
	}
	return stdout, stderr, nil
}
