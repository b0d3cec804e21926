package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// CommandSpec describes one test-binary invocation: the executable path,
// its arguments, and the LOOM_* environment entries appended to the parent
// environment.
type CommandSpec struct {
	Path string
	Args []string
	Env  []string
}

// StreamProcess is a handle on a spawned test binary whose standard output
// is consumed as a live stream.
type StreamProcess interface {
	// Stdout returns the process's standard output stream.
	Stdout() io.Reader
	// Wait blocks until the process exits. A non-zero exit is returned as an
	// error, independently of whatever the stream yielded before it.
	Wait() error
}

// ProcessFactory spawns test-binary processes. The exec-backed
// implementation is used in production; tests inject fakes that replay
// scripted output without spawning anything.
type ProcessFactory interface {
	// Stream starts the process with stdout piped for live decoding.
	// Stderr passes through to the parent process.
	Stream(ctx context.Context, spec CommandSpec) (StreamProcess, error)

	// Run starts the process with all output discarded and waits for it to
	// exit. The returned error covers spawn failure only; the exit code is
	// reported separately because a non-zero exit is expected for
	// known-failing cases.
	Run(ctx context.Context, spec CommandSpec) (int, error)

	// Capture starts the process, waits for it to exit, and returns its full
	// standard output and standard error. Spawn failure is the only error.
	Capture(ctx context.Context, spec CommandSpec) (stdout, stderr []byte, exitCode int, err error)
}

var _ ProcessFactory = (*execFactory)(nil)

// execFactory is the os/exec-backed ProcessFactory.
type execFactory struct{}

// NewProcessFactory returns the exec-backed process factory.
func NewProcessFactory() ProcessFactory {
	return &execFactory{}
}

func (f *execFactory) command(ctx context.Context, spec CommandSpec) *exec.Cmd {
	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	cmd.Env = append(os.Environ(), spec.Env...)
	return cmd
}

func (f *execFactory) Stream(ctx context.Context, spec CommandSpec) (StreamProcess, error) {
	cmd := f.command(ctx, spec)
	cmd.Stderr = os.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe for %s: %w", spec.Path, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", spec.Path, err)
	}
	return &execProcess{cmd: cmd, stdout: stdout}, nil
}

func (f *execFactory) Run(ctx context.Context, spec CommandSpec) (int, error) {
	cmd := f.command(ctx, spec)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting %s: %w", spec.Path, err)
	}
	err := cmd.Wait()
	return exitCode(cmd, err), nil
}

func (f *execFactory) Capture(ctx context.Context, spec CommandSpec) ([]byte, []byte, int, error) {
	cmd := f.command(ctx, spec)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return nil, nil, 0, fmt.Errorf("starting %s: %w", spec.Path, err)
	}
	err := cmd.Wait()
	return stdout.Bytes(), stderr.Bytes(), exitCode(cmd, err), nil
}

// exitCode extracts the process exit code from a Wait error. Wait errors
// that are not exit statuses (e.g. an interrupted wait) report -1.
func exitCode(cmd *exec.Cmd, err error) int {
	if err == nil {
		return 0
	}
	exitErr := &exec.ExitError{}
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return -1
}

// execProcess wraps a started *exec.Cmd as a StreamProcess.
type execProcess struct {
	cmd    *exec.Cmd
	stdout io.Reader
}

func (p *execProcess) Stdout() io.Reader { return p.stdout }

func (p *execProcess) Wait() error { return p.cmd.Wait() }
