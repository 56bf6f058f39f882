// Package osascript dispatches staged programs through the macOS scripting
// dispatcher.
package osascript

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/inkbridge/inkbridge/executor"
)

// DefaultCommand is the dispatcher binary.
const DefaultCommand = "osascript"

// Transport runs Command with Args followed by the control-script path.
type Transport struct {
	// Command is the dispatcher binary. Defaults to DefaultCommand.
	Command string

	// Args are inserted before the control-script path.
	Args []string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// New returns a transport using the system osascript.
func New() *Transport {
	return &Transport{Command: DefaultCommand}
}

func (t *Transport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// Name implements executor.Transport.
func (t *Transport) Name() string { return "osascript" }

// Dispatch runs the dispatcher against req.ControlPath and returns its
// standard output. The process is killed when ctx is done.
func (t *Transport) Dispatch(ctx context.Context, req executor.Request) ([]byte, error) {
	command := t.Command
	if command == "" {
		command = DefaultCommand
	}
	args := append(append([]string(nil), t.Args...), req.ControlPath)

	cmd := exec.Command(command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, &executor.Error{
			Kind:     executor.ErrDispatchFailed,
			Path:     command,
			ExitCode: -1,
			Err:      fmt.Errorf("start dispatcher: %w", err),
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var err error
	select {
	case <-ctx.Done():
		cmd.Process.Kill()
		<-done
		t.logger().Warn("dispatcher killed", "pid", cmd.Process.Pid, "reason", ctx.Err())
		return nil, &executor.Error{
			Kind:     executor.ErrDispatchFailed,
			Stderr:   executor.DecodeOutput(stderr.Bytes()),
			ExitCode: -1,
			Err:      ctx.Err(),
		}
	case err = <-done:
	}

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return nil, &executor.Error{
			Kind:     executor.ErrDispatchFailed,
			Stderr:   executor.DecodeOutput(stderr.Bytes()),
			ExitCode: exitCode,
			Err:      err,
		}
	}
	return stdout.Bytes(), nil
}
