// Package sim dispatches staged programs to an in-process simulation of the
// host application.
//
// The simulator runs the composed program in a goja runtime that carries a
// small document model (documents, path items, placed images, text frames,
// groups, fonts). State persists across dispatches the way it does inside
// a running host, so handles assigned in one call can be looked up in the
// next.
package sim

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sync"

	"github.com/dop251/goja"

	"github.com/inkbridge/inkbridge/executor"
)

//go:embed stub.js
var stubSource string

var linePattern = regexp.MustCompile(`message\.jsx:(\d+):\d+`)

// Prelude returns the document model source loaded into every simulator.
func Prelude() string { return stubSource }

// Transport is an executor.Transport backed by a goja runtime.
type Transport struct {
	// Application must match the name in the control script. Empty accepts
	// any name.
	Application string

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	mu sync.Mutex
	vm *goja.Runtime
}

// New returns a simulator answering to application.
func New(application string) (*Transport, error) {
	t := &Transport{Application: application}
	if err := t.Reset(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Transport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// Reset discards all simulated documents and globals.
func (t *Transport) Reset() error {
	vm := goja.New()
	if _, err := vm.RunScript("stub.js", stubSource); err != nil {
		return fmt.Errorf("load simulator: %w", err)
	}
	t.mu.Lock()
	t.vm = vm
	t.mu.Unlock()
	return nil
}

// Name implements executor.Transport.
func (t *Transport) Name() string { return "sim" }

// Dispatch reads the control script, checks the target application, runs
// the program it names and returns the result text followed by a newline,
// the way the system dispatcher prints it.
func (t *Transport) Dispatch(ctx context.Context, req executor.Request) ([]byte, error) {
	control, err := os.ReadFile(req.ControlPath)
	if err != nil {
		return nil, dispatchError(fmt.Sprintf("%s: can't read script", req.ControlPath), err)
	}

	application, programPath, err := executor.ParseControlScript(string(control))
	if err != nil {
		return nil, dispatchError(fmt.Sprintf("%s: syntax error: Expected end of line. (-2741)", req.ControlPath), err)
	}
	if t.Application != "" && application != t.Application {
		return nil, dispatchError(fmt.Sprintf("%s: execution error: Can't get application %q. (-1728)", req.ControlPath, application), nil)
	}

	raw, err := os.ReadFile(programPath)
	if err != nil {
		return nil, dispatchError(fmt.Sprintf("%s: execution error: %s got an error: File not found. (-43)", req.ControlPath, application), err)
	}

	text, err := t.eval(ctx, executor.DecodeOutput(raw))
	if err != nil {
		var ctxErr *contextError
		if errors.As(err, &ctxErr) {
			return nil, &executor.Error{Kind: executor.ErrDispatchFailed, ExitCode: -1, Err: ctxErr.err}
		}
		t.logger().Debug("simulated script raised", "error", err)
		return nil, dispatchError(hostFailure(req.ControlPath, application, err), nil)
	}
	return []byte(text + "\n"), nil
}

type contextError struct{ err error }

func (e *contextError) Error() string { return e.err.Error() }

// eval runs src on the shared runtime, interrupting it when ctx is done.
func (t *Transport) eval(ctx context.Context, src string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", &contextError{err: err}
	}

	// The watcher must be gone before the interrupt is cleared, or a late
	// Interrupt stays pending on the runtime and fails the next call.
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			t.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	defer func() {
		close(done)
		<-stopped
		t.vm.ClearInterrupt()
	}()

	val, err := t.vm.RunScript("message.jsx", src)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			if cause := interrupted.Unwrap(); cause != nil {
				return "", &contextError{err: cause}
			}
			return "", &contextError{err: context.Canceled}
		}
		return "", err
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return "", nil
	}
	return val.String(), nil
}

func hostFailure(controlPath, application string, err error) string {
	message := err.Error()
	var exc *goja.Exception
	if errors.As(err, &exc) {
		message = exc.Value().String()
	}
	s := fmt.Sprintf("%s: execution error: %s got an error: Error 8: %s", controlPath, application, message)
	if m := linePattern.FindStringSubmatch(err.Error()); m != nil {
		s += "\nLine: " + m[1]
	}
	return s + " (-2700)"
}

func dispatchError(stderr string, cause error) error {
	return &executor.Error{
		Kind:     executor.ErrDispatchFailed,
		Stderr:   stderr + "\n",
		ExitCode: 1,
		Err:      cause,
	}
}
