package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/inkbridge/inkbridge/fragment"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Result holds the host's textual result and run metadata.
type Result struct {
	Output   string
	Duration time.Duration
	Error    error
}

// Runner runs composed programs. Executor and Queue implement it.
type Runner interface {
	Run(ctx context.Context, prog *fragment.Program, opts ...Option) Result
}

// Executor stages composed programs in a working area and dispatches them
// through a transport. It holds no lock: concurrent Run calls share the
// same artifact paths. Wrap it in a Queue to serialize callers.
type Executor struct {
	area        *WorkingArea
	transport   Transport
	application string
	timeout     time.Duration
	logger      *slog.Logger
}

// New creates an Executor.
func New(area *WorkingArea, transport Transport, opts ...ExecutorOption) *Executor {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Executor{
		area:        area,
		transport:   transport,
		application: cfg.application,
		timeout:     cfg.timeout,
		logger:      cfg.logger,
	}
}

func (e *Executor) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}

// Area returns the working area.
func (e *Executor) Area() *WorkingArea { return e.area }

// Transport returns the transport.
func (e *Executor) Transport() Transport { return e.transport }

// Run stages prog and dispatches it, returning the host's output decoded as
// text. Output is not trimmed.
func (e *Executor) Run(ctx context.Context, prog *fragment.Program, opts ...Option) Result {
	start := time.Now()

	cfg := runConfig{timeout: e.timeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	fail := func(err error) Result {
		e.log().Warn("execution failed",
			"transport", e.transport.Name(),
			"error", err,
			"duration", time.Since(start))
		return Result{Error: err, Duration: time.Since(start)}
	}

	if err := e.area.Ensure(); err != nil {
		return fail(err)
	}
	if err := e.area.WriteProgram(prog.String()); err != nil {
		return fail(err)
	}
	if err := e.area.WriteControl(e.application); err != nil {
		return fail(err)
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	e.log().Debug("dispatching program",
		"transport", e.transport.Name(),
		"fragments", prog.Names(),
		"program", e.area.ProgramPath())

	raw, err := e.transport.Dispatch(ctx, Request{
		Application: e.application,
		ProgramPath: e.area.ProgramPath(),
		ControlPath: e.area.ControlPath(),
	})
	if err != nil {
		return fail(e.dispatchError(ctx, err, cfg.timeout))
	}

	out := DecodeOutput(raw)
	duration := time.Since(start)
	e.log().Debug("program finished",
		"transport", e.transport.Name(),
		"bytes", len(raw),
		"duration", duration)

	return Result{Output: out, Duration: duration}
}

func (e *Executor) dispatchError(ctx context.Context, err error, timeout time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{
			Kind:     ErrDispatchFailed,
			ExitCode: -1,
			Err:      fmt.Errorf("timeout after %v: %w", timeout, context.DeadlineExceeded),
		}
	}
	var xerr *Error
	if errors.As(err, &xerr) {
		return err
	}
	return &Error{Kind: ErrDispatchFailed, ExitCode: -1, Err: err}
}

// DecodeOutput decodes dispatcher output as UTF-8, dropping a leading
// byte-order mark and replacing invalid sequences with U+FFFD.
func DecodeOutput(raw []byte) string {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, raw)
	if err != nil {
		return string(raw)
	}
	return string(out)
}
