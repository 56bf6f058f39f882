// Package quickjs dispatches staged programs to a QuickJS interpreter
// compiled to WASI and run under wazero.
//
// The program runs against the same document model the sim package uses,
// but inside a memory-limited sandbox with no host access. The QuickJS
// module is supplied by the caller, usually from a file fetched with
// internal/tools/download.
package quickjs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/inkbridge/inkbridge/codec"
	"github.com/inkbridge/inkbridge/dispatch/sim"
	"github.com/inkbridge/inkbridge/executor"
)

// Option configures a Transport.
type Option func(*config)

type config struct {
	memoryLimitPages uint32
	cacheDir         string
	logger           *slog.Logger
}

// WithMemoryLimit caps interpreter memory in 64KB pages. Zero keeps the
// wazero default.
func WithMemoryLimit(pages uint32) Option {
	return func(c *config) {
		c.memoryLimitPages = pages
	}
}

// WithDiskCache persists compiled modules in dir between processes.
func WithDiskCache(dir string) Option {
	return func(c *config) {
		c.cacheDir = dir
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// Transport runs each program in a fresh QuickJS instance.
type Transport struct {
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	compiled wazero.CompiledModule
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Load reads a QuickJS WASI binary from path and compiles it.
func Load(path string, opts ...Option) (*Transport, error) {
	module, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quickjs module: %w", err)
	}
	return New(module, opts...)
}

// New compiles module, a QuickJS WASI binary.
func New(module []byte, opts ...Option) (*Transport, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()

	var cache wazero.CompilationCache
	if cfg.cacheDir != "" {
		var err error
		cache, err = wazero.NewCompilationCacheWithDir(cfg.cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	cleanup := func() {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		cleanup()
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, module)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("compile quickjs: %w", err)
	}

	return &Transport{
		runtime:  rt,
		cache:    cache,
		compiled: compiled,
		logger:   cfg.logger,
	}, nil
}

func (t *Transport) log() *slog.Logger {
	if t.logger != nil {
		return t.logger
	}
	return slog.Default()
}

// Name implements executor.Transport.
func (t *Transport) Name() string { return "quickjs" }

// Dispatch implements executor.Transport. The program text is evaluated
// with std.evalScript so its completion value becomes the result.
func (t *Transport) Dispatch(ctx context.Context, req executor.Request) ([]byte, error) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil, &executor.Error{Kind: executor.ErrDispatchFailed, ExitCode: -1, Err: errors.New("transport closed")}
	}

	control, err := os.ReadFile(req.ControlPath)
	if err != nil {
		return nil, &executor.Error{Kind: executor.ErrDispatchFailed, Path: req.ControlPath, ExitCode: -1, Err: err}
	}
	application, programPath, err := executor.ParseControlScript(string(control))
	if err != nil {
		return nil, &executor.Error{Kind: executor.ErrDispatchFailed, Path: req.ControlPath, ExitCode: -1, Err: err}
	}
	raw, err := os.ReadFile(programPath)
	if err != nil {
		return nil, &executor.Error{Kind: executor.ErrDispatchFailed, Path: programPath, ExitCode: -1, Err: err}
	}

	wrapped, err := wrap(executor.DecodeOutput(raw))
	if err != nil {
		return nil, &executor.Error{Kind: executor.ErrDispatchFailed, ExitCode: -1, Err: err}
	}

	stdout := &resultWriter{}
	var stderr strings.Builder
	moduleConfig := wazero.NewModuleConfig().
		WithStdout(stdout).
		WithStderr(&stderr).
		WithArgs("qjs", "--std", "-e", wrapped).
		WithName("")

	mod, err := t.runtime.InstantiateModule(ctx, t.compiled, moduleConfig)
	if mod != nil {
		mod.Close(context.Background())
	}

	if other := stdout.Other(); other != "" {
		t.log().Debug("program output", "text", other)
	}

	if err != nil {
		if ctx.Err() != nil {
			return nil, &executor.Error{Kind: executor.ErrDispatchFailed, ExitCode: -1, Err: ctx.Err()}
		}
		exitCode := -1
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) {
			exitCode = int(exitErr.ExitCode())
		}
		if exitCode != 0 {
			return nil, &executor.Error{
				Kind:     executor.ErrDispatchFailed,
				Stderr:   hostFailure(req.ControlPath, application, stderr.String()),
				ExitCode: exitCode,
				Err:      err,
			}
		}
	}

	result, ok := stdout.Result()
	if !ok {
		return nil, &executor.Error{
			Kind:     executor.ErrDispatchFailed,
			Stderr:   stderr.String(),
			ExitCode: 0,
			Err:      errors.New("program produced no result"),
		}
	}
	return []byte(result + "\n"), nil
}

// Close releases the runtime and compilation cache.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	ctx := context.Background()
	err := t.runtime.Close(ctx)
	if t.cache != nil {
		if cerr := t.cache.Close(ctx); err == nil {
			err = cerr
		}
	}
	return err
}

// wrap builds the interpreter entry script: document model, then the
// program evaluated as a global script, then the framed result.
func wrap(program string) (string, error) {
	literal, err := codec.Literal(program)
	if err != nil {
		return "", err
	}
	return sim.Prelude() + "\n" +
		"var __inkbridgeResult = std.evalScript(" + literal + ");\n" +
		"std.out.puts(" + fmt.Sprintf("%q", resultPrefix) + " + " +
		"(__inkbridgeResult === undefined || __inkbridgeResult === null ? \"\" : String(__inkbridgeResult)) + " +
		fmt.Sprintf("%q", resultSuffix) + ");\n" +
		"std.out.flush();\n", nil
}

// hostFailure renders interpreter diagnostics the way the system
// dispatcher reports a script error, so ClassifyHostFailure applies.
func hostFailure(controlPath, application, stderr string) string {
	first, rest, _ := strings.Cut(strings.TrimSpace(stderr), "\n")
	if first == "" {
		first = "unknown error"
	}
	s := fmt.Sprintf("%s: execution error: %s got an error: Error 8: %s (-2700)", controlPath, application, first)
	if rest != "" {
		s += "\n" + rest
	}
	return s + "\n"
}
