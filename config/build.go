package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/inkbridge/inkbridge/dispatch/canned"
	"github.com/inkbridge/inkbridge/dispatch/osascript"
	"github.com/inkbridge/inkbridge/dispatch/quickjs"
	"github.com/inkbridge/inkbridge/dispatch/sim"
	"github.com/inkbridge/inkbridge/executor"
	"github.com/inkbridge/inkbridge/fragment"
)

// Manifest is a JSONC file declaring fragments. Relative file paths are
// resolved against the manifest's directory.
//
//	{
//	  // shared helpers
//	  "fragments": [
//	    {"name": "swatch", "depends_on": ["getDocument"], "file": "swatch.jsx"},
//	  ],
//	}
type Manifest struct {
	Fragments []FragmentConfig `json:"fragments"`
}

// LoadManifest reads a fragment manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i := range m.Fragments {
		f := &m.Fragments[i]
		f.File = expandPath(f.File)
		if f.File != "" && !filepath.IsAbs(f.File) {
			f.File = filepath.Join(dir, f.File)
		}
	}
	return &m, nil
}

// Library returns the built-in fragments followed by the configured ones,
// then the manifests' fragments in listed order. The result is validated.
func (c *Config) Library() (*fragment.Library, error) {
	lib := fragment.Builtins()

	all := append([]FragmentConfig(nil), c.Fragments...)
	for _, path := range c.FragmentManifests {
		m, err := LoadManifest(path)
		if err != nil {
			return nil, err
		}
		all = append(all, m.Fragments...)
	}

	for _, fc := range all {
		source := fc.Source
		if fc.File != "" {
			data, err := os.ReadFile(fc.File)
			if err != nil {
				return nil, fmt.Errorf("fragment %s: %w", fc.Name, err)
			}
			source = string(data)
		}
		err := lib.Register(fragment.Fragment{
			Name:      fc.Name,
			Source:    source,
			DependsOn: fc.DependsOn,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := lib.Validate(); err != nil {
		return nil, err
	}
	return lib, nil
}

// NewTransport builds the configured transport. The returned close function
// releases its resources and is never nil.
func (c *Config) NewTransport(logger *slog.Logger) (executor.Transport, func() error, error) {
	noop := func() error { return nil }

	switch c.Transport {
	case TransportOsascript:
		return &osascript.Transport{
			Command: c.Dispatcher.Command,
			Args:    c.Dispatcher.Args,
			Logger:  logger,
		}, noop, nil

	case TransportSim:
		t, err := sim.New(c.Application)
		if err != nil {
			return nil, nil, err
		}
		t.Logger = logger
		return t, noop, nil

	case TransportQuickJS:
		opts := []quickjs.Option{
			quickjs.WithMemoryLimit(c.QuickJS.MemoryLimitPages),
			quickjs.WithLogger(logger),
		}
		if c.QuickJS.CacheDir != "" {
			opts = append(opts, quickjs.WithDiskCache(c.QuickJS.CacheDir))
		}
		t, err := quickjs.Load(c.QuickJS.Module, opts...)
		if err != nil {
			return nil, nil, err
		}
		return t, t.Close, nil

	case TransportCanned:
		return canned.New(c.Canned), noop, nil
	}

	return nil, nil, fmt.Errorf("invalid transport: %q", c.Transport)
}

// Runtime is the assembled execution stack.
type Runtime struct {
	Library  *fragment.Library
	Executor *executor.Executor
	Queue    *executor.Queue

	close func() error
}

// Close releases the transport.
func (r *Runtime) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// Build validates c and assembles the library, transport, executor and
// admission queue.
func (c *Config) Build(logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	lib, err := c.Library()
	if err != nil {
		return nil, err
	}

	timeout, _ := c.TimeoutDuration()
	transport, closeFn, err := c.NewTransport(logger)
	if err != nil {
		return nil, err
	}

	exec := executor.New(
		executor.NewWorkingArea(c.WorkDir),
		transport,
		executor.WithApplication(c.Application),
		executor.WithDefaultTimeout(timeout),
		executor.WithLogger(logger),
	)

	return &Runtime{
		Library:  lib,
		Executor: exec,
		Queue:    executor.NewQueue(exec),
		close:    closeFn,
	}, nil
}
