// Package config loads inkbridge configuration.
//
// Configuration comes from one YAML file named by the --config flag or the
// INKBRIDGE_CONFIG environment variable. Without either, Default is used.
// Values in the file override defaults; nothing else overrides the file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/inkbridge/inkbridge/executor"
)

// EnvVar names the environment variable holding the config path.
const EnvVar = "INKBRIDGE_CONFIG"

// Transport names.
const (
	TransportOsascript = "osascript"
	TransportSim       = "sim"
	TransportQuickJS   = "quickjs"
	TransportCanned    = "canned"
)

var transports = []string{TransportOsascript, TransportSim, TransportQuickJS, TransportCanned}

// Config is the inkbridge configuration.
type Config struct {
	// Application is the host application named in the control script.
	Application string `yaml:"application"`

	// WorkDir holds the program and control-script artifacts.
	// Default: ~/illustrator-mcp-tmp
	WorkDir string `yaml:"work_dir"`

	// Transport selects the dispatcher: osascript, sim, quickjs or canned.
	Transport string `yaml:"transport"`

	// Dispatcher configures the osascript transport.
	Dispatcher DispatcherConfig `yaml:"dispatcher"`

	// Timeout bounds each dispatch, as a Go duration. "0" disables it.
	Timeout string `yaml:"timeout"`

	// QuickJS configures the quickjs transport.
	QuickJS QuickJSConfig `yaml:"quickjs"`

	// Canned is the reply of the canned transport.
	Canned string `yaml:"canned"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level"`

	// Fragments are registered after the built-in fragments.
	Fragments []FragmentConfig `yaml:"fragments"`

	// FragmentManifests are JSONC files listing more fragments.
	FragmentManifests []string `yaml:"fragment_manifests"`

	// dir is the directory of the loaded file, for relative paths.
	dir string
}

// DispatcherConfig configures the system dispatcher.
type DispatcherConfig struct {
	// Command is the dispatcher binary. Default: osascript
	Command string `yaml:"command"`

	// Args are passed before the control-script path.
	Args []string `yaml:"args"`
}

// QuickJSConfig configures the sandboxed interpreter.
type QuickJSConfig struct {
	// Module is the path to a QuickJS WASI binary.
	Module string `yaml:"module"`

	// MemoryLimitPages caps interpreter memory in 64KB pages. 0 means no
	// limit beyond the runtime default.
	MemoryLimitPages uint32 `yaml:"memory_limit_pages"`

	// CacheDir persists compiled modules between runs. Empty disables it.
	CacheDir string `yaml:"cache_dir"`
}

// FragmentConfig declares one user fragment. Exactly one of Source and File
// must be set.
type FragmentConfig struct {
	Name      string   `yaml:"name" json:"name"`
	DependsOn []string `yaml:"depends_on" json:"depends_on"`
	Source    string   `yaml:"source" json:"source"`
	File      string   `yaml:"file" json:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Application: executor.DefaultApplication,
		WorkDir:     expandPath(filepath.Join("~", executor.DefaultDirName)),
		Transport:   TransportOsascript,
		Dispatcher: DispatcherConfig{
			Command: "osascript",
		},
		Timeout:  executor.DefaultTimeout.String(),
		LogLevel: "info",
	}
}

// Load loads the file at path, or the file named by INKBRIDGE_CONFIG when
// path is empty. With neither, it returns Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg.dir = filepath.Dir(abs)
	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ~ and environment variables in path fields.
func (c *Config) expandVariables() {
	c.WorkDir = expandPath(c.WorkDir)
	c.QuickJS.Module = c.resolve(c.QuickJS.Module)
	c.QuickJS.CacheDir = expandPath(c.QuickJS.CacheDir)
	for i := range c.Fragments {
		c.Fragments[i].File = c.resolve(c.Fragments[i].File)
	}
	for i := range c.FragmentManifests {
		c.FragmentManifests[i] = c.resolve(c.FragmentManifests[i])
	}
}

// resolve expands p and makes it relative to the config file's directory.
func (c *Config) resolve(p string) string {
	p = expandPath(p)
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

func expandPath(p string) string {
	if p == "" {
		return p
	}
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Application) == "" {
		errs = append(errs, errors.New("application is required"))
	}
	if c.WorkDir == "" {
		errs = append(errs, errors.New("work_dir is required"))
	}
	if !slices.Contains(transports, c.Transport) {
		errs = append(errs, fmt.Errorf("invalid transport: %q (want one of %s)", c.Transport, strings.Join(transports, ", ")))
	}
	if c.Transport == TransportOsascript && c.Dispatcher.Command == "" {
		errs = append(errs, errors.New("dispatcher.command is required"))
	}
	if c.Transport == TransportQuickJS && c.QuickJS.Module == "" {
		errs = append(errs, errors.New("quickjs.module is required for the quickjs transport"))
	}
	if _, err := c.TimeoutDuration(); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	for i, f := range c.Fragments {
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("fragments[%d].name is required", i))
		}
		if (f.Source == "") == (f.File == "") {
			errs = append(errs, fmt.Errorf("fragments[%d] (%s): exactly one of source and file must be set", i, f.Name))
		}
	}

	return errors.Join(errs...)
}

// TimeoutDuration parses Timeout.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" || c.Timeout == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid timeout %q: must not be negative", c.Timeout)
	}
	return d, nil
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q", s)
	}
	return level, nil
}
