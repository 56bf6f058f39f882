package executor

import (
	"log/slog"
	"time"
)

// DefaultTimeout bounds a single dispatch unless overridden.
const DefaultTimeout = 60 * time.Second

// DefaultApplication is the host named in the control script.
const DefaultApplication = "Adobe Illustrator"

// Option configures a single Run.
type Option func(*runConfig)

type runConfig struct {
	timeout time.Duration
}

// WithTimeout sets the maximum dispatch time for one run. Zero disables the
// limit.
func WithTimeout(d time.Duration) Option {
	return func(c *runConfig) {
		c.timeout = d
	}
}

// ExecutorOption configures the Executor at creation time.
type ExecutorOption func(*executorConfig)

type executorConfig struct {
	application string
	timeout     time.Duration
	logger      *slog.Logger
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		application: DefaultApplication,
		timeout:     DefaultTimeout,
	}
}

// WithApplication sets the host application name.
func WithApplication(name string) ExecutorOption {
	return func(c *executorConfig) {
		c.application = name
	}
}

// WithDefaultTimeout sets the timeout used when Run is not given one.
func WithDefaultTimeout(d time.Duration) ExecutorOption {
	return func(c *executorConfig) {
		c.timeout = d
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(c *executorConfig) {
		c.logger = l
	}
}
