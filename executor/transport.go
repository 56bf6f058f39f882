package executor

import "context"

// Request tells a transport where the staged artifacts are.
type Request struct {
	// Application is the host application name written into the control
	// script.
	Application string

	// ProgramPath is the composed-program artifact, BOM-prefixed UTF-8.
	ProgramPath string

	// ControlPath is the control-script artifact.
	ControlPath string
}

// Transport delivers staged artifacts to a host and returns what the host
// produced. Implement this interface to add a new dispatcher.
type Transport interface {
	// Name identifies the transport in logs and configuration.
	Name() string

	// Dispatch runs the request synchronously and returns the raw bytes
	// the host wrote as its result. Implementations must stop work and
	// return when ctx is done. A non-zero dispatcher exit should be
	// reported as an *Error of kind ErrDispatchFailed carrying Stderr.
	Dispatch(ctx context.Context, req Request) ([]byte, error)
}
