package executor

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Sentinel errors for bridge failures.
var (
	// ErrWorkingDirectoryUnavailable means the working directory could not
	// be created or is not a directory.
	ErrWorkingDirectoryUnavailable = errors.New("working directory unavailable")

	// ErrArtifactWriteFailed means the program or control script could not
	// be written.
	ErrArtifactWriteFailed = errors.New("artifact write failed")

	// ErrDispatchFailed means the dispatcher could not be started, exited
	// non-zero, or was killed on timeout.
	ErrDispatchFailed = errors.New("dispatch failed")

	// ErrHostScriptFailed means the program raised an error inside the host
	// application. Only ClassifyHostFailure produces it.
	ErrHostScriptFailed = errors.New("host script failed")
)

// Error is a bridge failure. Kind is one of the sentinels above.
type Error struct {
	Kind error

	// Path is the file or directory involved, if any.
	Path string

	// Stderr is the dispatcher's diagnostic output, decoded as text.
	Stderr string

	// ExitCode is the dispatcher exit status, or -1 if it never exited
	// normally.
	ExitCode int

	// Message and Line are filled in by ClassifyHostFailure.
	Message string
	Line    int

	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Path != "" {
		fmt.Fprintf(&b, " (%s)", e.Path)
	}
	switch {
	case e.Message != "":
		b.WriteString(": ")
		b.WriteString(e.Message)
		if e.Line > 0 {
			fmt.Fprintf(&b, " (line %d)", e.Line)
		}
	case e.Stderr != "":
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(e.Stderr))
	case e.Err != nil:
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

var (
	hostErrorPattern = regexp.MustCompile(`got an error:\s*(?:Error\s+\d+:\s*)?(.+?)(?:\s*\(-?\d+\))?\s*$`)
	hostLinePattern  = regexp.MustCompile(`(?m)^Line:\s*(\d+)`)
)

// ClassifyHostFailure inspects a dispatch failure and, when the diagnostic
// text shows the program itself raised an error inside the host, returns an
// *Error of kind ErrHostScriptFailed wrapping the original. Any other error
// is returned unchanged.
func ClassifyHostFailure(err error) error {
	var xerr *Error
	if !errors.As(err, &xerr) || xerr.Kind != ErrDispatchFailed || xerr.Stderr == "" {
		return err
	}

	firstLine, _, _ := strings.Cut(strings.TrimSpace(xerr.Stderr), "\n")
	m := hostErrorPattern.FindStringSubmatch(firstLine)
	if m == nil {
		return err
	}

	classified := &Error{
		Kind:     ErrHostScriptFailed,
		Stderr:   xerr.Stderr,
		ExitCode: xerr.ExitCode,
		Message:  strings.TrimSpace(m[1]),
		Err:      err,
	}
	if lm := hostLinePattern.FindStringSubmatch(xerr.Stderr); lm != nil {
		classified.Line, _ = strconv.Atoi(lm[1])
	}
	return classified
}
