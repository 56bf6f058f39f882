package executor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// Artifact names inside the working directory. Both are overwritten on every
// call.
const (
	DefaultDirName = "illustrator-mcp-tmp"
	ProgramFile    = "message.jsx"
	ControlFile    = "message.scpt"
)

// WorkingArea is the fixed directory holding the program and control-script
// artifacts. It is shared by every call made through it.
type WorkingArea struct {
	root string
}

// NewWorkingArea returns a working area rooted at dir. The directory is
// created by Ensure, not here.
func NewWorkingArea(dir string) *WorkingArea {
	return &WorkingArea{root: filepath.Clean(dir)}
}

// DefaultWorkingArea returns the working area under the user's home
// directory.
func DefaultWorkingArea() (*WorkingArea, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, &Error{Kind: ErrWorkingDirectoryUnavailable, Err: err}
	}
	return NewWorkingArea(filepath.Join(home, DefaultDirName)), nil
}

// Root returns the working directory path.
func (w *WorkingArea) Root() string { return w.root }

// ProgramPath returns the composed-program artifact path.
func (w *WorkingArea) ProgramPath() string { return filepath.Join(w.root, ProgramFile) }

// ControlPath returns the control-script artifact path.
func (w *WorkingArea) ControlPath() string { return filepath.Join(w.root, ControlFile) }

// Ensure creates the working directory if it does not exist. Calling it
// again is a no-op.
func (w *WorkingArea) Ensure() error {
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return &Error{Kind: ErrWorkingDirectoryUnavailable, Path: w.root, Err: err}
	}
	info, err := os.Stat(w.root)
	if err != nil {
		return &Error{Kind: ErrWorkingDirectoryUnavailable, Path: w.root, Err: err}
	}
	if !info.IsDir() {
		return &Error{Kind: ErrWorkingDirectoryUnavailable, Path: w.root, Err: errors.New("not a directory")}
	}
	return nil
}

// WriteProgram writes text to the program artifact with a leading UTF-8
// byte-order mark.
func (w *WorkingArea) WriteProgram(text string) error {
	encoded, err := unicode.UTF8BOM.NewEncoder().String(text)
	if err != nil {
		return &Error{Kind: ErrArtifactWriteFailed, Path: w.ProgramPath(), Err: err}
	}
	return w.write(w.ProgramPath(), encoded)
}

// WriteControl writes the control script that asks application to run the
// program artifact and return its result.
func (w *WorkingArea) WriteControl(application string) error {
	return w.write(w.ControlPath(), ControlScript(application, w.ProgramPath()))
}

func (w *WorkingArea) write(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return &Error{Kind: ErrArtifactWriteFailed, Path: path, Err: err}
	}
	return nil
}

var appleScriptEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// ControlScript returns the three-line AppleScript that runs programPath in
// application and returns its result as text.
func ControlScript(application, programPath string) string {
	return fmt.Sprintf("tell application \"%s\"\nreturn do javascript (POSIX file \"%s\")\nend tell\n",
		appleScriptEscaper.Replace(application),
		appleScriptEscaper.Replace(programPath))
}

var (
	tellPattern          = regexp.MustCompile(`(?m)^tell application "((?:[^"\\]|\\.)*)"$`)
	programPattern       = regexp.MustCompile(`POSIX file "((?:[^"\\]|\\.)*)"`)
	appleScriptUnescaper = strings.NewReplacer(`\\`, `\`, `\"`, `"`)
)

// ErrMalformedControl is returned by ParseControlScript for text that
// ControlScript did not produce.
var ErrMalformedControl = errors.New("malformed control script")

// ParseControlScript recovers the application name and program path from a
// script produced by ControlScript.
func ParseControlScript(script string) (application, programPath string, err error) {
	tell := tellPattern.FindStringSubmatch(script)
	file := programPattern.FindStringSubmatch(script)
	if tell == nil || file == nil {
		return "", "", ErrMalformedControl
	}
	return appleScriptUnescaper.Replace(tell[1]), appleScriptUnescaper.Replace(file[1]), nil
}
