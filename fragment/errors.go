package fragment

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownFragment   = errors.New("unknown fragment")
	ErrFragmentCycle     = errors.New("fragment cycle")
	ErrDuplicateFragment = errors.New("duplicate fragment")
	ErrInvalidFragment   = errors.New("invalid fragment")
)

// Error describes a library or composition failure. Kind is one of the
// sentinel errors above and is what errors.Is matches.
type Error struct {
	Kind error

	// Name is the fragment the failure is about.
	Name string

	// RequiredBy names the fragment whose dependency list referenced an
	// unknown Name. Empty when Name was requested directly.
	RequiredBy string

	// Path is one dependency cycle, first element repeated at the end.
	Path []string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case len(e.Path) > 0:
		return fmt.Sprintf("%s: %s", e.Kind, strings.Join(e.Path, " -> "))
	case e.RequiredBy != "":
		return fmt.Sprintf("%s: %q (required by %q)", e.Kind, e.Name, e.RequiredBy)
	case e.Name != "":
		return fmt.Sprintf("%s: %q", e.Kind, e.Name)
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() error { return e.Kind }
