// Package identity generates the random handles that let separate host
// calls find the same host object again.
//
// A handle is stored in the object's metadata note the first time the object
// is referenced without one. Handles are version-4 style identifiers;
// uniqueness is probabilistic and no registry is kept.
package identity

import (
	_ "embed"
	"regexp"

	"github.com/google/uuid"
)

// Pattern matches a well-formed handle: 32 lowercase hex digits in 8-4-4-4-12
// groups, version nibble 4, variant nibble one of 8, 9, a, b.
var Pattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

//go:embed createuuid.jsx
var createUUIDSource string

//go:embed ensureidentifier.jsx
var ensureIdentifierSource string

// Source returns the dialect definition of createUUID(). It relies only on
// Math.random so it runs without host crypto or UUID support.
func Source() string { return createUUIDSource }

// EnsureSource returns the dialect definition of ensureIdentifier(item),
// which assigns a handle to item.note when it has none and returns it.
func EnsureSource() string { return ensureIdentifierSource }

// New returns a fresh handle generated on the Go side.
func New() string {
	return uuid.NewString()
}

// Valid reports whether s looks like a handle.
func Valid(s string) bool {
	return Pattern.MatchString(s)
}
