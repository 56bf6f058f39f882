// Package fragment holds the reusable host-dialect function definitions a
// call body may depend on, and composes them with a body into one program.
//
// # Library
//
// A [Library] is a registry of named [Fragment] values. Each fragment is an
// opaque, versioned piece of dialect source plus the names of the fragments
// it calls. Registration order is significant: it is the tie-breaker that
// makes composition output reproducible.
//
//	lib := fragment.Builtins()
//	prog, err := lib.Compose([]string{fragment.GetPageItem, fragment.JSON}, body)
//
// # Composition
//
// Compose resolves the transitive dependencies of the requested names,
// orders them so every fragment follows the fragments it depends on, and
// joins an encoding marker, the fragment sources and the body with newlines.
// Fragments with no ordering constraint between them keep declaration order.
// Unknown names fail with [ErrUnknownFragment]; dependency cycles fail with
// [ErrFragmentCycle]. Composition is purely textual and does no I/O; syntax
// errors in the dialect surface only when the host runs the program.
//
// Caller data never belongs in a fragment. Interpolate it into the body,
// through codec.Literal, after the caller has validated its shape.
package fragment
