package fragment

import (
	"embed"

	"github.com/inkbridge/inkbridge/codec"
	"github.com/inkbridge/inkbridge/identity"
	"github.com/inkbridge/inkbridge/units"
)

// Built-in fragment names.
const (
	JSON             = "json"
	PtToMm           = "ptToMm"
	ToPt             = "toPt"
	CreateUUID       = "createUUID"
	EnsureIdentifier = "ensureIdentifier"
	GetDocument      = "getDocument"
	GetPageItem      = "getPageItem"
	FindPageItems    = "findPageItems"
)

//go:embed scripts/*.jsx
var scripts embed.FS

func script(name string) string {
	b, err := scripts.ReadFile("scripts/" + name)
	if err != nil {
		panic("fragment: missing embedded script " + name)
	}
	return string(b)
}

// Builtins returns a new library holding the built-in fragments. Callers may
// register more fragments on it.
func Builtins() *Library {
	l := NewLibrary()
	l.MustRegister(Fragment{Name: JSON, Source: codec.Source()})
	l.MustRegister(Fragment{Name: PtToMm, Source: units.PtToMmSource()})
	l.MustRegister(Fragment{Name: ToPt, Source: units.ToPtSource()})
	l.MustRegister(Fragment{Name: CreateUUID, Source: identity.Source()})
	l.MustRegister(Fragment{Name: EnsureIdentifier, Source: identity.EnsureSource(), DependsOn: []string{CreateUUID}})
	l.MustRegister(Fragment{Name: GetDocument, Source: script("getdocument.jsx")})
	l.MustRegister(Fragment{Name: GetPageItem, Source: script("getpageitem.jsx"), DependsOn: []string{GetDocument}})
	l.MustRegister(Fragment{Name: FindPageItems, Source: script("findpageitems.jsx"), DependsOn: []string{GetDocument}})
	return l
}
