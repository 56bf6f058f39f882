package fragment

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Fragment is a named host-dialect function definition.
type Fragment struct {
	Name      string
	Source    string
	DependsOn []string
}

type entry struct {
	fragment Fragment
	index    int
}

// Library is a registry of fragments. It is safe for concurrent use;
// fragments are copied on the way in and on the way out.
type Library struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

// NewLibrary returns an empty library.
func NewLibrary() *Library {
	return &Library{entries: make(map[string]*entry)}
}

// Register adds f to the library. Dependencies may name fragments that are
// registered later; Validate and Compose check them.
func (l *Library) Register(f Fragment) error {
	if strings.TrimSpace(f.Name) == "" {
		return &Error{Kind: ErrInvalidFragment, Name: f.Name}
	}
	if strings.TrimSpace(f.Source) == "" {
		return &Error{Kind: ErrInvalidFragment, Name: f.Name}
	}

	f = clone(f)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.entries[f.Name]; exists {
		return &Error{Kind: ErrDuplicateFragment, Name: f.Name}
	}
	l.entries[f.Name] = &entry{fragment: f, index: len(l.order)}
	l.order = append(l.order, f.Name)
	return nil
}

// MustRegister is Register for package-level setup; it panics on error.
func (l *Library) MustRegister(f Fragment) {
	if err := l.Register(f); err != nil {
		panic(fmt.Sprintf("fragment: %v", err))
	}
}

// Get returns the fragment registered under name.
func (l *Library) Get(name string) (Fragment, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[name]
	if !ok {
		return Fragment{}, false
	}
	return clone(e.fragment), true
}

// List returns every fragment in declaration order.
func (l *Library) List() []Fragment {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Fragment, 0, len(l.order))
	for _, name := range l.order {
		out = append(out, clone(l.entries[name].fragment))
	}
	return out
}

// Len returns the number of registered fragments.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// Validate checks that every dependency names a registered fragment and
// that the dependency graph is acyclic.
func (l *Library) Validate() error {
	l.mu.RLock()
	names := slices.Clone(l.order)
	l.mu.RUnlock()

	_, err := l.resolve(names)
	return err
}

// clone copies f and drops duplicate dependency names, keeping first
// occurrence order.
func clone(f Fragment) Fragment {
	deps := make([]string, 0, len(f.DependsOn))
	for _, d := range f.DependsOn {
		if !slices.Contains(deps, d) {
			deps = append(deps, d)
		}
	}
	f.DependsOn = deps
	return f
}
