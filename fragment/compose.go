package fragment

import (
	"container/heap"
	"slices"
	"strings"
)

// EncodingMarker is the first line of every composed program.
const EncodingMarker = "// encoding: UTF-8"

// Program is a composed program: fragments in dependency order followed by
// the call body. It is built per call and never persisted by this package.
type Program struct {
	Fragments []Fragment
	Body      string
}

// Names returns the fragment names in program order.
func (p *Program) Names() []string {
	names := make([]string, len(p.Fragments))
	for i, f := range p.Fragments {
		names[i] = f.Name
	}
	return names
}

// String returns the full program text: encoding marker, each fragment
// source, then the body, separated by newlines.
func (p *Program) String() string {
	parts := make([]string, 0, len(p.Fragments)+2)
	parts = append(parts, EncodingMarker)
	for _, f := range p.Fragments {
		parts = append(parts, f.Source)
	}
	parts = append(parts, p.Body)
	return strings.Join(parts, "\n")
}

// Compose builds a program from the fragments named in required, their
// transitive dependencies, and body. The order of required does not matter;
// duplicates are ignored.
func (l *Library) Compose(required []string, body string) (*Program, error) {
	fragments, err := l.resolve(required)
	if err != nil {
		return nil, err
	}
	return &Program{Fragments: fragments, Body: body}, nil
}

// resolve returns the dependency closure of names, topologically ordered
// with declaration index as tie-breaker.
func (l *Library) resolve(names []string) ([]Fragment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	closure, err := l.closure(names)
	if err != nil {
		return nil, err
	}

	// Kahn's algorithm over the closure. Edges run dependency -> dependent.
	indeg := make(map[int]int, len(closure))
	dependents := make(map[int][]int, len(closure))
	for _, idx := range closure {
		e := l.entries[l.order[idx]]
		for _, dep := range e.fragment.DependsOn {
			d := l.entries[dep].index
			indeg[idx]++
			dependents[d] = append(dependents[d], idx)
		}
	}

	ready := &indexHeap{}
	for _, idx := range closure {
		if indeg[idx] == 0 {
			heap.Push(ready, idx)
		}
	}

	ordered := make([]Fragment, 0, len(closure))
	for ready.Len() > 0 {
		idx := heap.Pop(ready).(int)
		ordered = append(ordered, clone(l.entries[l.order[idx]].fragment))
		for _, next := range dependents[idx] {
			indeg[next]--
			if indeg[next] == 0 {
				heap.Push(ready, next)
			}
		}
	}

	if len(ordered) != len(closure) {
		return nil, &Error{Kind: ErrFragmentCycle, Path: l.findCycle(closure)}
	}
	return ordered, nil
}

// closure collects the declaration indices of names and everything they
// depend on, sorted ascending.
func (l *Library) closure(names []string) ([]int, error) {
	seen := make(map[string]bool)
	var out []int

	type pending struct{ name, requiredBy string }
	stack := make([]pending, 0, len(names))
	for i := len(names) - 1; i >= 0; i-- {
		stack = append(stack, pending{name: names[i]})
	}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[p.name] {
			continue
		}
		e, ok := l.entries[p.name]
		if !ok {
			return nil, &Error{Kind: ErrUnknownFragment, Name: p.name, RequiredBy: p.requiredBy}
		}
		seen[p.name] = true
		out = append(out, e.index)
		for i := len(e.fragment.DependsOn) - 1; i >= 0; i-- {
			stack = append(stack, pending{name: e.fragment.DependsOn[i], requiredBy: p.name})
		}
	}

	slices.Sort(out)
	return out, nil
}

// findCycle walks the dependency edges of the closure in declaration order
// and returns one cycle as a name path whose first and last elements match.
func (l *Library) findCycle(closure []int) []string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[int]int, len(closure))
	var stack []int
	var cycle []int

	var visit func(idx int) bool
	visit = func(idx int) bool {
		color[idx] = grey
		stack = append(stack, idx)
		e := l.entries[l.order[idx]]
		deps := make([]int, 0, len(e.fragment.DependsOn))
		for _, dep := range e.fragment.DependsOn {
			deps = append(deps, l.entries[dep].index)
		}
		slices.Sort(deps)
		for _, d := range deps {
			switch color[d] {
			case white:
				if visit(d) {
					return true
				}
			case grey:
				start := slices.Index(stack, d)
				cycle = append(slices.Clone(stack[start:]), d)
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[idx] = black
		return false
	}

	for _, idx := range closure {
		if color[idx] == white && visit(idx) {
			break
		}
	}

	path := make([]string, len(cycle))
	for i, idx := range cycle {
		path[i] = l.order[idx]
	}
	return path
}

// indexHeap is a min-heap of declaration indices.
type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
