// Package depgraph implements the dependency graph: headers and sources as
// file entities linked by include edges, modules that own and resolve them,
// and the header/source pairing fixed point. Grounded on
// original_source/base/file.py and base/module.py, whose class layout
// (File/Header/Source, DependencyManager, Module) this package's types
// mirror, adapted to Go's lack of inheritance via struct embedding and
// free functions operating over a small fileLike interface, in the spirit
// of the pointer-heavy entity style in
// _examples/VKCOM-nocc/internal/client/own-includes-parser.go.
package depgraph

import (
	"sort"

	"github.com/tiny-make/tiny-make/internal/library"
)

// Edge is a local include resolved to a header: Dir is the directory that
// resolved it (the header's path with the include string removed from its
// end, or "." when the two are equal), so that Dir+"/"+token reconstructs
// Header.Path. This is what feeds -I flags.
type Edge struct {
	Dir    string
	Header *Header
}

// base holds the state common to Header and Source: its own path, the
// compile options declared directly in it, the include edges it resolved
// locally, and the libraries its own includes resolved to.
type base struct {
	path      string
	options   []string
	edges     []Edge
	libraries []library.Library
}

func (b *base) Path() string                      { return b.path }
func (b *base) LocalOptions() []string             { return b.options }
func (b *base) Edges() []Edge                      { return b.edges }
func (b *base) Libraries() []library.Library       { return b.libraries }
func (b *base) addEdge(dir string, h *Header)      { b.edges = append(b.edges, Edge{Dir: dir, Header: h}) }
func (b *base) addLibrary(lib library.Library)      { b.libraries = append(b.libraries, lib) }
func (b *base) addOption(opt string)                { b.options = append(b.options, opt) }

// Header is a .h/.hpp file entity. It may have a companion Source of the
// same stem in the same module, attached once the pairing fixed point
// finds one.
type Header struct {
	base
	companion *Source
}

// Companion returns the paired source file, if any.
func (h *Header) Companion() *Source { return h.companion }

// AttachCompanion pairs src to h. Idempotent: re-attaching the same pairing
// during a later fixed-point pass is a no-op.
func (h *Header) AttachCompanion(src *Source) {
	if h.companion == nil {
		h.companion = src
	}
}

// Source is a .cpp/.cc/.cxx file entity.
type Source struct {
	base
	target string // object file path, precomputed at construction
}

// Target returns the object file this source compiles to.
func (s *Source) Target() string { return s.target }

// fileLike is satisfied by *Header and *Source via base's promoted methods.
type fileLike interface {
	Edges() []Edge
	Libraries() []library.Library
	LocalOptions() []string
}

// Includes returns the set of directories to pass with -I for f: the
// directory of every transitively reached include edge, plus the include
// directory of every transitively referenced library, excluding ".".
func Includes(f fileLike) []string {
	acc := map[string]bool{}
	gatherIncludes(f, map[*Header]bool{}, acc)
	delete(acc, ".")
	return sortedStrings(acc)
}

func gatherIncludes(f fileLike, visited map[*Header]bool, acc map[string]bool) {
	for _, e := range f.Edges() {
		acc[e.Dir] = true
		if !visited[e.Header] {
			visited[e.Header] = true
			gatherIncludes(e.Header, visited, acc)
		}
	}
	for _, lib := range f.Libraries() {
		if lib.IncludeDir != "" {
			acc[lib.IncludeDir] = true
		}
	}
}

// Headers returns every header transitively reached from f via include
// edges.
func Headers(f fileLike) []*Header {
	visited := map[*Header]bool{}
	for _, e := range f.Edges() {
		gatherHeaders(e.Header, visited)
	}
	out := make([]*Header, 0, len(visited))
	for h := range visited {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path() < out[j].Path() })
	return out
}

func gatherHeaders(h *Header, visited map[*Header]bool) {
	if visited[h] {
		return
	}
	visited[h] = true
	for _, e := range h.Edges() {
		gatherHeaders(e.Header, visited)
	}
}

// Sources returns every source that must be compiled alongside f: the
// companion source of every transitively reached header. If f is itself a
// Source, it is excluded from its own result.
func Sources(f fileLike) []*Source {
	acc := map[*Source]bool{}
	visited := map[*Header]bool{}
	for _, e := range f.Edges() {
		gatherSources(e.Header, visited, acc)
	}
	if self, ok := f.(*Source); ok {
		delete(acc, self)
	}
	out := make([]*Source, 0, len(acc))
	for s := range acc {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path() < out[j].Path() })
	return out
}

func gatherSources(h *Header, visited map[*Header]bool, acc map[*Source]bool) {
	if visited[h] {
		return
	}
	visited[h] = true
	for _, e := range h.Edges() {
		gatherSources(e.Header, visited, acc)
	}
	if h.companion != nil {
		acc[h.companion] = true
	}
}

// Options returns every compile option in scope for f: its own local
// options plus the local options of every header transitively reached via
// include edges (companion sources are not traversed — each source's own
// options govern only its own compilation unit).
func Options(f fileLike) []string {
	acc := map[string]bool{}
	var order []string
	add := func(opts []string) {
		for _, o := range opts {
			if !acc[o] {
				acc[o] = true
				order = append(order, o)
			}
		}
	}
	add(f.LocalOptions())
	visited := map[*Header]bool{}
	for _, e := range f.Edges() {
		gatherOptions(e.Header, visited, acc, &order)
	}
	sort.Strings(order)
	return order
}

func gatherOptions(h *Header, visited map[*Header]bool, acc map[string]bool, order *[]string) {
	if visited[h] {
		return
	}
	visited[h] = true
	for _, o := range h.LocalOptions() {
		if !acc[o] {
			acc[o] = true
			*order = append(*order, o)
		}
	}
	for _, e := range h.Edges() {
		gatherOptions(e.Header, visited, acc, order)
	}
}

// Libraries returns every library transitively referenced by s: a breadth
// first walk over both include edges and header/companion-source links, the
// same reachability a linker needs (a source that merely transitively
// includes a library header must still link against it).
func Libraries(s *Source) []library.Library {
	type node = fileLike
	visited := map[node]bool{}
	queue := []node{s}
	byName := map[string]library.Library{}
	var order []string

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if visited[n] {
			continue
		}
		visited[n] = true

		for _, lib := range n.Libraries() {
			if _, ok := byName[lib.Name]; !ok {
				order = append(order, lib.Name)
			}
			byName[lib.Name] = lib
		}
		for _, e := range n.Edges() {
			if !visited[e.Header] {
				queue = append(queue, e.Header)
			}
		}
		if h, ok := n.(*Header); ok && h.companion != nil {
			if !visited[h.companion] {
				queue = append(queue, h.companion)
			}
		}
	}

	sort.Strings(order)
	out := make([]library.Library, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out
}

func sortedStrings(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
