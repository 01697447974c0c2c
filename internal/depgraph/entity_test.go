package depgraph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tiny-make/tiny-make/internal/library"
)

func header(path string, opts ...string) *Header {
	return &Header{base: base{path: path, options: opts}}
}

func source(path string, opts ...string) *Source {
	return &Source{base: base{path: path, options: opts}, target: "build/" + path + ".o"}
}

func TestIncludesExcludesDotAndGathersTransitively(t *testing.T) {
	libA := library.Library{Name: "a", IncludeDir: "/opt/a/include"}

	leaf := header("dir/leaf.h")
	leaf.addLibrary(libA)

	mid := header("mid.h")
	mid.addEdge(".", leaf)
	mid.addEdge("dir", leaf)

	s := source("main.cpp")
	s.addEdge(".", mid)

	require.Equal(t, []string{"/opt/a/include", "dir"}, Includes(s))
}

func TestHeadersTransitiveClosure(t *testing.T) {
	a := header("a.h")
	b := header("b.h")
	b.addEdge(".", a)
	c := header("c.h")
	c.addEdge(".", b)

	s := source("main.cpp")
	s.addEdge(".", c)

	require.Len(t, Headers(s), 3)
}

func TestSourcesFollowsCompanionsAndExcludesSelf(t *testing.T) {
	hdrSrc := source("util.cpp")
	hdr := header("util.h")
	hdr.AttachCompanion(hdrSrc)

	main := source("main.cpp")
	main.addEdge(".", hdr)

	require.Equal(t, []*Source{hdrSrc}, Sources(main))

	// util.cpp itself includes util.h; it must not list itself.
	hdrSrc.addEdge(".", hdr)
	require.Empty(t, Sources(hdrSrc), "a source must never list itself")
}

func TestOptionsUnionsLocalAndTransitiveHeaderOptions(t *testing.T) {
	a := header("a.h", "-DA")
	b := header("b.h", "-DB")
	b.addEdge(".", a)

	s := source("main.cpp", "-DMAIN")
	s.addEdge(".", b)

	require.Equal(t, []string{"-DA", "-DB", "-DMAIN"}, Options(s))
}

func TestLibrariesFollowsHeaderAndCompanionEdges(t *testing.T) {
	libBoost := library.Library{Name: "boost"}
	libSsl := library.Library{Name: "ssl"}

	implHdr := header("impl.h")
	implHdr.addLibrary(libSsl)
	implSrc := source("impl.cpp")
	implHdr.AttachCompanion(implSrc)

	apiHdr := header("api.h")
	apiHdr.addLibrary(libBoost)
	apiHdr.addEdge(".", implHdr)

	main := source("main.cpp")
	main.addEdge(".", apiHdr)

	got := Libraries(main)
	require.Len(t, got, 2)
	require.Equal(t, "boost", got[0].Name)
	require.Equal(t, "ssl", got[1].Name)
}

func TestCyclicHeaderEdgesDoNotInfiniteLoop(t *testing.T) {
	a := header("a.h")
	b := header("b.h")
	a.addEdge(".", b)
	b.addEdge(".", a)

	// a is reachable from its own edges through the cycle, so the closure
	// correctly contains both headers rather than hanging.
	if got := Headers(a); len(got) != 2 {
		t.Fatalf("Headers(a) = %v, want 2 entries", got)
	}
	if got := Includes(a); len(got) != 0 {
		t.Fatalf("Includes(a) = %v, want none", got)
	}
}
