package depgraph

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tiny-make/tiny-make/internal/buildenv"
	"github.com/tiny-make/tiny-make/internal/common"
	"github.com/tiny-make/tiny-make/internal/config"
	"github.com/tiny-make/tiny-make/internal/fileparse"
	"github.com/tiny-make/tiny-make/internal/library"
)

type moduleState int

const (
	stateSteady moduleState = iota
	stateCompleting
)

// Manager owns the process-wide library registry and the set of modules
// discovered so far, keyed by their stable link path — this is what breaks
// a cycle where module A links to B and B links back to A.
type Manager struct {
	libraries *library.Registry
	modules   map[string]*Module
}

// NewManager creates an empty dependency manager.
func NewManager() *Manager {
	return &Manager{libraries: library.NewRegistry(), modules: map[string]*Module{}}
}

// Module is a per-directory container of headers and sources: its own
// locally declared links and libraries, the files gathered from its
// directory tree, and the analysed header/source entities built from them.
type Module struct {
	mgr   *Manager
	name  string
	dir   string // "." for the project root, otherwise a stable symlink path
	links []*Module

	libraries []library.Library

	headerPaths map[string]bool
	sourcePaths map[string]bool

	headers map[string]*Header
	sources map[string]*Source

	state moduleState
}

func (m *Module) String() string { return fmt.Sprintf("Module(%s)", m.name) }

// LinkModulePath resolves target to a stable path under root's build
// directory (or "." if target is root itself), returning the Module for it
// — constructing it and gathering its file lists on first encounter,
// returning the cached Module on every subsequent call with the same
// resolved path. The module is registered into mgr before its own links are
// resolved, so a link cycle terminates instead of recursing forever.
func (mgr *Manager) LinkModulePath(root string, target string) (*Module, error) {
	link, err := buildenv.AddLinkPath(root, target)
	if err != nil {
		return nil, err
	}
	if existing, ok := mgr.modules[link]; ok {
		return existing, nil
	}

	name := link
	if link == "." {
		name = "MAIN"
	}

	mod := &Module{
		mgr:     mgr,
		name:    name,
		dir:     link,
		headers: map[string]*Header{},
		sources: map[string]*Source{},
		state:   stateSteady,
	}
	mgr.modules[link] = mod

	fc, err := config.Load(filepath.Join(mod.dir, buildenv.LocalConfigName))
	if err != nil {
		return nil, err
	}

	for _, spec := range fc.Libraries {
		lib, err := spec.ToLibrary()
		if err != nil {
			return nil, err
		}
		registered, err := mgr.libraries.Register(lib, false)
		if err != nil {
			return nil, err
		}
		mod.libraries = append(mod.libraries, registered)
	}

	for _, linkSpec := range fc.Links {
		resolved := linkSpec
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(mod.dir, linkSpec)
		}
		linked, err := mgr.LinkModulePath(root, resolved)
		if err != nil {
			return nil, err
		}
		mod.links = append(mod.links, linked)
	}

	if err := mod.gatherFiles(); err != nil {
		return nil, err
	}

	return mod, nil
}

// AddLink extends mod's link list after construction — used for CLI --link
// flags, which augment the root module's links in addition to whatever its
// own local config file declares.
func (mod *Module) AddLink(linked *Module) {
	mod.links = append(mod.links, linked)
}

func (mod *Module) gatherFiles() error {
	mod.headerPaths = map[string]bool{}
	mod.sourcePaths = map[string]bool{}
	return mod.walk(mod.dir, mod.dir)
}

func (mod *Module) walk(dir, topDir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read directory %q failed: %w", dir, err)
	}
	for _, ent := range entries {
		if dir == topDir && ent.Name() == buildenv.BuildDirName {
			continue
		}
		path := filepath.Join(dir, ent.Name())
		if ent.IsDir() {
			if err := mod.walk(path, topDir); err != nil {
				return err
			}
			continue
		}
		switch fileparse.KindOf(ent.Name()) {
		case fileparse.Header:
			mod.headerPaths[path] = true
		case fileparse.Source:
			mod.sourcePaths[path] = true
		}
	}
	return nil
}

// FindSource looks up a source file previously analysed by this module by
// path (after analysis has run).
func (mod *Module) FindSource(path string) (*Source, bool) {
	s, ok := mod.sources[filepath.Clean(path)]
	return s, ok
}

// SourcePaths returns every source path this module discovered during its
// directory walk, used by callers that need to iterate all analysed
// sources (e.g. to emit one compilation-database entry per source).
func (mod *Module) SourcePaths() []string {
	out := make([]string, 0, len(mod.sourcePaths))
	for p := range mod.sourcePaths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

type includeKind int

const (
	includeNone includeKind = iota
	includeHeader
	includeLibrary
)

type includeResult struct {
	kind   includeKind
	dir    string
	header *Header
	lib    library.Library
}

// findSelfInclude matches include against this module's own header paths:
// a path equal to include resolves with directory ".", a path ending in
// "/"+include resolves with that suffix removed, and among all matches the
// longest path wins, so an exact match is used only when no longer path
// matches (deterministic tie-break by path, unlike
// the original tool's unordered-set iteration, which could pick
// inconsistently among multiple candidates).
func (mod *Module) findSelfInclude(include string) (includeResult, error) {
	suffix := "/" + include
	var bestDir, bestPath string
	found := false
	for path := range mod.headerPaths {
		switch {
		case path == include:
			if !found || len(path) > len(bestPath) || (len(path) == len(bestPath) && path < bestPath) {
				bestDir, bestPath, found = ".", path, true
			}
		case len(path) > len(suffix) && path[len(path)-len(suffix):] == suffix:
			if !found || len(path) > len(bestPath) || (len(path) == len(bestPath) && path < bestPath) {
				bestDir, bestPath, found = path[:len(path)-len(suffix)], path, true
			}
		}
	}
	if !found {
		return includeResult{}, nil
	}
	hdr, err := mod.analyseHeader(bestPath)
	if err != nil {
		return includeResult{}, err
	}
	return includeResult{kind: includeHeader, dir: bestDir, header: hdr}, nil
}

func (mod *Module) findLibraryInclude(include string) (includeResult, error) {
	if lib, ok := library.MatchInclude(mod.libraries, include); ok {
		return includeResult{kind: includeLibrary, lib: lib}, nil
	}
	if lib, ok := library.MatchInclude(mod.mgr.libraries.Global(), include); ok {
		return includeResult{kind: includeLibrary, lib: lib}, nil
	}
	return includeResult{}, nil
}

func (mod *Module) findLinkInclude(include string) (includeResult, error) {
	for _, linked := range mod.links {
		r, err := linked.findSelfInclude(include)
		if err != nil {
			return includeResult{}, err
		}
		if r.kind != includeNone {
			return r, nil
		}
	}
	return includeResult{}, nil
}

// findHInclude resolves an angled (<...>) include: linked modules first,
// then libraries.
func (mod *Module) findHInclude(include string) (includeResult, error) {
	r, err := mod.findLinkInclude(include)
	if err != nil || r.kind != includeNone {
		return r, err
	}
	return mod.findLibraryInclude(include)
}

// findQInclude resolves a quoted ("...") include: this module's own headers
// first, then the same rule as an angled include.
func (mod *Module) findQInclude(include string) (includeResult, error) {
	r, err := mod.findSelfInclude(include)
	if err != nil || r.kind != includeNone {
		return r, err
	}
	return mod.findHInclude(include)
}

func (mod *Module) populateEntity(b *base, path string) error {
	details, err := fileparse.Scan(path)
	if err != nil {
		return err
	}
	b.options = details.Options

	seenHeader := map[*Header]bool{}
	seenLib := map[string]bool{}
	apply := func(r includeResult) {
		switch r.kind {
		case includeHeader:
			if !seenHeader[r.header] {
				seenHeader[r.header] = true
				b.addEdge(r.dir, r.header)
			}
		case includeLibrary:
			if !seenLib[r.lib.Name] {
				seenLib[r.lib.Name] = true
				b.addLibrary(r.lib)
			}
		}
	}

	for _, inc := range details.AngledIncludes {
		r, err := mod.findHInclude(inc)
		if err != nil {
			return err
		}
		apply(r)
	}
	for _, inc := range details.QuotedIncludes {
		r, err := mod.findQInclude(inc)
		if err != nil {
			return err
		}
		apply(r)
	}
	return nil
}

// analyseHeader memoizes and returns the Header for path, inserting a
// placeholder before resolving its own includes so a header pair that
// mutually includes each other terminates instead of recursing forever.
func (mod *Module) analyseHeader(path string) (*Header, error) {
	if h, ok := mod.headers[path]; ok {
		return h, nil
	}
	h := &Header{base: base{path: path}}
	mod.headers[path] = h
	if err := mod.populateEntity(&h.base, path); err != nil {
		return nil, err
	}
	return h, nil
}

func (mod *Module) analyseSource(path string) (*Source, error) {
	if s, ok := mod.sources[path]; ok {
		return s, nil
	}
	s := &Source{base: base{path: path}, target: mod.objectTarget(path)}
	mod.sources[path] = s
	if err := mod.populateEntity(&s.base, path); err != nil {
		return nil, err
	}
	return s, nil
}

// objectTarget computes where path's compiled object lives: the build
// directory at the project root, mirroring path with any build/.links
// prefix stripped so linked sources still land under one build tree.
func (mod *Module) objectTarget(path string) string {
	linksPrefix := buildenv.LinksDirPath(".") + string(filepath.Separator)
	stem := path
	if len(path) > len(linksPrefix) && path[:len(linksPrefix)] == linksPrefix {
		stem = path[len(linksPrefix):]
	}
	return filepath.Join(buildenv.BuildDirName, common.ReplaceFileExt(stem, ".o"))
}

func (mod *Module) completeHeaderOnce() bool {
	changed := false
	for _, src := range mod.sources {
		stem := fileparse.StemName(src.path)
		for _, e := range src.edges {
			hdr := e.Header
			if _, ok := mod.headers[hdr.path]; !ok || hdr.companion != nil {
				continue
			}
			if stem == fileparse.StemName(hdr.path) {
				hdr.AttachCompanion(src)
				changed = true
			}
		}
	}
	for _, hdr := range mod.headers {
		if hdr.companion != nil {
			continue
		}
		stem := fileparse.StemName(hdr.path)
		for srcPath := range mod.sourcePaths {
			if stem == fileparse.StemName(srcPath) {
				src, err := mod.analyseSource(srcPath)
				if err != nil {
					continue
				}
				hdr.AttachCompanion(src)
				changed = true
			}
		}
	}
	return changed
}

func (mod *Module) completeHeaderEpoch() bool {
	mod.state = stateCompleting
	changed := false
	for mod.completeHeaderOnce() {
		changed = true
	}
	for _, linked := range mod.links {
		if linked.state == stateCompleting {
			continue
		}
		if linked.completeHeaderEpoch() {
			changed = true
		}
	}
	mod.state = stateSteady
	return changed
}

func (mod *Module) completeHeader() {
	for mod.completeHeaderEpoch() {
	}
}

// AnalyseFiles builds Header/Source entities for every file this module
// gathered, then runs the header/source pairing fixed point across this
// module and every module it links to.
func (mod *Module) AnalyseFiles() error {
	for path := range mod.headerPaths {
		if _, err := mod.analyseHeader(path); err != nil {
			return err
		}
	}
	for path := range mod.sourcePaths {
		if _, err := mod.analyseSource(path); err != nil {
			return err
		}
	}
	mod.completeHeader()
	return nil
}

// Project is the root of a build: the main module plus the dependency
// manager tracking every module it transitively links to.
type Project struct {
	Manager *Manager
	Main    *Module
}

// NewProject registers cfg's libraries as global, resolves root as the MAIN
// module, links in any extra CLI-specified module paths, and analyses the
// whole graph.
func NewProject(root string, cfg config.FileConfig, extraLinks []string) (*Project, error) {
	mgr := NewManager()

	for _, spec := range cfg.Libraries {
		lib, err := spec.ToLibrary()
		if err != nil {
			return nil, err
		}
		if _, err := mgr.libraries.Register(lib, true); err != nil {
			return nil, err
		}
	}

	main, err := mgr.LinkModulePath(root, root)
	if err != nil {
		return nil, err
	}

	for _, link := range extraLinks {
		resolved := link
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(root, link)
		}
		linked, err := mgr.LinkModulePath(root, resolved)
		if err != nil {
			return nil, err
		}
		main.AddLink(linked)
	}

	if err := main.AnalyseFiles(); err != nil {
		return nil, err
	}

	return &Project{Manager: mgr, Main: main}, nil
}

// FindSource resolves path (as the user wrote it on the command line) to a
// known source in the project's main module.
func (p *Project) FindSource(path string) (*Source, error) {
	if s, ok := p.Main.FindSource(path); ok {
		return s, nil
	}
	return nil, fmt.Errorf("%q is not a known source file in this project", path)
}
