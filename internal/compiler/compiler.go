// Package compiler implements the compiler abstraction (component E): host
// compiler discovery, version probing, language-standard selection, and
// compile/link command-line construction. Grounded on
// original_source/base/compiler.py, whose GCC/Clang threshold tables and
// command layout this package reproduces; version comparison uses
// github.com/Masterminds/semver/v3 rather than hand-rolled tuple compares,
// since that library is already part of this pack's dependency surface
// (tsukumogami-tsuku) and exists for exactly this kind of ordering.
package compiler

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/tiny-make/tiny-make/internal/buildcache"
	"github.com/tiny-make/tiny-make/internal/config"
	"github.com/tiny-make/tiny-make/internal/depgraph"
	"github.com/tiny-make/tiny-make/internal/library"
)

// Family distinguishes the two recognised compiler families.
type Family int

const (
	GCC Family = iota
	Clang
)

func (f Family) String() string {
	if f == GCC {
		return "g++"
	}
	return "clang++"
}

type stdThreshold struct {
	min []int
	std string
}

var gccThresholds = []stdThreshold{
	{[]int{4, 7, 1}, "c++11"},
	{[]int{4, 9}, "c++14"},
	{[]int{5, 1}, "c++17"},
	{[]int{10, 1}, "c++20"},
	{[]int{11, 1}, "c++23"},
}

var clangThresholds = []stdThreshold{
	{[]int{3, 3}, "c++11"},
	{[]int{3, 4}, "c++14"},
	{[]int{5}, "c++17"},
	{[]int{10}, "c++20"},
	{[]int{17, 0, 1}, "c++26"},
}

// Compiler is one discovered host compiler: its invocation path, family,
// and parsed --version output.
type Compiler struct {
	Path    string
	Family  Family
	Version []int
}

var versionLineRe = regexp.MustCompile(`\s(\d+(?:\.\d+)*)(?:-|\s|$)`)

// ProbeVersion runs "<path> --version" and extracts the version tuple from
// its first line: the first run of digit(.digit)* bounded by a leading
// space and a trailing hyphen, whitespace, or end of string.
func ProbeVersion(path string) ([]int, error) {
	cmd := exec.Command(path, "--version")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("running %q --version failed: %w", path, err)
	}

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	if !scanner.Scan() {
		return nil, fmt.Errorf("%q --version produced no output", path)
	}
	firstLine := " " + scanner.Text()

	m := versionLineRe.FindStringSubmatch(firstLine)
	if m == nil {
		return nil, fmt.Errorf("could not parse a version out of %q --version output: %q", path, scanner.Text())
	}

	parts := strings.Split(m[1], ".")
	version := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("could not parse version component %q from %q --version", p, path)
		}
		version[i] = n
	}
	return version, nil
}

// versionToSemver pads a possibly-short tuple into a 3-component semver,
// so thresholds of mixed arity (e.g. (4,9) vs (4,7,1)) compare correctly.
func versionToSemver(v []int) *semver.Version {
	padded := make([]int, 3)
	copy(padded, v)
	return semver.New(uint64(padded[0]), uint64(padded[1]), uint64(padded[2]), "", "")
}

// maxStdVersion returns the std_name of the last threshold entry whose
// minimum is <= version. thresholds is non-empty and ascending by
// construction, so the lowest entry is always a valid fallback.
func maxStdVersion(version []int, thresholds []stdThreshold) string {
	v := versionToSemver(version)
	best := thresholds[0].std
	for _, th := range thresholds {
		if v.Compare(versionToSemver(th.min)) >= 0 {
			best = th.std
		}
	}
	return best
}

// MaxStdVersion returns the highest C++ standard name this compiler
// supports.
func (c Compiler) MaxStdVersion() string {
	if c.Family == GCC {
		return maxStdVersion(c.Version, gccThresholds)
	}
	return maxStdVersion(c.Version, clangThresholds)
}

// Discover scans PATH for g++*/clang++* executables, probes each one's
// version, and returns the highest-versioned candidate in the preferred
// family ("g++" or "clang++"), falling back to the other family if the
// preferred one has no candidates.
func Discover(prefer string) (Compiler, error) {
	var gccCandidates, clangCandidates []Compiler

	pathEnv := os.Getenv("PATH")
	for _, dir := range filepath.SplitList(pathEnv) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, ent := range entries {
			if ent.IsDir() {
				continue
			}
			name := ent.Name()
			path := filepath.Join(dir, name)
			switch {
			case strings.HasPrefix(name, "g++"):
				if v, err := ProbeVersion(path); err == nil {
					gccCandidates = append(gccCandidates, Compiler{Path: path, Family: GCC, Version: v})
				}
			case strings.HasPrefix(name, "clang++"):
				if v, err := ProbeVersion(path); err == nil {
					clangCandidates = append(clangCandidates, Compiler{Path: path, Family: Clang, Version: v})
				}
			}
		}
	}

	pick := func(cands []Compiler) (Compiler, bool) {
		if len(cands) == 0 {
			return Compiler{}, false
		}
		best := cands[0]
		for _, c := range cands[1:] {
			if versionToSemver(c.Version).Compare(versionToSemver(best.Version)) > 0 {
				best = c
			}
		}
		return best, true
	}

	gccBest, haveGCC := pick(gccCandidates)
	clangBest, haveClang := pick(clangCandidates)

	preferGCC := prefer == "" || strings.HasPrefix(prefer, "g++")
	if preferGCC {
		if haveGCC {
			return gccBest, nil
		}
		if haveClang {
			return clangBest, nil
		}
	} else {
		if haveClang {
			return clangBest, nil
		}
		if haveGCC {
			return gccBest, nil
		}
	}
	return Compiler{}, fmt.Errorf("no g++ or clang++ compiler found on PATH")
}

func sortedLinkNames(libs []library.Library) []string {
	set := map[string]bool{}
	for _, lib := range libs {
		for _, n := range lib.LinkNameList() {
			set[n] = true
		}
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func sortedIncludeDirs(libs []library.Library) []string {
	set := map[string]bool{}
	for _, lib := range libs {
		if lib.IncludeDir != "" {
			set[lib.IncludeDir] = true
		}
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func sortedLibDirs(libs []library.Library) []string {
	set := map[string]bool{}
	for _, lib := range libs {
		if lib.LibDir != "" {
			set[lib.LibDir] = true
		}
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// ObjectRecord builds the object-compile buildcache.Record and argv for src
// under configuration cfg.
func (c Compiler) ObjectRecord(src *depgraph.Source, cfg config.FileConfig) buildcache.Record {
	args := []string{c.Path, "-std=" + c.MaxStdVersion()}
	args = append(args, cfg.BuildOptions()...)
	args = append(args, depgraph.Options(src)...)
	for _, dir := range sortedIncludeDirs(depgraph.Libraries(src)) {
		args = append(args, "-isystem", dir)
	}
	for _, dir := range depgraph.Includes(src) {
		args = append(args, "-I", dir)
	}
	args = append(args, "-o", src.Target(), "-c", src.Path())

	deps := []string{src.Path()}
	for _, h := range depgraph.Headers(src) {
		deps = append(deps, h.Path())
	}
	for _, obj := range objectTargets(src) {
		deps = append(deps, obj)
	}

	return buildcache.Record{
		Target:       src.Target(),
		Command:      joinArgs(args),
		Dependencies: deps,
		Argv:         args,
	}
}

// joinArgs mirrors the original tool's command-string construction: argv
// parts joined with a single space, empty parts skipped.
func joinArgs(args []string) string {
	nonEmpty := make([]string, 0, len(args))
	for _, a := range args {
		if a != "" {
			nonEmpty = append(nonEmpty, a)
		}
	}
	return strings.Join(nonEmpty, " ")
}

// objectTargets returns the sorted, deduplicated set of object file targets
// that feed into S's link step: every companion source's target, excluding
// S's own — S itself is linked from its source path, not its object, since
// S.Path() is passed to the link line directly (see LinkRecord).
func objectTargets(src *depgraph.Source) []string {
	set := map[string]bool{}
	for _, s := range depgraph.Sources(src) {
		set[s.Target()] = true
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ExecutablePath is the link output path for src: its object target with
// the extension removed.
func ExecutablePath(src *depgraph.Source) string {
	target := src.Target()
	return target[:len(target)-len(filepath.Ext(target))]
}

// LinkRecord builds the executable-link buildcache.Record and argv for src.
func (c Compiler) LinkRecord(src *depgraph.Source, cfg config.FileConfig) buildcache.Record {
	libs := depgraph.Libraries(src)

	args := []string{c.Path, "-std=" + c.MaxStdVersion()}
	args = append(args, cfg.BuildOptions()...)
	args = append(args, depgraph.Options(src)...)
	for _, dir := range sortedLibDirs(libs) {
		args = append(args, "-L", dir)
	}
	for _, dir := range sortedIncludeDirs(libs) {
		args = append(args, "-isystem", dir)
	}
	for _, dir := range depgraph.Includes(src) {
		args = append(args, "-I", dir)
	}
	exe := ExecutablePath(src)
	args = append(args, "-o", exe)
	objects := objectTargets(src)
	args = append(args, objects...)
	args = append(args, src.Path())
	for _, name := range sortedLinkNames(libs) {
		args = append(args, "-l"+name)
	}

	deps := append([]string{}, objects...)
	deps = append(deps, src.Path())

	return buildcache.Record{
		Target:       exe,
		Command:      joinArgs(args),
		Dependencies: deps,
		Argv:         args,
	}
}

// CompileCommand is one entry of compile_commands.json.
type CompileCommand struct {
	Directory string `json:"directory"`
	Command   string `json:"command"`
	File      string `json:"file"`
}

// CompileCommands builds one compilation-database entry per element of
// sources, rooted at cwd.
func CompileCommands(c Compiler, cfg config.FileConfig, sources []*depgraph.Source, cwd string) []CompileCommand {
	out := make([]CompileCommand, 0, len(sources))
	for _, src := range sources {
		record := c.ObjectRecord(src, cfg)
		out = append(out, CompileCommand{
			Directory: filepath.Join(cwd, filepath.Dir(src.Path())),
			Command:   record.Command,
			File:      src.Path(),
		})
	}
	return out
}
