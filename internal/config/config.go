// Package config loads and layers tiny-make's TOML configuration.
// Grounded on original_source/base/config.py (which keys and defaults this
// mirrors) and tsukumogami-tsuku/internal/recipe/loader.go, which is the
// rest-of-pack precedent for decoding TOML with
// github.com/BurntSushi/toml into tagged structs.
package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"

	"github.com/tiny-make/tiny-make/internal/library"
)

// DefaultPrefer is the compiler family preferred when no layer sets one.
const DefaultPrefer = "clang++"

// LibrarySpec is one `[[dependency.libraries]]` table entry.
type LibrarySpec struct {
	Name    string   `toml:"name"`
	Pattern string   `toml:"pattern"`
	Include string   `toml:"include"`
	LibPath string   `toml:"libpath"`
	Libs    []string `toml:"libs"`
}

// ToLibrary compiles the spec's pattern and builds a library.Library.
func (spec LibrarySpec) ToLibrary() (library.Library, error) {
	if spec.Name == "" || spec.Pattern == "" {
		return library.Library{}, fmt.Errorf("library entry requires both name and pattern")
	}
	re, err := regexp.Compile(spec.Pattern)
	if err != nil {
		return library.Library{}, fmt.Errorf("library %q has an invalid pattern: %w", spec.Name, err)
	}
	var linkNames []string
	if spec.Libs != nil {
		linkNames = spec.Libs
	}
	return library.Library{
		Name:       spec.Name,
		Pattern:    re,
		IncludeDir: spec.Include,
		LibDir:     spec.LibPath,
		LinkNames:  linkNames,
	}, nil
}

type dependencyTable struct {
	Links     []string      `toml:"links"`
	Libraries []LibrarySpec `toml:"libraries"`
}

// FileConfig is the content of a single TOML config layer. Optimize/Prefer
// are pointers so a layer can distinguish "not set here" (nil, inherit the
// previous layer's value) from "explicitly set" — this is what lets
// "overwrites scalar fields" in the merge rule mean override-when-present
// rather than reset-to-default on every layer, which is the only reading
// under which a plain `optimize = true` in /etc/tiny-make/tiny-make.toml
// would ever survive to an invocation that does not also pass -p.
type FileConfig struct {
	Optimize *bool         `toml:"optimize"`
	Prefer   *string       `toml:"prefer"`
	Links    []string      `toml:"-"`
	Libraries []LibrarySpec `toml:"-"`

	Dependency dependencyTable `toml:"dependency"`
}

// Load reads path as TOML. A missing file is not an error: it returns the
// zero FileConfig, equivalent to default_config() in the original tool.
// A present-but-invalid file is fatal.
func Load(path string) (FileConfig, error) {
	if _, err := os.Stat(path); err != nil {
		return FileConfig{}, nil
	}

	var raw FileConfig
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return FileConfig{}, fmt.Errorf("load config %q failed: %w", path, err)
	}
	raw.Links = raw.Dependency.Links
	raw.Libraries = raw.Dependency.Libraries

	for _, lib := range raw.Libraries {
		if lib.Name == "" || lib.Pattern == "" {
			return FileConfig{}, fmt.Errorf("parse config %q failed: library entry missing name or pattern", path)
		}
		if _, err := regexp.Compile(lib.Pattern); err != nil {
			return FileConfig{}, fmt.Errorf("parse config %q failed, pattern of library %q is illegal: %w", path, lib.Name, err)
		}
	}

	return raw, nil
}

// Merge folds next on top of c: scalar fields are overwritten only when set
// in next; link and library lists are concatenated.
func (c *FileConfig) Merge(next FileConfig) {
	if next.Optimize != nil {
		c.Optimize = next.Optimize
	}
	if next.Prefer != nil {
		c.Prefer = next.Prefer
	}
	c.Links = append(c.Links, next.Links...)
	c.Libraries = append(c.Libraries, next.Libraries...)
}

// ResolvedOptimize returns the effective optimize flag, defaulting to false.
func (c FileConfig) ResolvedOptimize() bool {
	if c.Optimize != nil {
		return *c.Optimize
	}
	return false
}

// ResolvedPrefer returns the effective preferred compiler family.
func (c FileConfig) ResolvedPrefer() string {
	if c.Prefer != nil {
		return *c.Prefer
	}
	return DefaultPrefer
}

// BuildOptions returns the compiler flags implied by optimize:
// -O3 when optimizing, otherwise debug flags. No address-sanitizer support
// (the original tool carries that as a commented-out TODO; tiny-make
// preserves that — it's not wired in).
func (c FileConfig) BuildOptions() []string {
	if c.ResolvedOptimize() {
		return []string{"-O3"}
	}
	return []string{"-g", "-O0", "-fno-omit-frame-pointer"}
}
