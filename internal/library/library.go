// Package library implements the external library registry (component B):
// named libraries matched against include strings, and the process-wide
// registry that deduplicates them by name. Grounded on
// original_source/base/library.py and module.py's DependencyManager.
package library

import (
	"fmt"
	"regexp"
)

// Library is a named external dependency: a regex matched against include
// strings, plus optional include/lib directories and an explicit link-name
// list. Equality and hashing are by Name alone.
type Library struct {
	Name       string
	Pattern    *regexp.Regexp
	IncludeDir string   // optional; "" means unset
	LibDir     string   // optional; "" means unset
	LinkNames  []string // optional; nil means "use Name"
}

// sameFields reports whether two libraries with the same Name were declared
// with identical other fields — used to detect conflicting registrations.
func (l Library) sameFields(other Library) bool {
	if l.IncludeDir != other.IncludeDir || l.LibDir != other.LibDir {
		return false
	}
	if l.Pattern.String() != other.Pattern.String() {
		return false
	}
	if len(l.LinkNames) != len(other.LinkNames) {
		return false
	}
	for i, n := range l.LinkNames {
		if other.LinkNames[i] != n {
			return false
		}
	}
	return true
}

// LinkNameList expands this library's -l names: the explicit list if given,
// otherwise a single entry equal to Name.
func (l Library) LinkNameList() []string {
	if l.LinkNames != nil {
		return l.LinkNames
	}
	return []string{l.Name}
}

// Registry is the process-wide name -> Library table plus the ordered list
// of libraries declared global (project-level, visible to every module).
// It is append-only: registration never removes or replaces an entry.
type Registry struct {
	byName map[string]Library
	global []Library
}

// NewRegistry creates an empty library registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Library)}
}

// Register inserts lib if its name is unseen. If the name is already
// registered with different fields, it is a fatal configuration error.
// Re-registering identical fields is a no-op except for promoting the
// library to global. Returns the canonical Library for the name.
func (r *Registry) Register(lib Library, isGlobal bool) (Library, error) {
	existing, ok := r.byName[lib.Name]
	if !ok {
		r.byName[lib.Name] = lib
		existing = lib
	} else if !existing.sameFields(lib) {
		return Library{}, fmt.Errorf("duplicate library %q with different contents", lib.Name)
	}

	if isGlobal && !r.isGlobal(lib.Name) {
		r.global = append(r.global, existing)
	}

	return existing, nil
}

func (r *Registry) isGlobal(name string) bool {
	for _, lib := range r.global {
		if lib.Name == name {
			return true
		}
	}
	return false
}

// Global returns the libraries registered as global, in registration order.
func (r *Registry) Global() []Library {
	return r.global
}

// Lookup returns the library registered under name, if any.
func (r *Registry) Lookup(name string) (Library, bool) {
	lib, ok := r.byName[name]
	return lib, ok
}

// MatchInclude scans libs in order and returns the first whose pattern
// matches the include string.
func MatchInclude(libs []Library, include string) (Library, bool) {
	for _, lib := range libs {
		if lib.Pattern.MatchString(include) {
			return lib, true
		}
	}
	return Library{}, false
}
