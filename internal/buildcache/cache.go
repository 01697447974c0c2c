// Package buildcache implements the persistent per-target build cache
// (component F): a JSON file mapping a compiled target's path to the
// hostname, command line, and dependency list that produced it, checked
// against inode change-time on the next run. Grounded on
// original_source/base/cache.py; structurally similar in spirit to
// _examples/VKCOM-nocc/internal/server/obj-cache.go's JSON-backed entry
// map, though that cache keys on content hash where this one — by design,
// not oversight — keys on command string plus change-time, since tiny-make
// has no remote cache to make content-hashing worth its cost.
package buildcache

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/tiny-make/tiny-make/internal/common"
)

// Record is one unit of work: the path it produces, the exact command line
// that produces it, and the paths it depends on. Argv is the same command
// split into argv form for spawning; it is not persisted.
type Record struct {
	Target       string   `json:"-"`
	Command      string   `json:"command"`
	Dependencies []string `json:"dependencies"`
	Hostname     string   `json:"hostname"`
	Argv         []string `json:"-"`
}

// Cache is the in-memory view of build/.tiny-make/cache.json.
type Cache struct {
	path    string
	entries map[string]Record
}

// Load reads path. A missing file is an empty cache; a present-but-corrupt
// file is fatal, so a wedged cache can never be silently ignored and redo
// work that might already be valid.
func Load(path string) (*Cache, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Cache{path: path, entries: map[string]Record{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache %q failed: %w", path, err)
	}

	var entries map[string]Record
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse cache %q failed: %w", path, err)
	}
	return &Cache{path: path, entries: entries}, nil
}

// HasFresh reports whether record's target is already up to date: it
// exists, a matching entry exists for the same host and command and the
// same (unordered) dependency set, and the target's change-time is at
// least as new as every dependency's.
func (c *Cache) HasFresh(record Record) bool {
	targetInfo, err := os.Stat(record.Target)
	if err != nil {
		return false
	}

	entry, ok := c.entries[record.Target]
	if !ok {
		return false
	}
	if entry.Hostname != hostname() {
		return false
	}
	if entry.Command != record.Command {
		return false
	}
	if !sameSet(entry.Dependencies, record.Dependencies) {
		return false
	}

	targetCtime := changeTime(targetInfo)
	for _, dep := range record.Dependencies {
		depInfo, err := os.Stat(dep)
		if err != nil {
			return false
		}
		if targetCtime < changeTime(depInfo) {
			return false
		}
	}
	return true
}

// Save merges records into the cache (overwriting by target) and rewrites
// the JSON file, creating any missing parent directories.
func (c *Cache) Save(records []Record) error {
	for _, r := range records {
		r.Hostname = hostname()
		c.entries[r.Target] = r
	}

	if err := common.MkdirForFile(c.path); err != nil {
		return fmt.Errorf("create cache directory failed: %w", err)
	}

	data, err := json.MarshalIndent(c.entries, "", "    ")
	if err != nil {
		return fmt.Errorf("encode cache failed: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("write cache %q failed: %w", c.path, err)
	}
	return nil
}

// Clear removes the cache file. A missing file is not an error.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cache %q failed: %w", path, err)
	}
	return nil
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]string{}, a...)
	sb := append([]string{}, b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return ""
	}
	return name
}
