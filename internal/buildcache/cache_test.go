package buildcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMissingCacheIsEmpty(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "cache.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(c.entries) != 0 {
		t.Fatalf("expected empty cache, got %v", c.entries)
	}
}

func TestLoadCorruptCacheIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	writeFile(t, path, "{not json")

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error loading a corrupt cache file")
	}
}

func TestHasFreshRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dep := filepath.Join(dir, "main.cpp")
	target := filepath.Join(dir, "main.o")
	writeFile(t, dep, "int main(){}")
	time.Sleep(10 * time.Millisecond)
	writeFile(t, target, "fake object")

	cachePath := filepath.Join(dir, "cache.json")
	c, err := Load(cachePath)
	if err != nil {
		t.Fatal(err)
	}

	record := Record{Target: target, Command: "g++ -c main.cpp", Dependencies: []string{dep}}
	if c.HasFresh(record) {
		t.Fatal("expected no entry to exist yet")
	}

	if err := c.Save([]Record{record}); err != nil {
		t.Fatal(err)
	}
	if !c.HasFresh(record) {
		t.Fatal("expected the just-saved record to be fresh")
	}

	reloaded, err := Load(cachePath)
	if err != nil {
		t.Fatal(err)
	}
	if !reloaded.HasFresh(record) {
		t.Fatal("expected freshness to survive a reload from disk")
	}
}

func TestHasFreshDetectsCommandChange(t *testing.T) {
	dir := t.TempDir()
	dep := filepath.Join(dir, "main.cpp")
	target := filepath.Join(dir, "main.o")
	writeFile(t, dep, "int main(){}")
	writeFile(t, target, "fake object")

	cachePath := filepath.Join(dir, "cache.json")
	c, _ := Load(cachePath)
	record := Record{Target: target, Command: "g++ -c main.cpp", Dependencies: []string{dep}}
	_ = c.Save([]Record{record})

	changed := record
	changed.Command = "g++ -O3 -c main.cpp"
	if c.HasFresh(changed) {
		t.Fatal("expected a changed command to invalidate freshness")
	}
}

func TestHasFreshDetectsStaleTarget(t *testing.T) {
	dir := t.TempDir()
	dep := filepath.Join(dir, "main.cpp")
	target := filepath.Join(dir, "main.o")
	writeFile(t, target, "fake object")
	time.Sleep(10 * time.Millisecond)
	writeFile(t, dep, "int main(){}") // dependency now newer than target

	cachePath := filepath.Join(dir, "cache.json")
	c, _ := Load(cachePath)
	record := Record{Target: target, Command: "g++ -c main.cpp", Dependencies: []string{dep}}
	_ = c.Save([]Record{record})

	if c.HasFresh(record) {
		t.Fatal("expected a target older than its dependency to be stale")
	}
}

func TestClearRemovesCacheFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	writeFile(t, path, "{}")

	if err := Clear(path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected the cache file to be removed")
	}

	if err := Clear(path); err != nil {
		t.Fatalf("clearing an already-absent cache should not error: %v", err)
	}
}
