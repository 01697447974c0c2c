package scheduler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tiny-make/tiny-make/internal/buildcache"
	"github.com/tiny-make/tiny-make/internal/common"
	"github.com/tiny-make/tiny-make/internal/compiler"
	"github.com/tiny-make/tiny-make/internal/config"
	"github.com/tiny-make/tiny-make/internal/depgraph"
)

// fakeCompilerScript writes a shell script that stands in for g++/clang++:
// it just creates whatever -o target it was asked for, so the scheduler's
// spawn/wait/cache-save plumbing can be tested without a real toolchain.
func fakeCompilerScript(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-cc")
	script := `#!/bin/sh
out=""
prev=""
for arg in "$@"; do
	if [ "$prev" = "-o" ]; then
		out="$arg"
	fi
	prev="$arg"
done
if [ -n "$out" ]; then
	echo "compiled" > "$out"
fi
exit 0
`
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestBuildCompilesLinksAndCaches(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "main.cpp"), []byte("int main(){return 0;}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	proj, err := depgraph.NewProject(".", config.FileConfig{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	entry, err := proj.FindSource("main.cpp")
	if err != nil {
		t.Fatal(err)
	}

	comp := compiler.Compiler{Path: fakeCompilerScript(t), Family: compiler.GCC, Version: []int{11, 4, 0}}
	cache, err := buildcache.Load(filepath.Join(dir, "build", ".tiny-make", "cache.json"))
	if err != nil {
		t.Fatal(err)
	}
	log := common.NewLogger(false)

	exe, err := Build(log, cache, comp, config.FileConfig{}, entry)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(exe); err != nil {
		t.Fatalf("expected executable %q to exist: %v", exe, err)
	}
	info, err := os.Stat(exe)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&0111 == 0 {
		t.Fatalf("expected executable bit set on %q, mode = %v", exe, info.Mode())
	}

	// Second build should find everything fresh and not recompile.
	cache2, err := buildcache.Load(filepath.Join(dir, "build", ".tiny-make", "cache.json"))
	if err != nil {
		t.Fatal(err)
	}
	objRecord := comp.ObjectRecord(entry, config.FileConfig{})
	if !cache2.HasFresh(objRecord) {
		t.Fatal("expected the object record to be fresh after the first build")
	}
}
