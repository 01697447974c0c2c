package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeToml(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	fc, err := Load(filepath.Join(t.TempDir(), "nonexistent.toml"))
	require.NoError(t, err)
	require.False(t, fc.ResolvedOptimize(), "expected optimize to default to false")
	require.Equal(t, DefaultPrefer, fc.ResolvedPrefer())
}

func TestLoadParsesKnownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny-make.toml")
	writeToml(t, path, `
optimize = true
prefer = "g++"

[dependency]
links = ["../sibling"]

[[dependency.libraries]]
name = "boost"
pattern = "^boost/"
include = "/opt/boost/include"
libpath = "/opt/boost/lib"
libs = ["boost_system"]
`)

	fc, err := Load(path)
	require.NoError(t, err)
	require.True(t, fc.ResolvedOptimize())
	require.Equal(t, "g++", fc.ResolvedPrefer())
	require.Equal(t, []string{"../sibling"}, fc.Links)
	require.Equal(t, []LibrarySpec{{
		Name:    "boost",
		Pattern: "^boost/",
		Include: "/opt/boost/include",
		LibPath: "/opt/boost/lib",
		Libs:    []string{"boost_system"},
	}}, fc.Libraries)
}

func TestLoadRejectsInvalidPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny-make.toml")
	writeToml(t, path, `
[[dependency.libraries]]
name = "broken"
pattern = "("
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestMergeOverwritesScalarsOnlyWhenSet(t *testing.T) {
	base := FileConfig{}
	optimizeTrue := true
	base.Merge(FileConfig{Optimize: &optimizeTrue, Links: []string{"a"}})
	require.True(t, base.ResolvedOptimize())

	// A later layer that doesn't set optimize must not reset it.
	base.Merge(FileConfig{Links: []string{"b"}})
	require.True(t, base.ResolvedOptimize(), "expected optimize to survive a layer that doesn't mention it")
	require.Equal(t, []string{"a", "b"}, base.Links, "links should be extended, not replaced")
}

func TestBuildOptions(t *testing.T) {
	optimize := FileConfig{Optimize: boolPtr(true)}
	require.Equal(t, []string{"-O3"}, optimize.BuildOptions())

	debug := FileConfig{}
	require.Equal(t, []string{"-g", "-O0", "-fno-omit-frame-pointer"}, debug.BuildOptions())
}

func boolPtr(b bool) *bool { return &b }
