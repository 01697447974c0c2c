// Package buildenv centralises the on-disk layout tiny-make builds into:
// the build directory, the symlink farm for linked modules, and the cache
// file path. Grounded on original_source/base/env.py, which these names
// and paths mirror one-for-one.
package buildenv

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// BuildDirName is the output directory created at the project root.
	BuildDirName = "build"
	// LocalConfigName is the per-module config file name.
	LocalConfigName = ".tiny-make.toml"
	// TinyMakeDirName holds tiny-make's own state inside the build directory.
	TinyMakeDirName = ".tiny-make"
)

// LinksDirPath is where symlinks to linked sibling modules are created.
func LinksDirPath(root string) string {
	return filepath.Join(root, BuildDirName, ".links")
}

// CacheFilePath is where the persistent build cache is stored.
func CacheFilePath(root string) string {
	return filepath.Join(root, BuildDirName, TinyMakeDirName, "cache.json")
}

// GlobalConfigPath is the machine-wide config file.
const GlobalConfigPath = "/etc/tiny-make/tiny-make.toml"

// UserConfigPath is the per-user config file.
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cache", "tiny-make", "tiny-make.toml")
}

// AddLinkPath resolves an external directory a module links to into a stable
// symlink path under <root>/build/.links/<basename>-<md5-6>, so object
// targets for linked sources always sit under the project's build tree.
// Linking the project root to itself resolves to ".".
func AddLinkPath(root string, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("link target %q is not a directory: %w", path, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("link target %q is not a directory", path)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if sameFile(absRoot, absPath) {
		return ".", nil
	}

	linksDir := LinksDirPath(root)
	if err := os.MkdirAll(linksDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("create links directory %q failed: %w", linksDir, err)
	}

	name := filepath.Base(absPath)
	suffix := hex.EncodeToString(md5Sum(name))[:6]
	link := filepath.Join(linksDir, fmt.Sprintf("%s-%s", name, suffix))

	if existing, err := os.Readlink(link); err == nil {
		if sameFile(existing, absPath) || existing == absPath {
			return link, nil
		}
		return "", fmt.Errorf("link target %q already exists pointing elsewhere", link)
	} else if _, statErr := os.Lstat(link); statErr == nil {
		return "", fmt.Errorf("link target %q already exists", link)
	}

	if err := os.Symlink(absPath, link); err != nil {
		return "", fmt.Errorf("failed to create link path %q: %w", link, err)
	}

	return link, nil
}

func sameFile(a, b string) bool {
	infoA, errA := os.Stat(a)
	infoB, errB := os.Stat(b)
	if errA != nil || errB != nil {
		return false
	}
	return os.SameFile(infoA, infoB)
}

func md5Sum(s string) []byte {
	sum := md5.Sum([]byte(s))
	return sum[:]
}
