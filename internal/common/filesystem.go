package common

import (
	"os"
	"path"
	"path/filepath"
)

// MkdirForFile ensures the parent directory of fileName exists.
func MkdirForFile(fileName string) error {
	return os.MkdirAll(filepath.Dir(fileName), os.ModePerm)
}

// ReplaceFileExt swaps fileName's extension for newExt (which should include the leading dot).
func ReplaceFileExt(fileName string, newExt string) string {
	ext := path.Ext(fileName)
	return fileName[0:len(fileName)-len(ext)] + newExt
}
