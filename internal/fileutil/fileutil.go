// Package fileutil provides file system utilities.
package fileutil

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar"
)

// IsDir checks if a path is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsFile checks if a path is a regular file.
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ReadFile reads a file and returns its content.
func ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// NormalizeRel cleans a relative path the way a build-file's declared
// source list is normalized: "./x/./y" -> "x/y".
func NormalizeRel(p string) string {
	return filepath.Clean(p)
}

// ExpandUnderDir returns every regular file under root whose extension is
// one of exts, recursively. Used to expand a directory entry in
// smithy-build.json's sources/imports into concrete files.
func ExpandUnderDir(root string, exts ...string) ([]string, error) {
	want := make(map[string]bool, len(exts))
	for _, e := range exts {
		want[e] = true
	}

	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if want[filepath.Ext(path)] {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// ExpandGlob expands a doublestar pattern (supporting "**") rooted at the
// filesystem into the list of matching paths.
func ExpandGlob(pattern string) ([]string, error) {
	matches, err := doublestar.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}
