// Package files canonicalises measured file paths and selects which files a
// report covers.
package files

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// FileKey is the canonical absolute path of a measured file.
type FileKey string

// caseInsensitive reports whether the host filesystem usually folds case.
var caseInsensitive = runtime.GOOS == "windows" || runtime.GOOS == "darwin"

// Canonical returns the FileKey for path. Relative paths are resolved
// against the working directory, symlinks are followed when the file
// exists, and the result is lower-cased on case-insensitive platforms.
func Canonical(path string) FileKey {
	return canonical(path, caseInsensitive)
}

func canonical(path string, foldCase bool) FileKey {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	if foldCase {
		abs = strings.ToLower(abs)
	}
	return FileKey(abs)
}

// Same reports whether two paths denote the same file.
func Same(a, b string) bool {
	return Canonical(a) == Canonical(b)
}

// RelativeName returns the name shown in reports for key: the path relative
// to root when key lives under root, the key itself otherwise. Separators
// are always forward slashes.
func RelativeName(key FileKey, root string) string {
	name := string(key)
	if root != "" {
		if rel, err := filepath.Rel(string(Canonical(root)), name); err == nil && !strings.HasPrefix(rel, "..") {
			name = rel
		}
	}
	return filepath.ToSlash(name)
}

// Exists reports whether the file behind key can currently be read.
func Exists(key FileKey) bool {
	info, err := os.Stat(string(key))
	return err == nil && info.Mode().IsRegular()
}
