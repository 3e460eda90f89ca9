// Package pathutil provides the small set of filesystem helpers the
// config resolver and manager need: walking a path's ancestor chain,
// deleting a file and pruning now-empty parent directories, and
// searching a directory tree for entries matching a keyword. Grounded
// on default_cloner.go's directory-walking style: explicit os.MkdirAll /
// os.RemoveAll calls, one small function per concern, every error
// wrapped with the operation that failed.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Ancestors returns dir's parent, grandparent, and so on, stopping
// before (not including) stopAt or the filesystem root — whichever
// comes first. dir itself is not included.
func Ancestors(dir, stopAt string) []string {
	dir = filepath.Clean(dir)
	stopAt = filepath.Clean(stopAt)

	var out []string
	cur := filepath.Dir(dir)
	for {
		if cur == stopAt || cur == "." {
			break
		}
		out = append(out, cur)
		parent := filepath.Dir(cur)
		if parent == cur {
			// reached the filesystem root
			break
		}
		cur = parent
	}
	return out
}

// IsAncestor reports whether ancestor is a (possibly indirect) parent
// directory of path.
func IsAncestor(ancestor, path string) bool {
	ancestor = filepath.Clean(ancestor)
	path = filepath.Clean(path)
	rel, err := filepath.Rel(ancestor, path)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..")
}

// RemoveAndPruneEmptyParents removes path, then walks upward removing
// each now-empty parent directory, stopping at (and never removing)
// stopAt.
func RemoveAndPruneEmptyParents(path, stopAt string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("removing %q: %w", path, err)
	}

	stopAt = filepath.Clean(stopAt)
	dir := filepath.Dir(filepath.Clean(path))
	for dir != stopAt && dir != "." && dir != string(filepath.Separator) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				break
			}
			return fmt.Errorf("reading %q: %w", dir, err)
		}
		if len(entries) > 0 {
			break
		}
		if err := os.Remove(dir); err != nil {
			return fmt.Errorf("pruning empty dir %q: %w", dir, err)
		}
		dir = filepath.Dir(dir)
	}
	return nil
}

// FindByKeyword walks root (recursively) and returns the absolute paths
// of every entry whose base name contains keyword.
func FindByKeyword(root, keyword string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.Contains(d.Name(), keyword) {
			abs, aerr := filepath.Abs(path)
			if aerr != nil {
				return aerr
			}
			out = append(out, abs)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("searching %q for %q: %w", root, keyword, err)
	}
	return out, nil
}

// IsExecutableRegularFile reports whether path names a regular file with
// at least one executable bit set.
func IsExecutableRegularFile(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return false
	}
	return fi.Mode()&0o111 != 0
}
