// resolve.go implements the path-argument resolution fallback sequence
// spec.md §6 names last: exact name, then shell glob, then glob-both-
// sides. Grounded on original_source/juststart/path_helper.go's
// try_path_without_glob/try_path_with_glob/try_glob_both_side chain,
// reimplemented with path/filepath.Match standing in for Python's
// fnmatch.filter.
package main

import (
	"fmt"
	"path/filepath"
	"strings"
)

// segmentMatches reports whether any path segment of candidate equals
// name exactly — the Python original's _check_path_name, which walks
// up parent directories looking for an exact component match.
func segmentMatches(candidate, name string) bool {
	for p := candidate; ; {
		base := filepath.Base(p)
		if base == name {
			return true
		}
		parent := filepath.Dir(p)
		if parent == p {
			return false
		}
		p = parent
	}
}

func globMatches(pattern string, candidates []string) []string {
	var out []string
	for _, c := range candidates {
		if ok, _ := filepath.Match(pattern, c); ok {
			out = append(out, c)
		}
	}
	return out
}

// filterPathList resolves query against the known path set using the
// exact-name → shell-glob → glob-both-sides fallback sequence,
// returning the first non-empty match set.
func filterPathList(query string, known []string) []string {
	var exact []string
	for _, c := range known {
		if segmentMatches(c, query) {
			exact = append(exact, c)
		}
	}
	if len(exact) > 0 {
		return exact
	}

	if matched := globMatches(query, known); len(matched) > 0 {
		return matched
	}

	bothSides := "*" + query + "*"
	return globMatches(bothSides, known)
}

// resolvePaths expands each raw argument against known (the union of
// roster entries and running-table paths) and reports an error
// enumerating the offending argument if it matches nothing — never a
// silent no-op.
func resolvePaths(rawArgs []string, known []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, raw := range rawArgs {
		matched := filterPathList(raw, known)
		if len(matched) == 0 {
			return nil, fmt.Errorf("no known service path matches %q (tried exact name, glob, and *%s*)", raw, raw)
		}
		for _, m := range matched {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func knownPathsFromRosterAndStatus(rosterPaths map[string]bool, statusPaths []string) []string {
	set := map[string]bool{}
	for p := range rosterPaths {
		set[p] = true
	}
	for _, p := range statusPaths {
		set[p] = true
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}

func joinPaths(paths []string) string {
	return strings.Join(paths, ", ")
}
