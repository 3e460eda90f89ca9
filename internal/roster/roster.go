// Package roster persists the enabled/disabled set of known service
// paths to a plain text file, one entry per line: `PATH` (enabled) or
// `- PATH` (disabled). Grounded on default_cloner.go's Prepare-style
// validate-then-mutate sequencing and mux_server.go's whole-file-replace
// persistence (no append-only log, no partial rewrite).
package roster

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/xz-dev/juststart/internal/juststarterr"
	"github.com/xz-dev/juststart/internal/pathutil"
)

// Config owns the on-disk runner_list file and the in-memory map
// mirroring it. Every mutating method rewrites the whole file before
// returning, matching spec.md §4.4's "every mutation rewrites the file
// from the sorted entry map."
type Config struct {
	path string

	mu      sync.Mutex
	entries map[string]bool // ServicePath -> enabled
}

// Open loads path (creating an empty roster if it does not yet exist).
// Unknown line forms are ignored, per spec.md §6.
func Open(path string) (*Config, error) {
	c := &Config{path: path, entries: map[string]bool{}}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("opening roster file %q: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(trimmed, "- "):
			p := strings.TrimSpace(trimmed[2:])
			if p != "" {
				c.entries[p] = false
			}
		case strings.TrimSpace(trimmed) != "":
			c.entries[strings.TrimSpace(trimmed)] = true
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading roster file %q: %w", path, err)
	}
	return c, nil
}

// persist rewrites the whole file from c.entries, sorted by path. Must
// be called with c.mu held.
func (c *Config) persist() error {
	paths := make([]string, 0, len(c.entries))
	for p := range c.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, p := range paths {
		if c.entries[p] {
			b.WriteString(p)
		} else {
			b.WriteString("- ")
			b.WriteString(p)
		}
		b.WriteByte('\n')
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("preparing roster directory: %w", err)
	}
	if err := os.WriteFile(c.path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing roster file %q: %w", c.path, err)
	}
	return nil
}

// Add validates that path exists, is a regular file, is executable,
// and is not already listed, then inserts it disabled.
func (c *Config) Add(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[path]; ok {
		return juststarterr.New(juststarterr.KindManagerConfig, juststarterr.LevelWarning,
			fmt.Sprintf("roster: %q is already listed", path))
	}
	if !pathutil.IsExecutableRegularFile(path) {
		return juststarterr.New(juststarterr.KindManagerConfig, juststarterr.LevelWarning,
			fmt.Sprintf("roster: %q is not an executable regular file", path))
	}

	c.entries[path] = false
	return c.persist()
}

// Delete removes path; errors if absent.
func (c *Config) Delete(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[path]; !ok {
		return juststarterr.New(juststarterr.KindManagerConfig, juststarterr.LevelWarning,
			fmt.Sprintf("roster: %q is not listed", path))
	}
	delete(c.entries, path)
	return c.persist()
}

// Enable sets enabled=true; errors (info level) if absent or already enabled.
func (c *Config) Enable(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	enabled, ok := c.entries[path]
	if !ok {
		return juststarterr.New(juststarterr.KindManagerConfig, juststarterr.LevelWarning,
			fmt.Sprintf("roster: %q is not listed", path))
	}
	if enabled {
		return juststarterr.New(juststarterr.KindManagerConfig, juststarterr.LevelInfo,
			fmt.Sprintf("roster: %q is already enabled", path))
	}
	c.entries[path] = true
	return c.persist()
}

// Disable sets enabled=false; errors (info level) if absent or already disabled.
func (c *Config) Disable(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	enabled, ok := c.entries[path]
	if !ok {
		return juststarterr.New(juststarterr.KindManagerConfig, juststarterr.LevelWarning,
			fmt.Sprintf("roster: %q is not listed", path))
	}
	if !enabled {
		return juststarterr.New(juststarterr.KindManagerConfig, juststarterr.LevelInfo,
			fmt.Sprintf("roster: %q is already disabled", path))
	}
	c.entries[path] = false
	return c.persist()
}

// Entries returns a snapshot copy of the path->enabled map.
func (c *Config) Entries() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]bool, len(c.entries))
	for p, enabled := range c.entries {
		out[p] = enabled
	}
	return out
}

// Check reports whether a listed entry still refers to an executable
// regular file — used by status reporting to flag entries `[broken]`.
func (c *Config) Check(path string) bool {
	return pathutil.IsExecutableRegularFile(path)
}
