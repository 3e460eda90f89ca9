// Package runnerconfig resolves the effective configuration for one
// service by layering, in strict order, a built-in default, an optional
// shared default profile directory, and every directory from the
// service's containing directory up to (but not including) the
// filesystem root. Grounded on default_cloner.go's sequential,
// wrapped-error Prepare() style and options/options.go's one-parser-
// per-file-kind layout.
package runnerconfig

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xz-dev/juststart/internal/envbuild"
	"github.com/xz-dev/juststart/internal/juststarterr"
	"github.com/xz-dev/juststart/internal/pathutil"
)

// RunnerConfig is the fully resolved configuration for one service.
type RunnerConfig struct {
	Args        []string
	Env         envbuild.EnvMap
	AutoRestart int
	Stdin       string
	Stdout      string
	Stderr      string
}

// ConfigFragment is the scalar subset of configuration a `config` file
// may override. Pointer fields distinguish "not present in this layer"
// (nil) from "explicitly set" so layering can skip absent keys.
type ConfigFragment struct {
	AutoRestart *int
	Stdin       *string
	Stdout      *string
	Stderr      *string
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

// applyFragment layers frag over cfg, rightmost (frag) winning per key.
func applyFragment(cfg RunnerConfig, frag ConfigFragment) RunnerConfig {
	if frag.AutoRestart != nil {
		cfg.AutoRestart = *frag.AutoRestart
	}
	if frag.Stdin != nil {
		cfg.Stdin = *frag.Stdin
	}
	if frag.Stdout != nil {
		cfg.Stdout = *frag.Stdout
	}
	if frag.Stderr != nil {
		cfg.Stderr = *frag.Stderr
	}
	return cfg
}

// ParseConfigFile parses a `config` file's line-oriented directives. See
// spec.md §4.2. A `-KEY` line disables auto_restart (sets it to 0) but,
// per spec.md §9's Open Question, leaves stream keys untouched — i.e. no
// override is recorded for them, so layering falls through to the
// enclosing layer's value rather than the built-in default.
func ParseConfigFile(path string) (ConfigFragment, error) {
	var frag ConfigFragment
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return frag, nil
		}
		return frag, fmt.Errorf("opening config file %q: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "-") && !strings.Contains(line, "=") {
			key := line[1:]
			switch key {
			case "auto_restart":
				frag.AutoRestart = intPtr(0)
			case "stdin", "stdout", "stderr":
				// Leave untouched: reverts to the enclosing layer's value.
			default:
				return frag, juststarterr.RunnerConfigErrorf("config file %q: unknown key %q", path, key)
			}
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return frag, juststarterr.RunnerConfigErrorf("config file %q: malformed line %q", path, line)
		}
		switch key {
		case "auto_restart":
			n, err := strconv.Atoi(value)
			if err != nil {
				return frag, juststarterr.RunnerConfigErrorf("config file %q: auto_restart=%q is not an integer", path, value)
			}
			frag.AutoRestart = intPtr(n)
		case "stdin":
			frag.Stdin = strPtr(value)
		case "stdout":
			frag.Stdout = strPtr(value)
		case "stderr":
			frag.Stderr = strPtr(value)
		default:
			return frag, juststarterr.RunnerConfigErrorf("config file %q: unknown key %q", path, key)
		}
	}
	if err := sc.Err(); err != nil {
		return frag, fmt.Errorf("reading config file %q: %w", path, err)
	}
	return frag, nil
}

// ApplyArgsTokens layers a list of args tokens over acc using spec.md
// §4.2's merge rule: "-*" clears the accumulated list; a token "-X"
// strips a prior occurrence of the bare value "X" from acc if one is
// present there; if no such occurrence exists, "-X" is itself appended
// (so a layer can both introduce a literal "-flag" argument and, were a
// later layer to repeat the bare form, remove it again). Any other
// token simply appends. Argument-file merging and inline args merging
// share this function.
func ApplyArgsTokens(acc []string, tokens []string) []string {
	for _, tok := range tokens {
		switch {
		case tok == "-*":
			acc = nil
		case strings.HasPrefix(tok, "-") && len(tok) > 1:
			target := tok[1:]
			idx := -1
			for i, existing := range acc {
				if existing == target {
					idx = i
					break
				}
			}
			if idx >= 0 {
				acc = append(acc[:idx], acc[idx+1:]...)
			} else {
				acc = append(acc, tok)
			}
		default:
			acc = append(acc, tok)
		}
	}
	return acc
}

// ParseArgsFile reads an args file's token lines (one token per line,
// blank lines skipped) and returns them in file order, ready to be fed
// to ApplyArgsTokens.
func ParseArgsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening args file %q: %w", path, err)
	}
	defer f.Close()

	var tokens []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		tokens = append(tokens, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading args file %q: %w", path, err)
	}
	return tokens, nil
}

// layerDir applies the args/env/config fragments found in dir (any or
// all of which may be absent) onto the accumulated config.
func layerDir(ctx context.Context, cfg RunnerConfig, dir string, dumper envbuild.Dumper) (RunnerConfig, error) {
	argsPath := filepath.Join(dir, "args")
	if tokens, err := ParseArgsFile(argsPath); err != nil {
		return cfg, err
	} else if tokens != nil {
		cfg.Args = ApplyArgsTokens(cfg.Args, tokens)
	}

	envPath := filepath.Join(dir, "env")
	if _, statErr := os.Stat(envPath); statErr == nil {
		env, err := envbuild.Build(ctx, cfg.Env, envPath, dumper)
		if err != nil {
			return cfg, err
		}
		cfg.Env = env
	}

	configPath := filepath.Join(dir, "config")
	if _, statErr := os.Stat(configPath); statErr == nil {
		frag, err := ParseConfigFile(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = applyFragment(cfg, frag)
	}

	return cfg, nil
}

// builtinDefault returns source (1): empty args/env, auto_restart=1, and
// stream paths rooted under
// tmpDirRoot/runner/<servicePath>/std/{in,log,log} — stdout and stderr
// share the same default log file per spec.md §4.2/§6.
func builtinDefault(servicePath, tmpDirRoot string) RunnerConfig {
	stdDir := filepath.Join(tmpDirRoot, "runner", servicePath, "std")
	return RunnerConfig{
		Args:        nil,
		Env:         envbuild.EnvMap{},
		AutoRestart: 1,
		Stdin:       filepath.Join(stdDir, "in"),
		Stdout:      filepath.Join(stdDir, "log"),
		Stderr:      filepath.Join(stdDir, "log"),
	}
}

// Resolve produces the effective RunnerConfig for servicePath by
// layering the built-in default, the default profile directory (if
// non-empty), and the service's containing directory plus every
// ancestor up to (but not including) the filesystem root — rightmost
// (closest to servicePath) wins per key. See spec.md §4.2.
func Resolve(ctx context.Context, servicePath, defaultProfileDir, tmpDirRoot string, dumper envbuild.Dumper) (RunnerConfig, error) {
	cfg := builtinDefault(servicePath, tmpDirRoot)

	if defaultProfileDir != "" {
		var err error
		cfg, err = layerDir(ctx, cfg, defaultProfileDir, dumper)
		if err != nil {
			return RunnerConfig{}, err
		}
	}

	chain := pathutil.Ancestors(servicePath, string(filepath.Separator))
	for i := len(chain) - 1; i >= 0; i-- {
		var err error
		cfg, err = layerDir(ctx, cfg, chain[i], dumper)
		if err != nil {
			return RunnerConfig{}, err
		}
	}

	return cfg, nil
}
