// Package envbuild composes the final environment mapping a runner's
// child process (or a blocker probe) is launched with: a base map
// overridden by directives read line-by-line from an optional env file.
package envbuild

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"

	"github.com/xz-dev/juststart/internal/juststarterr"
)

// EnvMap is an ordered-insignificant mapping from variable name to value.
type EnvMap map[string]string

// Clone returns a shallow copy so callers can mutate without aliasing.
func (m EnvMap) Clone() EnvMap {
	out := make(EnvMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge returns the right-biased union of m and other: keys in other win.
func (m EnvMap) Merge(other EnvMap) EnvMap {
	out := m.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Dumper executes the platform env-dump subprogram ("env" on POSIX, "set"
// on Windows) and parses its key=value output. Abstracted behind an
// interface, mirroring file_ops.go/git_ops.go's defaultFileOps /
// defaultGitOps shape, so tests can inject a fake without touching argv[0].
type Dumper interface {
	Dump(ctx context.Context, args []string, childEnv EnvMap) (EnvMap, error)
}

type defaultDumper struct{}

// NewDefaultDumper returns the OS-backed Dumper.
func NewDefaultDumper() Dumper {
	return &defaultDumper{}
}

func dumpProgram() string {
	if runtime.GOOS == "windows" {
		return "set"
	}
	return "env"
}

func (d *defaultDumper) Dump(ctx context.Context, args []string, childEnv EnvMap) (EnvMap, error) {
	cmd := exec.CommandContext(ctx, dumpProgram(), args...)
	cmd.Env = childEnv.toSlice()
	slog.InfoContext(ctx, "envbuild.Dumper.Dump", "cmd", strings.Join(cmd.Args, " "))
	output, err := cmd.Output()
	if err != nil {
		return nil, juststarterr.Wrap(juststarterr.KindEnv, juststarterr.LevelError,
			fmt.Sprintf("env-dump subprogram %q failed", strings.Join(cmd.Args, " ")), err)
	}
	return parseKeyValueOutput(string(output)), nil
}

func (m EnvMap) toSlice() []string {
	out := make([]string, 0, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+m[k])
	}
	return out
}

func parseKeyValueOutput(output string) EnvMap {
	out := EnvMap{}
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}

// Build produces the final environment by layering directives read from
// envFile over base. A missing envFile is not an error. See spec.md §4.1
// for the directive grammar.
func Build(ctx context.Context, base EnvMap, envFile string, dumper Dumper) (EnvMap, error) {
	if dumper == nil {
		dumper = NewDefaultDumper()
	}

	f, err := os.Open(envFile)
	if err != nil {
		if os.IsNotExist(err) {
			return base.Clone(), nil
		}
		return nil, juststarterr.Wrap(juststarterr.KindEnv, juststarterr.LevelError,
			fmt.Sprintf("opening env file %q", envFile), err)
	}
	defer f.Close()

	result := base.Clone()
	var remove []string

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r\n")
		if line == "" {
			continue
		}

		switch {
		case line == "+*":
			result = hostEnv().Merge(result)
		case line == "-*":
			return EnvMap{}, nil
		case strings.HasPrefix(line, "+"):
			name := line[1:]
			if v, ok := os.LookupEnv(name); ok {
				result[name] = v
			}
		case strings.HasPrefix(line, "-"):
			remove = append(remove, line[1:])
		default:
			dumped, err := dumper.Dump(ctx, strings.Fields(line), result)
			if err != nil {
				return nil, err
			}
			result = result.Merge(dumped)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, juststarterr.Wrap(juststarterr.KindEnv, juststarterr.LevelError,
			fmt.Sprintf("reading env file %q", envFile), err)
	}

	for _, name := range remove {
		delete(result, name)
	}

	return result, nil
}

func hostEnv() EnvMap {
	out := EnvMap{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			out[k] = v
		}
	}
	return out
}
