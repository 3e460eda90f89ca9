package runner

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/xz-dev/juststart/internal/pathutil"
	"github.com/xz-dev/juststart/internal/scheduler"
	"github.com/xz-dev/juststart/internal/telemetry"
)

// blockerList returns the ordered list of blocker probes for a service:
// `<parent_dir>/blocker` may be a single executable file (one probe) or
// a directory of them (run in directory order). A missing path means
// no preroll at all.
func blockerList(servicePath string) ([]string, error) {
	path := filepath.Join(filepath.Dir(servicePath), "blocker")
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		full := filepath.Join(path, name)
		if pathutil.IsExecutableRegularFile(full) {
			out = append(out, full)
		}
	}
	return out, nil
}

// runBlockers executes every blocker probe in order before a spawn is
// allowed to proceed. A probe that exits 0 may print a decimal integer
// of seconds to stdout; runBlockers sleeps that long (non-positive or
// unparseable output means proceed immediately) and advances to the
// next probe. A probe that exits non-zero (or fails to even execute) is
// retried in place, paced by an exponential backoff, indefinitely —
// the only way out is ctx cancellation (a subsequent Stop).
func (r *Runner) runBlockers(ctx context.Context, sched *scheduler.Scheduler) error {
	ctx, span := telemetry.StartSpan(ctx, "runner.blockers")
	defer span.End()

	blockers, err := blockerList(r.path)
	if err != nil {
		return err
	}
	if len(blockers) == 0 {
		return nil
	}

	args, env, _, _, _, _ := r.snapshotConfig()
	r.status.set(StatusBlocking, map[string]any{"block_list": blockers})

	for _, probe := range blockers {
		bo := backoff.NewExponentialBackOff()
		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			r.status.set(StatusBlocking, map[string]any{"blocked_program": probe})

			var output []byte
			var runErr error
			offloadErr := sched.Offload(ctx, func(ctx context.Context) error {
				cmd := exec.CommandContext(ctx, probe, args...)
				cmd.Dir = filepath.Dir(probe)
				cmd.Env = envToSlice(envFromExecEnviron().Merge(env))
				output, runErr = cmd.Output()
				return nil
			})
			if offloadErr != nil {
				return offloadErr
			}

			if runErr == nil {
				seconds := parseBlockerDelay(output)
				if seconds > 0 {
					r.procMu.Lock()
					r.blockedNum++
					r.procMu.Unlock()
					if !sleepCtx(ctx, time.Duration(seconds)*time.Second) {
						return ctx.Err()
					}
				}
				break
			}

			r.procMu.Lock()
			r.blockedRunNum++
			r.procMu.Unlock()
			slog.WarnContext(ctx, "blocker probe failed, retrying", "path", r.path, "probe", probe, "err", runErr)

			delay := bo.NextBackOff()
			if !sleepCtx(ctx, delay) {
				return ctx.Err()
			}
		}
	}

	return nil
}

func parseBlockerDelay(output []byte) int {
	n, err := strconv.Atoi(strings.TrimSpace(string(output)))
	if err != nil {
		return 0
	}
	return n
}

// sleepCtx sleeps for d or returns false early if ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
