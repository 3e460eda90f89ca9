// Package manager owns the keyed table of running services, drives
// their lifecycles over a shared scheduler, persists the roster, and
// computes aggregate status. Grounded on boxer.go's keyed-table-owning
// Boxer type (map[string]*Box guarded by a mutex, CRUD methods that
// validate then mutate) generalized from containers to supervised
// services, with per-path serialization added via singleflight because
// boxer.go's callers never needed to dedupe concurrent identical calls.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/singleflight"

	"github.com/xz-dev/juststart/internal/envbuild"
	"github.com/xz-dev/juststart/internal/juststarterr"
	"github.com/xz-dev/juststart/internal/pathutil"
	"github.com/xz-dev/juststart/internal/roster"
	"github.com/xz-dev/juststart/internal/runner"
	"github.com/xz-dev/juststart/internal/runnerconfig"
	"github.com/xz-dev/juststart/internal/scheduler"
)

// BootStatus is one of the three-axis flags get_runner_status_dict
// emits per spec.md §4.5.
type BootStatus string

const (
	EnabledBoot        BootStatus = "ENABLED_BOOT"
	DisabledBoot       BootStatus = "DISABLED_BOOT"
	InitedBoot         BootStatus = "INITED"
	NotInitedBoot      BootStatus = "NOT_INITED"
	RunningBoot        BootStatus = "RUNNING"
	NotRunningBoot     BootStatus = "NOT_RUNNING"
	InitedNotSavedBoot BootStatus = "INITED_BUT_NOT_SAVED"
)

// RunnerStatusEntry is one row of get_runner_status_dict's report.
// ChangedTime is the zero time for a roster entry with no table row
// (never booted this daemon lifetime).
type RunnerStatusEntry struct {
	Path        string
	Flags       []BootStatus
	ChangedTime time.Time
}

// Manager owns runnerTable, the roster, and the scheduler every Runner
// is launched on.
type Manager struct {
	roster            *roster.Config
	sched             *scheduler.Scheduler
	defaultProfileDir string
	tmpDirRoot        string
	dumper            envbuild.Dumper
	runitCompat       bool

	table   map[string]*runner.Runner // guarded by tableMu; holds only map ops, never a blocking Runner call
	tableMu sync.Mutex

	sf singleflight.Group // dedupes concurrent calls per ServicePath
}

// New constructs a Manager. tmpDirRoot is the root under which
// per-service std stream directories are rooted (spec.md §6's
// `<config_dir>/runtime_tmp/runner/<service_path>/std`).
func New(rosterCfg *roster.Config, sched *scheduler.Scheduler, defaultProfileDir, tmpDirRoot string, dumper envbuild.Dumper, runitCompat bool) *Manager {
	return &Manager{
		roster:            rosterCfg,
		sched:             sched,
		defaultProfileDir: defaultProfileDir,
		tmpDirRoot:        tmpDirRoot,
		dumper:            dumper,
		runitCompat:       runitCompat,
		table:             map[string]*runner.Runner{},
	}
}

func (m *Manager) streamDir(path string) string {
	return filepath.Join(m.tmpDirRoot, "runner", path, "std")
}

// StartRunner builds the effective config (unless cfg is supplied),
// materializes the service's I/O directories, constructs and starts a
// Runner, and inserts it into the table. If a Runner already exists for
// path this delegates to ReloadRunner, per spec.md §4.5.
func (m *Manager) StartRunner(ctx context.Context, path string, cfg *runnerconfig.RunnerConfig) error {
	_, err, _ := m.sf.Do(path, func() (any, error) {
		return nil, m.startRunnerLocked(ctx, path, cfg)
	})
	return err
}

func (m *Manager) startRunnerLocked(ctx context.Context, path string, cfg *runnerconfig.RunnerConfig) error {
	if existing := m.get(path); existing != nil {
		return m.reloadRunnerLocked(ctx, path)
	}

	resolved, err := m.resolveConfig(ctx, path, cfg)
	if err != nil {
		return err
	}

	if err := materializeStreamDirs(resolved); err != nil {
		return juststarterr.RunnerManagerErrorf("materializing I/O directories for %q: %v", path, err)
	}

	r := runner.New(path, resolved)
	if err := r.Start(m.sched); err != nil {
		return err
	}

	m.put(path, r)
	return nil
}

func (m *Manager) resolveConfig(ctx context.Context, path string, cfg *runnerconfig.RunnerConfig) (runnerconfig.RunnerConfig, error) {
	if cfg != nil {
		return *cfg, nil
	}
	return runnerconfig.Resolve(ctx, path, m.defaultProfileDir, m.tmpDirRoot, m.dumper)
}

func materializeStreamDirs(cfg runnerconfig.RunnerConfig) error {
	for _, streamPath := range []string{cfg.Stdin, cfg.Stdout, cfg.Stderr} {
		if streamPath == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(streamPath), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(streamPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		f.Close()
	}
	return nil
}

// StopRunner runs the down-hook (if any), stops the target service,
// removes it from the table, and prunes now-empty tmp I/O directories.
// checkRunning, when true, skips the stop (but not the table removal)
// if the service is not currently running.
func (m *Manager) StopRunner(ctx context.Context, path string, checkRunning bool) error {
	_, err, _ := m.sf.Do(path, func() (any, error) {
		return nil, m.stopRunnerLocked(ctx, path, checkRunning)
	})
	return err
}

func (m *Manager) stopRunnerLocked(ctx context.Context, path string, checkRunning bool) error {
	r := m.get(path)
	if r == nil {
		return juststarterr.RunnerErrorf("runner %q is not in the table", path)
	}

	if err := m.runDownHook(ctx, path); err != nil {
		slog.WarnContext(ctx, "down-hook failed, proceeding with stop anyway", "path", path, "err", err)
	}

	if !checkRunning || r.IsRunning() {
		if err := r.Stop(ctx); err != nil {
			return err
		}
	}

	m.delete(path)
	return pathutil.RemoveAndPruneEmptyParents(m.streamDir(path), m.tmpDirRoot)
}

// runDownHook starts `<path>.down`, or (when runit-compat is enabled
// and path itself is not named "down") a sibling `down` file, as a
// blocking hook, waiting up to 5 seconds for it to finish.
func (m *Manager) runDownHook(ctx context.Context, path string) error {
	hook := path + ".down"
	if !pathutil.IsExecutableRegularFile(hook) {
		if m.runitCompat && filepath.Base(path) != "down" {
			candidate := filepath.Join(filepath.Dir(path), "down")
			if pathutil.IsExecutableRegularFile(candidate) {
				hook = candidate
			} else {
				return nil
			}
		} else {
			return nil
		}
	}

	hookCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	err := m.sched.Offload(hookCtx, func(ctx context.Context) error {
		done <- runHookProcess(ctx, hook)
		return nil
	})
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-hookCtx.Done():
		return hookCtx.Err()
	}
}

// RestartRunner stops (tolerating "not running") then starts.
func (m *Manager) RestartRunner(ctx context.Context, path string) error {
	if err := m.StopRunner(ctx, path, true); err != nil {
		if !isNotInTable(err) {
			return err
		}
	}
	return m.StartRunner(ctx, path, nil)
}

func isNotInTable(err error) bool {
	je, ok := juststarterr.As(err)
	return ok && je.Kind == juststarterr.KindRunner
}

// ReloadRunner diffs the current Runner's config against a freshly
// resolved one. If args or env changed while running, it stops then
// restarts; stream-path changes are hot-swapped without a restart.
func (m *Manager) ReloadRunner(ctx context.Context, path string) error {
	_, err, _ := m.sf.Do(path, func() (any, error) {
		return nil, m.reloadRunnerLocked(ctx, path)
	})
	return err
}

func (m *Manager) reloadRunnerLocked(ctx context.Context, path string) error {
	r := m.get(path)
	if r == nil {
		return juststarterr.RunnerErrorf("runner %q is not in the table", path)
	}

	resolved, err := m.resolveConfig(ctx, path, nil)
	if err != nil {
		return err
	}

	current := r.StatusSnapshot()
	argsOrEnvChanged := !stringSlicesEqual(current.Args, resolved.Args) || !envMapsEqual(current.Env, resolved.Env)

	if argsOrEnvChanged {
		r.SetArgsEnv(resolved.Args, resolved.Env)
		r.SetAutoRestart(resolved.AutoRestart)
		if current.Status.Key != runner.StatusStopped && current.Status.Key != runner.StatusDestroyed {
			if err := r.Stop(ctx); err != nil {
				return err
			}
			return r.Start(m.sched)
		}
		return nil
	}

	r.SetAutoRestart(resolved.AutoRestart)
	r.SetStreamPaths(resolved.Stdin, resolved.Stdout, resolved.Stderr)
	return nil
}

// GetRunner fails with RunnerError if path is not in the table.
func (m *Manager) GetRunner(path string) (*runner.Runner, error) {
	r := m.get(path)
	if r == nil {
		return nil, juststarterr.RunnerErrorf("runner %q is not in the table", path)
	}
	return r, nil
}

// GetRunnerStatusDict reports, per spec.md §4.5, a three-flag status
// for every roster entry plus an INITED_BUT_NOT_SAVED flag for any
// table entry absent from the roster. Sorted by path.
func (m *Manager) GetRunnerStatusDict() []RunnerStatusEntry {
	rosterEntries := m.roster.Entries()
	table := m.snapshotTable()

	paths := make(map[string]struct{}, len(rosterEntries)+len(table))
	for p := range rosterEntries {
		paths[p] = struct{}{}
	}
	for p := range table {
		paths[p] = struct{}{}
	}

	out := make([]RunnerStatusEntry, 0, len(paths))
	for p := range paths {
		var flags []BootStatus
		enabled, inRoster := rosterEntries[p]
		r, inTable := table[p]

		if inRoster {
			if enabled {
				flags = append(flags, EnabledBoot)
			} else {
				flags = append(flags, DisabledBoot)
			}
			if inTable {
				flags = append(flags, InitedBoot)
			} else {
				flags = append(flags, NotInitedBoot)
			}
			if inTable && r.IsRunning() {
				flags = append(flags, RunningBoot)
			} else {
				flags = append(flags, NotRunningBoot)
			}
		} else {
			flags = append(flags, InitedNotSavedBoot)
			if r.IsRunning() {
				flags = append(flags, RunningBoot)
			} else {
				flags = append(flags, NotRunningBoot)
			}
		}

		sort.Slice(flags, func(i, j int) bool { return flags[i] < flags[j] })
		var changedTime time.Time
		if inTable {
			if ct, ok := r.StatusSnapshot().Status.Data["changed_time"].(time.Time); ok {
				changedTime = ct
			}
		}
		out = append(out, RunnerStatusEntry{Path: p, Flags: flags, ChangedTime: changedTime})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// CleanRunner reaps every non-running Runner from the table, deletes
// its tmp I/O directories, and returns the list of reaped paths.
func (m *Manager) CleanRunner() ([]string, error) {
	table := m.snapshotTable()
	var reaped []string
	var errs *multierror.Error

	for p, r := range table {
		if r.IsRunning() {
			continue
		}
		m.delete(p)
		if err := pathutil.RemoveAndPruneEmptyParents(m.streamDir(p), m.tmpDirRoot); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("cleaning %q: %w", p, err))
			continue
		}
		reaped = append(reaped, p)
	}

	sort.Strings(reaped)
	return reaped, errs.ErrorOrNil()
}

// Boot starts every enabled roster entry. Called once on daemon startup.
func (m *Manager) Boot(ctx context.Context) error {
	var errs *multierror.Error
	for path, enabled := range m.roster.Entries() {
		if !enabled {
			continue
		}
		if err := m.StartRunner(ctx, path, nil); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("booting %q: %w", path, err))
		}
	}
	return errs.ErrorOrNil()
}

// Shutdown stops every table entry (tolerating "already stopped"),
// then stops the scheduler. Called once on daemon shutdown.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs *multierror.Error
	for path, r := range m.snapshotTable() {
		if r.IsRunning() {
			if err := r.Stop(ctx); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("stopping %q: %w", path, err))
			}
		}
	}
	if err := m.sched.Shutdown(ctx); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func envMapsEqual(a, b envbuild.EnvMap) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func (m *Manager) get(path string) *runner.Runner {
	m.tableMu.Lock()
	defer m.tableMu.Unlock()
	return m.table[path]
}

func (m *Manager) put(path string, r *runner.Runner) {
	m.tableMu.Lock()
	defer m.tableMu.Unlock()
	m.table[path] = r
}

func (m *Manager) delete(path string) {
	m.tableMu.Lock()
	defer m.tableMu.Unlock()
	delete(m.table, path)
}

// snapshotTable returns a shallow copy of the table so callers can
// range over it (e.g. for status/clean) without holding tableMu across
// Runner calls — satisfies spec.md §5's "iteration for status is
// snapshot-tolerant" policy.
func (m *Manager) snapshotTable() map[string]*runner.Runner {
	m.tableMu.Lock()
	defer m.tableMu.Unlock()
	out := make(map[string]*runner.Runner, len(m.table))
	for p, r := range m.table {
		out[p] = r
	}
	return out
}

// runHookProcess runs a down-hook executable to completion, discarding
// its output; only its exit status matters.
func runHookProcess(ctx context.Context, hookPath string) error {
	cmd := exec.CommandContext(ctx, hookPath)
	cmd.Dir = filepath.Dir(hookPath)
	return cmd.Run()
}
