package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// StatusCmd reports per-service boot/running status. With --json, the
// raw []StatusEntry is printed; otherwise one line per service, flags
// space-joined.
type StatusCmd struct {
	Paths []string `arg:"" name:"path" optional:"" help:"restrict to these service path(s), literal or glob"`
}

func (cmd *StatusCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	entries, err := appCtx.client.Status(ctx)
	if err != nil {
		return fmt.Errorf("fetching status: %w", err)
	}

	if len(cmd.Paths) > 0 {
		known := make([]string, len(entries))
		for i, e := range entries {
			known[i] = e.Path
		}
		resolved, err := resolvePaths(cmd.Paths, known)
		if err != nil {
			return err
		}
		wanted := map[string]bool{}
		for _, p := range resolved {
			wanted[p] = true
		}
		filtered := entries[:0]
		for _, e := range entries {
			if wanted[e.Path] {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	if appCtx.JSON {
		return json.NewEncoder(os.Stdout).Encode(entries)
	}

	for _, e := range entries {
		flags := make([]string, len(e.Flags))
		copy(flags, e.Flags)
		fmt.Printf("%-50s %-20s %s\n", e.Path, strings.Join(flags, " "), humanizeAge(e.ChangedTime))
	}
	return nil
}

// humanizeAge renders a Runner status snapshot's changed_time as a
// human-relative duration (e.g. "3 minutes ago") for --json=false status
// output. A zero time (never booted this daemon lifetime) renders as "-".
func humanizeAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}
