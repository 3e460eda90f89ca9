package main

import (
	"context"
	"fmt"
)

// DelCmd removes one or more roster entries, resolved via the
// exact/glob/glob-both-sides fallback against the current roster.
type DelCmd struct {
	Paths []string `arg:"" name:"path" help:"service path(s), literal or glob"`
}

func (cmd *DelCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	resolved, err := resolveAgainstRoster(ctx, appCtx, cmd.Paths)
	if err != nil {
		return err
	}
	for _, path := range resolved {
		if err := appCtx.client.RosterDelete(ctx, path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("deleted %s\n", path)
	}
	return nil
}

func resolveAgainstRoster(ctx context.Context, appCtx *Context, rawArgs []string) ([]string, error) {
	rosterEntries, err := appCtx.client.RosterList(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing roster: %w", err)
	}
	known := make([]string, 0, len(rosterEntries))
	for p := range rosterEntries {
		known = append(known, p)
	}
	return resolvePaths(rawArgs, known)
}

func resolveAgainstKnown(ctx context.Context, appCtx *Context, rawArgs []string) ([]string, error) {
	rosterEntries, err := appCtx.client.RosterList(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing roster: %w", err)
	}
	statusEntries, err := appCtx.client.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing status: %w", err)
	}
	statusPaths := make([]string, len(statusEntries))
	for i, e := range statusEntries {
		statusPaths[i] = e.Path
	}
	known := knownPathsFromRosterAndStatus(rosterEntries, statusPaths)
	return resolvePaths(rawArgs, known)
}
