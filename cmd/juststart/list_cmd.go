package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// ListCmd prints every roster entry and its enabled/disabled flag.
type ListCmd struct{}

func (cmd *ListCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	entries, err := appCtx.client.RosterList(ctx)
	if err != nil {
		return fmt.Errorf("listing roster: %w", err)
	}

	if appCtx.JSON {
		return json.NewEncoder(os.Stdout).Encode(entries)
	}

	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if entries[p] {
			fmt.Printf("%s\n", p)
		} else {
			fmt.Printf("- %s\n", p)
		}
	}
	return nil
}
