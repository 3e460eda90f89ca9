package main

import (
	"context"
	"fmt"
)

// GcCmd reaps every non-running service from the manager's table and
// prunes its now-empty tmp I/O directories.
type GcCmd struct{}

func (cmd *GcCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	reaped, err := appCtx.client.Clean(ctx)
	if err != nil {
		return fmt.Errorf("cleaning: %w", err)
	}
	if len(reaped) == 0 {
		fmt.Println("nothing to reap")
		return nil
	}
	for _, p := range reaped {
		fmt.Printf("reaped %s\n", p)
	}
	return nil
}
