package main

import (
	"context"
	"fmt"
)

// ShutdownCmd tells the daemon to stop every service and exit.
type ShutdownCmd struct{}

func (cmd *ShutdownCmd) Run(appCtx *Context) error {
	ctx := context.Background()
	if err := appCtx.client.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down daemon: %w", err)
	}
	fmt.Println("daemon shutting down")
	return nil
}
