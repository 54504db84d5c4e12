package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"syndrlinks/src/cli"
	"syndrlinks/src/settings"
)

func main() {
	// Cancel in-flight updates on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand(settings.GetSettings()).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		stop()
		os.Exit(1)
	}
}
