package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sleepywoodpecker/rp-scan-windows/cmd"
)

func main() {
	// cancelled on SIGINT/SIGTERM so every Run loop can shut down
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "daqscan: %v\n", err)
		stop()
		os.Exit(1)
	}
}
