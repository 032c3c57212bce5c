package cmd

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func runCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Acquire and display in one process",
		Long:  "Runs the producer and the display side by side. They share nothing but the data directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, ctx := errgroup.WithContext(cmd.Context())
			a.serveMetrics(ctx, g)
			g.Go(func() error {
				return a.acquire(ctx)
			})
			g.Go(func() error {
				return a.display(ctx)
			})
			return g.Wait()
		},
	}

	setupAcquireFlags(cmd, a.v)
	setupDisplayFlags(cmd, a.v)
	return cmd
}
