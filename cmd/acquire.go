package cmd

import (
	"context"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"sleepywoodpecker/rp-scan-windows/internal/acquisition"
	"sleepywoodpecker/rp-scan-windows/internal/source"
	"sleepywoodpecker/rp-scan-windows/internal/store"
)

func acquireCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acquire",
		Short: "Sample the source and rotate rows into window files",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			g, ctx := errgroup.WithContext(ctx)
			a.serveMetrics(ctx, g)
			g.Go(func() error {
				// the metrics listener goes down with the stream
				defer cancel()
				return a.acquire(ctx)
			})
			return g.Wait()
		},
	}

	setupAcquireFlags(cmd, a.v)
	return cmd
}

func setupAcquireFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().String("source", v.GetString("source.kind"), "Sample source (\"sim\" or \"serial\")")
	cmd.Flags().String("port", v.GetString("source.port"), "Serial port, empty picks the first one found")
	cmd.Flags().Int("baud", v.GetInt("source.baud"), "Serial baud rate")
	cmd.Flags().Duration("poll", v.GetDuration("poll_interval"), "Wait between status polls when no scans are ready")
}

// acquire runs the producer until ctx is cancelled or the source ends the stream.
func (a *app) acquire(ctx context.Context) error {
	src, err := source.Open(a.settings, a.logger)
	if err != nil {
		return err
	}

	st, err := store.New(afero.NewOsFs(), a.settings.DataDir)
	if err != nil {
		return multierr.Append(err, src.Release())
	}

	loop := acquisition.NewLoop(src, st, acquisition.ConfigFromSettings(a.settings), a.logger, a.metrics)
	return loop.Run(ctx)
}
