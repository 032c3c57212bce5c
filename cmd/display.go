package cmd

import (
	"context"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"sleepywoodpecker/rp-scan-windows/internal/refresh"
	"sleepywoodpecker/rp-scan-windows/internal/store"
	"sleepywoodpecker/rp-scan-windows/internal/view"
)

func displayCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "display",
		Short: "Poll the data directory and refresh the views on a fixed tick",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, ctx := errgroup.WithContext(cmd.Context())
			a.serveMetrics(ctx, g)
			g.Go(func() error {
				return a.display(ctx)
			})
			return g.Wait()
		},
	}

	setupDisplayFlags(cmd, a.v)
	return cmd
}

func setupDisplayFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().Float64("refresh", v.GetFloat64("refresh_rate"), "Display refresh rate in Hz")
	cmd.Flags().Int("nfft", v.GetInt("display.nfft"), "Segment length of the spectral view")
	cmd.Flags().Int("views", v.GetInt("display.channels"), "Number of channels that get their own views")
}

// newTicker registers the overlay plus a time series and a spectrum view for
// each displayed channel.
func (a *app) newTicker() *refresh.Ticker {
	fs := afero.NewReadOnlyFs(afero.NewOsFs())
	s := a.settings

	ticker := refresh.NewTicker(s.RefreshInterval(), store.Open(fs, s.DataDir), a.logger, a.metrics)
	ticker.Register(view.NewOverlay(fs, s.Channels, a.logger))
	for ch := range s.Display.Channels {
		ticker.Register(
			view.NewTimeSeries(fs, ch, s.Channels, a.logger, a.metrics),
			view.NewSpectrum(fs, ch, s.Channels, s.SampleRate, s.Display.NFFT, a.logger, a.metrics),
		)
	}
	return ticker
}

func (a *app) display(ctx context.Context) error {
	return a.newTicker().Run(ctx)
}
