// Package cmd wires the acquisition and display pipelines into cobra commands.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sleepywoodpecker/rp-scan-windows/internal/conf"
	"sleepywoodpecker/rp-scan-windows/internal/logger"
	"sleepywoodpecker/rp-scan-windows/internal/metrics"
)

// app is the state every subcommand shares once PersistentPreRunE has run.
type app struct {
	v        *viper.Viper
	settings *conf.Settings
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// RootCommand creates the daqscan command tree around v.
func RootCommand(v *viper.Viper) *cobra.Command {
	return newRootCommand(&app{v: v})
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "daqscan",
		Short:         "Windowed DAQ acquisition and file-polled display",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(a.v, cmd); err != nil {
				return err
			}
			return a.initialize()
		},
	}

	setupFlags(rootCmd, a.v)

	rootCmd.AddCommand(
		acquireCommand(a),
		displayCommand(a),
		runCommand(a),
	)
	return rootCmd
}

// Execute builds the command tree with a fresh viper instance and runs it.
func Execute(ctx context.Context) error {
	a := &app{v: conf.NewViper()}
	err := newRootCommand(a).ExecuteContext(ctx)
	if a.logger != nil {
		if err != nil {
			a.logger.Error("[main] exiting", zap.Error(err))
		}
		logger.Flush(a.logger)
	}
	return err
}

func setupFlags(rootCmd *cobra.Command, v *viper.Viper) {
	flags := rootCmd.PersistentFlags()
	flags.Float64("rate", v.GetFloat64("sample_rate"), "Sample rate per channel in Hz")
	flags.Int("channels", v.GetInt("channels"), "Number of channels per sample row")
	flags.Duration("window", v.GetDuration("window_duration"), "Duration covered by one window file")
	flags.String("data-dir", v.GetString("data_dir"), "Directory holding the window files")
	flags.String("log-level", v.GetString("log.level"), "Log level (debug, info, warn, error)")
	flags.String("log-file", v.GetString("log.file"), "Optional JSON log file")
	flags.String("metrics-listen", v.GetString("metrics.listen"), "Listen address of the /metrics endpoint, empty to disable")
}

func (a *app) initialize() error {
	settings, err := conf.Load(a.v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := logger.NewLogger(settings.Log.File, settings.Log.Level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	a.settings = settings
	a.logger = l
	a.metrics = metrics.New()

	l.Info("[main] configuration loaded",
		zap.String("config", a.v.ConfigFileUsed()),
		zap.Float64("sampleRate", settings.SampleRate),
		zap.Int("channels", settings.Channels),
		zap.Duration("window", settings.WindowDuration),
		zap.Float64("refreshRate", settings.RefreshRate),
		zap.String("dataDir", settings.DataDir),
	)
	return nil
}

// serveMetrics starts the /metrics listener in g when one is configured.
func (a *app) serveMetrics(ctx context.Context, g *errgroup.Group) {
	if a.settings.Metrics.Listen == "" {
		return
	}
	g.Go(func() error {
		return a.metrics.Serve(ctx, a.settings.Metrics.Listen, a.logger)
	})
}
