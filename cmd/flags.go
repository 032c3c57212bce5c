package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps flag names onto the config keys they override.
var flagKeys = map[string]string{
	"rate":           "sample_rate",
	"channels":       "channels",
	"window":         "window_duration",
	"data-dir":       "data_dir",
	"log-level":      "log.level",
	"log-file":       "log.file",
	"metrics-listen": "metrics.listen",

	"source": "source.kind",
	"port":   "source.port",
	"baud":   "source.baud",
	"poll":   "poll_interval",

	"refresh": "refresh_rate",
	"nfft":    "display.nfft",
	"views":   "display.channels",
}

// bindFlags binds the flags of the command being executed. Several commands
// define the same flag, so binding happens per invocation rather than at setup.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	var err error
	bind := func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		if bindErr := v.BindPFlag(key, f); bindErr != nil {
			err = fmt.Errorf("error binding flag %s: %w", f.Name, bindErr)
		}
	}
	cmd.InheritedFlags().VisitAll(bind)
	cmd.Flags().VisitAll(bind)
	return err
}
