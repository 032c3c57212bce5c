// Package conf loads and validates the acquisition and display settings.
package conf

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

const EnvPrefix = "DAQSCAN"

// Source kinds understood by the acquire command.
const (
	SourceSim    = "sim"
	SourceSerial = "serial"
)

type Settings struct {
	SampleRate     float64       `mapstructure:"sample_rate"`     // Hz
	Channels       int           `mapstructure:"channels"`        // channels per sample row
	WindowDuration time.Duration `mapstructure:"window_duration"` // length of one window file
	RefreshRate    float64       `mapstructure:"refresh_rate"`    // display tick, Hz
	DataDir        string        `mapstructure:"data_dir"`
	PollInterval   time.Duration `mapstructure:"poll_interval"` // idle wait between status polls
	DrainTimeout   time.Duration `mapstructure:"drain_timeout"` // grace period for in-flight writes

	Source  SourceSettings  `mapstructure:"source"`
	Display DisplaySettings `mapstructure:"display"`
	Log     LogSettings     `mapstructure:"log"`
	Metrics MetricsSettings `mapstructure:"metrics"`
}

type SourceSettings struct {
	Kind string `mapstructure:"kind"`
	Port string `mapstructure:"port"`
	Baud int    `mapstructure:"baud"`
}

type DisplaySettings struct {
	NFFT     int `mapstructure:"nfft"`
	Channels int `mapstructure:"channels"` // how many channels get their own view
}

type LogSettings struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type MetricsSettings struct {
	Listen string `mapstructure:"listen"` // empty disables the /metrics endpoint
}

// SetDefaults registers every key so env overrides and flag bindings resolve.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("sample_rate", 1000.0)
	v.SetDefault("channels", 2)
	v.SetDefault("window_duration", time.Second)
	v.SetDefault("refresh_rate", 10.0)
	v.SetDefault("data_dir", "./data")
	v.SetDefault("poll_interval", time.Millisecond)
	v.SetDefault("drain_timeout", 2*time.Second)

	v.SetDefault("source.kind", SourceSim)
	v.SetDefault("source.port", "")
	v.SetDefault("source.baud", 460800)

	v.SetDefault("display.nfft", 1024)
	v.SetDefault("display.channels", 2)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("metrics.listen", "")
}

// NewViper returns a viper instance with defaults, env binding and the optional
// config.yaml search path wired up.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.daqscan")

	return v
}

// Load reads the optional config file and decodes everything into Settings.
func Load(v *viper.Viper) (*Settings, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("cannot decode config: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate reports every invalid value at once.
func (s *Settings) Validate() error {
	var err error

	if s.SampleRate <= 0 || math.IsNaN(s.SampleRate) || math.IsInf(s.SampleRate, 0) {
		err = multierr.Append(err, fmt.Errorf("sample_rate must be a positive number, got %v", s.SampleRate))
	} else if period(s.SampleRate) <= 0 {
		err = multierr.Append(err, fmt.Errorf("sample_rate %v Hz has a period below 1ns", s.SampleRate))
	}
	if s.Channels <= 0 {
		err = multierr.Append(err, fmt.Errorf("channels must be positive, got %d", s.Channels))
	}
	if s.WindowDuration <= 0 {
		err = multierr.Append(err, fmt.Errorf("window_duration must be positive, got %v", s.WindowDuration))
	}
	if s.SampleRate > 0 && s.WindowDuration > 0 && s.RowsPerWindow() < 1 {
		err = multierr.Append(err, fmt.Errorf("window_duration %v holds no samples at %v Hz", s.WindowDuration, s.SampleRate))
	}
	if s.RefreshRate <= 0 || math.IsNaN(s.RefreshRate) || math.IsInf(s.RefreshRate, 0) {
		err = multierr.Append(err, fmt.Errorf("refresh_rate must be a positive number, got %v", s.RefreshRate))
	} else if period(s.RefreshRate) <= 0 {
		err = multierr.Append(err, fmt.Errorf("refresh_rate %v Hz has a period below 1ns", s.RefreshRate))
	}
	if strings.TrimSpace(s.DataDir) == "" {
		err = multierr.Append(err, errors.New("data_dir must not be empty"))
	}
	if s.PollInterval < 0 {
		err = multierr.Append(err, fmt.Errorf("poll_interval must not be negative, got %v", s.PollInterval))
	}
	if s.DrainTimeout < 0 {
		err = multierr.Append(err, fmt.Errorf("drain_timeout must not be negative, got %v", s.DrainTimeout))
	}

	switch s.Source.Kind {
	case SourceSim:
	case SourceSerial:
		if s.Source.Baud <= 0 {
			err = multierr.Append(err, fmt.Errorf("source.baud must be positive, got %d", s.Source.Baud))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("source.kind must be %q or %q, got %q", SourceSim, SourceSerial, s.Source.Kind))
	}

	if s.Display.NFFT < 2 {
		err = multierr.Append(err, fmt.Errorf("display.nfft must be at least 2, got %d", s.Display.NFFT))
	}
	if s.Display.Channels <= 0 || (s.Channels > 0 && s.Display.Channels > s.Channels) {
		err = multierr.Append(err, fmt.Errorf("display.channels must be between 1 and %d, got %d", s.Channels, s.Display.Channels))
	}

	return err
}

// RowsPerWindow is the number of sample rows that make up one window file.
func (s *Settings) RowsPerWindow() int {
	return int(math.Round(s.SampleRate * s.WindowDuration.Seconds()))
}

// RefreshInterval is the display tick period.
func (s *Settings) RefreshInterval() time.Duration {
	return period(s.RefreshRate)
}

func period(rate float64) time.Duration {
	return time.Duration(float64(time.Second) / rate)
}
