package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func validSettings() Settings {
	return Settings{
		SampleRate:     10,
		Channels:       3,
		WindowDuration: 2 * time.Second,
		RefreshRate:    4,
		DataDir:        "/tmp/daq",
		PollInterval:   time.Millisecond,
		DrainTimeout:   time.Second,
		Source:         SourceSettings{Kind: SourceSim, Baud: 460800},
		Display:        DisplaySettings{NFFT: 256, Channels: 2},
		Log:            LogSettings{Level: "info"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{name: "valid", mutate: func(s *Settings) {}},
		{name: "zero rate", mutate: func(s *Settings) { s.SampleRate = 0 }, wantErr: "sample_rate"},
		{name: "no channels", mutate: func(s *Settings) { s.Channels = 0 }, wantErr: "channels must be positive"},
		{name: "zero window", mutate: func(s *Settings) { s.WindowDuration = 0 }, wantErr: "window_duration must be positive"},
		{name: "window too short", mutate: func(s *Settings) { s.WindowDuration = 10 * time.Millisecond }, wantErr: "holds no samples"},
		{name: "zero refresh", mutate: func(s *Settings) { s.RefreshRate = 0 }, wantErr: "refresh_rate"},
		{name: "refresh period below 1ns", mutate: func(s *Settings) { s.RefreshRate = 2e9 }, wantErr: "refresh_rate 2e+09 Hz has a period below 1ns"},
		{name: "sample period below 1ns", mutate: func(s *Settings) { s.SampleRate = 1e10 }, wantErr: "sample_rate 1e+10 Hz has a period below 1ns"},
		{name: "empty dir", mutate: func(s *Settings) { s.DataDir = " " }, wantErr: "data_dir"},
		{name: "bad source", mutate: func(s *Settings) { s.Source.Kind = "usb" }, wantErr: "source.kind"},
		{name: "serial without baud", mutate: func(s *Settings) { s.Source.Kind = SourceSerial; s.Source.Baud = 0 }, wantErr: "source.baud"},
		{name: "tiny nfft", mutate: func(s *Settings) { s.Display.NFFT = 1 }, wantErr: "display.nfft"},
		{name: "too many views", mutate: func(s *Settings) { s.Display.Channels = 4 }, wantErr: "display.channels"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateReportsAllErrors(t *testing.T) {
	s := validSettings()
	s.SampleRate = -1
	s.Channels = 0
	s.DataDir = ""

	err := s.Validate()
	require.Error(t, err)
	assert.GreaterOrEqual(t, len(multierr.Errors(err)), 3)
}

func TestRowsPerWindow(t *testing.T) {
	s := validSettings()
	assert.Equal(t, 20, s.RowsPerWindow())

	s.SampleRate = 3
	s.WindowDuration = 1500 * time.Millisecond
	assert.Equal(t, 5, s.RowsPerWindow()) // 4.5 rounds up

	s.RefreshRate = 4
	assert.Equal(t, 250*time.Millisecond, s.RefreshInterval())
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := "sample_rate: 10\nchannels: 3\nwindow_duration: 2s\ndisplay:\n  nfft: 64\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("DAQSCAN_DATA_DIR", "/var/lib/daq")

	v := NewViper()
	v.AddConfigPath(dir)

	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 10.0, s.SampleRate)
	assert.Equal(t, 3, s.Channels)
	assert.Equal(t, 2*time.Second, s.WindowDuration)
	assert.Equal(t, 64, s.Display.NFFT)
	assert.Equal(t, "/var/lib/daq", s.DataDir)
	assert.Equal(t, SourceSim, s.Source.Kind)
}

func TestLoadWithoutConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())

	s, err := Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, 1000.0, s.SampleRate)
	assert.Equal(t, 1000, s.RowsPerWindow())
}
