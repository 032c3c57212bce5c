package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daq.logs")

	l, err := NewLogger(path, "info")
	require.NoError(t, err)

	l.Info("[test] hello")
	l.Debug("[test] filtered out")
	Flush(l)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"[test] hello"`)
	assert.NotContains(t, string(data), "filtered out")
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger("", "loud")
	assert.Error(t, err)
}
