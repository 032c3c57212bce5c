package store

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, fs afero.Fs, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, afero.WriteFile(fs, dir+"/"+name, []byte("1\n"), 0644))
	}
}

func TestSelectReturnsSecondNewest(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs, "/data", "100.0.txt", "101.0.txt", "102.0.txt")

	file, ok, err := Select(fs, "/data")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "101.0.txt", file.Name)
	assert.Equal(t, "/data/101.0.txt", file.Path)
	assert.Equal(t, 101.0, file.Start)
}

func TestSelectNoDataYet(t *testing.T) {
	tests := []struct {
		name  string
		files []string
	}{
		{name: "empty", files: nil},
		{name: "one window", files: []string{"100.0.txt"}},
		{name: "one window plus noise", files: []string{"100.0.txt", "notes.txt", ".101.0.txt.tmp", "101.0.csv"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, fs.MkdirAll("/data", 0755))
			touch(t, fs, "/data", tt.files...)

			_, ok, err := Select(fs, "/data")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestSelectOrdersNumerically(t *testing.T) {
	fs := afero.NewMemMapFs()
	// lexically "1000.0" < "998.0" < "999.0"; by time it is the other way round
	touch(t, fs, "/data", "998.0.txt", "999.0.txt", "1000.0.txt")

	file, ok, err := Select(fs, "/data")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "999.0.txt", file.Name)
}

func TestSelectIgnoresDirectories(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs, "/data", "100.0.txt", "101.0.txt")
	require.NoError(t, fs.MkdirAll("/data/200.0.txt", 0755))

	file, ok, err := Select(fs, "/data")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "100.0.txt", file.Name)
}

func TestSelectMissingDirectory(t *testing.T) {
	_, ok, err := Select(afero.NewMemMapFs(), "/nope")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestParseWindowName(t *testing.T) {
	start, ok := ParseWindowName("1760860800.500000.txt")
	assert.True(t, ok)
	assert.Equal(t, 1760860800.5, start)

	start, ok = ParseWindowName("42.txt")
	assert.True(t, ok)
	assert.Equal(t, 42.0, start)

	for _, name := range []string{"a.txt", "1.2.3.txt", "100.0.txt.tmp", ".100.0.txt", "100.0.TXT"} {
		_, ok := ParseWindowName(name)
		assert.False(t, ok, name)
	}
}
