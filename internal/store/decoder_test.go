package store

import (
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFiveRowsThreeChannels(t *testing.T) {
	input := "1,10,100\n2,20,200\n3,30,300\n4,40,400\n5,50,500\n"

	series, err := Decode(strings.NewReader(input), 3)
	require.NoError(t, err)
	require.Len(t, series, 3)
	for _, s := range series {
		assert.Len(t, s, 5)
	}
	assert.Equal(t, ChannelSeries{10, 20, 30, 40, 50}, series[1])
}

func TestDecodeMalformedRow(t *testing.T) {
	input := "1,10,100\n2,20\n3,30,300\n"

	series, err := Decode(strings.NewReader(input), 3)
	assert.Nil(t, series)

	var malformed *MalformedRowError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, 2, malformed.Line)
	assert.Equal(t, 2, malformed.Fields)
	assert.Equal(t, 3, malformed.Want)
}

func TestDecodeParseError(t *testing.T) {
	series, err := Decode(strings.NewReader("1,2\n3,x\n"), 2)
	assert.Nil(t, series)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, 2, parseErr.Line)
	assert.Equal(t, 1, parseErr.Column)
	assert.Equal(t, "x", parseErr.Field)
}

func TestDecodeToleratesCRLFAndSpaces(t *testing.T) {
	series, err := Decode(strings.NewReader("1, 2\r\n3 ,4\r\n"), 2)
	require.NoError(t, err)
	assert.Equal(t, []ChannelSeries{{1, 3}, {2, 4}}, series)
}

func TestDecodeBlankRowFailsFile(t *testing.T) {
	series, err := Decode(strings.NewReader("1,10\n\n2,20\n"), 2)
	assert.Nil(t, series)

	var malformed *MalformedRowError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, 2, malformed.Line)
	assert.Equal(t, 1, malformed.Fields)

	// with a single channel the blank field is a parse failure instead
	series, err = Decode(strings.NewReader("1\n\n2\n"), 1)
	assert.Nil(t, series)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, 2, parseErr.Line)
	assert.Equal(t, "", parseErr.Field)
}

func TestDecodeExtraColumnsIgnored(t *testing.T) {
	series, err := Decode(strings.NewReader("1,2,3\n4,5,6\n"), 2)
	require.NoError(t, err)
	assert.Equal(t, []ChannelSeries{{1, 4}, {2, 5}}, series)
}

func TestDecodeChannel(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/d/1.0.txt", []byte("1,2\n3,4\n"), 0644))
	file := WindowFile{Name: "1.0.txt", Path: "/d/1.0.txt", Start: 1}

	s, err := DecodeChannel(fs, file, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, ChannelSeries{2, 4}, s)

	_, err = DecodeChannel(fs, file, 2, 2)
	assert.Error(t, err)

	_, err = DecodeChannel(fs, WindowFile{Path: "/d/missing.txt"}, 2, 0)
	assert.Error(t, err)
}
