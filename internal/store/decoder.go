package store

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

const fieldSeparator = ","

type MalformedRowError struct {
	Line   int
	Fields int
	Want   int
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("malformed row at line %d: %d fields, want %d", e.Line, e.Fields, e.Want)
}

type ParseError struct {
	Line   int
	Column int
	Field  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d column %d: cannot parse %q: %v", e.Line, e.Column, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Decode reads one window file and returns channelCount series of equal length.
// Any bad row aborts the whole file: skipping rows would misalign the channels.
func Decode(r io.Reader, channelCount int) ([]ChannelSeries, error) {
	if channelCount <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", channelCount)
	}

	series := make([]ChannelSeries, channelCount)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")

		fields := strings.Split(text, fieldSeparator)
		if len(fields) < channelCount {
			return nil, &MalformedRowError{Line: line, Fields: len(fields), Want: channelCount}
		}

		for c := 0; c < channelCount; c++ {
			field := strings.TrimSpace(fields[c])
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, &ParseError{Line: line, Column: c, Field: field, Err: err}
			}
			series[c] = append(series[c], v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return series, nil
}

// DecodeFile opens file on fs and decodes it.
func DecodeFile(fs afero.Fs, file WindowFile, channelCount int) ([]ChannelSeries, error) {
	f, err := fs.Open(file.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(f, channelCount)
}

// DecodeChannel returns a single channel of file.
func DecodeChannel(fs afero.Fs, file WindowFile, channelCount, channel int) (ChannelSeries, error) {
	if channel < 0 || channel >= channelCount {
		return nil, fmt.Errorf("channel %d outside 0..%d", channel, channelCount-1)
	}
	series, err := DecodeFile(fs, file, channelCount)
	if err != nil {
		return nil, err
	}
	return series[channel], nil
}
