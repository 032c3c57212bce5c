// Package store is the file-mediated handoff between acquisition and display.
//
// The producer persists one text file per time window, named by the window's
// start time; readers find the newest file that is guaranteed complete by
// listing the directory. No locks are shared between the two sides.
package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/afero"
)

const WindowExt = ".txt"

// SampleRow holds one value per channel for a single sampling instant.
type SampleRow []float64

// ChannelSeries is one channel's values from one window file, in row order.
type ChannelSeries []float64

// WindowFile identifies a persisted window.
type WindowFile struct {
	Name  string  // base name, e.g. 1760860800.000000.txt
	Path  string  // path within the store filesystem
	Start float64 // window start, seconds since the Unix epoch
}

type Store struct {
	fs  afero.Fs
	dir string
}

// New returns a store rooted at dir on fs, creating dir if needed.
func New(fs afero.Fs, dir string) (*Store, error) {
	if exists, _ := afero.DirExists(fs, dir); !exists {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
		}
	}
	return &Store{fs: fs, dir: dir}, nil
}

// Open returns a store over an existing or future dir without touching fs.
// Readers use it, typically over afero.NewReadOnlyFs.
func Open(fs afero.Fs, dir string) *Store {
	return &Store{fs: fs, dir: dir}
}

func (s *Store) Fs() afero.Fs {
	return s.fs
}

func (s *Store) Dir() string {
	return s.dir
}

// WindowName formats a window start so that lexical order equals time order:
// ten integer digits cover starts until the year 2286.
func WindowName(start time.Time) string {
	return fmt.Sprintf("%010d.%06d%s", start.Unix(), start.Nanosecond()/int(time.Microsecond), WindowExt)
}

// Write persists rows under name. Rows land in a hidden temp file that is renamed
// into place after a successful close, so the name only ever refers to a complete file.
func (s *Store) Write(name string, rows []SampleRow) (err error) {
	final := filepath.Join(s.dir, name)
	tmp := filepath.Join(s.dir, "."+name+".tmp")

	file, err := s.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			_ = s.fs.Remove(tmp)
		}
	}()

	writer := bufio.NewWriter(file)
	if err := writeRows(writer, rows); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("flushing %s: %w", tmp, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp, err)
	}

	if err := s.fs.Rename(tmp, final); err != nil {
		return fmt.Errorf("publishing %s: %w", final, err)
	}
	return nil
}

func writeRows(w *bufio.Writer, rows []SampleRow) error {
	line := make([]byte, 0, 256)
	for _, row := range rows {
		line = line[:0]
		for i, v := range row {
			if i > 0 {
				line = append(line, ',')
			}
			line = strconv.AppendFloat(line, v, 'g', -1, 64)
		}
		line = append(line, '\n')
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	return nil
}

// Select returns the newest complete window in this store.
func (s *Store) Select() (WindowFile, bool, error) {
	return Select(s.fs, s.dir)
}
