package store

import (
	"cmp"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

var windowNamePattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?\.txt$`)

// ParseWindowName reports whether name is a window file and its start time.
func ParseWindowName(name string) (float64, bool) {
	if !windowNamePattern.MatchString(name) {
		return 0, false
	}
	start, err := strconv.ParseFloat(strings.TrimSuffix(name, WindowExt), 64)
	if err != nil {
		return 0, false
	}
	return start, true
}

// List returns the window files in dir ordered by start time, oldest first.
// Names are compared by value, so unpadded names such as 99.5.txt and 100.0.txt
// still order correctly.
func List(fs afero.Fs, dir string) ([]WindowFile, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	files := make([]WindowFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		start, ok := ParseWindowName(entry.Name())
		if !ok {
			continue
		}
		files = append(files, WindowFile{
			Name:  entry.Name(),
			Path:  filepath.Join(dir, entry.Name()),
			Start: start,
		})
	}

	slices.SortFunc(files, func(a, b WindowFile) int {
		if c := cmp.Compare(a.Start, b.Start); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return files, nil
}

// Select returns the second-newest window file in dir. The newest one may still
// be in the middle of being written, so it is never returned. ok is false when
// fewer than two window files exist, which just means no data yet.
func Select(fs afero.Fs, dir string) (WindowFile, bool, error) {
	files, err := List(fs, dir)
	if err != nil {
		return WindowFile{}, false, err
	}
	if len(files) < 2 {
		return WindowFile{}, false, nil
	}
	return files[len(files)-2], true, nil
}
