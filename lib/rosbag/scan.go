// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

package rosbag

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fieldlog/baghaul/lib/clock"
)

// ErrDirectoryNotFound reports that a scan target does not exist.
// This is a run-level error: the pipeline aborts before creating any
// jobs, rather than treating a mistyped path as an empty directory.
var ErrDirectoryNotFound = errors.New("directory not found")

// Scan enumerates the files in dir whose base name matches pattern
// (a filepath.Match pattern). Results are ordered by base name
// ascending, so repeated scans of an unchanged directory yield a
// repeatable processing order. An existing directory with no matches
// yields an empty slice and no error.
func Scan(dir, pattern string, clk clock.Clock) ([]*File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
		}
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving directory %s: %w", dir, err)
	}

	now := clk.Now()
	var files []*File
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matched, err := filepath.Match(pattern, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("matching pattern %q: %w", pattern, err)
		}
		if !matched {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("reading file info for %s: %w", entry.Name(), err)
		}
		files = append(files, &File{
			Path:         filepath.Join(absDir, entry.Name()),
			Size:         info.Size(),
			DiscoveredAt: now,
		})
	}

	sortFiles(files)
	return files, nil
}

// ScanTree returns every directory beneath root (root included) that
// directly contains at least one file matching pattern, sorted
// ascending. Recordings are processed directory by directory, so this
// is the top-level discovery step.
func ScanTree(root, pattern string) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, root)
		}
		return nil, fmt.Errorf("reading directory %s: %w", root, err)
	}

	seen := make(map[string]bool)
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			// Hidden directories hold uploader state (staging
			// areas), never recordings.
			if path != root && strings.HasPrefix(entry.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		matched, err := filepath.Match(pattern, entry.Name())
		if err != nil {
			return fmt.Errorf("matching pattern %q: %w", pattern, err)
		}
		if matched {
			seen[filepath.Dir(path)] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	dirs := make([]string, 0, len(seen))
	for dir := range seen {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolving directory %s: %w", dir, err)
		}
		dirs = append(dirs, abs)
	}
	sort.Strings(dirs)
	return dirs, nil
}

// MetadataPath returns the path of the recording's metadata.yaml
// sidecar, or "" when the directory has none.
func MetadataPath(dir string) string {
	path := filepath.Join(dir, MetadataFileName)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}
	return path
}
