// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

// Package marker persists the completion record of a transfer run. A
// marker is written next to the run's log output after the pipeline
// finishes; downstream automation (and the next invocation) reads it
// to decide whether a directory still needs work.
//
// The marker file is written atomically (write to temporary file,
// fsync, rename) so a reader never sees a partial or corrupt record,
// even if the uploader host loses power mid-write.
package marker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fieldlog/baghaul/lib/pipeline"
)

// Marker records the outcome of one pipeline run over one source
// directory.
type Marker struct {
	// Version is the uploader build that produced this marker.
	Version string `json:"version"`

	// SourceDir is the local directory the run covered.
	SourceDir string `json:"source_dir"`

	// RemoteDir is the destination directory on the upload host.
	RemoteDir string `json:"remote_dir"`

	// WrittenAt is when the marker was persisted.
	WrittenAt time.Time `json:"written_at"`

	// Report is the full per-file accounting of the run.
	Report *pipeline.Report `json:"report"`
}

// Complete reports whether the recorded run finished with every file
// verified. A directory with a complete marker needs no further
// transfer work unless new files appear.
func (m *Marker) Complete() bool {
	return m.Report != nil && m.Report.Complete() && m.Report.Failed == 0
}

// Write atomically persists the marker. The file is written to a
// temporary path in the same directory, fsynced, and renamed into
// place. The parent directory must exist.
func Write(path string, m *Marker) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling marker: %w", err)
	}
	data = append(data, '\n')

	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating temporary marker file: %w", err)
	}

	// Write, sync, close — in that order. If any step fails, remove
	// the temporary file and report the first error.
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary marker file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary marker file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary marker file: %w", err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming marker file into place: %w", err)
	}

	// Sync the parent directory so the rename survives a power loss
	// before the OS flushes directory metadata.
	parentDirectory, err := os.Open(filepath.Dir(path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}

	return nil
}

// Read parses a marker file. When the file does not exist, the
// returned error wraps os.ErrNotExist (testable with errors.Is).
func Read(path string) (*Marker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing marker file %s: %w", path, err)
	}
	return &m, nil
}

// IsComplete reports whether path holds a marker for a fully verified
// run. A missing or unreadable marker counts as incomplete.
func IsComplete(path string) bool {
	m, err := Read(path)
	if err != nil {
		// Missing or corrupt markers count as absent; the run is
		// simply repeated.
		return false
	}
	return m.Complete()
}

// FileName is the marker's base name inside a source directory.
const FileName = ".baghaul_complete.json"

// PathFor returns the marker path for a source directory.
func PathFor(sourceDir string) string {
	return filepath.Join(sourceDir, FileName)
}
