// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

// Package rosbag models recorded log files on disk and discovers them
// for the transfer pipeline.
//
// A recording session produces a directory holding one or more bag
// files plus an optional metadata.yaml sidecar. [ScanTree] locates the
// recording directories beneath a root; [Scan] enumerates the bag
// files of one directory in deterministic order.
package rosbag

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/zeebo/blake3"
)

// MetadataFileName is the per-recording sidecar written by the
// recorder. When present it is transferred before the bag files so
// the remote copy of a recording is self-describing from the start.
const MetadataFileName = "metadata.yaml"

// File is one discovered bag file. Identity is the absolute source
// path. A File is immutable once discovered; downstream records
// reference it, never mutate it.
type File struct {
	// Path is the absolute path of the file.
	Path string

	// Size is the file size in bytes at discovery time.
	Size int64

	// DiscoveredAt is when the scanner found the file.
	DiscoveredAt time.Time

	fingerprintOnce sync.Once
	fingerprint     [32]byte
	fingerprintErr  error
}

// Name returns the base name of the file.
func (f *File) Name() string { return filepath.Base(f.Path) }

// Fingerprint returns the BLAKE3 digest of the file content. The
// digest is computed on first call and cached; concurrent callers
// share one computation.
func (f *File) Fingerprint() ([32]byte, error) {
	f.fingerprintOnce.Do(func() {
		f.fingerprint, f.fingerprintErr = hashFile(f.Path)
	})
	return f.fingerprint, f.fingerprintErr
}

func hashFile(path string) ([32]byte, error) {
	var digest [32]byte

	file, err := os.Open(path)
	if err != nil {
		return digest, fmt.Errorf("opening %s for fingerprint: %w", path, err)
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return digest, fmt.Errorf("fingerprinting %s: %w", path, err)
	}
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}

// HashReader returns the BLAKE3 digest of everything readable from r.
// The verifier uses this on compressed artifacts; it is the same
// digest an on-remote "b3sum" produces.
func HashReader(r io.Reader) ([32]byte, error) {
	var digest [32]byte
	hasher := blake3.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return digest, err
	}
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}

// FormatDigest renders a digest as lowercase hex, the form used in
// logs, reports, and remote hash comparison.
func FormatDigest(digest [32]byte) string {
	return hex.EncodeToString(digest[:])
}

// sortFiles orders files by base name ascending. Repeated scans of an
// unchanged directory therefore yield the same processing order.
func sortFiles(files []*File) {
	sort.Slice(files, func(i, j int) bool {
		return files[i].Name() < files[j].Name()
	})
}
