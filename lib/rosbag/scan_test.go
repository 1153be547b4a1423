// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

package rosbag

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fieldlog/baghaul/lib/clock"
)

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestScanOrdersByName(t *testing.T) {
	dir := t.TempDir()
	// Write out of order to prove ordering comes from the scanner.
	writeFile(t, filepath.Join(dir, "run_3.mcap"), []byte("ccc"))
	writeFile(t, filepath.Join(dir, "run_1.mcap"), []byte("a"))
	writeFile(t, filepath.Join(dir, "run_2.mcap"), []byte("bb"))
	writeFile(t, filepath.Join(dir, "notes.txt"), []byte("ignored"))

	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	files, err := Scan(dir, "*.mcap", clock.Fake(start))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	wantNames := []string{"run_1.mcap", "run_2.mcap", "run_3.mcap"}
	if len(files) != len(wantNames) {
		t.Fatalf("Scan returned %d files, want %d", len(files), len(wantNames))
	}
	for i, want := range wantNames {
		if files[i].Name() != want {
			t.Errorf("files[%d].Name() = %q, want %q", i, files[i].Name(), want)
		}
	}
	if files[1].Size != 2 {
		t.Errorf("files[1].Size = %d, want 2", files[1].Size)
	}
	if !files[0].DiscoveredAt.Equal(start) {
		t.Errorf("DiscoveredAt = %v, want %v", files[0].DiscoveredAt, start)
	}
	if !filepath.IsAbs(files[0].Path) {
		t.Errorf("Path %q is not absolute", files[0].Path)
	}
}

func TestScanEmptyDirectory(t *testing.T) {
	files, err := Scan(t.TempDir(), "*.mcap", clock.Real())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("Scan of empty directory returned %d files, want 0", len(files))
	}
}

func TestScanMissingDirectory(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "absent"), "*.mcap", clock.Real())
	if !errors.Is(err, ErrDirectoryNotFound) {
		t.Fatalf("Scan error = %v, want ErrDirectoryNotFound", err)
	}
}

func TestScanTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "session_b", "run_1.mcap"), []byte("x"))
	writeFile(t, filepath.Join(root, "session_a", "run_1.mcap"), []byte("x"))
	writeFile(t, filepath.Join(root, "session_a", "nested", "run_2.mcap"), []byte("x"))
	writeFile(t, filepath.Join(root, "empty_session", "notes.txt"), []byte("x"))

	dirs, err := ScanTree(root, "*.mcap")
	if err != nil {
		t.Fatalf("ScanTree: %v", err)
	}

	want := []string{
		filepath.Join(root, "session_a"),
		filepath.Join(root, "session_a", "nested"),
		filepath.Join(root, "session_b"),
	}
	if len(dirs) != len(want) {
		t.Fatalf("ScanTree returned %v, want %v", dirs, want)
	}
	for i := range want {
		if dirs[i] != want[i] {
			t.Errorf("dirs[%d] = %q, want %q", i, dirs[i], want[i])
		}
	}
}

func TestScanTreeSkipsHiddenDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "session_a", "run_1.mcap"), []byte("x"))
	// Leftover staging state from an interrupted run must not be
	// rediscovered as a recording.
	writeFile(t, filepath.Join(root, "session_a", ".baghaul_staging", "run_1.mcap"), []byte("x"))

	dirs, err := ScanTree(root, "*.mcap")
	if err != nil {
		t.Fatalf("ScanTree: %v", err)
	}
	want := []string{filepath.Join(root, "session_a")}
	if len(dirs) != 1 || dirs[0] != want[0] {
		t.Fatalf("ScanTree returned %v, want %v", dirs, want)
	}
}

func TestScanTreeMissingRoot(t *testing.T) {
	_, err := ScanTree(filepath.Join(t.TempDir(), "absent"), "*.mcap")
	if !errors.Is(err, ErrDirectoryNotFound) {
		t.Fatalf("ScanTree error = %v, want ErrDirectoryNotFound", err)
	}
}

func TestFingerprintCached(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run_1.mcap")
	writeFile(t, path, []byte("sensor data"))

	file := &File{Path: path, Size: 11}
	first, err := file.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}

	// Changing the file after the first fingerprint must not change
	// the cached digest: the fingerprint identifies the content the
	// scanner discovered.
	writeFile(t, path, []byte("different content"))
	second, err := file.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint (second call): %v", err)
	}
	if first != second {
		t.Error("Fingerprint changed between calls, want cached digest")
	}
}

func TestFingerprintMatchesHashReader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run_1.mcap")
	content := []byte("the same bytes either way")
	writeFile(t, path, content)

	file := &File{Path: path}
	fromFile, err := file.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening fixture: %v", err)
	}
	defer f.Close()
	fromReader, err := HashReader(f)
	if err != nil {
		t.Fatalf("HashReader: %v", err)
	}

	if fromFile != fromReader {
		t.Errorf("Fingerprint = %s, HashReader = %s, want equal",
			FormatDigest(fromFile), FormatDigest(fromReader))
	}
}

func TestMetadataPath(t *testing.T) {
	dir := t.TempDir()
	if got := MetadataPath(dir); got != "" {
		t.Errorf("MetadataPath of bare directory = %q, want empty", got)
	}

	want := filepath.Join(dir, MetadataFileName)
	writeFile(t, want, []byte("rosbag2_bagfile_information: {}"))
	if got := MetadataPath(dir); got != want {
		t.Errorf("MetadataPath = %q, want %q", got, want)
	}
}
