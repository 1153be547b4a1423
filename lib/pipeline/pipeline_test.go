// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fieldlog/baghaul/lib/bandwidth"
	"github.com/fieldlog/baghaul/lib/compress"
	"github.com/fieldlog/baghaul/lib/rosbag"
	"github.com/fieldlog/baghaul/lib/transport"
)

// fakeTransport is an in-memory remote. Hooks script per-call
// failures; with no hooks every operation succeeds.
type fakeTransport struct {
	mu        sync.Mutex
	dirs      map[string]bool
	remote    map[string]int64
	pushCalls map[string]int

	// mkdirErr, pushErr, and statSize inject failures. pushErr and
	// statSize receive the 1-based call count for their remote path.
	mkdirErr func() error
	pushErr  func(remote string, call int) error
	statSize func(remote string, call int, stored int64) int64

	// pushGate, when set, blocks every push until the gate closes.
	pushGate chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		dirs:      make(map[string]bool),
		remote:    make(map[string]int64),
		pushCalls: make(map[string]int),
	}
}

func (f *fakeTransport) MkdirAll(ctx context.Context, dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mkdirErr != nil {
		if err := f.mkdirErr(); err != nil {
			return err
		}
	}
	f.dirs[dir] = true
	return nil
}

func (f *fakeTransport) Push(ctx context.Context, localPath, remotePath string) error {
	f.mu.Lock()
	gate := f.pushGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	f.pushCalls[remotePath]++
	call := f.pushCalls[remotePath]
	hook := f.pushErr
	f.mu.Unlock()

	if hook != nil {
		if err := hook(remotePath, call); err != nil {
			return err
		}
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return transport.Fatal(fmt.Errorf("reading %s: %w", localPath, err))
	}
	f.mu.Lock()
	f.remote[remotePath] = info.Size()
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Stat(ctx context.Context, remotePath string) (transport.RemoteFileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	size, ok := f.remote[remotePath]
	if !ok {
		return transport.RemoteFileInfo{}, transport.Transient(fmt.Errorf("stat %s: no such file", remotePath))
	}
	if f.statSize != nil {
		size = f.statSize(remotePath, f.pushCalls[remotePath], size)
	}
	return transport.RemoteFileInfo{Size: size}, nil
}

func (f *fakeTransport) pushCount(remotePath string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pushCalls[remotePath]
}

// hashingTransport extends fakeTransport with the remote hash
// capability, storing pushed content so digests are real.
type hashingTransport struct {
	*fakeTransport

	hashMu    sync.Mutex
	content   map[string][]byte
	hashCalls map[string]int

	// hashHook can corrupt the reported digest. Receives the 1-based
	// call count for the remote path and the true digest.
	hashHook func(remote string, call int, digest string) string

	// afterPush runs after each successful push with the local path,
	// outside any lock.
	afterPush func(localPath string)
}

func newHashingTransport() *hashingTransport {
	return &hashingTransport{
		fakeTransport: newFakeTransport(),
		content:       make(map[string][]byte),
		hashCalls:     make(map[string]int),
	}
}

func (h *hashingTransport) Push(ctx context.Context, localPath, remotePath string) error {
	if err := h.fakeTransport.Push(ctx, localPath, remotePath); err != nil {
		return err
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return transport.Fatal(fmt.Errorf("reading %s: %w", localPath, err))
	}
	h.hashMu.Lock()
	h.content[remotePath] = data
	h.hashMu.Unlock()
	if h.afterPush != nil {
		h.afterPush(localPath)
	}
	return nil
}

func (h *hashingTransport) Hash(ctx context.Context, remotePath string) (string, error) {
	h.hashMu.Lock()
	data, ok := h.content[remotePath]
	h.hashCalls[remotePath]++
	call := h.hashCalls[remotePath]
	hook := h.hashHook
	h.hashMu.Unlock()

	if !ok {
		return "", transport.Transient(fmt.Errorf("hash %s: no such file", remotePath))
	}
	digest, err := rosbag.HashReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	formatted := rosbag.FormatDigest(digest)
	if hook != nil {
		formatted = hook(remotePath, call, formatted)
	}
	return formatted, nil
}

func (h *hashingTransport) hashCount(remotePath string) int {
	h.hashMu.Lock()
	defer h.hashMu.Unlock()
	return h.hashCalls[remotePath]
}

// writeBags creates n small distinct .mcap files and returns them in
// scan order.
func writeBags(t *testing.T, dir string, n int) []*rosbag.File {
	t.Helper()
	files := make([]*rosbag.File, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("run_%04d.mcap", i)
		content := []byte(fmt.Sprintf("bag %d payload padding padding padding\n", i))
		full := filepath.Join(dir, name)
		if err := os.WriteFile(full, content, 0644); err != nil {
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
		files[i] = &rosbag.File{Path: full, Size: int64(len(content)), DiscoveredAt: time.Now()}
	}
	return files
}

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		StagingDir:         filepath.Join(t.TempDir(), "staging"),
		RemoteDir:          "/remote/bags",
		CompressionWorkers: 2,
		QueueCapacity:      2,
		TransferWorkers:    1,
		UploadAttempts:     3,
		RetryBackoff:       time.Millisecond,
	}
}

func newTestPipeline(t *testing.T, opts Options, transporter transport.Transporter) *Pipeline {
	t.Helper()
	p, err := New(opts, Deps{
		Compressor:  &compress.Zstd{},
		Transporter: transporter,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func outcomeFor(t *testing.T, report *Report, file *rosbag.File) Outcome {
	t.Helper()
	for _, outcome := range report.Outcomes {
		if outcome.Path == file.Path {
			return outcome
		}
	}
	t.Fatalf("no outcome for %s", file.Path)
	return Outcome{}
}

func TestRunAllVerified(t *testing.T) {
	files := writeBags(t, t.TempDir(), 5)
	transporter := newFakeTransport()
	p := newTestPipeline(t, testOptions(t), transporter)

	report, err := p.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Verified != 5 || report.Failed != 0 {
		t.Fatalf("Verified = %d, Failed = %d, want 5, 0", report.Verified, report.Failed)
	}
	if !report.Complete() {
		t.Error("Complete() = false, want true")
	}
	if !report.Succeeded(false) {
		t.Error("Succeeded(false) = false, want true")
	}
	if got := len(report.Outcomes); got != 5 {
		t.Fatalf("len(Outcomes) = %d, want 5", got)
	}
	for _, outcome := range report.Outcomes {
		if outcome.State != "Verified" {
			t.Errorf("%s state = %s, want Verified", outcome.Path, outcome.State)
		}
		if outcome.Attempts != 1 {
			t.Errorf("%s attempts = %d, want 1", outcome.Path, outcome.Attempts)
		}
		if outcome.BytesCompressed == 0 {
			t.Errorf("%s has no compressed size", outcome.Path)
		}
	}
	if len(transporter.remote) != 5 {
		t.Errorf("remote file count = %d, want 5", len(transporter.remote))
	}
	// Cleanup disabled: originals and artifacts remain.
	for _, file := range files {
		if _, err := os.Stat(file.Path); err != nil {
			t.Errorf("original %s removed with cleanup disabled", file.Name())
		}
	}
}

func TestRunOutcomesSortedByPath(t *testing.T) {
	files := writeBags(t, t.TempDir(), 4)
	p := newTestPipeline(t, testOptions(t), newFakeTransport())

	report, err := p.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for i := 1; i < len(report.Outcomes); i++ {
		if report.Outcomes[i-1].Path > report.Outcomes[i].Path {
			t.Fatalf("outcomes not sorted: %s before %s",
				report.Outcomes[i-1].Path, report.Outcomes[i].Path)
		}
	}
}

func TestRunTransientFailureRetries(t *testing.T) {
	files := writeBags(t, t.TempDir(), 5)
	transporter := newFakeTransport()
	target := path.Join("/remote/bags", files[2].Name()+".zst")
	transporter.pushErr = func(remote string, call int) error {
		if remote == target && call == 1 {
			return transport.Transient(fmt.Errorf("connection reset by peer"))
		}
		return nil
	}
	p := newTestPipeline(t, testOptions(t), transporter)

	report, err := p.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Verified != 5 {
		t.Fatalf("Verified = %d, want 5", report.Verified)
	}

	flaky := outcomeFor(t, report, files[2])
	if flaky.Attempts != 2 {
		t.Errorf("flaky file attempts = %d, want 2", flaky.Attempts)
	}
	if flaky.ErrorKind != "" {
		t.Errorf("flaky file error kind = %q, want empty after recovery", flaky.ErrorKind)
	}
	for i, file := range files {
		if i == 2 {
			continue
		}
		if got := outcomeFor(t, report, file).Attempts; got != 1 {
			t.Errorf("%s attempts = %d, want 1", file.Name(), got)
		}
	}
}

func TestRunDestinationUnreachable(t *testing.T) {
	files := writeBags(t, t.TempDir(), 3)
	transporter := newFakeTransport()
	transporter.mkdirErr = func() error {
		return transport.Transient(fmt.Errorf("dial tcp: connection refused"))
	}
	opts := testOptions(t)
	opts.CleanUp = true
	p := newTestPipeline(t, opts, transporter)

	report, err := p.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Failed != 3 || report.Verified != 0 {
		t.Fatalf("Failed = %d, Verified = %d, want 3, 0", report.Failed, report.Verified)
	}
	if report.Succeeded(false) {
		t.Error("Succeeded(false) = true, want false")
	}
	for _, outcome := range report.Outcomes {
		if outcome.ErrorKind != string(KindTransferExhausted) {
			t.Errorf("%s error kind = %q, want %q", outcome.Path, outcome.ErrorKind, KindTransferExhausted)
		}
		if outcome.Attempts != 3 {
			t.Errorf("%s attempts = %d, want 3", outcome.Path, outcome.Attempts)
		}
	}
	// No job was verified, so cleanup must not have touched anything.
	for _, file := range files {
		if _, err := os.Stat(file.Path); err != nil {
			t.Errorf("original %s removed despite failed transfer", file.Name())
		}
	}
	entries, err := os.ReadDir(opts.StagingDir)
	if err != nil {
		t.Fatalf("ReadDir(staging): %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("staged artifact count = %d, want 3 retained", len(entries))
	}
}

func TestRunFatalErrorSkipsRetry(t *testing.T) {
	files := writeBags(t, t.TempDir(), 2)
	transporter := newFakeTransport()
	target := path.Join("/remote/bags", files[0].Name()+".zst")
	transporter.pushErr = func(remote string, call int) error {
		if remote == target {
			return transport.Fatal(fmt.Errorf("permission denied"))
		}
		return nil
	}
	p := newTestPipeline(t, testOptions(t), transporter)

	report, err := p.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	bad := outcomeFor(t, report, files[0])
	if bad.State != "Failed" {
		t.Fatalf("state = %s, want Failed", bad.State)
	}
	if bad.ErrorKind != string(KindTransferFatal) {
		t.Errorf("error kind = %q, want %q", bad.ErrorKind, KindTransferFatal)
	}
	if bad.Attempts != 1 {
		t.Errorf("attempts = %d, want 1 (fatal errors are not retried)", bad.Attempts)
	}
	if got := outcomeFor(t, report, files[1]).State; got != "Verified" {
		t.Errorf("healthy file state = %s, want Verified", got)
	}
}

func TestRunVerificationMismatchRetries(t *testing.T) {
	files := writeBags(t, t.TempDir(), 1)
	transporter := newFakeTransport()
	transporter.statSize = func(remote string, call int, stored int64) int64 {
		// First verification sees a truncated remote copy.
		if call == 1 {
			return stored - 1
		}
		return stored
	}
	p := newTestPipeline(t, testOptions(t), transporter)

	report, err := p.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	outcome := outcomeFor(t, report, files[0])
	if outcome.State != "Verified" {
		t.Fatalf("state = %s, want Verified", outcome.State)
	}
	if outcome.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", outcome.Attempts)
	}
}

func TestRunVerifyHashChecksRemoteDigest(t *testing.T) {
	files := writeBags(t, t.TempDir(), 2)
	transporter := newHashingTransport()
	opts := testOptions(t)
	opts.VerifyHash = true
	p := newTestPipeline(t, opts, transporter)

	report, err := p.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Verified != 2 || report.Failed != 0 {
		t.Fatalf("verified = %d, failed = %d, want 2, 0", report.Verified, report.Failed)
	}
	for _, file := range files {
		remote := path.Join(opts.RemoteDir, file.Name()+".zst")
		if got := transporter.hashCount(remote); got != 1 {
			t.Errorf("hash calls for %s = %d, want 1", remote, got)
		}
	}
}

func TestRunVerifyHashMismatchRetries(t *testing.T) {
	files := writeBags(t, t.TempDir(), 1)
	transporter := newHashingTransport()
	transporter.hashHook = func(remote string, call int, digest string) string {
		// First verification sees a corrupted remote copy.
		if call == 1 {
			return "0" + digest[1:]
		}
		return digest
	}
	opts := testOptions(t)
	opts.VerifyHash = true
	p := newTestPipeline(t, opts, transporter)

	report, err := p.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	outcome := outcomeFor(t, report, files[0])
	if outcome.State != "Verified" {
		t.Fatalf("state = %s, want Verified", outcome.State)
	}
	if outcome.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", outcome.Attempts)
	}
	remote := path.Join(opts.RemoteDir, files[0].Name()+".zst")
	if got := transporter.pushCount(remote); got != 2 {
		t.Errorf("push calls = %d, want 2", got)
	}
}

func TestRunVerifyHashUnreadableArtifactIsFatal(t *testing.T) {
	files := writeBags(t, t.TempDir(), 1)
	transporter := newHashingTransport()
	// Losing the staged artifact after the push makes the local side
	// of the comparison unreadable; no further attempt can fix that.
	transporter.afterPush = func(localPath string) {
		if err := os.Remove(localPath); err != nil {
			t.Errorf("Remove: %v", err)
		}
	}
	opts := testOptions(t)
	opts.VerifyHash = true
	p := newTestPipeline(t, opts, transporter)

	report, err := p.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	outcome := outcomeFor(t, report, files[0])
	if outcome.State != "Failed" {
		t.Fatalf("state = %s, want Failed", outcome.State)
	}
	if outcome.ErrorKind != string(KindTransferFatal) {
		t.Errorf("error kind = %s, want %s", outcome.ErrorKind, KindTransferFatal)
	}
	if outcome.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", outcome.Attempts)
	}
}

func TestRunCompressionFailureDoesNotRetry(t *testing.T) {
	dir := t.TempDir()
	files := writeBags(t, dir, 3)
	// Removing one source makes its compression fail while its
	// siblings proceed.
	if err := os.Remove(files[1].Path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	transporter := newFakeTransport()
	p := newTestPipeline(t, testOptions(t), transporter)

	report, err := p.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Verified != 2 || report.Failed != 1 {
		t.Fatalf("Verified = %d, Failed = %d, want 2, 1", report.Verified, report.Failed)
	}
	bad := outcomeFor(t, report, files[1])
	if bad.ErrorKind != string(KindCompression) {
		t.Errorf("error kind = %q, want %q", bad.ErrorKind, KindCompression)
	}
	if bad.Attempts != 0 {
		t.Errorf("attempts = %d, want 0 (never reached transfer)", bad.Attempts)
	}
	if !report.Succeeded(true) {
		t.Error("Succeeded(true) = false, want true")
	}
	if report.Succeeded(false) {
		t.Error("Succeeded(false) = true, want false")
	}
}

func TestRunCleanUpRemovesLocalCopies(t *testing.T) {
	files := writeBags(t, t.TempDir(), 3)
	transporter := newFakeTransport()
	opts := testOptions(t)
	opts.CleanUp = true
	p := newTestPipeline(t, opts, transporter)

	report, err := p.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Verified != 3 {
		t.Fatalf("Verified = %d, want 3", report.Verified)
	}
	for _, file := range files {
		if _, err := os.Stat(file.Path); !os.IsNotExist(err) {
			t.Errorf("original %s still present after cleanup", file.Name())
		}
	}
	entries, err := os.ReadDir(opts.StagingDir)
	if err != nil {
		t.Fatalf("ReadDir(staging): %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("staging dir has %d entries after cleanup, want 0", len(entries))
	}
	if len(transporter.remote) != 3 {
		t.Errorf("remote file count = %d, want 3", len(transporter.remote))
	}
}

func TestRunQueueCapacityBoundsStagedArtifacts(t *testing.T) {
	files := writeBags(t, t.TempDir(), 5)
	transporter := newFakeTransport()
	gate := make(chan struct{})
	transporter.pushGate = gate

	opts := testOptions(t)
	opts.CompressionWorkers = 3
	opts.QueueCapacity = 2
	p := newTestPipeline(t, opts, transporter)

	done := make(chan *Report, 1)
	go func() {
		report, err := p.Run(context.Background(), files)
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
		done <- report
	}()

	// With every push blocked, compression can stage at most
	// QueueCapacity artifacts before stalling on backpressure.
	deadline := time.After(5 * time.Second)
	for {
		entries, err := os.ReadDir(opts.StagingDir)
		if err == nil && len(entries) >= opts.QueueCapacity {
			if len(entries) > opts.QueueCapacity {
				t.Fatalf("staged artifacts = %d, want at most %d", len(entries), opts.QueueCapacity)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for staged artifacts")
		case <-time.After(5 * time.Millisecond):
		}
	}
	// Hold steady a moment to catch a late third artifact.
	time.Sleep(50 * time.Millisecond)
	entries, err := os.ReadDir(opts.StagingDir)
	if err != nil {
		t.Fatalf("ReadDir(staging): %v", err)
	}
	if len(entries) > opts.QueueCapacity {
		t.Fatalf("staged artifacts = %d, want at most %d", len(entries), opts.QueueCapacity)
	}

	close(gate)
	report := <-done
	if report.Verified != 5 {
		t.Fatalf("Verified = %d, want 5", report.Verified)
	}
}

func TestRunCancelDrains(t *testing.T) {
	files := writeBags(t, t.TempDir(), 3)
	transporter := newFakeTransport()

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	blocking := &gatedCompressor{
		inner:   &compress.Zstd{},
		started: func() { once.Do(func() { close(started) }) },
		release: release,
	}

	opts := testOptions(t)
	opts.CompressionWorkers = 1
	p, err := New(opts, Deps{Compressor: blocking, Transporter: transporter})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	done := make(chan *Report, 1)
	go func() {
		report, err := p.Run(context.Background(), files)
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
		done <- report
	}()

	<-started
	p.Cancel()
	close(release)

	report := <-done
	if report.Complete() {
		t.Error("Complete() = true after cancellation, want false")
	}
	if report.Succeeded(true) {
		t.Error("Succeeded(true) = true after cancellation, want false")
	}
	if got := len(report.Outcomes); got != 3 {
		t.Fatalf("len(Outcomes) = %d, want 3 (every job accounted for)", got)
	}
	for _, outcome := range report.Outcomes {
		if outcome.State == "Failed" {
			t.Errorf("%s marked Failed by cancellation: %s", outcome.Path, outcome.ErrorMessage)
		}
	}
}

// gatedCompressor signals the first Compress call and then waits for
// release, so tests can cancel a run mid-compression.
type gatedCompressor struct {
	inner   compress.Compressor
	started func()
	release <-chan struct{}
}

func (g *gatedCompressor) Name() string { return g.inner.Name() }

func (g *gatedCompressor) ArtifactName(srcName string) string { return g.inner.ArtifactName(srcName) }

func (g *gatedCompressor) Compress(ctx context.Context, src, dst string) error {
	g.started()
	select {
	case <-g.release:
	case <-ctx.Done():
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("compressing %s: %w", src, err)
	}
	return g.inner.Compress(ctx, src, dst)
}

func TestRunEmptyBatch(t *testing.T) {
	p := newTestPipeline(t, testOptions(t), newFakeTransport())
	report, err := p.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !report.Complete() {
		t.Error("Complete() = false for empty batch, want true")
	}
	if !report.Succeeded(false) {
		t.Error("Succeeded(false) = false for empty batch, want true")
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	transporter := newFakeTransport()
	base := testOptions(t)
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"no staging dir", func(o *Options) { o.StagingDir = "" }},
		{"no remote dir", func(o *Options) { o.RemoteDir = "" }},
		{"zero compression workers", func(o *Options) { o.CompressionWorkers = 0 }},
		{"zero queue capacity", func(o *Options) { o.QueueCapacity = 0 }},
		{"zero transfer workers", func(o *Options) { o.TransferWorkers = 0 }},
		{"zero upload attempts", func(o *Options) { o.UploadAttempts = 0 }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			opts := base
			test.mutate(&opts)
			if _, err := New(opts, Deps{Compressor: &compress.Zstd{}, Transporter: transporter}); err == nil {
				t.Error("New() error = nil, want validation error")
			}
		})
	}
}

func TestQueueSizeHint(t *testing.T) {
	now := time.Now()
	mkFiles := func(sizes ...int64) []*rosbag.File {
		files := make([]*rosbag.File, len(sizes))
		for i, size := range sizes {
			files[i] = &rosbag.File{Path: fmt.Sprintf("/bags/run_%d.mcap", i), Size: size}
		}
		return files
	}

	tests := []struct {
		name       string
		estimate   bandwidth.Estimate
		files      []*rosbag.File
		configured int
		want       int
	}{
		{
			name:       "no estimate keeps configured",
			estimate:   bandwidth.Estimate{},
			files:      mkFiles(1 << 30),
			configured: 4,
			want:       4,
		},
		{
			name:       "slow link shrinks queue",
			estimate:   bandwidth.Assume(10, now), // 1.25 MB/s
			files:      mkFiles(1<<30, 1<<30),     // 1 GiB each
			configured: 8,
			want:       1,
		},
		{
			name:       "fast link keeps configured bound",
			estimate:   bandwidth.Assume(10_000, now),
			files:      mkFiles(1 << 20),
			configured: 4,
			want:       4,
		},
		{
			name:       "empty batch keeps configured",
			estimate:   bandwidth.Assume(100, now),
			files:      nil,
			configured: 4,
			want:       4,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := QueueSizeHint(test.estimate, test.files, test.configured)
			if got != test.want {
				t.Errorf("QueueSizeHint() = %d, want %d", got, test.want)
			}
		})
	}
}
