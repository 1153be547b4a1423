// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline moves discovered bag files through compression,
// transfer, verification, and cleanup.
//
// The shape is a two-stage producer/consumer pipeline: a pool of
// compression workers feeds a bounded transfer queue drained by a
// (typically smaller) pool of transfer workers. Backpressure lives at
// the queue boundary — a compression worker blocks when the queue is
// at capacity, which caps the disk consumed by compressed artifacts
// awaiting transfer.
//
// Jobs hand off between stages by channel; exactly one goroutine owns
// a job at any time, so job fields need no locking.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/fieldlog/baghaul/lib/bandwidth"
	"github.com/fieldlog/baghaul/lib/clock"
	"github.com/fieldlog/baghaul/lib/compress"
	"github.com/fieldlog/baghaul/lib/rosbag"
	"github.com/fieldlog/baghaul/lib/transport"
)

// Options configures one pipeline. Values come from the operator's
// configuration file; New validates them.
type Options struct {
	// StagingDir is where compressed artifacts are written while
	// they await transfer. Created if missing.
	StagingDir string

	// RemoteDir is the destination directory for this batch.
	RemoteDir string

	// CompressionWorkers is the compression pool size (>= 1).
	CompressionWorkers int

	// QueueCapacity bounds the number of compressed artifacts
	// staged ahead of the transfer pool (>= 1).
	QueueCapacity int

	// TransferWorkers is the transfer pool size (>= 1, usually 1).
	TransferWorkers int

	// UploadAttempts is the total number of transfer tries per job,
	// including the first (>= 1).
	UploadAttempts int

	// AttemptTimeout bounds a single transfer attempt. Zero means
	// attempts run to completion. Expiry counts as transient.
	AttemptTimeout time.Duration

	// RetryBackoff is the base delay before a retry; the actual
	// delay grows linearly with the attempt count. Defaults to 2s.
	RetryBackoff time.Duration

	// VerifyHash upgrades verification from size comparison to a
	// content hash comparison when the transporter supports it.
	VerifyHash bool

	// CleanUp deletes local originals and artifacts after a job is
	// verified.
	CleanUp bool
}

// Deps are the pipeline's collaborators.
type Deps struct {
	// Compressor produces artifacts from source files.
	Compressor compress.Compressor

	// Transporter pushes artifacts and stats the remote copies.
	Transporter transport.Transporter

	// Clock drives timestamps and retry backoff. Defaults to the
	// real clock.
	Clock clock.Clock

	// Logger receives progress and failure records. Defaults to a
	// discarding logger.
	Logger *slog.Logger
}

// Pipeline runs batches of jobs. A Pipeline is reusable but not
// concurrent: one Run at a time.
type Pipeline struct {
	opts Options
	deps Deps

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New validates options and dependencies and returns a ready
// pipeline.
func New(opts Options, deps Deps) (*Pipeline, error) {
	if opts.StagingDir == "" {
		return nil, fmt.Errorf("pipeline: staging directory is required")
	}
	if opts.RemoteDir == "" {
		return nil, fmt.Errorf("pipeline: remote directory is required")
	}
	if opts.CompressionWorkers < 1 {
		return nil, fmt.Errorf("pipeline: compression workers must be at least 1, got %d", opts.CompressionWorkers)
	}
	if opts.QueueCapacity < 1 {
		return nil, fmt.Errorf("pipeline: queue capacity must be at least 1, got %d", opts.QueueCapacity)
	}
	if opts.TransferWorkers < 1 {
		return nil, fmt.Errorf("pipeline: transfer workers must be at least 1, got %d", opts.TransferWorkers)
	}
	if opts.UploadAttempts < 1 {
		return nil, fmt.Errorf("pipeline: upload attempts must be at least 1, got %d", opts.UploadAttempts)
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if deps.Compressor == nil {
		return nil, fmt.Errorf("pipeline: compressor is required")
	}
	if deps.Transporter == nil {
		return nil, fmt.Errorf("pipeline: transporter is required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{opts: opts, deps: deps}, nil
}

// Cancel requests a cooperative stop of the current run: no new work
// is accepted, in-flight compressions and transfers reach a stable
// state, and Run returns a report covering what finished. An
// in-progress transfer is not killed mid-write unless an attempt
// timeout is configured.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

// Run processes the batch and returns its report. Per-job failures
// never abort the run; the returned error covers only run-level
// problems (an unusable staging directory) found before any job
// starts.
func (p *Pipeline) Run(ctx context.Context, files []*rosbag.File) (*Report, error) {
	clk := p.deps.Clock
	report := &Report{StartedAt: clk.Now(), Discovered: len(files)}

	if len(files) == 0 {
		report.finalize(clk.Now())
		return report, nil
	}

	if err := os.MkdirAll(p.opts.StagingDir, 0755); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()
	defer cancel()

	now := clk.Now()
	jobs := make([]*Job, len(files))
	for i, file := range files {
		jobs[i] = newJob(file, now)
	}

	// compressionInput is pre-filled and closed: the batch is fixed
	// at scan time. transferQueue has room for every live job so a
	// retry re-entering the queue can never block; the configured
	// bound is enforced by queueSlots, acquired before a job may
	// enter CompressedQueued and released when it leaves the
	// transfer domain for a terminal state.
	compressionInput := make(chan *Job, len(jobs))
	for _, job := range jobs {
		compressionInput <- job
	}
	close(compressionInput)

	transferQueue := make(chan *Job, len(jobs))
	queueSlots := make(chan struct{}, p.opts.QueueCapacity)
	results := make(chan *Job, len(jobs))

	var compressors sync.WaitGroup
	for i := 0; i < p.opts.CompressionWorkers; i++ {
		compressors.Add(1)
		go func(id int) {
			defer compressors.Done()
			p.compressionWorker(runCtx, id, compressionInput, transferQueue, queueSlots, results)
		}(i)
	}

	var transferrers sync.WaitGroup
	for i := 0; i < p.opts.TransferWorkers; i++ {
		transferrers.Add(1)
		go func(id int) {
			defer transferrers.Done()
			p.transferWorker(runCtx, id, transferQueue, queueSlots, results)
		}(i)
	}

	// Every job produces exactly one result, whether it finished or
	// was handed back unprocessed after a cancellation.
	for range jobs {
		report.record(<-results)
	}

	// No job is live, so nothing can be sent to the transfer queue
	// anymore; closing it releases the transfer workers.
	close(transferQueue)
	transferrers.Wait()
	compressors.Wait()

	report.finalize(clk.Now())
	p.deps.Logger.Info("pipeline finished", "summary", report.Summary())
	return report, nil
}

// compressionWorker pulls jobs, compresses them, and stages them for
// transfer. After a cancellation it drains its input, handing jobs
// back untouched so the run can still account for every file.
func (p *Pipeline) compressionWorker(ctx context.Context, id int, input <-chan *Job, transferQueue chan<- *Job, queueSlots chan struct{}, results chan<- *Job) {
	clk := p.deps.Clock
	logger := p.deps.Logger.With("worker", fmt.Sprintf("compress-%d", id))

	for job := range input {
		if ctx.Err() != nil {
			results <- job
			continue
		}

		// Backpressure: a job claims its queue slot before
		// compression even starts, so the staged artifacts on disk
		// never exceed the configured capacity. The slot is held
		// until the job reaches a terminal state.
		select {
		case queueSlots <- struct{}{}:
		case <-ctx.Done():
			results <- job
			continue
		}

		job.advance(StateCompressing, clk.Now())
		artifactName := p.deps.Compressor.ArtifactName(job.File.Name())
		job.ArtifactPath = filepath.Join(p.opts.StagingDir, artifactName)
		job.RemotePath = path.Join(p.opts.RemoteDir, artifactName)

		logger.Debug("compressing", "file", job.File.Name(), "size", job.File.Size)
		start := clk.Now()
		if err := p.deps.Compressor.Compress(ctx, job.File.Path, job.ArtifactPath); err != nil {
			<-queueSlots
			if ctx.Err() != nil {
				// Cancelled mid-compression; the partial artifact
				// has already been removed by the compressor.
				results <- job
				continue
			}
			logger.Warn("compression failed", "file", job.File.Name(), "error", err)
			job.fail(KindCompression, err, clk.Now())
			results <- job
			continue
		}

		info, err := os.Stat(job.ArtifactPath)
		if err != nil {
			<-queueSlots
			logger.Warn("artifact missing after compression", "file", job.File.Name(), "error", err)
			job.fail(KindCompression, fmt.Errorf("stating artifact: %w", err), clk.Now())
			results <- job
			continue
		}
		job.ArtifactSize = info.Size()
		logger.Debug("compressed", "file", job.File.Name(),
			"artifactSize", job.ArtifactSize, "elapsed", clk.Now().Sub(start))

		job.advance(StateCompressedQueued, clk.Now())
		transferQueue <- job
	}
}

// transferWorker pushes staged artifacts and verifies the remote
// copies, feeding transient failures back through the queue until the
// retry budget runs out.
func (p *Pipeline) transferWorker(ctx context.Context, id int, transferQueue chan *Job, queueSlots <-chan struct{}, results chan<- *Job) {
	clk := p.deps.Clock
	logger := p.deps.Logger.With("worker", fmt.Sprintf("transfer-%d", id))

	for job := range transferQueue {
		if ctx.Err() != nil {
			<-queueSlots
			results <- job
			continue
		}

		job.Attempts++
		job.advance(StateTransferring, clk.Now())
		logger.Info("uploading", "file", job.File.Name(),
			"artifactSize", job.ArtifactSize, "attempt", job.Attempts)

		err := p.attempt(job)
		if err == nil {
			job.advance(StateVerified, clk.Now())
			logger.Info("verified", "file", job.File.Name(), "attempts", job.Attempts)
			p.reconcile(job, logger)
			<-queueSlots
			results <- job
			continue
		}

		if transport.IsFatal(err) {
			logger.Error("transfer failed permanently", "file", job.File.Name(), "error", err)
			job.fail(KindTransferFatal, err, clk.Now())
			<-queueSlots
			results <- job
			continue
		}

		kind := KindTransferTransient
		if isMismatch(err) {
			kind = KindVerificationMismatch
		}

		if job.Attempts >= p.opts.UploadAttempts {
			logger.Error("transfer attempts exhausted", "file", job.File.Name(),
				"attempts", job.Attempts, "error", err)
			job.fail(KindTransferExhausted,
				fmt.Errorf("%d attempts exhausted, last error: %w", job.Attempts, err), clk.Now())
			<-queueSlots
			results <- job
			continue
		}

		job.recordError(kind, err)
		backoff := time.Duration(job.Attempts) * p.opts.RetryBackoff
		logger.Warn("transfer failed, will retry", "file", job.File.Name(),
			"kind", string(kind), "attempt", job.Attempts, "backoff", backoff, "error", err)

		select {
		case <-clk.After(backoff):
		case <-ctx.Done():
			<-queueSlots
			results <- job
			continue
		}
		job.retry(clk.Now())
		transferQueue <- job
	}
}

// attempt performs one complete transfer try: remote directory,
// push, verification. The attempt deliberately does not inherit the
// run context — cancellation is cooperative between jobs, and an
// in-flight write is only cut short by the configured attempt
// timeout.
func (p *Pipeline) attempt(job *Job) error {
	ctx := context.Background()
	if p.opts.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.AttemptTimeout)
		defer cancel()
	}

	transporter := p.deps.Transporter
	if err := transporter.MkdirAll(ctx, path.Dir(job.RemotePath)); err != nil {
		return err
	}
	if err := transporter.Push(ctx, job.ArtifactPath, job.RemotePath); err != nil {
		return err
	}

	job.advance(StateVerifying, p.deps.Clock.Now())
	return p.verify(ctx, job)
}

// reconcile deletes local copies of a verified job when cleanup is
// enabled. The remote copy is the authority once a job is Verified,
// so deletion failures are logged, not fatal: re-running simply finds
// fewer files to clean. Order matters — artifact before original —
// so an interrupted cleanup never leaves an artifact that looks
// untransferred.
func (p *Pipeline) reconcile(job *Job, logger *slog.Logger) {
	if !p.opts.CleanUp {
		return
	}
	if err := os.Remove(job.ArtifactPath); err != nil {
		logger.Warn("removing compressed artifact", "path", job.ArtifactPath, "error", err)
	}
	if err := os.Remove(job.File.Path); err != nil {
		logger.Warn("removing original", "path", job.File.Path, "error", err)
	}
}

// QueueSizeHint picks the transfer queue capacity for a batch,
// informed by the bandwidth estimate: keep roughly a minute of
// transfer work staged so the link never starves, without staging
// more artifacts (more disk) than that. The configured capacity is
// the hard upper bound; the hint only ever shrinks it.
func QueueSizeHint(estimate bandwidth.Estimate, files []*rosbag.File, configured int) int {
	if configured < 1 {
		configured = 1
	}
	if len(files) == 0 || estimate.BytesPerSecond <= 0 {
		return configured
	}

	var total int64
	for _, file := range files {
		total += file.Size
	}
	average := total / int64(len(files))
	if average <= 0 {
		return configured
	}

	hint := int(estimate.BytesPerSecond * 60 / float64(average))
	if hint < 1 {
		hint = 1
	}
	if hint > configured {
		hint = configured
	}
	return hint
}
