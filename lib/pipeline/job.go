// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"fmt"
	"time"

	"github.com/fieldlog/baghaul/lib/rosbag"
)

// State is a job's position in the transfer state machine.
//
// States only advance forward. The single exception is the explicit
// retry transition from Transferring or Verifying back to
// CompressedQueued, which preserves the job's identity and attempt
// counter: the compressed artifact already exists, only the transfer
// is redone.
type State int

const (
	// StateDiscovered means the scanner found the file and a job
	// exists for it, but no worker has picked it up.
	StateDiscovered State = iota

	// StateCompressing means a compression worker owns the job.
	StateCompressing

	// StateCompressedQueued means the compressed artifact exists and
	// the job is awaiting a transfer worker. The number of jobs in
	// this state is bounded by the configured queue capacity.
	StateCompressedQueued

	// StateTransferring means a transfer worker is pushing the
	// artifact to the remote destination.
	StateTransferring

	// StateVerifying means the push completed and the remote copy is
	// being compared against the local artifact.
	StateVerifying

	// StateVerified is terminal success: the remote copy is
	// confirmed and is now the authoritative copy.
	StateVerified

	// StateFailed is terminal failure, reached from any state once
	// the applicable retry budget is exhausted or a fatal error
	// occurs.
	StateFailed
)

// String returns the state name used in logs and reports.
func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "Discovered"
	case StateCompressing:
		return "Compressing"
	case StateCompressedQueued:
		return "CompressedQueued"
	case StateTransferring:
		return "Transferring"
	case StateVerifying:
		return "Verifying"
	case StateVerified:
		return "Verified"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether a job in this state is done.
func (s State) Terminal() bool {
	return s == StateVerified || s == StateFailed
}

// ErrorKind classifies a job failure for the report. Kinds are stable
// strings an operator can branch on when deciding whether to re-run.
type ErrorKind string

const (
	// KindCompression is a failed compression (non-zero tool exit or
	// unreadable input). Not retried: the original is left untouched
	// for manual inspection.
	KindCompression ErrorKind = "CompressionError"

	// KindTransferTransient is a retry-eligible transfer failure
	// (reset, timeout, remote momentarily unavailable). Recorded as
	// the last error while a job waits for its next attempt.
	KindTransferTransient ErrorKind = "TransferTransient"

	// KindTransferFatal is a transfer failure retrying cannot fix
	// (authentication, invalid destination path).
	KindTransferFatal ErrorKind = "TransferFatal"

	// KindVerificationMismatch means the remote copy did not match
	// the local artifact. Treated as transient: corruption usually
	// indicates a dropped or truncated transfer.
	KindVerificationMismatch ErrorKind = "VerificationMismatch"

	// KindTransferExhausted means the retry budget ran out.
	KindTransferExhausted ErrorKind = "TransferExhausted"
)

// Job tracks one file through the pipeline. A job is owned by exactly
// one goroutine at a time — the orchestrator before the first queue
// hand-off, then whichever worker holds it. Ownership moves with the
// job through channels, so no field needs locking.
type Job struct {
	// File is the discovered source file. Never mutated.
	File *rosbag.File

	// State is the job's current position in the state machine.
	State State

	// ArtifactPath is the compressed artifact's local path, set once
	// compression succeeds and retained across transfer retries.
	ArtifactPath string

	// ArtifactSize is the artifact's size in bytes, captured when
	// compression finishes. This is the size the verifier compares
	// against the remote copy.
	ArtifactSize int64

	// RemotePath is the destination path of the artifact.
	RemotePath string

	// Attempts counts transfer tries, including the one in progress.
	Attempts int

	// LastErrorKind and LastErrorMessage describe the most recent
	// failure. Cleared by the retry transition.
	LastErrorKind    ErrorKind
	LastErrorMessage string

	// TransitionTimes records when each state was first entered.
	TransitionTimes map[State]time.Time
}

// newJob creates a job in StateDiscovered for a scanned file.
func newJob(file *rosbag.File, now time.Time) *Job {
	job := &Job{
		File:            file,
		State:           StateDiscovered,
		TransitionTimes: map[State]time.Time{StateDiscovered: now},
	}
	return job
}

// advance moves the job forward to state, recording the transition
// time. Calling advance with a non-forward state is a programming
// error and panics — the state machine is small enough that an
// invalid transition means the pipeline itself is broken.
func (j *Job) advance(state State, now time.Time) {
	if state <= j.State {
		panic(fmt.Sprintf("pipeline: job %s: invalid transition %s -> %s",
			j.File.Name(), j.State, state))
	}
	j.State = state
	if _, seen := j.TransitionTimes[state]; !seen {
		j.TransitionTimes[state] = now
	}
}

// retry is the one backward transition: the job returns to the
// transfer queue for another attempt. The attempt counter and the
// compressed artifact are preserved; the last error is cleared.
func (j *Job) retry(now time.Time) {
	if j.State != StateTransferring && j.State != StateVerifying {
		panic(fmt.Sprintf("pipeline: job %s: retry from %s", j.File.Name(), j.State))
	}
	j.State = StateCompressedQueued
	j.LastErrorKind = ""
	j.LastErrorMessage = ""
	j.TransitionTimes[StateCompressedQueued] = now
}

// fail moves the job to the terminal Failed state with the given
// classification.
func (j *Job) fail(kind ErrorKind, err error, now time.Time) {
	j.LastErrorKind = kind
	j.LastErrorMessage = err.Error()
	j.State = StateFailed
	if _, seen := j.TransitionTimes[StateFailed]; !seen {
		j.TransitionTimes[StateFailed] = now
	}
}

// recordError notes a non-terminal failure (a transient error that
// will be retried) without changing state.
func (j *Job) recordError(kind ErrorKind, err error) {
	j.LastErrorKind = kind
	j.LastErrorMessage = err.Error()
}

// Elapsed returns the time from discovery to the terminal transition,
// or zero if the job is not terminal.
func (j *Job) Elapsed() time.Duration {
	start, ok := j.TransitionTimes[StateDiscovered]
	if !ok {
		return 0
	}
	if end, ok := j.TransitionTimes[StateVerified]; ok {
		return end.Sub(start)
	}
	if end, ok := j.TransitionTimes[StateFailed]; ok {
		return end.Sub(start)
	}
	return 0
}
