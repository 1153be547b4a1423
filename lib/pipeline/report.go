// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/fieldlog/baghaul/lib/bandwidth"
)

// Outcome is the terminal record of one job, as serialized into the
// run report.
type Outcome struct {
	// Path is the source file's absolute path.
	Path string `json:"path"`

	// State is the job's final state. "Verified" and "Failed" are
	// the terminal states; anything else means the run was cancelled
	// before the job finished.
	State string `json:"state"`

	// Attempts is the number of transfer tries consumed.
	Attempts int `json:"attempts"`

	// ElapsedSeconds is discovery-to-terminal wall time.
	ElapsedSeconds float64 `json:"elapsed_seconds"`

	// BytesOriginal and BytesCompressed record the size win from
	// compression. BytesCompressed is zero when compression never
	// completed.
	BytesOriginal   int64 `json:"bytes_original"`
	BytesCompressed int64 `json:"bytes_compressed,omitempty"`

	// ErrorKind and ErrorMessage are set for failed jobs.
	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Report aggregates a pipeline run. It is built incrementally by the
// orchestrator and finalized when the run completes; the downstream
// watchdog reads the serialized form as the batch completion marker.
type Report struct {
	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Counters per pipeline milestone. Compressed counts jobs whose
	// artifact was produced; Transferred counts jobs whose push
	// completed at least once (they may still have failed later).
	Discovered  int `json:"discovered"`
	Compressed  int `json:"compressed"`
	Transferred int `json:"transferred"`
	Verified    int `json:"verified"`
	Failed      int `json:"failed"`

	// Outcomes lists every job, ordered by source path.
	Outcomes []Outcome `json:"outcomes"`
}

// record folds a finished job into the report.
func (r *Report) record(job *Job) {
	outcome := Outcome{
		Path:            job.File.Path,
		State:           job.State.String(),
		Attempts:        job.Attempts,
		ElapsedSeconds:  job.Elapsed().Seconds(),
		BytesOriginal:   job.File.Size,
		BytesCompressed: job.ArtifactSize,
		ErrorKind:       string(job.LastErrorKind),
		ErrorMessage:    job.LastErrorMessage,
	}

	if _, ok := job.TransitionTimes[StateCompressedQueued]; ok {
		r.Compressed++
	}
	if _, ok := job.TransitionTimes[StateVerifying]; ok {
		r.Transferred++
	}
	switch job.State {
	case StateVerified:
		r.Verified++
	case StateFailed:
		r.Failed++
	}

	r.Outcomes = append(r.Outcomes, outcome)
}

// finalize sorts outcomes for deterministic output.
func (r *Report) finalize(now time.Time) {
	r.FinishedAt = now
	sort.Slice(r.Outcomes, func(i, j int) bool {
		return r.Outcomes[i].Path < r.Outcomes[j].Path
	})
}

// Complete reports whether every discovered job reached a terminal
// state (the run was not cancelled mid-flight).
func (r *Report) Complete() bool {
	return r.Verified+r.Failed == r.Discovered
}

// Succeeded reports whether the run should exit zero. Without
// continueOnError, only a fully verified run succeeds. With it,
// failed jobs are acceptable as long as the run completed.
func (r *Report) Succeeded(continueOnError bool) bool {
	if !r.Complete() {
		return false
	}
	if continueOnError {
		return true
	}
	return r.Failed == 0
}

// BytesVerified sums the original sizes of verified jobs.
func (r *Report) BytesVerified() int64 {
	var total int64
	for _, outcome := range r.Outcomes {
		if outcome.State == StateVerified.String() {
			total += outcome.BytesOriginal
		}
	}
	return total
}

// Summary renders the one-line operator summary logged at end of run.
func (r *Report) Summary() string {
	elapsed := r.FinishedAt.Sub(r.StartedAt)
	summary := fmt.Sprintf("%d discovered, %d verified, %d failed in %s",
		r.Discovered, r.Verified, r.Failed, bandwidth.FormatDuration(elapsed))
	if verified := r.BytesVerified(); verified > 0 && elapsed > 0 {
		summary += fmt.Sprintf(" (%s)", bandwidth.FormatThroughput(float64(verified)/elapsed.Seconds()))
	}
	return summary
}
