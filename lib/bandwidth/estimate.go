// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

// Package bandwidth measures achievable throughput to the transfer
// destination and carries the resulting estimate through the pipeline.
//
// The estimate is advisory: the scanner uses it for per-file ETA
// display and the orchestrator for queue sizing guidance. It never
// gates correctness — an unreachable probe endpoint degrades to a
// configured assumption, not to a refusal to transfer.
package bandwidth

import (
	"fmt"
	"time"
)

// Estimate is a measured (or assumed) throughput figure. An Estimate
// is immutable; re-probing produces a new value that replaces, never
// patches, the old one.
type Estimate struct {
	// BytesPerSecond is the achievable throughput.
	BytesPerSecond float64

	// Samples is the number of measurement windows that contributed.
	// Zero for assumed estimates.
	Samples int

	// MeasuredAt is when the measurement was taken. Consumers judge
	// staleness against this; the estimate itself never expires.
	MeasuredAt time.Time

	// Assumed is true when the figure is a configured fallback
	// rather than a live measurement.
	Assumed bool
}

// Assume returns a fallback estimate from a configured throughput in
// megabits per second. Used when no probe endpoint is configured or
// the endpoint is unreachable.
func Assume(mbps float64, now time.Time) Estimate {
	return Estimate{
		BytesPerSecond: mbps * 1e6 / 8,
		MeasuredAt:     now,
		Assumed:        true,
	}
}

// ETA returns the advisory transfer duration for a payload of the
// given size. Returns zero when the estimate is empty.
func (e Estimate) ETA(bytes int64) time.Duration {
	if e.BytesPerSecond <= 0 {
		return 0
	}
	return time.Duration(float64(bytes) / e.BytesPerSecond * float64(time.Second))
}

// Age returns how old the estimate is.
func (e Estimate) Age(now time.Time) time.Duration {
	return now.Sub(e.MeasuredAt)
}

// String renders the estimate for logs, e.g. "1.84 Gbit/s (measured)".
func (e Estimate) String() string {
	source := "measured"
	if e.Assumed {
		source = "assumed"
	}
	return fmt.Sprintf("%s (%s)", FormatThroughput(e.BytesPerSecond), source)
}

// FormatThroughput renders a bytes-per-second figure in Gbit/s or
// Mbit/s, whichever reads naturally.
func FormatThroughput(bytesPerSecond float64) string {
	bits := bytesPerSecond * 8
	if bits >= 1e9 {
		return fmt.Sprintf("%.2f Gbit/s", bits/1e9)
	}
	return fmt.Sprintf("%.2f Mbit/s", bits/1e6)
}

// FormatDuration renders a duration as whole hours, minutes, and
// seconds for operator-facing summaries.
func FormatDuration(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	switch {
	case hours > 0:
		return fmt.Sprintf("%d hours %d minutes %d seconds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%d minutes %d seconds", minutes, seconds)
	default:
		return fmt.Sprintf("%d seconds", seconds)
	}
}
