// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

package bandwidth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrProbeUnavailable reports that the measurement endpoint could not
// be reached or produced no usable sample. Callers treat this as
// non-fatal and fall back to [Assume].
var ErrProbeUnavailable = errors.New("bandwidth probe unavailable")

// Prober measures throughput to a measurement endpoint. Probing is
// explicit: nothing in the pipeline re-probes automatically.
type Prober interface {
	Measure(ctx context.Context, endpoint string) (Estimate, error)
}

// TCPProber measures throughput by streaming data over a TCP
// connection to a discard-style endpoint for a fixed window. The
// endpoint may be the transfer destination itself or a dedicated
// measurement sink; anything that keeps reading works.
type TCPProber struct {
	// Window is how long to stream. Longer windows smooth out TCP
	// slow start at the cost of probe time.
	Window time.Duration

	// DialTimeout bounds the connection attempt.
	DialTimeout time.Duration
}

// DefaultProber returns a TCPProber with a measurement window long
// enough to get past slow start on typical links.
func DefaultProber() *TCPProber {
	return &TCPProber{
		Window:      5 * time.Second,
		DialTimeout: 10 * time.Second,
	}
}

// chunkSize is the probe write size. Large enough to keep syscall
// overhead out of the measurement, small enough to enforce the window
// deadline promptly.
const chunkSize = 64 * 1024

// Measure streams to endpoint for the configured window and returns
// the achieved throughput. The measurement necessarily uses the wall
// clock — a fake clock cannot advance a real network transfer.
func (p *TCPProber) Measure(ctx context.Context, endpoint string) (Estimate, error) {
	dialer := net.Dialer{Timeout: p.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return Estimate{}, fmt.Errorf("%w: dialing %s: %v", ErrProbeUnavailable, endpoint, err)
	}
	defer conn.Close()

	// A repeating non-constant pattern so link-level compression
	// cannot inflate the measurement.
	chunk := make([]byte, chunkSize)
	for i := range chunk {
		chunk[i] = byte(i*7 + i>>8)
	}

	start := time.Now()
	deadline := start.Add(p.Window)
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return Estimate{}, fmt.Errorf("%w: setting write deadline: %v", ErrProbeUnavailable, err)
	}

	var written int64
	samples := 0
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return Estimate{}, fmt.Errorf("%w: %v", ErrProbeUnavailable, err)
		}
		n, err := conn.Write(chunk)
		written += int64(n)
		if err != nil {
			// A deadline expiry with data on the wire is the normal
			// end of the window, not a failure.
			break
		}
		samples++
	}

	elapsed := time.Since(start)
	if written == 0 || elapsed <= 0 {
		return Estimate{}, fmt.Errorf("%w: no data accepted by %s", ErrProbeUnavailable, endpoint)
	}

	return Estimate{
		BytesPerSecond: float64(written) / elapsed.Seconds(),
		Samples:        samples,
		MeasuredAt:     start,
	}, nil
}
