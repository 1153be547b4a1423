// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

package compress

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// Zstd compresses files as zstd streams at the default level — a good
// ratio for mixed sensor payloads without excessive CPU per worker.
type Zstd struct {
	// ChunkSize bounds the copy granularity, which is also how often
	// cancellation is observed mid-file.
	ChunkSize int
}

// Name implements Compressor.
func (z *Zstd) Name() string { return "zstd" }

// ArtifactName implements Compressor.
func (z *Zstd) ArtifactName(srcName string) string { return srcName + ".zst" }

// Compress implements Compressor.
func (z *Zstd) Compress(ctx context.Context, src, dst string) error {
	return compressStream(ctx, src, dst, z.ChunkSize, func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
}

// compressStream copies src through an encoding writer into dst,
// removing dst on any failure so errors never leave partial artifacts.
func compressStream(ctx context.Context, src, dst string, chunkSize int, newEncoder func(io.Writer) (io.WriteCloser, error)) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating artifact %s: %w", dst, err)
	}

	fail := func(err error) error {
		out.Close()
		os.Remove(dst)
		return err
	}

	encoder, err := newEncoder(out)
	if err != nil {
		return fail(fmt.Errorf("initializing encoder for %s: %w", dst, err))
	}

	if chunkSize <= 0 {
		chunkSize = 1 << 20
	}
	buffer := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return fail(fmt.Errorf("compressing %s: %w", src, err))
		}
		n, readErr := in.Read(buffer)
		if n > 0 {
			if _, err := encoder.Write(buffer[:n]); err != nil {
				return fail(fmt.Errorf("compressing %s: %w", src, err))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fail(fmt.Errorf("reading %s: %w", src, readErr))
		}
	}

	if err := encoder.Close(); err != nil {
		return fail(fmt.Errorf("finalizing artifact %s: %w", dst, err))
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("closing artifact %s: %w", dst, err)
	}
	return nil
}
