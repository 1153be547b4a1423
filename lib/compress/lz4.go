// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

package compress

import (
	"context"
	"io"

	"github.com/pierrec/lz4/v4"
)

// LZ4 compresses files as lz4 frames. Faster than zstd at a lower
// ratio — the right trade when the link is fast and CPU on the
// vehicle is the bottleneck.
type LZ4 struct {
	// ChunkSize selects the lz4 block size (rounded down to the
	// nearest legal value) and the copy granularity.
	ChunkSize int
}

// Name implements Compressor.
func (l *LZ4) Name() string { return "lz4" }

// ArtifactName implements Compressor.
func (l *LZ4) ArtifactName(srcName string) string { return srcName + ".lz4" }

// blockSize maps an arbitrary chunk size onto the frame format's
// legal block sizes.
func blockSize(chunkSize int) lz4.BlockSize {
	switch {
	case chunkSize >= 4<<20:
		return lz4.Block4Mb
	case chunkSize >= 1<<20:
		return lz4.Block1Mb
	case chunkSize >= 256<<10:
		return lz4.Block256Kb
	default:
		return lz4.Block64Kb
	}
}

// Compress implements Compressor.
func (l *LZ4) Compress(ctx context.Context, src, dst string) error {
	return compressStream(ctx, src, dst, l.ChunkSize, func(w io.Writer) (io.WriteCloser, error) {
		writer := lz4.NewWriter(w)
		if err := writer.Apply(lz4.BlockSizeOption(blockSize(l.ChunkSize))); err != nil {
			return nil, err
		}
		return writer, nil
	})
}
