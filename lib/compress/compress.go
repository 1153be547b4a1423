// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

// Package compress produces the compressed artifacts the pipeline
// transfers. Three backends implement the same contract: the external
// mcap CLI (recompresses bag chunks in place, the recorded format's
// native tool), and in-process zstd and lz4 streams for plain
// whole-file compression.
//
// Compression failure is per-job fatal: the pipeline reports it and
// leaves the original untouched for manual inspection. No backend
// ever deletes or modifies its input.
package compress

import (
	"context"
	"fmt"

	"github.com/fieldlog/baghaul/lib/config"
)

// Compressor turns a source file into a compressed artifact at a
// destination path. Implementations must leave no partial destination
// file behind on error.
type Compressor interface {
	// Name identifies the backend in logs and reports.
	Name() string

	// ArtifactName maps a source base name to the artifact base
	// name, e.g. "run_1.mcap" -> "run_1.mcap.zst".
	ArtifactName(srcName string) string

	// Compress writes the compressed form of src to dst. dst's
	// parent directory must exist.
	Compress(ctx context.Context, src, dst string) error
}

// ForConfig returns the backend selected by the configuration.
func ForConfig(cfg *config.Config) (Compressor, error) {
	switch cfg.CompressionCodec {
	case config.CodecMcap:
		return &Tool{
			BinPath:   cfg.McapBinPath,
			ChunkSize: cfg.McapCompressionChunkSize,
		}, nil
	case config.CodecZstd:
		return &Zstd{ChunkSize: cfg.McapCompressionChunkSize}, nil
	case config.CodecLZ4:
		return &LZ4{ChunkSize: cfg.McapCompressionChunkSize}, nil
	default:
		return nil, fmt.Errorf("unknown compression codec %q", cfg.CompressionCodec)
	}
}
