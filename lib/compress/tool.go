// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

package compress

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Tool invokes the mcap CLI to recompress a bag file chunk by chunk.
// The output is still a valid .mcap file, so the artifact keeps the
// source's base name.
type Tool struct {
	// BinPath is the absolute path of the mcap binary.
	BinPath string

	// ChunkSize is passed as --chunk-size, in bytes.
	ChunkSize int
}

// Name implements Compressor.
func (t *Tool) Name() string { return "mcap" }

// ArtifactName implements Compressor. The mcap CLI emits a complete
// bag file, so the name is unchanged.
func (t *Tool) ArtifactName(srcName string) string { return srcName }

// Compress runs "<bin> compress <src> -o <dst> --chunk-size <n>".
// Zero exit status is success; anything else is reported with the
// tool's stderr attached.
func (t *Tool) Compress(ctx context.Context, src, dst string) error {
	cmd := exec.CommandContext(ctx, t.BinPath,
		"compress", src,
		"-o", dst,
		"--chunk-size", strconv.Itoa(t.ChunkSize),
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// Remove whatever the tool left behind so a failed job never
		// leaves a partial artifact in the staging directory.
		os.Remove(dst)

		message := strings.TrimSpace(stderr.String())
		if message != "" {
			return fmt.Errorf("compressing %s: %w: %s", src, err, message)
		}
		return fmt.Errorf("compressing %s: %w", src, err)
	}
	return nil
}
