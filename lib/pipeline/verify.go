// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fieldlog/baghaul/lib/rosbag"
	"github.com/fieldlog/baghaul/lib/transport"
)

// mismatchError reports a remote copy that does not match the local
// artifact. A mismatch is retried like any transient failure: the
// push is repeated and the remote file overwritten.
type mismatchError struct {
	msg string
}

func (e *mismatchError) Error() string { return e.msg }

func isMismatch(err error) bool {
	var mismatch *mismatchError
	return errors.As(err, &mismatch)
}

// verify checks the remote copy against the local artifact: size
// always, content hash when enabled and the transporter can compute
// one remotely.
func (p *Pipeline) verify(ctx context.Context, job *Job) error {
	info, err := p.deps.Transporter.Stat(ctx, job.RemotePath)
	if err != nil {
		return fmt.Errorf("verifying %s: %w", job.RemotePath, err)
	}
	if info.Size != job.ArtifactSize {
		return &mismatchError{msg: fmt.Sprintf(
			"remote size %d does not match artifact size %d for %s",
			info.Size, job.ArtifactSize, job.RemotePath)}
	}

	if !p.opts.VerifyHash {
		return nil
	}
	hasher, ok := p.deps.Transporter.(transport.Hasher)
	if !ok {
		return nil
	}

	remote, err := hasher.Hash(ctx, job.RemotePath)
	if err != nil {
		return fmt.Errorf("hashing %s: %w", job.RemotePath, err)
	}
	local, err := hashFile(job.ArtifactPath)
	if err != nil {
		// The artifact is local; failing to read it will not be
		// cured by another transfer attempt.
		return transport.Fatal(fmt.Errorf("hashing %s: %w", job.ArtifactPath, err))
	}
	if remote != local {
		return &mismatchError{msg: fmt.Sprintf(
			"remote hash %s does not match artifact hash %s for %s",
			remote, local, job.RemotePath)}
	}
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	digest, err := rosbag.HashReader(f)
	if err != nil {
		return "", err
	}
	return rosbag.FormatDigest(digest), nil
}
