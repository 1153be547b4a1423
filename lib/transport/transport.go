// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport pushes compressed artifacts to the remote
// destination over a secured channel and answers the verifier's
// questions about the remote copy.
//
// The pipeline depends only on the [Transporter] contract, so
// alternate protocols can be substituted without touching pipeline
// logic. The production implementation is [SSH], which streams file
// content through remote shell commands the way the operators' manual
// tooling does (cat, mkdir -p, stat, b3sum).
package transport

import "context"

// RemoteFileInfo describes a file on the destination host.
type RemoteFileInfo struct {
	// Size is the remote file size in bytes.
	Size int64
}

// Transporter copies local files to remote paths and stats the
// result. All operations honor context cancellation; an operation cut
// short by the context reports a transient error.
type Transporter interface {
	// MkdirAll creates the remote directory and any missing parents.
	MkdirAll(ctx context.Context, dir string) error

	// Push copies the local file to the remote path, overwriting any
	// existing remote file.
	Push(ctx context.Context, localPath, remotePath string) error

	// Stat reports the size of a remote file.
	Stat(ctx context.Context, remotePath string) (RemoteFileInfo, error)
}

// Hasher is an optional Transporter capability: computing a BLAKE3
// content hash on the remote side. The verifier upgrades from
// size-only to content verification when the transporter provides it.
type Hasher interface {
	// Hash returns the lowercase hex BLAKE3 digest of the remote file.
	Hash(ctx context.Context, remotePath string) (string, error)
}
