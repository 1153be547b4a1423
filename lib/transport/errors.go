// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
)

// Transfer errors fall into two classes. Transient failures (network
// blips, timeouts, a remote that is momentarily unavailable) are
// retry-eligible. Fatal failures (authentication, invalid destination
// path) indicate a configuration problem that retrying cannot fix —
// retrying them only wastes bandwidth.
//
// Implementations mark their errors with [Transient] or [Fatal] at the
// point where the cause is known. Anything unmarked is treated as
// transient by [IsTransient], because retrying an unknown network
// condition is cheaper than abandoning a transfer that would have
// succeeded.

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

type fatalError struct{ err error }

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// Transient marks err as retry-eligible. Returns nil for nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// Fatal marks err as not retry-eligible. Returns nil for nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err carries a fatal mark.
func IsFatal(err error) bool {
	var fatal *fatalError
	return errors.As(err, &fatal)
}

// IsTransient reports whether err should feed the retry path. A
// fatal mark wins; unmarked errors default to transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return !IsFatal(err)
}
