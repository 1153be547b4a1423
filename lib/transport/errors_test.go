// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
	"testing"
)

func TestTransientAndFatalMarks(t *testing.T) {
	base := errors.New("connection reset by peer")

	if !IsTransient(Transient(base)) {
		t.Error("IsTransient(Transient(err)) = false, want true")
	}
	if IsFatal(Transient(base)) {
		t.Error("IsFatal(Transient(err)) = true, want false")
	}
	if !IsFatal(Fatal(base)) {
		t.Error("IsFatal(Fatal(err)) = false, want true")
	}
	if IsTransient(Fatal(base)) {
		t.Error("IsTransient(Fatal(err)) = true, want false")
	}
}

func TestUnmarkedDefaultsToTransient(t *testing.T) {
	if !IsTransient(errors.New("some network weather")) {
		t.Error("unmarked error not transient, want transient default")
	}
	if IsTransient(nil) {
		t.Error("IsTransient(nil) = true, want false")
	}
}

func TestMarksSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("pushing artifact: %w", Fatal(errors.New("permission denied")))
	if !IsFatal(err) {
		t.Error("fatal mark lost through fmt.Errorf wrapping")
	}
	if IsTransient(err) {
		t.Error("wrapped fatal error reported transient")
	}
}

func TestNilPassThrough(t *testing.T) {
	if Transient(nil) != nil {
		t.Error("Transient(nil) != nil")
	}
	if Fatal(nil) != nil {
		t.Error("Fatal(nil) != nil")
	}
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := errors.New("root cause")
	if !errors.Is(Transient(cause), cause) {
		t.Error("Transient mark hides the cause from errors.Is")
	}
	if !errors.Is(Fatal(cause), cause) {
		t.Error("Fatal mark hides the cause from errors.Is")
	}
}
