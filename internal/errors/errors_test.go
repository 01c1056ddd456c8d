package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestIndexError_Formatting(t *testing.T) {
	err := NewIndexError("machine is in use", ErrMachineLocked).
		WithMachineID("0a1b2c").
		WithProvider("docker")

	msg := err.Error()
	if !strings.Contains(msg, "machine=0a1b2c") {
		t.Errorf("message should contain machine id: %q", msg)
	}
	if !strings.Contains(msg, "provider=docker") {
		t.Errorf("message should contain provider: %q", msg)
	}
	if !strings.Contains(msg, "machine is locked") {
		t.Errorf("message should contain cause: %q", msg)
	}
}

func TestIndexError_NoContext(t *testing.T) {
	err := NewIndexError("persist failed", nil)
	if got := err.Error(); got != "index error: persist failed" {
		t.Errorf("Error() = %q", got)
	}
}

func TestIndexError_IsSentinel(t *testing.T) {
	tests := []struct {
		name     string
		cause    error
		sentinel error
	}{
		{"locked", ErrMachineLocked, ErrMachineLocked},
		{"corrupted", ErrIndexCorrupted, ErrIndexCorrupted},
		{"acquisition", ErrLockAcquisition, ErrLockAcquisition},
		{"unlocked write", ErrUnlockedWrite, ErrUnlockedWrite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewIndexError("op failed", tt.cause)
			if !Is(err, tt.sentinel) {
				t.Errorf("Is(err, %v) should be true", tt.sentinel)
			}
		})
	}
}

func TestIndexError_IsWrapped(t *testing.T) {
	inner := NewIndexError("machine is in use", ErrMachineLocked)
	wrapped := fmt.Errorf("get: %w", inner)

	if !Is(wrapped, ErrMachineLocked) {
		t.Error("wrapped error should match sentinel")
	}

	var idxErr *IndexError
	if !As(wrapped, &idxErr) {
		t.Fatal("As should find IndexError")
	}
	if idxErr.MachineID != "" {
		t.Errorf("MachineID = %q, want empty", idxErr.MachineID)
	}
}

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("machine", "0a1b2c")
	if got := err.Error(); got != "machine '0a1b2c' not found" {
		t.Errorf("Error() = %q", got)
	}
	if !IsUserFacing(err) {
		t.Error("NotFoundError should be user-facing")
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil is not retryable")
	}
	if IsRetryable(New("boom")) {
		t.Error("plain errors are not retryable")
	}

	locked := NewIndexError("machine is in use", ErrMachineLocked).WithRetryable(true)
	if !IsRetryable(locked) {
		t.Error("lock contention should be retryable")
	}

	corrupted := NewIndexError("bad version", ErrIndexCorrupted)
	if IsRetryable(corrupted) {
		t.Error("corruption is not retryable")
	}
}

func TestGetSeverity(t *testing.T) {
	if got := GetSeverity(nil); got != SeverityDebug {
		t.Errorf("GetSeverity(nil) = %v", got)
	}
	if got := GetSeverity(New("boom")); got != SeverityError {
		t.Errorf("GetSeverity(plain) = %v", got)
	}
	if got := GetSeverity(NewNotFoundError("machine", "x")); got != SeverityWarning {
		t.Errorf("GetSeverity(not found) = %v", got)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should be nil")
	}

	err := Wrap(ErrUnlockedWrite, "set failed")
	if !Is(err, ErrUnlockedWrite) {
		t.Error("Wrap should preserve sentinel")
	}
	if got := err.Error(); got != "set failed: machine write attempted without lock" {
		t.Errorf("Error() = %q", got)
	}

	errf := Wrapf(ErrMachineLocked, "get %s", "0a1b2c")
	if !Is(errf, ErrMachineLocked) {
		t.Error("Wrapf should preserve sentinel")
	}
}
