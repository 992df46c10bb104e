package apierr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(AtomicWriteError, "failed to write config", cause)

	require.Contains(t, err.Error(), "atomic_write_error")
	require.Contains(t, err.Error(), "disk full")
	require.ErrorIs(t, err, cause)
}

func TestIsMatchesWrappedCode(t *testing.T) {
	base := New(MergeConflicts, "conflicting files: a.go")
	wrapped := fmt.Errorf("squash merge failed: %w", base)

	require.True(t, Is(wrapped, MergeConflicts))
	require.False(t, Is(wrapped, RateLimitExceeded))
}

func TestIsReturnsFalseForPlainError(t *testing.T) {
	require.False(t, Is(errors.New("plain"), IoError))
}
