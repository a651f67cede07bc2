package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New("test error")
	require.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestWrapf(t *testing.T) {
	original := New("original")
	wrapped := Wrapf(original, "unit %s", "vulkan")

	assert.Contains(t, wrapped.Error(), "unit vulkan")
	assert.Contains(t, wrapped.Error(), "original")
}

func TestWithHint(t *testing.T) {
	err := WithHint(New("no units configured"), "add a [[units]] table")

	hints := GetAllHints(err)
	require.Len(t, hints, 1)
	assert.Equal(t, "add a [[units]] table", hints[0])
}

func TestInvalidConfigf(t *testing.T) {
	err := InvalidConfigf("generator.max_workers must be >= 0, got %d", -1)

	assert.True(t, IsInvalidConfig(err))
	assert.Contains(t, err.Error(), "max_workers")
	assert.False(t, IsInvalidConfig(New("other")))
	assert.False(t, IsInvalidConfig(nil))
}

func TestIsAborted(t *testing.T) {
	err := Wrap(ErrAborted, "unit vulkan")
	assert.True(t, IsAborted(err))
	assert.True(t, IsAborted(fmt.Errorf("outer: %w", err)))
	assert.False(t, IsAborted(ErrWorkerFailed))
}
