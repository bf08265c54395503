package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsRetryableOnlyForUnknown(t *testing.T) {
	require.True(t, New(CategoryUnknown, "op", ErrEmptyInput).Retryable)
	require.False(t, New(CategoryDecode, "op", ErrEmptyInput).Retryable)
}

func TestTransient_AlwaysRetryable(t *testing.T) {
	require.True(t, Transient(CategoryDecode, "op", ErrEmptyInput).Retryable)
}

func TestWrap_NilErrReturnsNil(t *testing.T) {
	require.NoError(t, Wrap(CategoryDecode, "op", nil))
}

func TestIsRetryable_UnwrapsProcessingError(t *testing.T) {
	err := Transient(CategoryWrite, "atomicio.write", ErrEmptyInput)
	require.True(t, IsRetryable(err))
	require.False(t, IsRetryable(errors.New("plain")))
}

func TestCategoryOf_FallsBackToUnknown(t *testing.T) {
	require.Equal(t, CategoryDecode, CategoryOf(New(CategoryDecode, "op", ErrEmptyInput)))
	require.Equal(t, CategoryUnknown, CategoryOf(errors.New("plain")))
}

func TestProcessingError_UnwrapsToSentinel(t *testing.T) {
	err := New(CategoryUnsupported, "imageio.Decode", ErrUnsupportedFormat)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}
