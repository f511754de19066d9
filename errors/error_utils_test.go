package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBlockRejection(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "amount range",
			err:      NewAmountRangeError("balance overflow"),
			expected: true,
		},
		{
			name:     "unknown parent",
			err:      NewBlockParentNotFoundError("parent missing"),
			expected: true,
		},
		{
			name:     "duplicate block",
			err:      NewBlockExistsError("already have it"),
			expected: true,
		},
		{
			name:     "wrapped double spend",
			err:      NewBlockInvalidError("block rejected", NewTxInvalidDoubleSpendError("spent")),
			expected: true,
		},
		{
			name:     "storage error",
			err:      NewStorageError("disk gone"),
			expected: false,
		},
		{
			name:     "structural",
			err:      NewStructuralError("missing entry"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsBlockRejection(tt.err))
		})
	}
}

func TestIsStructuralError(t *testing.T) {
	assert.False(t, IsStructuralError(nil))
	assert.True(t, IsStructuralError(NewStructuralError("duplicate created output")))
	assert.False(t, IsStructuralError(NewAmountRangeError("overflow")))
	assert.False(t, IsStructuralError(fmt.Errorf("plain")))
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.True(t, IsRetryableError(NewStorageUnavailableError("db down")))
	assert.True(t, IsRetryableError(NewServiceUnavailableError("starting")))
	assert.False(t, IsRetryableError(context.Canceled))
	assert.False(t, IsRetryableError(NewBlockInvalidError("bad")))
}

func TestIsContextError(t *testing.T) {
	assert.False(t, IsContextError(nil))
	assert.True(t, IsContextError(context.Canceled))
	assert.True(t, IsContextError(context.DeadlineExceeded))
	assert.True(t, IsContextError(NewContextCanceledError("stopped")))
	assert.True(t, IsContextError(fmt.Errorf("wrapped: %w", context.Canceled)))
	assert.False(t, IsContextError(NewNotFoundError("nope")))
}

func TestGetErrorCategory(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{nil, "none"},
		{context.Canceled, "context"},
		{NewStorageUnavailableError("down"), "temporary"},
		{NewBlockExistsError("dup"), "block"},
		{NewTxMissingInputError("missing"), "transaction"},
		{NewStorageError("write"), "storage"},
		{NewUtxoNotFoundError("utxo"), "utxo"},
		{NewAmountRangeError("range"), "state"},
		{fmt.Errorf("plain"), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, GetErrorCategory(tt.err))
	}
}
