package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test_NewCustomError tests the creation of custom errors.
func Test_NewCustomError(t *testing.T) {
	err := New(ERR_NOT_FOUND, "resource not found")
	require.NotNil(t, err)
	require.Equal(t, ERR_NOT_FOUND, err.Code())
	require.Equal(t, "resource not found", err.Message())

	secondErr := New(ERR_INVALID_ARGUMENT, "[Commit][%s] failed to extend chain: ", "_test_string_", err)
	thirdErr := New(ERR_TX_INVALID_DOUBLE_SPEND, "[Commit][%s] failed to extend chain: ", "_test_string_", secondErr)
	anotherErr := New(ERR_TX_INVALID_DOUBLE_SPEND, "Another ERR, block is invalid")
	fourthErr := New(ERR_SERVICE_ERROR, "older error: ", thirdErr)
	fifthErr := New(ERR_BLOCK_INVALID, "invalid tx double spend error", fourthErr)

	require.True(t, anotherErr.Is(thirdErr))
	require.True(t, fourthErr.Is(New(ERR_TX_INVALID_DOUBLE_SPEND, "")))
	require.True(t, fourthErr.Is(ErrTxInvalidDoubleSpend))

	require.True(t, fourthErr.Is(err))
	require.True(t, fifthErr.Is(thirdErr))
	require.True(t, fifthErr.Is(err))

	require.False(t, anotherErr.Is(fourthErr))
	require.False(t, fifthErr.Is(ErrBlockNotFound))
}

func Test_FmtErrorCustomError(t *testing.T) {
	err := New(ERR_NOT_FOUND, "resource not found")

	fmtError := fmt.Errorf("error: %w", err)
	require.NotNil(t, fmtError)
	secondErr := New(ERR_INVALID_ARGUMENT, "[Commit][%s] failed to extend chain: ", "_test_string_", fmtError)
	require.NotNil(t, secondErr)

	// If we FMT Err, then they won't be recognized as equal
	require.False(t, secondErr.Is(err))

	altErr := New(ERR_INVALID_ARGUMENT, "invalid argument", err)
	altSecondErr := New(ERR_INVALID_ARGUMENT, "[Commit][%s] failed to extend chain: ", "_test_string_", fmtError)
	require.True(t, altSecondErr.Is(altErr))
}

func Test_ErrorIs(t *testing.T) {
	codes := []ERR{
		ERR_NOT_FOUND,
		ERR_BLOCK_INVALID,
		ERR_BLOCK_PARENT_NOT_FOUND,
		ERR_TX_INVALID_DOUBLE_SPEND,
		ERR_TX_MISSING_INPUT,
		ERR_AMOUNT_RANGE,
		ERR_STRUCTURAL,
		ERR_UNKNOWN,
	}

	for _, code := range codes {
		err := New(code, "%s error", code.String())
		assert.True(t, errors.Is(err, New(code, "")), "errors.Is failed to recognize %s", code)
	}
}

func Test_ErrorWrapWithAdditionalContext(t *testing.T) {
	originalErr := New(ERR_AMOUNT_RANGE, "original error")
	wrappedErr := New(ERR_BLOCK_INVALID, "Some more additional context", originalErr)

	require.True(t, errors.Is(wrappedErr, originalErr))
	require.True(t, errors.Is(wrappedErr, ErrAmountRange))
	require.True(t, strings.Contains(wrappedErr.Error(), "Some more additional context"))
}

func Test_ErrorEquality(t *testing.T) {
	err1 := New(ERR_NOT_FOUND, "resource not found")
	err2 := New(ERR_NOT_FOUND, "resource not found")
	require.True(t, err1.Is(err2))

	// same error codes
	err2 = New(ERR_NOT_FOUND, "invalid argument")
	require.True(t, err1.Is(err2))

	// different error codes
	err2 = New(ERR_INVALID_ARGUMENT, "resource not found")
	require.False(t, err1.Is(err2))
}

func Test_UnwrapChain(t *testing.T) {
	baseErr := New(ERR_TX_INVALID_DOUBLE_SPEND, "base error")
	wrappedOnce := fmt.Errorf("error wrapped once: %w", baseErr)
	wrappedTwice := fmt.Errorf("error wrapped twice: %w", wrappedOnce)

	require.True(t, errors.Is(wrappedTwice, baseErr))
	require.True(t, errors.Is(wrappedTwice, wrappedOnce))
}

func Test_InvalidCode(t *testing.T) {
	err := New(ERR(999), "whatever")
	require.Equal(t, "invalid error code", err.Message())
	require.Equal(t, "ERR(999)", ERR(999).String())
}

func Test_DoubleSpendErrData(t *testing.T) {
	data := &DoubleSpendErrData{Hash: "aa", Vout: 1, SpendingTxID: "bb"}
	err := NewTxDoubleSpendError(data, "input %d spends a spent output", 0)
	require.True(t, Is(err, ErrTxInvalidDoubleSpend))

	var target *DoubleSpendErrData
	require.True(t, AsData(err, &target))
	assert.Equal(t, "aa", target.Hash)
	assert.Equal(t, uint32(1), target.Vout)

	wrapped := New(ERR_BLOCK_INVALID, "block rejected", err)
	target = nil
	require.True(t, AsData(wrapped, &target))
	assert.Equal(t, "bb", target.GetData("spending_tx_id"))

	anotherErr := New(ERR_TX_INVALID_DOUBLE_SPEND, "no data")
	require.False(t, AsData(anotherErr, &target))
}

func Test_SetData(t *testing.T) {
	err := New(ERR_STATE_ERROR, "with data")
	err.SetData("height", 12)
	assert.Equal(t, 12, err.GetData("height"))
	assert.Nil(t, err.GetData("missing"))
}

func Test_JoinWithMultipleErrs(t *testing.T) {
	err1 := New(ERR_NOT_FOUND, "not found")
	err2 := New(ERR_BLOCK_NOT_FOUND, "block not found")

	joinedErr := Join(err1, nil, err2)
	require.NotNil(t, joinedErr)
	require.Equal(t, "Error: NOT_FOUND (error code: 3), Message: not found, Error: BLOCK_NOT_FOUND (error code: 10), Message: block not found", joinedErr.Error())

	require.NoError(t, Join(nil, nil))
}

func TestErrorString(t *testing.T) {
	err := errors.New("some error")

	thisErr := NewStorageError("failed to read block [%s:%d]", "abc", 7, err)

	assert.Equal(t, "Error: STORAGE_ERROR (error code: 62), Message: failed to read block [abc:7], Wrapped err: Error: UNKNOWN (error code: 0), Message: some error", thisErr.Error())
}
