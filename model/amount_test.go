package model

import (
	"testing"

	"github.com/niklaslong/zebra/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountRange(t *testing.T) {
	_, err := NewAmount[NegativeAllowed](-MaxMoney)
	require.NoError(t, err)

	_, err = NewAmount[NegativeAllowed](-MaxMoney - 1)
	require.True(t, errors.Is(err, errors.ErrAmountRange))

	_, err = NewAmount[NonNegative](-1)
	require.True(t, errors.Is(err, errors.ErrAmountRange))

	_, err = NewAmountFromSatoshis[NonNegative](uint64(MaxMoney) + 1)
	require.True(t, errors.Is(err, errors.ErrAmountRange))
}

func TestAmountArithmetic(t *testing.T) {
	a, err := NewAmount[NegativeAllowed](50)
	require.NoError(t, err)

	b, err := NewAmount[NegativeAllowed](80)
	require.NoError(t, err)

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, int64(-30), diff.Int64())

	sum, err := diff.Add(b)
	require.NoError(t, err)
	assert.Equal(t, a, sum)

	top, err := NewAmount[NegativeAllowed](MaxMoney)
	require.NoError(t, err)

	_, err = top.Add(a)
	require.True(t, errors.Is(err, errors.ErrAmountRange))

	// failed arithmetic leaves the operand untouched
	assert.Equal(t, MaxMoney, top.Int64())
}

func TestConstrain(t *testing.T) {
	neg, err := NewAmount[NegativeAllowed](-5)
	require.NoError(t, err)

	_, err = Constrain[NonNegative](neg)
	require.True(t, errors.Is(err, errors.ErrAmountRange))

	pos, err := NewAmount[NegativeAllowed](5)
	require.NoError(t, err)

	nn, err := Constrain[NonNegative](pos)
	require.NoError(t, err)
	assert.Equal(t, "5", nn.String())
	assert.False(t, nn.IsZero())
}
