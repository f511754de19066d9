package model

import (
	"bytes"
	"sort"
	"testing"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputLocationOrdering(t *testing.T) {
	locations := []OutputLocation{
		{TransactionLocation{Height: 2, Index: 0}, 0},
		{TransactionLocation{Height: 1, Index: 300}, 1},
		{TransactionLocation{Height: 1, Index: 2}, 7},
		{TransactionLocation{Height: 1, Index: 2}, 256},
		{TransactionLocation{Height: 256, Index: 0}, 0},
	}

	byCompare := append([]OutputLocation{}, locations...)
	sort.Slice(byCompare, func(i, j int) bool { return byCompare[i].Less(byCompare[j]) })

	byBytes := append([]OutputLocation{}, locations...)
	sort.Slice(byBytes, func(i, j int) bool { return bytes.Compare(byBytes[i].Bytes(), byBytes[j].Bytes()) < 0 })

	assert.Equal(t, byCompare, byBytes)
	assert.Equal(t, OutputLocation{TransactionLocation{Height: 1, Index: 2}, 7}, byCompare[0])
	assert.Equal(t, OutputLocation{TransactionLocation{Height: 256, Index: 0}, 0}, byCompare[4])
}

func TestLocationBytesRoundTrip(t *testing.T) {
	loc := OutputLocation{TransactionLocation{Height: 840000, Index: 12}, 3}

	decoded, err := NewOutputLocationFromBytes(loc.Bytes())
	require.NoError(t, err)
	assert.Equal(t, loc, decoded)
	assert.Equal(t, "840000/12/3", loc.String())

	_, err = NewOutputLocationFromBytes([]byte{1, 2, 3})
	require.Error(t, err)

	txLoc, err := NewTransactionLocationFromBytes(loc.TransactionLocation.Bytes())
	require.NoError(t, err)
	assert.Equal(t, loc.TransactionLocation, txLoc)
}

func TestNewOutputLocation(t *testing.T) {
	hash := chainhash.DoubleHashH([]byte("tx"))
	utxo := NewOrderedUtxo(&bt.Output{Satoshis: 10}, 5, 2, false)

	loc := NewOutputLocation(NewOutPoint(&hash, 4), utxo)
	assert.Equal(t, OutputLocation{TransactionLocation{Height: 5, Index: 2}, 4}, loc)

	value, err := utxo.Value()
	require.NoError(t, err)
	assert.Equal(t, int64(10), value.Int64())
}
