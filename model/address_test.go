package model

import (
	"testing"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/bscript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressFromLockingScript(t *testing.T) {
	pkhA := make([]byte, 20)
	pkhB := make([]byte, 20)
	pkhB[0] = 1

	scriptA, err := bscript.NewP2PKHFromPubKeyHash(pkhA)
	require.NoError(t, err)

	scriptB, err := bscript.NewP2PKHFromPubKeyHash(pkhB)
	require.NoError(t, err)

	addrA, ok := AddressFromLockingScript(scriptA)
	require.True(t, ok)
	assert.NotEmpty(t, addrA.String())

	addrB, ok := OutputAddress(&bt.Output{LockingScript: scriptB, Satoshis: 1})
	require.True(t, ok)
	assert.NotEqual(t, addrA, addrB)

	opReturn, err := bscript.NewFromHexString("006a0568656c6c6f")
	require.NoError(t, err)

	_, ok = AddressFromLockingScript(opReturn)
	assert.False(t, ok)

	_, ok = OutputAddress(nil)
	assert.False(t, ok)
}
