package model

import (
	"encoding/hex"
	"testing"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	block1       = "0000002006226e46111a0b59caaf126043eb5bbf28c34f3a5e332a1fc7b2b73cf188910f1633819a69afbd7ce1f1a01c3b786fcbb023274f3b15172b24feadd4c80e6c6a8b491267ffff7f20040000000102000000010000000000000000000000000000000000000000000000000000000000000000ffffffff03510101ffffffff0100f2052a01000000232103656065e6886ca1e947de3471c9e723673ab6ba34724476417fa9fcef8bafa604ac00000000"
	block1Header = block1[:160]
)

func TestBlockHeader(t *testing.T) {
	header, err := NewBlockHeaderFromString(block1Header)
	require.NoError(t, err)

	assert.Equal(t, uint32(0x20000000), header.Version)
	assert.Equal(t, "207fffff", header.Bits.String())
	assert.Equal(t, "0f9188f13cb7b2c71f2a335e3a4fc328bf5beb436012afca590b1a11466e2206", header.HashPrevBlock.String())
	assert.Equal(t, "4c74e0128fef1a01469380c05b215afaf4cfe51183461f4a7996a84295b6925a", header.Hash().String())
	assert.Equal(t, block1Header, hex.EncodeToString(header.Bytes()))

	_, err = NewBlockHeaderFromBytes([]byte{0x01, 0x02})
	require.Error(t, err)
}

func TestNewBlockFromBytes(t *testing.T) {
	blockBytes, err := hex.DecodeString(block1)
	require.NoError(t, err)

	block, err := NewBlockFromBytes(blockBytes, 1)
	require.NoError(t, err)

	assert.Equal(t, uint32(1), block.Height)
	assert.Equal(t, uint64(1), block.TransactionCount())
	assert.True(t, block.CoinbaseTx().IsCoinbase())
	assert.Equal(t, uint64(5000000000), block.CoinbaseTx().Outputs[0].Satoshis)
	require.NoError(t, block.CheckMerkleRoot())
	assert.Equal(t, block1, hex.EncodeToString(block.Bytes()))

	counted := block.CountedHeader()
	assert.Equal(t, uint64(1), counted.TransactionCount)
	assert.Equal(t, block.Hash(), counted.Header.Hash())
}

func TestNewBlockFromBytesErrors(t *testing.T) {
	blockBytes, err := hex.DecodeString(block1)
	require.NoError(t, err)

	_, err = NewBlockFromBytes(blockBytes[:40], 1)
	require.Error(t, err)

	_, err = NewBlockFromBytes(append(append([]byte{}, blockBytes...), 0x00), 1)
	require.Error(t, err)
}

func TestMerkleRoot(t *testing.T) {
	blockBytes, err := hex.DecodeString(block1)
	require.NoError(t, err)

	block, err := NewBlockFromBytes(blockBytes, 1)
	require.NoError(t, err)

	coinbase := block.CoinbaseTx()

	t.Run("single transaction root is its txid", func(t *testing.T) {
		assert.Equal(t, coinbase.TxIDChainHash().String(), block.CalculateMerkleRoot().String())
	})

	t.Run("odd level duplicates last hash", func(t *testing.T) {
		second := bt.NewTx()
		require.NoError(t, second.From(coinbase.TxIDChainHash().String(), 0, coinbase.Outputs[0].LockingScript.String(), coinbase.Outputs[0].Satoshis))
		// the coinbase pays to a P2PK script, which PayTo refuses
		second.AddOutput(&bt.Output{Satoshis: 1000, LockingScript: coinbase.Outputs[0].LockingScript})
		require.Len(t, second.Outputs, 1)

		b := NewBlock(block.Header, 2, []*bt.Tx{coinbase, second, second})
		three := b.CalculateMerkleRoot()

		b4 := NewBlock(block.Header, 2, []*bt.Tx{coinbase, second, second, second})
		assert.Equal(t, three.String(), b4.CalculateMerkleRoot().String())

		require.Error(t, b.CheckMerkleRoot())
	})

	t.Run("empty block", func(t *testing.T) {
		b := NewBlock(block.Header, 2, nil)
		assert.Equal(t, chainhash.Hash{}, *b.CalculateMerkleRoot())
	})
}
