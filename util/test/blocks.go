package test

import (
	"encoding/binary"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/bscript"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/niklaslong/zebra/model"
)

// RegtestBits is the easiest regtest target.
const RegtestBits = 0x207fffff

// Key is a pay-to-public-key-hash locking script together with its address.
type Key struct {
	Script  *bscript.Script
	Address model.Address
}

// NewKey derives a deterministic P2PKH key from seed.
func NewKey(seed byte) Key {
	pubKeyHash := make([]byte, 20)
	pubKeyHash[0] = seed
	pubKeyHash[19] = 0xaa

	script, err := bscript.NewP2PKHFromPubKeyHash(pubKeyHash)
	if err != nil {
		panic(err)
	}

	addr, ok := model.AddressFromLockingScript(script)
	if !ok {
		panic("p2pkh script without address")
	}

	return Key{Script: script, Address: addr}
}

// Pay is an output of sats to key.
func (k Key) Pay(sats uint64) *bt.Output {
	return &bt.Output{Satoshis: sats, LockingScript: k.Script}
}

// OpReturn is an output without an address.
func OpReturn(data ...byte) *bt.Output {
	script := bscript.NewFromBytes(append([]byte{bscript.OpFALSE, bscript.OpRETURN}, data...))
	return &bt.Output{LockingScript: script}
}

// Coinbase builds a coinbase transaction for height. tag makes coinbases of competing blocks
// at the same height distinct.
func Coinbase(height uint32, tag uint32, outputs ...*bt.Output) *bt.Tx {
	unlocking := make([]byte, 8)
	binary.LittleEndian.PutUint32(unlocking[:4], height)
	binary.LittleEndian.PutUint32(unlocking[4:], tag)

	input := &bt.Input{
		PreviousTxOutIndex: 0xffffffff,
		UnlockingScript:    bscript.NewFromBytes(unlocking),
		SequenceNumber:     0xffffffff,
	}
	_ = input.PreviousTxIDAdd(&chainhash.Hash{})

	tx := bt.NewTx()
	tx.Inputs = append(tx.Inputs, input)
	tx.Outputs = append(tx.Outputs, outputs...)

	return tx
}

// Spend builds a transaction spending outPoints into outputs.
func Spend(outPoints []model.OutPoint, outputs ...*bt.Output) *bt.Tx {
	tx := bt.NewTx()

	for _, outPoint := range outPoints {
		input := &bt.Input{
			PreviousTxOutIndex: outPoint.Index,
			UnlockingScript:    bscript.NewFromBytes([]byte{bscript.OpTRUE}),
			SequenceNumber:     0xffffffff,
		}
		_ = input.PreviousTxIDAdd(&outPoint.Hash)

		tx.Inputs = append(tx.Inputs, input)
	}

	tx.Outputs = append(tx.Outputs, outputs...)

	return tx
}

// OutPointOf is output vout of tx.
func OutPointOf(tx *bt.Tx, vout uint32) model.OutPoint {
	return model.OutPoint{Hash: *tx.TxIDChainHash(), Index: vout}
}

// NewBlock builds a regtest block at height on top of prev, a zero hash for genesis.
// nonce distinguishes competing blocks with the same parent.
func NewBlock(prev chainhash.Hash, height uint32, nonce uint32, txs ...*bt.Tx) *model.Block {
	header := &model.BlockHeader{
		Version:       1,
		HashPrevBlock: &prev,
		Timestamp:     1_700_000_000 + height*600,
		Bits:          model.NewNBitFromUint32(RegtestBits),
		Nonce:         nonce,
	}

	block := model.NewBlock(header, height, txs)
	header.HashMerkleRoot = block.CalculateMerkleRoot()

	return block
}

// NextBlock builds a block on top of parent whose coinbase pays reward to key, followed by txs.
func NextBlock(parent *model.Block, nonce uint32, key Key, reward uint64, txs ...*bt.Tx) *model.Block {
	height := parent.Height + 1

	return NewBlock(*parent.Hash(), height, nonce, append([]*bt.Tx{Coinbase(height, nonce, key.Pay(reward))}, txs...)...)
}

// Genesis builds a genesis block whose coinbase pays reward to key.
func Genesis(key Key, reward uint64) *model.Block {
	return NewBlock(chainhash.Hash{}, 0, 0, Coinbase(0, 0, key.Pay(reward)))
}

// Utxos resolves the inputs of test blocks. It remembers every output it has seen, spent or
// not, so that double spends can be built.
type Utxos map[model.OutPoint]model.OrderedUtxo

// Contextualize resolves the inputs of block against every output seen so far, including the
// outputs of block itself, and remembers the outputs of block.
func (u Utxos) Contextualize(block *model.Block) *model.ContextualBlock {
	contextual := model.NewContextualBlock(block, nil)

	for outPoint, utxo := range contextual.NewOutputs {
		u[outPoint] = utxo
	}

	for _, tx := range block.Transactions[1:] {
		for _, input := range tx.Inputs {
			outPoint := model.OutPointFromInput(input)
			if utxo, ok := u[outPoint]; ok {
				contextual.SpentUtxos[outPoint] = utxo
			}
		}
	}

	return contextual
}
