package model

import (
	"bytes"
	"cmp"
	"fmt"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// ChainTip is the height and hash of the last block of a chain.
type ChainTip struct {
	Height uint32
	Hash   chainhash.Hash
}

func (t ChainTip) String() string {
	return fmt.Sprintf("%d/%s", t.Height, t.Hash)
}

// ContextualBlock is a block whose inputs have been resolved against the chain it extends.
type ContextualBlock struct {
	*Block
	BlockHash chainhash.Hash
	TxIDs     []chainhash.Hash
	// NewOutputs holds every output created by the block.
	NewOutputs map[OutPoint]OrderedUtxo
	// SpentUtxos holds the output spent by every non-coinbase input, including outputs created
	// earlier in the same block.
	SpentUtxos map[OutPoint]OrderedUtxo
}

// NewContextualBlock indexes the outputs of block. spent must hold the output spent by every
// non-coinbase input.
func NewContextualBlock(block *Block, spent map[OutPoint]OrderedUtxo) *ContextualBlock {
	txIDs := make([]chainhash.Hash, len(block.Transactions))
	newOutputs := make(map[OutPoint]OrderedUtxo)

	for i, tx := range block.Transactions {
		txIDs[i] = *tx.TxIDChainHash()

		for vout, output := range tx.Outputs {
			newOutputs[OutPoint{Hash: txIDs[i], Index: uint32(vout)}] = NewOrderedUtxo(output, block.Height, uint32(i), i == 0)
		}
	}

	if spent == nil {
		spent = make(map[OutPoint]OrderedUtxo)
	}

	return &ContextualBlock{
		Block:      block,
		BlockHash:  *block.Hash(),
		TxIDs:      txIDs,
		NewOutputs: newOutputs,
		SpentUtxos: spent,
	}
}

// Tip returns the height and hash of the block.
func (b *ContextualBlock) Tip() ChainTip {
	return ChainTip{Height: b.Height, Hash: b.BlockHash}
}

// TxLocation is the location of the transaction at index i.
func (b *ContextualBlock) TxLocation(i int) TransactionLocation {
	return TransactionLocation{Height: b.Height, Index: uint32(i)}
}

// CompareOutPoints orders outpoints by transaction hash bytes, then index.
func CompareOutPoints(a, b OutPoint) int {
	if c := bytes.Compare(a.Hash[:], b.Hash[:]); c != 0 {
		return c
	}

	return cmp.Compare(a.Index, b.Index)
}

// AddressTransfer is the effect of one output creation or spend on an address, as handed to
// finalized storage.
type AddressTransfer struct {
	Address Address
	// Location is the output created or spent.
	Location OutputLocation
	OutPoint OutPoint
	// TxID is the creating transaction for a creation and the spending transaction for a spend.
	TxID       chainhash.Hash
	TxLocation TransactionLocation
	Output     *bt.Output
	Spend      bool
}

// Delta is the signed balance change of the transfer.
func (t AddressTransfer) Delta() (Amount[NegativeAllowed], error) {
	value, err := NewAmountFromSatoshis[NegativeAllowed](t.Output.Satoshis)
	if err != nil {
		return 0, err
	}

	if t.Spend {
		return Amount[NegativeAllowed](0).Sub(value)
	}

	return value, nil
}

// FinalizedBlock is the root block of the best chain on its way to finalized storage, together
// with the address transfers that were removed from the in-memory indexes.
type FinalizedBlock struct {
	*ContextualBlock
	Transfers []AddressTransfer
}

// BalanceDeltas sums the transfers per address.
func (f *FinalizedBlock) BalanceDeltas() (map[Address]Amount[NegativeAllowed], error) {
	deltas := make(map[Address]Amount[NegativeAllowed])

	for _, transfer := range f.Transfers {
		delta, err := transfer.Delta()
		if err != nil {
			return nil, err
		}

		if deltas[transfer.Address], err = deltas[transfer.Address].Add(delta); err != nil {
			return nil, err
		}
	}

	return deltas, nil
}
