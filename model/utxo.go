package model

import (
	"fmt"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// OutPoint references an output by transaction id and output index.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

func NewOutPoint(hash *chainhash.Hash, index uint32) OutPoint {
	return OutPoint{Hash: *hash, Index: index}
}

// OutPointFromInput returns the outpoint spent by in.
func OutPointFromInput(in *bt.Input) OutPoint {
	return OutPoint{Hash: *in.PreviousTxIDChainHash(), Index: in.PreviousTxOutIndex}
}

func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.Hash.String(), o.Index)
}

// Utxo is an unspent output together with the height of the block that created it.
type Utxo struct {
	Output       *bt.Output
	Height       uint32
	FromCoinbase bool
}

func (u Utxo) Satoshis() uint64 {
	if u.Output == nil {
		return 0
	}

	return u.Output.Satoshis
}

// Value returns the output value, failing for values above MaxMoney.
func (u Utxo) Value() (Amount[NonNegative], error) {
	return NewAmountFromSatoshis[NonNegative](u.Satoshis())
}

// OrderedUtxo also records the position of the creating transaction inside its block.
type OrderedUtxo struct {
	Utxo
	TxIndexInBlock uint32
}

func NewOrderedUtxo(output *bt.Output, height uint32, txIndexInBlock uint32, fromCoinbase bool) OrderedUtxo {
	return OrderedUtxo{
		Utxo: Utxo{
			Output:       output,
			Height:       height,
			FromCoinbase: fromCoinbase,
		},
		TxIndexInBlock: txIndexInBlock,
	}
}

func (u OrderedUtxo) TransactionLocation() TransactionLocation {
	return TransactionLocation{Height: u.Height, Index: u.TxIndexInBlock}
}
