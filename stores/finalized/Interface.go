// Package finalized defines the storage of blocks that left the non-finalized state. Finalized
// blocks are never reorganized.
package finalized

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/niklaslong/zebra/model"
)

// AddressUtxo is an unspent output of an address.
type AddressUtxo struct {
	Location model.OutputLocation
	OutPoint model.OutPoint
	Output   *bt.Output
}

// AddressTx is a transaction that touched an address.
type AddressTx struct {
	Location model.TransactionLocation
	TxID     chainhash.Hash
}

// Store holds the finalized chain.
//
// Lookups of something that is not stored fail with a not found error: ErrBlockNotFound for
// blocks, ErrTxNotFound for transactions, ErrUtxoNotFound for outputs and ErrNotFound for the
// tip of an empty store. Utxo fails with ErrSpent for an output that was spent.
type Store interface {
	Health(ctx context.Context, checkLiveness bool) (int, string, error)

	// CommitFinalized appends block to the finalized chain. It fails with ErrBlockInvalid when
	// block does not extend the tip, with ErrTxMissingInput or ErrTxInvalidDoubleSpend when an
	// input does not spend a stored unspent output, and with ErrAmountRange when an address
	// balance would become negative. Nothing is stored when it fails.
	CommitFinalized(ctx context.Context, block *model.FinalizedBlock) error

	Tip(ctx context.Context) (model.ChainTip, error)
	Height(ctx context.Context, hash *chainhash.Hash) (uint32, error)
	Hash(ctx context.Context, height uint32) (*chainhash.Hash, error)
	Block(ctx context.Context, hash *chainhash.Hash) (*model.Block, error)
	Header(ctx context.Context, hash *chainhash.Hash) (model.CountedHeader, error)
	Transaction(ctx context.Context, hash *chainhash.Hash) (*bt.Tx, model.TransactionLocation, error)
	Utxo(ctx context.Context, outPoint model.OutPoint) (model.OrderedUtxo, error)

	// AddressBalance is zero for an address that was never used.
	AddressBalance(ctx context.Context, addr model.Address) (model.Amount[model.NonNegative], error)
	// AddressUtxos returns the unspent outputs of addr in chain order.
	AddressUtxos(ctx context.Context, addr model.Address) ([]AddressUtxo, error)
	// AddressTxIDs returns the transactions that touched addr in blocks fromHeight to toHeight
	// inclusive, in chain order.
	AddressTxIDs(ctx context.Context, addr model.Address, fromHeight, toHeight uint32) ([]AddressTx, error)

	Close() error
}
