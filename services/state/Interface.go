package state

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/niklaslong/zebra/model"
	"github.com/niklaslong/zebra/stores/finalized"
)

// ClientI is the state service as seen by the rest of the node.
type ClientI interface {
	Health(ctx context.Context, checkLiveness bool) (int, string, error)
	Handle(ctx context.Context, request Request) (Response, error)

	CommitBlock(ctx context.Context, block *model.Block) (chainhash.Hash, error)
	Depth(ctx context.Context, hash chainhash.Hash) (fn.Option[uint32], error)
	Tip(ctx context.Context) (fn.Option[model.ChainTip], error)
	BlockLocator(ctx context.Context) ([]chainhash.Hash, error)
	Transaction(ctx context.Context, hash chainhash.Hash) (fn.Option[*bt.Tx], error)
	Block(ctx context.Context, hash chainhash.Hash) (fn.Option[*model.Block], error)
	AwaitUtxo(ctx context.Context, outPoint model.OutPoint) (model.Utxo, error)
	FindBlockHashes(ctx context.Context, known []chainhash.Hash, stop fn.Option[chainhash.Hash]) ([]chainhash.Hash, error)
	FindBlockHeaders(ctx context.Context, known []chainhash.Hash, stop fn.Option[chainhash.Hash]) ([]model.CountedHeader, error)

	MinedTransaction(ctx context.Context, hash chainhash.Hash) (fn.Option[MinedTx], error)
	TransactionIDsByAddresses(ctx context.Context, addresses []model.Address, fromHeight, toHeight uint32) ([]AddressTxID, error)
	AddressBalance(ctx context.Context, addresses []model.Address) (model.Amount[model.NonNegative], error)
	AddressUtxos(ctx context.Context, addresses []model.Address) ([]AddressUtxo, error)
}

// MinedTx is a transaction with the height of the block that contains it.
type MinedTx struct {
	Tx     *bt.Tx
	Height uint32
}

// AddressTxID is a transaction that touched one of the requested addresses.
type AddressTxID struct {
	Location model.TransactionLocation
	TxID     chainhash.Hash
}

// AddressUtxo is an unspent output paying one of the requested addresses.
type AddressUtxo = finalized.AddressUtxo

// Request is one of the request types below.
type Request interface {
	isRequest()
}

type (
	CommitBlockRequest struct {
		Block *model.Block
	}
	DepthRequest struct {
		Hash chainhash.Hash
	}
	TipRequest          struct{}
	BlockLocatorRequest struct{}
	TransactionRequest  struct {
		Hash chainhash.Hash
	}
	BlockRequest struct {
		Hash chainhash.Hash
	}
	AwaitUtxoRequest struct {
		OutPoint model.OutPoint
	}
	FindBlockHashesRequest struct {
		Known []chainhash.Hash
		Stop  fn.Option[chainhash.Hash]
	}
	FindBlockHeadersRequest struct {
		Known []chainhash.Hash
		Stop  fn.Option[chainhash.Hash]
	}

	// ReadBlockRequest and the requests below never wait for the writer.
	ReadBlockRequest struct {
		Hash chainhash.Hash
	}
	ReadTransactionRequest struct {
		Hash chainhash.Hash
	}
	TransactionIDsByAddressesRequest struct {
		Addresses  []model.Address
		FromHeight uint32
		ToHeight   uint32
	}
	AddressBalanceRequest struct {
		Addresses []model.Address
	}
	AddressUtxosRequest struct {
		Addresses []model.Address
	}
)

func (CommitBlockRequest) isRequest()               {}
func (DepthRequest) isRequest()                     {}
func (TipRequest) isRequest()                       {}
func (BlockLocatorRequest) isRequest()              {}
func (TransactionRequest) isRequest()               {}
func (BlockRequest) isRequest()                     {}
func (AwaitUtxoRequest) isRequest()                 {}
func (FindBlockHashesRequest) isRequest()           {}
func (FindBlockHeadersRequest) isRequest()          {}
func (ReadBlockRequest) isRequest()                 {}
func (ReadTransactionRequest) isRequest()           {}
func (TransactionIDsByAddressesRequest) isRequest() {}
func (AddressBalanceRequest) isRequest()            {}
func (AddressUtxosRequest) isRequest()              {}

// Response is one of the response types below.
type Response interface {
	isResponse()
}

type (
	CommittedResponse struct {
		Hash chainhash.Hash
	}
	DepthResponse struct {
		Depth fn.Option[uint32]
	}
	TipResponse struct {
		Tip fn.Option[model.ChainTip]
	}
	BlockLocatorResponse struct {
		Hashes []chainhash.Hash
	}
	TransactionResponse struct {
		Tx fn.Option[*bt.Tx]
	}
	BlockResponse struct {
		Block fn.Option[*model.Block]
	}
	UtxoResponse struct {
		Utxo model.Utxo
	}
	BlockHashesResponse struct {
		Hashes []chainhash.Hash
	}
	BlockHeadersResponse struct {
		Headers []model.CountedHeader
	}
	MinedTransactionResponse struct {
		Tx fn.Option[MinedTx]
	}
	AddressTxIDsResponse struct {
		TxIDs []AddressTxID
	}
	AddressBalanceResponse struct {
		Balance model.Amount[model.NonNegative]
	}
	AddressUtxosResponse struct {
		Utxos []AddressUtxo
	}
)

func (CommittedResponse) isResponse()        {}
func (DepthResponse) isResponse()            {}
func (TipResponse) isResponse()              {}
func (BlockLocatorResponse) isResponse()     {}
func (TransactionResponse) isResponse()      {}
func (BlockResponse) isResponse()            {}
func (UtxoResponse) isResponse()             {}
func (BlockHashesResponse) isResponse()      {}
func (BlockHeadersResponse) isResponse()     {}
func (MinedTransactionResponse) isResponse() {}
func (AddressTxIDsResponse) isResponse()     {}
func (AddressBalanceResponse) isResponse()   {}
func (AddressUtxosResponse) isResponse()     {}
