package state

import (
	"context"

	"github.com/niklaslong/zebra/errors"
)

// Handle serves request with the matching typed method.
func (s *Server) Handle(ctx context.Context, request Request) (Response, error) {
	switch req := request.(type) {
	case CommitBlockRequest:
		hash, err := s.CommitBlock(ctx, req.Block)
		if err != nil {
			return nil, err
		}

		return CommittedResponse{Hash: hash}, nil

	case DepthRequest:
		depth, err := s.Depth(ctx, req.Hash)
		return DepthResponse{Depth: depth}, err

	case TipRequest:
		tip, err := s.Tip(ctx)
		return TipResponse{Tip: tip}, err

	case BlockLocatorRequest:
		hashes, err := s.BlockLocator(ctx)
		return BlockLocatorResponse{Hashes: hashes}, err

	case TransactionRequest:
		tx, err := s.Transaction(ctx, req.Hash)
		return TransactionResponse{Tx: tx}, err

	case BlockRequest:
		block, err := s.Block(ctx, req.Hash)
		return BlockResponse{Block: block}, err

	case AwaitUtxoRequest:
		utxo, err := s.AwaitUtxo(ctx, req.OutPoint)
		if err != nil {
			return nil, err
		}

		return UtxoResponse{Utxo: utxo}, nil

	case FindBlockHashesRequest:
		hashes, err := s.FindBlockHashes(ctx, req.Known, req.Stop)
		return BlockHashesResponse{Hashes: hashes}, err

	case FindBlockHeadersRequest:
		headers, err := s.FindBlockHeaders(ctx, req.Known, req.Stop)
		return BlockHeadersResponse{Headers: headers}, err

	case ReadBlockRequest:
		block, err := s.Block(ctx, req.Hash)
		return BlockResponse{Block: block}, err

	case ReadTransactionRequest:
		tx, err := s.MinedTransaction(ctx, req.Hash)
		return MinedTransactionResponse{Tx: tx}, err

	case TransactionIDsByAddressesRequest:
		txIDs, err := s.TransactionIDsByAddresses(ctx, req.Addresses, req.FromHeight, req.ToHeight)
		return AddressTxIDsResponse{TxIDs: txIDs}, err

	case AddressBalanceRequest:
		balance, err := s.AddressBalance(ctx, req.Addresses)
		return AddressBalanceResponse{Balance: balance}, err

	case AddressUtxosRequest:
		utxos, err := s.AddressUtxos(ctx, req.Addresses)
		return AddressUtxosResponse{Utxos: utxos}, err
	}

	return nil, errors.NewInvalidArgumentError("unknown request type %T", request)
}
