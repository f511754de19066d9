package state

import (
	"context"
	"slices"
	"time"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/niklaslong/zebra/errors"
	"github.com/niklaslong/zebra/model"
	"github.com/niklaslong/zebra/services/state/nonfinalized"
)

func observeRead(request string, start time.Time) {
	prometheusStateRead.WithLabelValues(request).Observe(time.Since(start).Seconds())
}

// Depth is the number of blocks on top of hash in the best chain, none when hash is not in it.
func (s *Server) Depth(ctx context.Context, hash chainhash.Hash) (fn.Option[uint32], error) {
	defer observeRead("Depth", time.Now())

	snap, release := s.view()
	defer release()

	tipOpt := snap.tip()
	if tipOpt.IsNone() {
		return fn.None[uint32](), nil
	}

	tip := tipOpt.UnwrapOr(model.ChainTip{})

	height, found, err := s.heightOf(ctx, snap, hash)
	if err != nil || !found {
		return fn.None[uint32](), err
	}

	return fn.Some(tip.Height - height), nil
}

// Tip is the tip of the best chain, or the finalized tip when there is no non-finalized block.
func (s *Server) Tip(_ context.Context) (fn.Option[model.ChainTip], error) {
	snap, release := s.view()
	defer release()

	return snap.tip(), nil
}

// Transaction looks hash up in the best chain.
func (s *Server) Transaction(ctx context.Context, hash chainhash.Hash) (fn.Option[*bt.Tx], error) {
	mined, err := s.MinedTransaction(ctx, hash)
	if err != nil {
		return fn.None[*bt.Tx](), err
	}

	return fn.MapOption(func(m MinedTx) *bt.Tx { return m.Tx })(mined), nil
}

// MinedTransaction looks hash up in the best chain and returns it with its block height.
func (s *Server) MinedTransaction(ctx context.Context, hash chainhash.Hash) (fn.Option[MinedTx], error) {
	defer observeRead("Transaction", time.Now())

	snap, release := s.view()
	defer release()

	if best := snap.best(); best != nil {
		if tx, location, ok := best.Transaction(hash); ok {
			return fn.Some(MinedTx{Tx: tx, Height: location.Height}), nil
		}
	}

	tx, location, err := s.store.Transaction(ctx, &hash)
	if err != nil {
		if errors.Is(err, errors.ErrTxNotFound) {
			return fn.None[MinedTx](), nil
		}

		return fn.None[MinedTx](), err
	}

	return fn.Some(MinedTx{Tx: tx, Height: location.Height}), nil
}

// Block looks hash up in the best chain.
func (s *Server) Block(ctx context.Context, hash chainhash.Hash) (fn.Option[*model.Block], error) {
	defer observeRead("Block", time.Now())

	snap, release := s.view()
	defer release()

	if best := snap.best(); best != nil {
		if block, ok := best.Block(hash); ok {
			return fn.Some(block.Block), nil
		}
	}

	block, err := s.store.Block(ctx, &hash)
	if err != nil {
		if errors.Is(err, errors.ErrBlockNotFound) {
			return fn.None[*model.Block](), nil
		}

		return fn.None[*model.Block](), err
	}

	return fn.Some(block), nil
}

// AwaitUtxo returns the output as soon as a block creating it is committed to any chain, or
// right away when it already is. Finalized outputs are only returned while unspent.
func (s *Server) AwaitUtxo(ctx context.Context, outPoint model.OutPoint) (model.Utxo, error) {
	ch, cancel := s.waiters.register(outPoint)
	defer cancel()

	utxo, found, err := s.knownUtxo(ctx, outPoint)
	if err != nil {
		return model.Utxo{}, err
	}

	if found {
		return utxo, nil
	}

	select {
	case utxo = <-ch:
		return utxo, nil
	case <-ctx.Done():
		return model.Utxo{}, errors.NewContextCanceledError("waiting for output %s", outPoint, ctx.Err())
	}
}

func (s *Server) knownUtxo(ctx context.Context, outPoint model.OutPoint) (model.Utxo, bool, error) {
	snap, release := s.view()
	defer release()

	for _, chain := range snap.chains {
		if utxo, ok := chain.CreatedUtxo(outPoint); ok {
			return utxo.Utxo, true, nil
		}
	}

	utxo, err := s.store.Utxo(ctx, outPoint)

	switch {
	case err == nil:
		return utxo.Utxo, true, nil
	case errors.Is(err, errors.ErrUtxoNotFound):
		return model.Utxo{}, false, nil
	default:
		return model.Utxo{}, false, err
	}
}

// AddressBalance is the total balance of addresses in the best chain.
func (s *Server) AddressBalance(ctx context.Context, addresses []model.Address) (model.Amount[model.NonNegative], error) {
	defer observeRead("AddressBalance", time.Now())

	snap, release := s.view()
	defer release()

	var total model.Amount[model.NegativeAllowed]

	for _, addr := range uniqueAddresses(addresses) {
		balance, err := s.store.AddressBalance(ctx, addr)
		if err != nil {
			return 0, err
		}

		if total, err = total.Add(model.Amount[model.NegativeAllowed](balance)); err != nil {
			return 0, errors.NewAmountRangeError("balance of %d addresses", len(addresses), err)
		}

		if transfers := bestTransfers(snap, addr); transfers != nil {
			if total, err = total.Add(transfers.Balance()); err != nil {
				return 0, errors.NewAmountRangeError("balance of %d addresses", len(addresses), err)
			}
		}
	}

	balance, err := model.Constrain[model.NonNegative](total)
	if err != nil {
		return 0, errors.NewStateError("negative balance %d for %d addresses", total.Int64(), len(addresses), err)
	}

	return balance, nil
}

// TransactionIDsByAddresses returns the transactions of the best chain that touched any of
// addresses between fromHeight and toHeight, in chain order.
func (s *Server) TransactionIDsByAddresses(ctx context.Context, addresses []model.Address, fromHeight, toHeight uint32) ([]AddressTxID, error) {
	defer observeRead("TransactionIDsByAddresses", time.Now())

	if fromHeight > toHeight {
		return nil, nil
	}

	snap, release := s.view()
	defer release()

	byLocation := make(map[model.TransactionLocation]chainhash.Hash)

	for _, addr := range uniqueAddresses(addresses) {
		stored, err := s.store.AddressTxIDs(ctx, addr, fromHeight, toHeight)
		if err != nil {
			return nil, err
		}

		for _, tx := range stored {
			byLocation[tx.Location] = tx.TxID
		}

		if transfers := bestTransfers(snap, addr); transfers != nil {
			for _, tx := range transfers.TxIDs(snap.best().TxLocation) {
				if tx.Location.Height >= fromHeight && tx.Location.Height <= toHeight {
					byLocation[tx.Location] = tx.Hash
				}
			}
		}
	}

	txIDs := make([]AddressTxID, 0, len(byLocation))
	for location, hash := range byLocation {
		txIDs = append(txIDs, AddressTxID{Location: location, TxID: hash})
	}

	slices.SortFunc(txIDs, func(a, b AddressTxID) int {
		return a.Location.Compare(b.Location)
	})

	return txIDs, nil
}

// AddressUtxos returns the unspent outputs of addresses in the best chain, in chain order.
func (s *Server) AddressUtxos(ctx context.Context, addresses []model.Address) ([]AddressUtxo, error) {
	defer observeRead("AddressUtxos", time.Now())

	snap, release := s.view()
	defer release()

	best := snap.best()

	var utxos []AddressUtxo

	for _, addr := range uniqueAddresses(addresses) {
		stored, err := s.store.AddressUtxos(ctx, addr)
		if err != nil {
			return nil, err
		}

		for _, utxo := range stored {
			if best == nil || !best.IsSpent(utxo.OutPoint) {
				utxos = append(utxos, utxo)
			}
		}

		transfers := bestTransfers(snap, addr)
		if transfers == nil {
			continue
		}

		for _, created := range transfers.CreatedUtxos() {
			outPoint := chainOutPoint(best, created.Location)
			if !best.IsSpent(outPoint) {
				utxos = append(utxos, AddressUtxo{Location: created.Location, OutPoint: outPoint, Output: created.Output})
			}
		}
	}

	slices.SortFunc(utxos, func(a, b AddressUtxo) int {
		return a.Location.Compare(b.Location)
	})

	return utxos, nil
}

func bestTransfers(snap *snapshot, addr model.Address) *nonfinalized.TransparentTransfers {
	best := snap.best()
	if best == nil {
		return nil
	}

	return best.AddressTransfers(addr)
}

// chainOutPoint is the outpoint of an output created by chain.
func chainOutPoint(chain *nonfinalized.Chain, location model.OutputLocation) model.OutPoint {
	block, ok := chain.BlockAt(location.Height)
	if !ok || int(location.Index) >= len(block.TxIDs) {
		panic(errors.NewStructuralError("output %s is indexed but not in its chain", location))
	}

	return model.OutPoint{Hash: block.TxIDs[location.Index], Index: location.OutputIndex}
}

func uniqueAddresses(addresses []model.Address) []model.Address {
	unique := slices.Clone(addresses)
	slices.Sort(unique)

	return slices.Compact(unique)
}
