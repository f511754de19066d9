package state

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/niklaslong/zebra/errors"
	"github.com/niklaslong/zebra/model"
	"github.com/niklaslong/zebra/services/state/nonfinalized"
	"github.com/niklaslong/zebra/tracing"
)

// CommitBlock validates block against the chain it extends and adds it to the non-finalized
// state. Losing chains are pruned and roots deep enough in the best chain are moved to the
// finalized store before the new state is published. A rejected block changes nothing.
func (s *Server) CommitBlock(ctx context.Context, block *model.Block) (hash chainhash.Hash, err error) {
	if block == nil || block.Header == nil {
		return hash, errors.NewInvalidArgumentError("block is nil")
	}

	hash = *block.Hash()

	ctx, _, deferFn := tracing.StartTracing(ctx, "state:CommitBlock",
		tracing.WithHistogram(prometheusStateCommitBlock),
		tracing.WithLogMessage(s.logger, "[CommitBlock][%s] at height %d", hash, block.Height),
	)
	defer func() {
		deferFn(err)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return hash, errors.NewServiceNotStartedError("state service was not initialised")
	}

	contextual, err := s.contextualize(ctx, block)
	if err == nil {
		err = s.verifier.VerifyBlock(ctx, contextual)
		if err != nil && !errors.Is(err, errors.ErrBlockInvalid) && !errors.Is(err, errors.ErrTxInvalid) {
			err = errors.NewBlockInvalidError("block %s failed verification", hash, err)
		}
	}

	if err == nil {
		err = s.state.Commit(contextual)
	}

	if err != nil {
		prometheusStateRejectedBlocks.WithLabelValues(errors.GetErrorCategory(err)).Inc()

		if errors.IsBlockRejection(err) {
			s.logger.Warnf("[CommitBlock][%s] rejected block at height %d: %v", hash, block.Height, err)
		} else {
			s.logger.Errorf("[CommitBlock][%s] failed to commit block at height %d: %v", hash, block.Height, err)
		}

		return hash, err
	}

	if pruned := s.state.PruneLosers(); pruned > 0 {
		prometheusStatePrunedChains.Add(float64(pruned))
		s.logger.Infof("[CommitBlock][%s] pruned %d losing chains", hash, pruned)
	}

	s.publish()
	s.finalize(ctx)

	s.waiters.respond(contextual)

	return hash, nil
}

// finalize moves roots of the best chain to the store until it is no deeper than the
// confirmation depth. A store failure leaves the root in memory to be retried after the next
// block.
func (s *Server) finalize(ctx context.Context) {
	for {
		root, err := s.finalizeRoot(ctx)
		if err != nil {
			if errors.IsRetryableError(err) {
				s.logger.Warnf("[finalize] store unavailable, retrying after the next block: %v", err)
			} else {
				s.logger.Errorf("[finalize] failed to finalize root: %v", err)
			}

			return
		}

		if root == nil {
			return
		}

		prometheusStateFinalizedBlocks.Inc()
		s.logger.Debugf("[finalize] finalized block %s", root.Tip())
	}
}

func (s *Server) finalizeRoot(ctx context.Context) (*model.FinalizedBlock, error) {
	s.finalizeMu.Lock()
	defer s.finalizeMu.Unlock()

	root, err := s.state.FinalizeRoot(func(block *model.FinalizedBlock) error {
		return s.store.CommitFinalized(ctx, block)
	})
	if err != nil || root == nil {
		return nil, err
	}

	s.publish()

	return root, nil
}

// contextualize resolves every input of block against the chain ending at its parent.
func (s *Server) contextualize(ctx context.Context, block *model.Block) (*model.ContextualBlock, error) {
	hash := *block.Hash()

	if s.state.AnyChainContains(hash) {
		return nil, errors.NewBlockExistsError("block %s is already in a non-finalized chain", hash)
	}

	if _, err := s.store.Height(ctx, &hash); err == nil {
		return nil, errors.NewBlockExistsError("block %s is already finalized", hash)
	} else if !errors.Is(err, errors.ErrBlockNotFound) {
		return nil, err
	}

	parent, parentHeight, err := s.parentChain(block)
	if err != nil {
		return nil, err
	}

	if len(block.Transactions) == 0 {
		return nil, errors.NewBlockInvalidError("block %s has no transactions", hash)
	}

	contextual := model.NewContextualBlock(block, nil)
	spentInBlock := make(map[model.OutPoint]chainhash.Hash)

	for i, tx := range block.Transactions {
		if i == 0 {
			continue
		}

		txID := contextual.TxIDs[i]

		for _, input := range tx.Inputs {
			outPoint := model.OutPointFromInput(input)

			if first, spent := spentInBlock[outPoint]; spent {
				return nil, errors.NewTxInvalidDoubleSpendError("transactions %s and %s of block %s both spend %s", first, txID, hash, outPoint)
			}

			spentInBlock[outPoint] = txID

			if created, ok := contextual.NewOutputs[outPoint]; ok {
				if created.TxIndexInBlock >= uint32(i) {
					return nil, errors.NewTxMissingInputError("transaction %s spends %s which is created later in block %s", txID, outPoint, hash)
				}

				contextual.SpentUtxos[outPoint] = created

				continue
			}

			utxo, err := s.resolveUtxo(ctx, parent, parentHeight, outPoint)
			if err != nil {
				s.logger.Debugf("[contextualize][%s] transaction %s: %v", hash, txID, err)
				return nil, err
			}

			contextual.SpentUtxos[outPoint] = utxo
		}
	}

	return contextual, nil
}

// parentChain returns the best chain holding the parent of block, nil when the parent is the
// finalized tip or block is the first genesis block.
func (s *Server) parentChain(block *model.Block) (*nonfinalized.Chain, uint32, error) {
	prevHash := *block.PrevHash()

	if chain := s.state.ChainFor(prevHash); chain != nil {
		height, _ := chain.Height(prevHash)
		return chain, height, s.checkHeight(block, height)
	}

	if tip, ok := s.state.FinalizedTip(); ok {
		if tip.Hash.IsEqual(&prevHash) {
			return nil, tip.Height, s.checkHeight(block, tip.Height)
		}

		return nil, 0, errors.NewBlockParentNotFoundError("parent %s of block %s is unknown", prevHash, block.Hash())
	}

	if block.Height == 0 && prevHash.IsEqual(&chainhash.Hash{}) && s.state.ChainCount() == 0 {
		return nil, 0, nil
	}

	return nil, 0, errors.NewBlockParentNotFoundError("parent %s of block %s is unknown", prevHash, block.Hash())
}

func (s *Server) checkHeight(block *model.Block, parentHeight uint32) error {
	if block.Height != parentHeight+1 {
		return errors.NewBlockInvalidError("block %s at height %d does not follow its parent at height %d", block.Hash(), block.Height, parentHeight)
	}

	return nil
}

// resolveUtxo finds the output spent by an input of a block extending parent at parentHeight,
// looking at the blocks of parent up to that height and then at the finalized store.
func (s *Server) resolveUtxo(ctx context.Context, parent *nonfinalized.Chain, parentHeight uint32, outPoint model.OutPoint) (model.OrderedUtxo, error) {
	if parent != nil {
		if spendingTxID, ok := parent.SpendingTxID(outPoint); ok {
			if location, ok := parent.TxLocation(spendingTxID); ok && location.Height <= parentHeight {
				return model.OrderedUtxo{}, errors.NewTxInvalidDoubleSpendError("output %s is already spent by %s", outPoint, spendingTxID)
			}
		}

		if utxo, ok := parent.CreatedUtxo(outPoint); ok && utxo.Height <= parentHeight {
			return utxo, nil
		}
	}

	utxo, err := s.store.Utxo(ctx, outPoint)

	switch {
	case err == nil:
		return utxo, nil
	case errors.Is(err, errors.ErrUtxoNotFound):
		return model.OrderedUtxo{}, errors.NewTxMissingInputError("output %s is unknown", outPoint)
	case errors.Is(err, errors.ErrSpent):
		return model.OrderedUtxo{}, errors.NewTxInvalidDoubleSpendError("output %s is already spent", outPoint, err)
	default:
		return model.OrderedUtxo{}, err
	}
}
