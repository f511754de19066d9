// Package nonfinalized tracks the candidate chains on top of the finalized tip together with the
// per-address transfer indexes of each chain.
package nonfinalized

import (
	"slices"
	"strings"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/niklaslong/zebra/errors"
	"github.com/niklaslong/zebra/model"
	"github.com/niklaslong/zebra/settings"
	"github.com/niklaslong/zebra/ulogger"
)

// ChainComparator orders chains sharing a finalized tip. It returns a positive number when a is
// the better chain.
type ChainComparator func(a, b *Chain) int

// CompareByWork prefers the chain with more work. Ties are broken by the tip hash so the order
// is total.
func CompareByWork(a, b *Chain) int {
	if c := a.PartialCumulativeWork().Cmp(b.PartialCumulativeWork()); c != 0 {
		return c
	}

	aTip, _ := a.Tip()
	bTip, _ := b.Tip()

	return strings.Compare(aTip.Hash.String(), bTip.Hash.String())
}

type Option func(*NonFinalizedState)

// WithComparator replaces CompareByWork.
func WithComparator(compare ChainComparator) Option {
	return func(s *NonFinalizedState) {
		s.compare = compare
	}
}

// WithFinalizedTip starts the state on top of an existing finalized chain.
func WithFinalizedTip(tip model.ChainTip) Option {
	return func(s *NonFinalizedState) {
		s.finalizedTip = &tip
	}
}

// NonFinalizedState is the set of candidate chains sharing the finalized tip.
//
// It is not safe for concurrent use, callers serialize every method. The blocks and indices of
// chains returned by its methods are never modified afterwards: every mutation works on a clone
// that replaces the original only once it succeeded. Only the lifecycle state of a dropped chain
// moves to pruned; the fsm guards it with its own lock.
type NonFinalizedState struct {
	logger            ulogger.Logger
	reorgLimit        uint32
	confirmationDepth uint32
	compare           ChainComparator
	finalizedTip      *model.ChainTip
	// chains is sorted by compare, best chain last.
	chains []*Chain
}

func New(logger ulogger.Logger, tSettings *settings.Settings, opts ...Option) *NonFinalizedState {
	s := &NonFinalizedState{
		logger:            logger,
		reorgLimit:        tSettings.State.ReorgLimit,
		confirmationDepth: tSettings.State.ConfirmationDepth,
		compare:           CompareByWork,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Commit adds block to the chain it extends: the chain whose tip is its parent, a fork of the
// chain holding its parent, or a new chain on the finalized tip. A failed commit leaves the
// state unchanged.
func (s *NonFinalizedState) Commit(block *model.ContextualBlock) error {
	if s.AnyChainContains(block.BlockHash) || (s.finalizedTip != nil && s.finalizedTip.Hash == block.BlockHash) {
		return errors.NewBlockExistsError("block %s is already known", block.BlockHash)
	}

	parent := *block.PrevHash()

	var (
		extended *Chain
		replaced = -1
	)

	for i, chain := range s.chains {
		if tip, _ := chain.Tip(); !chain.IsEmpty() && tip.Hash == parent {
			extended = chain.Clone()
			replaced = i

			break
		}
	}

	if extended == nil {
		for _, chain := range slices.Backward(s.chains) {
			if !chain.Contains(parent) {
				continue
			}

			if fork, ok := chain.Fork(parent); ok {
				s.logger.Debugf("[NonFinalizedState] forking chain %s at %s for block %s", chain.tipString(), parent, block.BlockHash)
				extended = fork

				break
			}
		}
	}

	if extended == nil {
		switch {
		case s.finalizedTip != nil && s.finalizedTip.Hash == parent:
			extended = NewChain(s.finalizedTip)
		case s.finalizedTip == nil && block.Height == 0:
			extended = NewChain(nil)
		default:
			return errors.NewBlockParentNotFoundError("parent %s of block %s is not known", parent, block.BlockHash)
		}
	}

	if err := extended.Push(block); err != nil {
		return err
	}

	chains := slices.Clone(s.chains)
	if replaced >= 0 {
		chains[replaced] = extended
	} else {
		chains = append(chains, extended)
	}

	s.setChains(chains)

	return nil
}

// PruneLosers drops every chain that forked from the best chain more than the reorg limit below
// the best tip and returns how many were dropped.
func (s *NonFinalizedState) PruneLosers() int {
	best := s.BestChain()
	if best == nil {
		return 0
	}

	bestHeight := best.TipHeight()
	kept := make([]*Chain, 0, len(s.chains))
	pruned := 0

	for _, chain := range s.chains {
		if chain == best {
			kept = append(kept, chain)
			continue
		}

		forkHeight, ok := s.forkHeight(chain, best)
		if ok && bestHeight-forkHeight <= s.reorgLimit {
			kept = append(kept, chain)
			continue
		}

		s.logger.Debugf("[NonFinalizedState] pruning chain %s, forked at %d below best tip %d", chain.tipString(), forkHeight, bestHeight)

		if err := chain.Prune(); err != nil {
			s.logger.Warnf("[NonFinalizedState] pruning chain %s: %v", chain.tipString(), err)
		}

		pruned++
	}

	if pruned > 0 {
		s.setChains(kept)
	}

	return pruned
}

// forkHeight is the height of the newest block chain shares with best, or the finalized tip
// height when they share no block. ok is false when they share nothing at all, which only
// happens before genesis is finalized.
func (s *NonFinalizedState) forkHeight(chain, best *Chain) (uint32, bool) {
	blocks := chain.Blocks()
	for i := len(blocks) - 1; i >= 0; i-- {
		if best.Contains(blocks[i].BlockHash) {
			return blocks[i].Height, true
		}
	}

	if s.finalizedTip != nil {
		return s.finalizedTip.Height, true
	}

	return 0, false
}

// FinalizeRoot moves the root block of the best chain to finalized storage when the best chain
// holds more than the confirmation depth. Every chain holding the same root drops it too, every
// other chain is discarded. handoff receives the block before anything changes; when it fails
// the state is left untouched.
//
// It finalizes at most one block and returns nil when there was nothing to finalize.
func (s *NonFinalizedState) FinalizeRoot(handoff func(*model.FinalizedBlock) error) (*model.FinalizedBlock, error) {
	best := s.BestChain()
	if best == nil || uint32(best.Len()) <= s.confirmationDepth {
		return nil, nil
	}

	root := best.blocks[0]

	var (
		finalized *model.FinalizedBlock
		kept      = make([]*Chain, 0, len(s.chains))
		dropped   []*Chain
	)

	for _, chain := range s.chains {
		if chain.IsEmpty() || chain.blocks[0].BlockHash != root.BlockHash {
			dropped = append(dropped, chain)
			continue
		}

		clone := chain.Clone()
		popped := clone.PopRoot()

		if chain == best {
			finalized = popped
		}

		if !clone.IsEmpty() {
			kept = append(kept, clone)
		}
	}

	if err := handoff(finalized); err != nil {
		return nil, errors.NewStateError("finalizing block %s at height %d", root.BlockHash, root.Height, err)
	}

	for _, chain := range dropped {
		s.logger.Debugf("[NonFinalizedState] dropping chain %s, it does not contain finalized block %s", chain.tipString(), root.BlockHash)

		if chain.State() == StateGrowing {
			_ = chain.Prune()
		}
	}

	tip := root.Tip()
	s.finalizedTip = &tip
	s.setChains(kept)

	return finalized, nil
}

func (s *NonFinalizedState) setChains(chains []*Chain) {
	slices.SortStableFunc(chains, s.compare)
	s.chains = chains
}

// BestChain returns the best chain, nil when there are no chains.
func (s *NonFinalizedState) BestChain() *Chain {
	if len(s.chains) == 0 {
		return nil
	}

	return s.chains[len(s.chains)-1]
}

// Chains returns the chains, best first.
func (s *NonFinalizedState) Chains() []*Chain {
	chains := slices.Clone(s.chains)
	slices.Reverse(chains)

	return chains
}

// ChainCount is the number of live chains.
func (s *NonFinalizedState) ChainCount() int {
	return len(s.chains)
}

// BestTip is the tip of the best chain, or the finalized tip when there are no chains.
func (s *NonFinalizedState) BestTip() (model.ChainTip, bool) {
	if best := s.BestChain(); best != nil {
		return best.Tip()
	}

	return s.FinalizedTip()
}

// FinalizedTip is the block every chain extends.
func (s *NonFinalizedState) FinalizedTip() (model.ChainTip, bool) {
	if s.finalizedTip == nil {
		return model.ChainTip{}, false
	}

	return *s.finalizedTip, true
}

// AnyChainContains reports whether any chain holds the block.
func (s *NonFinalizedState) AnyChainContains(hash chainhash.Hash) bool {
	return s.ChainFor(hash) != nil
}

// ChainFor returns the best chain holding the block, nil when no chain does.
func (s *NonFinalizedState) ChainFor(hash chainhash.Hash) *Chain {
	for _, chain := range slices.Backward(s.chains) {
		if chain.Contains(hash) {
			return chain
		}
	}

	return nil
}

func (c *Chain) tipString() string {
	tip, ok := c.Tip()
	if !ok {
		return "<empty>"
	}

	return tip.String()
}
