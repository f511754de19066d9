package state

import (
	"context"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/niklaslong/zebra/errors"
	"github.com/niklaslong/zebra/model"
)

// heightOf is the height of hash in the best chain or the finalized store.
func (s *Server) heightOf(ctx context.Context, snap *snapshot, hash chainhash.Hash) (uint32, bool, error) {
	if best := snap.best(); best != nil {
		if height, ok := best.Height(hash); ok {
			return height, true, nil
		}
	}

	if snap.finalizedTip.IsNone() {
		return 0, false, nil
	}

	height, err := s.store.Height(ctx, &hash)
	if err != nil {
		if errors.Is(err, errors.ErrBlockNotFound) {
			return 0, false, nil
		}

		return 0, false, err
	}

	return height, true, nil
}

// hashAt is the hash of the best chain block at height.
func (s *Server) hashAt(ctx context.Context, snap *snapshot, height uint32) (chainhash.Hash, error) {
	if best := snap.best(); best != nil {
		if block, ok := best.BlockAt(height); ok {
			return block.BlockHash, nil
		}
	}

	hash, err := s.store.Hash(ctx, height)
	if err != nil {
		return chainhash.Hash{}, err
	}

	return *hash, nil
}

// headerAt is the header of the best chain block at height.
func (s *Server) headerAt(ctx context.Context, snap *snapshot, height uint32) (model.CountedHeader, error) {
	if best := snap.best(); best != nil {
		if block, ok := best.BlockAt(height); ok {
			return block.CountedHeader(), nil
		}
	}

	hash, err := s.store.Hash(ctx, height)
	if err != nil {
		return model.CountedHeader{}, err
	}

	return s.store.Header(ctx, hash)
}

// locatorHeights returns tip, tip-1, tip-2, tip-4 and so on while above tip-reorgLimit, then
// tip-reorgLimit itself. Nothing deeper is needed because no reorganisation can reach it.
func locatorHeights(tip, reorgLimit uint32) []uint32 {
	floor := uint32(0)
	if tip > reorgLimit {
		floor = tip - reorgLimit
	}

	heights := make([]uint32, 0, 16)

	if tip > floor {
		heights = append(heights, tip)
	}

	for step := uint32(1); step <= tip-floor && step != 0; step *= 2 {
		if height := tip - step; height > floor {
			heights = append(heights, height)
		}
	}

	return append(heights, floor)
}

// BlockLocator is a sparse list of best chain hashes, newest first, for a peer to find where
// its chain diverges from ours.
func (s *Server) BlockLocator(ctx context.Context) ([]chainhash.Hash, error) {
	defer observeRead("BlockLocator", time.Now())

	snap, release := s.view()
	defer release()

	tipOpt := snap.tip()
	if tipOpt.IsNone() {
		return nil, nil
	}

	tip := tipOpt.UnwrapOr(model.ChainTip{})
	heights := locatorHeights(tip.Height, s.settings.State.ReorgLimit)
	hashes := make([]chainhash.Hash, 0, len(heights))

	for _, height := range heights {
		hash, err := s.hashAt(ctx, snap, height)
		if err != nil {
			return nil, err
		}

		hashes = append(hashes, hash)
	}

	return hashes, nil
}

// findRange returns the heights of the best chain blocks that follow the first known hash in
// the best chain, at most limit of them, ending at stop when stop is in range. When no hash is
// known the range starts after genesis.
func (s *Server) findRange(ctx context.Context, snap *snapshot, known []chainhash.Hash, stop fn.Option[chainhash.Hash], limit int) (uint32, uint32, bool, error) {
	tipOpt := snap.tip()
	if tipOpt.IsNone() || limit <= 0 {
		return 0, 0, false, nil
	}

	tip := tipOpt.UnwrapOr(model.ChainTip{})
	start := uint32(1)

	for _, hash := range known {
		height, found, err := s.heightOf(ctx, snap, hash)
		if err != nil {
			return 0, 0, false, err
		}

		if found {
			start = height + 1
			break
		}
	}

	if start > tip.Height {
		return 0, 0, false, nil
	}

	end := tip.Height
	if uint64(start)+uint64(limit)-1 < uint64(end) {
		end = start + uint32(limit) - 1
	}

	var err error

	stop.WhenSome(func(hash chainhash.Hash) {
		var (
			height uint32
			found  bool
		)

		height, found, err = s.heightOf(ctx, snap, hash)
		if found && height >= start && height < end {
			end = height
		}
	})

	if err != nil {
		return 0, 0, false, err
	}

	return start, end, true, nil
}

// FindBlockHashes returns up to MaxFindBlockHashes best chain hashes after the first known hash.
func (s *Server) FindBlockHashes(ctx context.Context, known []chainhash.Hash, stop fn.Option[chainhash.Hash]) ([]chainhash.Hash, error) {
	defer observeRead("FindBlockHashes", time.Now())

	snap, release := s.view()
	defer release()

	start, end, ok, err := s.findRange(ctx, snap, known, stop, s.settings.State.MaxFindBlockHashes)
	if err != nil || !ok {
		return nil, err
	}

	hashes := make([]chainhash.Hash, 0, end-start+1)

	for height := start; height <= end; height++ {
		hash, err := s.hashAt(ctx, snap, height)
		if err != nil {
			return nil, err
		}

		hashes = append(hashes, hash)
	}

	return hashes, nil
}

// FindBlockHeaders returns up to MaxFindBlockHeaders best chain headers after the first known
// hash.
func (s *Server) FindBlockHeaders(ctx context.Context, known []chainhash.Hash, stop fn.Option[chainhash.Hash]) ([]model.CountedHeader, error) {
	defer observeRead("FindBlockHeaders", time.Now())

	snap, release := s.view()
	defer release()

	start, end, ok, err := s.findRange(ctx, snap, known, stop, s.settings.State.MaxFindBlockHeaders)
	if err != nil || !ok {
		return nil, err
	}

	headers := make([]model.CountedHeader, 0, end-start+1)

	for height := start; height <= end; height++ {
		header, err := s.headerAt(ctx, snap, height)
		if err != nil {
			return nil, err
		}

		headers = append(headers, header)
	}

	return headers, nil
}
