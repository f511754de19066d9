package nonfinalized

import (
	"math/big"
	"slices"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/dolthub/swiss"
	"github.com/google/btree"
	"github.com/looplab/fsm"
	"github.com/niklaslong/zebra/errors"
	"github.com/niklaslong/zebra/model"
	"github.com/niklaslong/zebra/services/state/work"
)

type chainUtxo struct {
	outPoint model.OutPoint
	utxo     model.OrderedUtxo
}

type chainSpend struct {
	outPoint     model.OutPoint
	spendingTxID chainhash.Hash
}

func chainUtxoLess(a, b chainUtxo) bool {
	return model.CompareOutPoints(a.outPoint, b.outPoint) < 0
}

func chainSpendLess(a, b chainSpend) bool {
	return model.CompareOutPoints(a.outPoint, b.outPoint) < 0
}

// Chain is one candidate chain: the blocks applied on top of the finalized tip and every index
// derived from them.
//
// A Chain is not safe for concurrent mutation. NonFinalizedState never mutates a chain that
// has been handed out, it works on clones.
type Chain struct {
	// finalizedTip is the block the chain extends, nil when the chain starts at genesis.
	finalizedTip *model.ChainTip
	blocks       []*model.ContextualBlock
	heightByHash *swiss.Map[chainhash.Hash, uint32]
	txLocByHash  *swiss.Map[chainhash.Hash, model.TransactionLocation]
	createdUtxos *btree.BTreeG[chainUtxo]
	spentUtxos   *btree.BTreeG[chainSpend]
	addresses    map[model.Address]*TransparentTransfers
	partialWork  *big.Int
	lifecycle    *fsm.FSM
}

// NewChain returns an empty chain on top of finalizedTip. A nil tip means the first block
// pushed must be the genesis block.
func NewChain(finalizedTip *model.ChainTip) *Chain {
	var tip *model.ChainTip
	if finalizedTip != nil {
		t := *finalizedTip
		tip = &t
	}

	return &Chain{
		finalizedTip: tip,
		heightByHash: swiss.NewMap[chainhash.Hash, uint32](64),
		txLocByHash:  swiss.NewMap[chainhash.Hash, model.TransactionLocation](1024),
		createdUtxos: btree.NewG(btreeDegree, chainUtxoLess),
		spentUtxos:   btree.NewG(btreeDegree, chainSpendLess),
		addresses:    make(map[model.Address]*TransparentTransfers),
		partialWork:  big.NewInt(0),
		lifecycle:    newLifecycle(StateEmpty),
	}
}

// Clone returns a copy that shares no mutable state with c.
func (c *Chain) Clone() *Chain {
	heightByHash := swiss.NewMap[chainhash.Hash, uint32](uint32(c.heightByHash.Count()) + 64)
	c.heightByHash.Iter(func(hash chainhash.Hash, height uint32) bool {
		heightByHash.Put(hash, height)
		return false
	})

	txLocByHash := swiss.NewMap[chainhash.Hash, model.TransactionLocation](uint32(c.txLocByHash.Count()) + 1024)
	c.txLocByHash.Iter(func(hash chainhash.Hash, loc model.TransactionLocation) bool {
		txLocByHash.Put(hash, loc)
		return false
	})

	addresses := make(map[model.Address]*TransparentTransfers, len(c.addresses))
	for addr, transfers := range c.addresses {
		addresses[addr] = transfers.Clone()
	}

	var tip *model.ChainTip
	if c.finalizedTip != nil {
		t := *c.finalizedTip
		tip = &t
	}

	return &Chain{
		finalizedTip: tip,
		blocks:       slices.Clone(c.blocks),
		heightByHash: heightByHash,
		txLocByHash:  txLocByHash,
		createdUtxos: c.createdUtxos.Clone(),
		spentUtxos:   c.spentUtxos.Clone(),
		addresses:    addresses,
		partialWork:  new(big.Int).Set(c.partialWork),
		lifecycle:    newLifecycle(c.lifecycle.Current()),
	}
}

// Push applies block on top of the tip. For every transaction in block order, creations are
// applied in output order and then spends in input order.
//
// Push is all or nothing: when it fails, everything already applied is reverted in reverse
// order and the chain is left as it was.
func (c *Chain) Push(block *model.ContextualBlock) error {
	c.mustBeLive("push")

	if err := c.checkLinks(block); err != nil {
		return err
	}

	var journal []func()

	rollback := func() {
		for i := len(journal) - 1; i >= 0; i-- {
			journal[i]()
		}
	}

	for i, tx := range block.Transactions {
		txID := block.TxIDs[i]

		if _, exists := c.txLocByHash.Get(txID); exists {
			rollback()
			return errors.NewTxInvalidError("transaction %s already exists in the chain", txID)
		}

		c.txLocByHash.Put(txID, block.TxLocation(i))
		journal = append(journal, func() { c.txLocByHash.Delete(txID) })

		for vout := range tx.Outputs {
			outPoint := model.OutPoint{Hash: txID, Index: uint32(vout)}
			c.createdUtxos.ReplaceOrInsert(chainUtxo{outPoint: outPoint, utxo: block.NewOutputs[outPoint]})
			journal = append(journal, func() { c.createdUtxos.Delete(chainUtxo{outPoint: outPoint}) })
		}

		if i > 0 {
			for _, input := range tx.Inputs {
				outPoint := model.OutPointFromInput(input)

				if _, ok := block.SpentUtxos[outPoint]; !ok {
					rollback()
					return errors.NewTxMissingInputError("transaction %s spends unknown output %s", txID, outPoint)
				}

				if previous, spent := c.spentUtxos.Get(chainSpend{outPoint: outPoint}); spent {
					rollback()

					return errors.NewTxDoubleSpendError(&errors.DoubleSpendErrData{
						Hash:         outPoint.Hash.String(),
						Vout:         outPoint.Index,
						SpendingTxID: previous.spendingTxID.String(),
					}, "transaction %s spends %s which is already spent in this chain", txID, outPoint)
				}

				c.spentUtxos.ReplaceOrInsert(chainSpend{outPoint: outPoint, spendingTxID: txID})
				journal = append(journal, func() { c.spentUtxos.Delete(chainSpend{outPoint: outPoint}) })
			}
		}

		for _, u := range Updates(block, i) {
			if err := c.transfers(u.Address()).Apply(u); err != nil {
				c.dropIfEmpty(u.Address())
				rollback()

				return errors.NewBlockInvalidError("block %s transaction %s", block.BlockHash, txID, err)
			}

			journal = append(journal, func() { c.revertTransfer(u, Tip) })
		}
	}

	c.blocks = append(c.blocks, block)
	c.heightByHash.Put(block.BlockHash, block.Height)
	c.partialWork = work.AddBlockWork(c.partialWork, block.Header.Bits)

	if c.lifecycle.Current() == StateEmpty {
		c.transition(EventExtend)
	}

	return nil
}

func (c *Chain) checkLinks(block *model.ContextualBlock) error {
	if c.heightByHash.Has(block.BlockHash) {
		return errors.NewBlockExistsError("block %s is already in the chain", block.BlockHash)
	}

	tip, ok := c.Tip()
	if !ok {
		if block.Height != 0 {
			return errors.NewBlockInvalidError("block %s at height %d does not start a chain at genesis", block.BlockHash, block.Height)
		}

		return nil
	}

	if block.Height != tip.Height+1 {
		return errors.NewBlockInvalidError("block %s has height %d, expected %d", block.BlockHash, block.Height, tip.Height+1)
	}

	if !block.PrevHash().IsEqual(&tip.Hash) {
		return errors.NewBlockInvalidError("block %s has parent %s, expected %s", block.BlockHash, block.PrevHash(), tip.Hash)
	}

	return nil
}

func (c *Chain) transfers(addr model.Address) *TransparentTransfers {
	transfers, ok := c.addresses[addr]
	if !ok {
		transfers = NewTransparentTransfers()
		c.addresses[addr] = transfers
	}

	return transfers
}

func (c *Chain) revertTransfer(u TransferUpdate, position RevertPosition) {
	transfers, ok := c.addresses[u.Address()]
	if !ok {
		panic(errors.NewStructuralError("revert at %s for unknown address %s", position, u.Address()))
	}

	transfers.Revert(u, position)
	c.dropIfEmpty(u.Address())
}

func (c *Chain) dropIfEmpty(addr model.Address) {
	if transfers, ok := c.addresses[addr]; ok && transfers.IsEmpty() {
		delete(c.addresses, addr)
	}
}

// revertBlock undoes block in exact reverse order of Push and returns the address transfers
// that were removed, in apply order.
func (c *Chain) revertBlock(block *model.ContextualBlock, position RevertPosition) []model.AddressTransfer {
	var transfers []model.AddressTransfer

	for i := len(block.Transactions) - 1; i >= 0; i-- {
		tx := block.Transactions[i]
		txID := block.TxIDs[i]

		updates := Updates(block, i)
		for j := len(updates) - 1; j >= 0; j-- {
			c.revertTransfer(updates[j], position)

			if position == Root {
				transfers = append(transfers, AddressTransfer(updates[j], block.TxLocation(i)))
			}
		}

		if i > 0 {
			for k := len(tx.Inputs) - 1; k >= 0; k-- {
				outPoint := model.OutPointFromInput(tx.Inputs[k])
				if _, removed := c.spentUtxos.Delete(chainSpend{outPoint: outPoint}); !removed {
					panic(errors.NewStructuralError("revert at %s of spend %s that is not in the chain", position, outPoint))
				}
			}
		}

		for vout := len(tx.Outputs) - 1; vout >= 0; vout-- {
			outPoint := model.OutPoint{Hash: txID, Index: uint32(vout)}
			if _, removed := c.createdUtxos.Delete(chainUtxo{outPoint: outPoint}); !removed {
				panic(errors.NewStructuralError("revert at %s of output %s that is not in the chain", position, outPoint))
			}
		}

		if !c.txLocByHash.Delete(txID) {
			panic(errors.NewStructuralError("revert at %s of transaction %s that is not in the chain", position, txID))
		}
	}

	c.heightByHash.Delete(block.BlockHash)
	c.partialWork.Sub(c.partialWork, work.CalcBlockWork(block.Header.Bits.Uint32()))

	slices.Reverse(transfers)

	return transfers
}

// PopTip removes the newest block. It returns nil when the chain is empty.
func (c *Chain) PopTip() *model.ContextualBlock {
	c.mustBeLive("pop tip")

	if len(c.blocks) == 0 {
		return nil
	}

	block := c.blocks[len(c.blocks)-1]
	c.revertBlock(block, Tip)

	c.blocks[len(c.blocks)-1] = nil
	c.blocks = c.blocks[:len(c.blocks)-1]

	if len(c.blocks) == 0 {
		c.transition(EventDrain)
	}

	return block
}

// PopRoot removes the oldest block, moving the finalized tip of the chain forward to it. The
// returned block carries the address transfers finalized storage has to take over. It returns
// nil when the chain is empty.
func (c *Chain) PopRoot() *model.FinalizedBlock {
	c.mustBeLive("pop root")

	if len(c.blocks) == 0 {
		return nil
	}

	c.transition(EventFinalizeRoot)

	root := c.blocks[0]
	transfers := c.revertBlock(root, Root)

	c.blocks[0] = nil
	c.blocks = c.blocks[1:]

	tip := root.Tip()
	c.finalizedTip = &tip

	if len(c.blocks) == 0 {
		c.transition(EventDrain)
	} else {
		c.transition(EventRootFinalized)
	}

	return &model.FinalizedBlock{
		ContextualBlock: root,
		Transfers:       transfers,
	}
}

// ForkAt returns a copy of the chain truncated so that height is its tip. height can be the
// height of the finalized tip, which returns an empty chain.
func (c *Chain) ForkAt(height uint32) (*Chain, error) {
	tip, ok := c.Tip()
	if !ok {
		return nil, errors.NewInvalidArgumentError("cannot fork an empty chain")
	}

	lowest := c.NonFinalizedRootHeight()
	if c.finalizedTip != nil {
		lowest = c.finalizedTip.Height
	}

	if height < lowest || height > tip.Height {
		return nil, errors.NewInvalidArgumentError("fork height %d outside chain [%d, %d]", height, lowest, tip.Height)
	}

	fork := c.Clone()
	for len(fork.blocks) > 0 && fork.blocks[len(fork.blocks)-1].Height > height {
		fork.PopTip()
	}

	return fork, nil
}

// Fork returns a copy of the chain truncated to the block with the given hash, which can be the
// finalized tip.
func (c *Chain) Fork(hash chainhash.Hash) (*Chain, bool) {
	height, ok := c.heightByHash.Get(hash)
	if !ok {
		if c.finalizedTip == nil || c.finalizedTip.Hash != hash {
			return nil, false
		}

		height = c.finalizedTip.Height
	}

	fork, err := c.ForkAt(height)
	if err != nil {
		return nil, false
	}

	return fork, true
}

// Prune marks a losing chain as discarded. A pruned chain can no longer change.
func (c *Chain) Prune() error {
	if !c.lifecycle.Can(EventPrune) {
		return errors.NewStateError("cannot prune a chain in state %s", c.lifecycle.Current())
	}

	c.transition(EventPrune)

	return nil
}

// Tip returns the newest block of the chain, falling back to the finalized tip when the chain
// is empty. ok is false when there is neither.
func (c *Chain) Tip() (model.ChainTip, bool) {
	if len(c.blocks) > 0 {
		return c.blocks[len(c.blocks)-1].Tip(), true
	}

	if c.finalizedTip != nil {
		return *c.finalizedTip, true
	}

	return model.ChainTip{}, false
}

// TipHeight is the height of the newest block, or of the finalized tip when the chain is empty.
func (c *Chain) TipHeight() uint32 {
	tip, _ := c.Tip()
	return tip.Height
}

// TipBlock returns the newest block, nil when the chain is empty.
func (c *Chain) TipBlock() *model.ContextualBlock {
	if len(c.blocks) == 0 {
		return nil
	}

	return c.blocks[len(c.blocks)-1]
}

// FinalizedTip is the block the chain extends.
func (c *Chain) FinalizedTip() (model.ChainTip, bool) {
	if c.finalizedTip == nil {
		return model.ChainTip{}, false
	}

	return *c.finalizedTip, true
}

// NonFinalizedRootHeight is the height of the oldest block held by the chain.
func (c *Chain) NonFinalizedRootHeight() uint32 {
	if len(c.blocks) > 0 {
		return c.blocks[0].Height
	}

	if c.finalizedTip != nil {
		return c.finalizedTip.Height + 1
	}

	return 0
}

// Len is the number of blocks held by the chain.
func (c *Chain) Len() int {
	return len(c.blocks)
}

func (c *Chain) IsEmpty() bool {
	return len(c.blocks) == 0
}

// Contains reports whether the chain holds the block.
func (c *Chain) Contains(hash chainhash.Hash) bool {
	return c.heightByHash.Has(hash)
}

// Height returns the height of a block held by the chain.
func (c *Chain) Height(hash chainhash.Hash) (uint32, bool) {
	return c.heightByHash.Get(hash)
}

// Block returns a block held by the chain.
func (c *Chain) Block(hash chainhash.Hash) (*model.ContextualBlock, bool) {
	height, ok := c.heightByHash.Get(hash)
	if !ok {
		return nil, false
	}

	return c.BlockAt(height)
}

// BlockAt returns the block at height.
func (c *Chain) BlockAt(height uint32) (*model.ContextualBlock, bool) {
	if len(c.blocks) == 0 || height < c.blocks[0].Height {
		return nil, false
	}

	i := int(height - c.blocks[0].Height)
	if i >= len(c.blocks) {
		return nil, false
	}

	return c.blocks[i], true
}

// Blocks returns the blocks of the chain in height order.
func (c *Chain) Blocks() []*model.ContextualBlock {
	return slices.Clone(c.blocks)
}

// Hashes returns the block hashes of the chain in height order.
func (c *Chain) Hashes() []chainhash.Hash {
	hashes := make([]chainhash.Hash, len(c.blocks))
	for i, block := range c.blocks {
		hashes[i] = block.BlockHash
	}

	return hashes
}

// Transaction returns a transaction held by the chain with its location.
func (c *Chain) Transaction(hash chainhash.Hash) (*bt.Tx, model.TransactionLocation, bool) {
	location, ok := c.txLocByHash.Get(hash)
	if !ok {
		return nil, model.TransactionLocation{}, false
	}

	block, ok := c.BlockAt(location.Height)
	if !ok || int(location.Index) >= len(block.Transactions) {
		panic(errors.NewStructuralError("transaction %s indexed at %s which is not in the chain", hash, location))
	}

	return block.Transactions[location.Index], location, true
}

// TxLocation returns the location of a transaction held by the chain.
func (c *Chain) TxLocation(hash chainhash.Hash) (model.TransactionLocation, bool) {
	return c.txLocByHash.Get(hash)
}

// CreatedUtxo returns an output created by the chain, spent or not.
func (c *Chain) CreatedUtxo(outPoint model.OutPoint) (model.OrderedUtxo, bool) {
	created, ok := c.createdUtxos.Get(chainUtxo{outPoint: outPoint})
	if !ok {
		return model.OrderedUtxo{}, false
	}

	return created.utxo, true
}

// UnspentUtxo returns an output created by the chain and not spent by it.
func (c *Chain) UnspentUtxo(outPoint model.OutPoint) (model.OrderedUtxo, bool) {
	if c.IsSpent(outPoint) {
		return model.OrderedUtxo{}, false
	}

	return c.CreatedUtxo(outPoint)
}

// IsSpent reports whether a transaction of the chain spends outPoint.
func (c *Chain) IsSpent(outPoint model.OutPoint) bool {
	return c.spentUtxos.Has(chainSpend{outPoint: outPoint})
}

// SpendingTxID returns the transaction of the chain spending outPoint.
func (c *Chain) SpendingTxID(outPoint model.OutPoint) (chainhash.Hash, bool) {
	spend, ok := c.spentUtxos.Get(chainSpend{outPoint: outPoint})
	return spend.spendingTxID, ok
}

// AddressTransfers returns the transfer index of addr, nil when the chain never touched it.
// The index must not be modified.
func (c *Chain) AddressTransfers(addr model.Address) *TransparentTransfers {
	return c.addresses[addr]
}

// AddressCount is the number of addresses indexed by the chain.
func (c *Chain) AddressCount() int {
	return len(c.addresses)
}

// PartialCumulativeWork is the work of the blocks held by the chain.
func (c *Chain) PartialCumulativeWork() *big.Int {
	return new(big.Int).Set(c.partialWork)
}

// Equal reports whether both chains hold the same blocks and indexes.
func (c *Chain) Equal(o *Chain) bool {
	if !slices.Equal(c.Hashes(), o.Hashes()) ||
		c.partialWork.Cmp(o.partialWork) != 0 ||
		c.txLocByHash.Count() != o.txLocByHash.Count() ||
		c.createdUtxos.Len() != o.createdUtxos.Len() ||
		c.spentUtxos.Len() != o.spentUtxos.Len() ||
		len(c.addresses) != len(o.addresses) {
		return false
	}

	for addr, transfers := range c.addresses {
		other, ok := o.addresses[addr]
		if !ok || !transfers.Equal(other) {
			return false
		}
	}

	same := true

	c.spentUtxos.Ascend(func(s chainSpend) bool {
		same = o.spentUtxos.Has(s)
		return same
	})

	return same
}
