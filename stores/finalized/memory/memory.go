// Package memory is an in-memory finalized.Store for tests and short lived nodes.
package memory

import (
	"context"
	"net/http"
	"sync"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/dolthub/swiss"
	"github.com/google/btree"
	"github.com/niklaslong/zebra/errors"
	"github.com/niklaslong/zebra/model"
	"github.com/niklaslong/zebra/stores/finalized"
	"github.com/niklaslong/zebra/ulogger"
)

const btreeDegree = 16

type txEntry struct {
	tx       *bt.Tx
	location model.TransactionLocation
}

type utxoEntry struct {
	utxo  model.OrderedUtxo
	spent bool
}

func addressUtxoLess(a, b finalized.AddressUtxo) bool {
	return a.Location.Less(b.Location)
}

func addressTxLess(a, b finalized.AddressTx) bool {
	return a.Location.Less(b.Location)
}

type Memory struct {
	mu          sync.RWMutex
	logger      ulogger.Logger
	tip         *model.ChainTip
	hashes      []chainhash.Hash
	blocks      *swiss.Map[chainhash.Hash, *model.Block]
	txs         *swiss.Map[chainhash.Hash, txEntry]
	utxos       map[model.OutPoint]utxoEntry
	balances    map[model.Address]model.Amount[model.NonNegative]
	addressUtxo map[model.Address]*btree.BTreeG[finalized.AddressUtxo]
	addressTxs  map[model.Address]*btree.BTreeG[finalized.AddressTx]
}

func New(logger ulogger.Logger) *Memory {
	return &Memory{
		logger:      logger,
		blocks:      swiss.NewMap[chainhash.Hash, *model.Block](1024),
		txs:         swiss.NewMap[chainhash.Hash, txEntry](1024),
		utxos:       make(map[model.OutPoint]utxoEntry),
		balances:    make(map[model.Address]model.Amount[model.NonNegative]),
		addressUtxo: make(map[model.Address]*btree.BTreeG[finalized.AddressUtxo]),
		addressTxs:  make(map[model.Address]*btree.BTreeG[finalized.AddressTx]),
	}
}

func (m *Memory) Health(_ context.Context, _ bool) (int, string, error) {
	return http.StatusOK, "Memory Store available", nil
}

func (m *Memory) CommitFinalized(ctx context.Context, block *model.FinalizedBlock) error {
	if err := ctx.Err(); err != nil {
		return errors.NewContextCanceledError("committing finalized block %s", block.BlockHash, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var tip model.ChainTip
	if m.tip != nil {
		tip = *m.tip
	}

	if err := finalized.CheckExtends(tip, m.tip != nil, block); err != nil {
		return err
	}

	if err := finalized.CheckInputs(block, m.storedUtxo); err != nil {
		return err
	}

	balances, err := finalized.NewBalances(block, func(addr model.Address) (model.Amount[model.NonNegative], error) {
		return m.balances[addr], nil
	})
	if err != nil {
		return err
	}

	// nothing can fail from here on

	for i, tx := range block.Transactions {
		txID := block.TxIDs[i]
		m.txs.Put(txID, txEntry{tx: tx, location: block.TxLocation(i)})

		for vout := range tx.Outputs {
			outPoint := model.OutPoint{Hash: txID, Index: uint32(vout)}
			m.utxos[outPoint] = utxoEntry{utxo: block.NewOutputs[outPoint]}
		}

		if i == 0 {
			continue
		}

		for _, input := range tx.Inputs {
			outPoint := model.OutPointFromInput(input)
			entry := m.utxos[outPoint]
			entry.spent = true
			m.utxos[outPoint] = entry
		}
	}

	for _, transfer := range block.Transfers {
		utxos := m.addressUtxoTree(transfer.Address)
		if transfer.Spend {
			utxos.Delete(finalized.AddressUtxo{Location: transfer.Location})
		} else {
			utxos.ReplaceOrInsert(finalized.AddressUtxo{Location: transfer.Location, OutPoint: transfer.OutPoint, Output: transfer.Output})
		}

		m.addressTxTree(transfer.Address).ReplaceOrInsert(finalized.AddressTx{Location: transfer.TxLocation, TxID: transfer.TxID})
	}

	for addr, balance := range balances {
		m.balances[addr] = balance
	}

	m.blocks.Put(block.BlockHash, block.Block)
	m.hashes = append(m.hashes, block.BlockHash)

	tip = block.Tip()
	m.tip = &tip

	m.logger.Debugf("[Memory] finalized block %s", tip)

	return nil
}

func (m *Memory) storedUtxo(outPoint model.OutPoint) error {
	entry, ok := m.utxos[outPoint]
	if !ok {
		return errors.NewUtxoNotFoundError("output %s not found", outPoint)
	}

	if entry.spent {
		return errors.NewUtxoSpentError("output %s is spent", outPoint)
	}

	return nil
}

func (m *Memory) addressUtxoTree(addr model.Address) *btree.BTreeG[finalized.AddressUtxo] {
	tree, ok := m.addressUtxo[addr]
	if !ok {
		tree = btree.NewG(btreeDegree, addressUtxoLess)
		m.addressUtxo[addr] = tree
	}

	return tree
}

func (m *Memory) addressTxTree(addr model.Address) *btree.BTreeG[finalized.AddressTx] {
	tree, ok := m.addressTxs[addr]
	if !ok {
		tree = btree.NewG(btreeDegree, addressTxLess)
		m.addressTxs[addr] = tree
	}

	return tree
}

func (m *Memory) Tip(_ context.Context) (model.ChainTip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.tip == nil {
		return model.ChainTip{}, errors.NewNotFoundError("finalized store is empty")
	}

	return *m.tip, nil
}

func (m *Memory) Height(_ context.Context, hash *chainhash.Hash) (uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	block, ok := m.blocks.Get(*hash)
	if !ok {
		return 0, errors.NewBlockNotFoundError("block %s not found", hash)
	}

	return block.Height, nil
}

func (m *Memory) Hash(_ context.Context, height uint32) (*chainhash.Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if int(height) >= len(m.hashes) {
		return nil, errors.NewBlockNotFoundError("no block at height %d", height)
	}

	hash := m.hashes[height]

	return &hash, nil
}

func (m *Memory) Block(_ context.Context, hash *chainhash.Hash) (*model.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	block, ok := m.blocks.Get(*hash)
	if !ok {
		return nil, errors.NewBlockNotFoundError("block %s not found", hash)
	}

	return block, nil
}

func (m *Memory) Header(ctx context.Context, hash *chainhash.Hash) (model.CountedHeader, error) {
	block, err := m.Block(ctx, hash)
	if err != nil {
		return model.CountedHeader{}, err
	}

	return block.CountedHeader(), nil
}

func (m *Memory) Transaction(_ context.Context, hash *chainhash.Hash) (*bt.Tx, model.TransactionLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.txs.Get(*hash)
	if !ok {
		return nil, model.TransactionLocation{}, errors.NewTxNotFoundError("transaction %s not found", hash)
	}

	return entry.tx, entry.location, nil
}

func (m *Memory) Utxo(_ context.Context, outPoint model.OutPoint) (model.OrderedUtxo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.storedUtxo(outPoint); err != nil {
		return model.OrderedUtxo{}, err
	}

	return m.utxos[outPoint].utxo, nil
}

func (m *Memory) AddressBalance(_ context.Context, addr model.Address) (model.Amount[model.NonNegative], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.balances[addr], nil
}

func (m *Memory) AddressUtxos(_ context.Context, addr model.Address) ([]finalized.AddressUtxo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tree, ok := m.addressUtxo[addr]
	if !ok {
		return nil, nil
	}

	utxos := make([]finalized.AddressUtxo, 0, tree.Len())

	tree.Ascend(func(u finalized.AddressUtxo) bool {
		utxos = append(utxos, u)
		return true
	})

	return utxos, nil
}

func (m *Memory) AddressTxIDs(_ context.Context, addr model.Address, fromHeight, toHeight uint32) ([]finalized.AddressTx, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tree, ok := m.addressTxs[addr]
	if !ok || fromHeight > toHeight {
		return nil, nil
	}

	var txs []finalized.AddressTx

	tree.AscendGreaterOrEqual(finalized.AddressTx{Location: model.TransactionLocation{Height: fromHeight}}, func(tx finalized.AddressTx) bool {
		if tx.Location.Height > toHeight {
			return false
		}

		txs = append(txs, tx)

		return true
	})

	return txs, nil
}

func (m *Memory) Close() error {
	return nil
}
