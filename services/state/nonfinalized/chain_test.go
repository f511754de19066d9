package nonfinalized

import (
	"testing"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/niklaslong/zebra/errors"
	"github.com/niklaslong/zebra/model"
	"github.com/niklaslong/zebra/util/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	bob   = test.NewKey(2)
	carol = test.NewKey(3)
)

const reward = 5000

type chainFixture struct {
	utxos  test.Utxos
	chain  *Chain
	blocks []*model.ContextualBlock
}

// newChainFixture starts a chain at a genesis block paying alice.
func newChainFixture(t *testing.T) *chainFixture {
	t.Helper()

	f := &chainFixture{
		utxos: test.Utxos{},
		chain: NewChain(nil),
	}

	f.push(t, test.Genesis(alice, reward))

	return f
}

func (f *chainFixture) push(t *testing.T, block *model.Block) *model.ContextualBlock {
	t.Helper()

	contextual := f.utxos.Contextualize(block)
	require.NoError(t, f.chain.Push(contextual))

	f.blocks = append(f.blocks, contextual)

	return contextual
}

func (f *chainFixture) tip() *model.Block {
	return f.blocks[len(f.blocks)-1].Block
}

// spendGenesis moves the genesis reward of alice: 3000 to bob and 2000 back to alice.
func (f *chainFixture) spendGenesis() *bt.Tx {
	return test.Spend(
		[]model.OutPoint{test.OutPointOf(f.blocks[0].Transactions[0], 0)},
		bob.Pay(3000),
		alice.Pay(2000),
	)
}

func TestChainPush(t *testing.T) {
	f := newChainFixture(t)

	assert.Equal(t, StateGrowing, f.chain.State())
	assert.Equal(t, int64(reward), f.chain.AddressTransfers(alice.Address).Balance().Int64())

	tx := f.spendGenesis()
	block := f.push(t, test.NextBlock(f.tip(), 0, carol, reward, tx))

	tip, ok := f.chain.Tip()
	require.True(t, ok)
	assert.Equal(t, block.Tip(), tip)
	assert.Equal(t, 2, f.chain.Len())
	assert.Equal(t, uint32(0), f.chain.NonFinalizedRootHeight())

	assert.Equal(t, int64(2000), f.chain.AddressTransfers(alice.Address).Balance().Int64())
	assert.Equal(t, int64(3000), f.chain.AddressTransfers(bob.Address).Balance().Int64())
	assert.Equal(t, int64(reward), f.chain.AddressTransfers(carol.Address).Balance().Int64())
	assert.Equal(t, 3, f.chain.AddressCount())

	genesisOut := test.OutPointOf(f.blocks[0].Transactions[0], 0)
	assert.True(t, f.chain.IsSpent(genesisOut))

	_, ok = f.chain.UnspentUtxo(genesisOut)
	assert.False(t, ok)

	spendingTxID, ok := f.chain.SpendingTxID(genesisOut)
	require.True(t, ok)
	assert.Equal(t, *tx.TxIDChainHash(), spendingTxID)

	utxo, ok := f.chain.UnspentUtxo(test.OutPointOf(tx, 0))
	require.True(t, ok)
	assert.Equal(t, uint64(3000), utxo.Satoshis())
	assert.Equal(t, model.TransactionLocation{Height: 1, Index: 1}, utxo.TransactionLocation())

	found, location, ok := f.chain.Transaction(*tx.TxIDChainHash())
	require.True(t, ok)
	assert.Equal(t, tx.TxID(), found.TxID())
	assert.Equal(t, model.TransactionLocation{Height: 1, Index: 1}, location)

	ids := f.chain.AddressTransfers(alice.Address).TxIDs(f.chain.TxLocation)
	require.Len(t, ids, 2)
	assert.Equal(t, f.blocks[0].TxIDs[0], ids[0].Hash)
	assert.Equal(t, *tx.TxIDChainHash(), ids[1].Hash)

	assert.Positive(t, f.chain.PartialCumulativeWork().Sign())
}

func TestChainPushRejects(t *testing.T) {
	t.Run("block that is not at the tip", func(t *testing.T) {
		f := newChainFixture(t)
		f.push(t, test.NextBlock(f.tip(), 0, carol, reward))

		stale := f.utxos.Contextualize(test.NextBlock(f.blocks[0].Block, 1, carol, reward))
		err := f.chain.Push(stale)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrBlockInvalid))
	})

	t.Run("block already in the chain", func(t *testing.T) {
		f := newChainFixture(t)
		err := f.chain.Push(f.blocks[0])
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrBlockExists))
	})

	t.Run("chain at genesis needs a genesis block", func(t *testing.T) {
		f := newChainFixture(t)
		next := f.utxos.Contextualize(test.NextBlock(f.tip(), 0, carol, reward))

		err := NewChain(nil).Push(next)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrBlockInvalid))
	})

	t.Run("double spend inside the chain", func(t *testing.T) {
		f := newChainFixture(t)
		first := f.spendGenesis()
		f.push(t, test.NextBlock(f.tip(), 0, carol, reward, first))

		before := f.chain.Clone()

		again := test.Spend([]model.OutPoint{test.OutPointOf(f.blocks[0].Transactions[0], 0)}, carol.Pay(reward))
		err := f.chain.Push(f.utxos.Contextualize(test.NextBlock(f.tip(), 0, carol, reward, again)))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrTxInvalidDoubleSpend))
		assert.Contains(t, err.Error(), first.TxID())
		assert.True(t, before.Equal(f.chain))
	})

	t.Run("unresolved input", func(t *testing.T) {
		f := newChainFixture(t)
		before := f.chain.Clone()

		unknown := test.Spend([]model.OutPoint{{Hash: txHash(99), Index: 0}}, carol.Pay(1))
		err := f.chain.Push(f.utxos.Contextualize(test.NextBlock(f.tip(), 0, carol, reward, unknown)))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrTxMissingInput))
		assert.True(t, before.Equal(f.chain))
	})

	t.Run("balance overflow rolls back the whole block", func(t *testing.T) {
		f := newChainFixture(t)
		before := f.chain.Clone()

		// bob is applied before alice overflows
		coinbase := test.Coinbase(1, 0, bob.Pay(10), alice.Pay(uint64(model.MaxMoney)))
		block := test.NewBlock(*f.tip().Hash(), 1, 0, coinbase)
		contextual := f.utxos.Contextualize(block)

		err := f.chain.Push(contextual)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrBlockInvalid))
		assert.True(t, errors.Is(err, errors.ErrAmountRange))

		assert.True(t, before.Equal(f.chain))
		assert.Nil(t, f.chain.AddressTransfers(bob.Address))
		assert.False(t, f.chain.Contains(contextual.BlockHash))

		_, ok := f.chain.TxLocation(contextual.TxIDs[0])
		assert.False(t, ok)
	})
}

func TestChainPopTip(t *testing.T) {
	f := newChainFixture(t)
	before := f.chain.Clone()

	block := f.push(t, test.NextBlock(f.tip(), 0, carol, reward, f.spendGenesis()))

	popped := f.chain.PopTip()
	require.NotNil(t, popped)
	assert.Equal(t, block.BlockHash, popped.BlockHash)
	assert.True(t, before.Equal(f.chain))

	require.NotNil(t, f.chain.PopTip())
	assert.True(t, f.chain.IsEmpty())
	assert.Equal(t, 0, f.chain.AddressCount())
	assert.Equal(t, StateEmpty, f.chain.State())
	assert.Zero(t, f.chain.PartialCumulativeWork().Sign())
	assert.Nil(t, f.chain.PopTip())
}

func TestChainPopRoot(t *testing.T) {
	f := newChainFixture(t)
	tx := f.spendGenesis()
	f.push(t, test.NextBlock(f.tip(), 0, carol, reward, tx))

	aliceBefore := f.chain.AddressTransfers(alice.Address).Balance()

	root := f.chain.PopRoot()
	require.NotNil(t, root)
	assert.Equal(t, f.blocks[0].BlockHash, root.BlockHash)
	assert.Equal(t, StateGrowing, f.chain.State())

	deltas, err := root.BalanceDeltas()
	require.NoError(t, err)
	assert.Equal(t, map[model.Address]model.Amount[model.NegativeAllowed]{alice.Address: reward}, deltas)

	// the chain now reports balances relative to the new finalized tip
	aliceAfter := f.chain.AddressTransfers(alice.Address).Balance()
	assert.Equal(t, aliceBefore.Int64()-reward, aliceAfter.Int64())

	finalizedTip, ok := f.chain.FinalizedTip()
	require.True(t, ok)
	assert.Equal(t, f.blocks[0].Tip(), finalizedTip)
	assert.Equal(t, uint32(1), f.chain.NonFinalizedRootHeight())

	root = f.chain.PopRoot()
	require.NotNil(t, root)
	require.Len(t, root.Transfers, 4)

	// apply order: coinbase creation, creations of tx, spends of tx
	assert.Equal(t, carol.Address, root.Transfers[0].Address)
	assert.Equal(t, bob.Address, root.Transfers[1].Address)
	assert.Equal(t, alice.Address, root.Transfers[2].Address)
	assert.False(t, root.Transfers[2].Spend)
	assert.Equal(t, alice.Address, root.Transfers[3].Address)
	assert.True(t, root.Transfers[3].Spend)
	assert.Equal(t, *tx.TxIDChainHash(), root.Transfers[3].TxID)

	deltas, err = root.BalanceDeltas()
	require.NoError(t, err)
	assert.Equal(t, int64(-3000), deltas[alice.Address].Int64())
	assert.Equal(t, int64(3000), deltas[bob.Address].Int64())
	assert.Equal(t, int64(reward), deltas[carol.Address].Int64())

	assert.True(t, f.chain.IsEmpty())
	assert.Equal(t, 0, f.chain.AddressCount())
	assert.Equal(t, StateEmpty, f.chain.State())

	tip, ok := f.chain.Tip()
	require.True(t, ok)
	assert.Equal(t, f.blocks[1].Tip(), tip)
}

func TestChainFork(t *testing.T) {
	f := newChainFixture(t)
	f.push(t, test.NextBlock(f.tip(), 0, carol, reward))
	f.push(t, test.NextBlock(f.tip(), 0, carol, reward, f.spendGenesis()))
	f.push(t, test.NextBlock(f.tip(), 0, bob, reward))

	aliceBefore := f.chain.AddressTransfers(alice.Address).Clone()
	bobBefore := f.chain.AddressTransfers(bob.Address).Clone()

	fork, err := f.chain.ForkAt(1)
	require.NoError(t, err)
	assert.Equal(t, 2, fork.Len())
	assert.Equal(t, int64(reward), fork.AddressTransfers(alice.Address).Balance().Int64())
	assert.Nil(t, fork.AddressTransfers(bob.Address))

	// the fork spends the same output differently
	other := test.Spend([]model.OutPoint{test.OutPointOf(f.blocks[0].Transactions[0], 0)}, alice.Pay(4000), bob.Pay(1000))
	alternative := f.utxos.Contextualize(test.NextBlock(f.blocks[1].Block, 1, alice, reward, other))
	require.NoError(t, fork.Push(alternative))

	assert.True(t, aliceBefore.Equal(f.chain.AddressTransfers(alice.Address)))
	assert.True(t, bobBefore.Equal(f.chain.AddressTransfers(bob.Address)))
	assert.Equal(t, 4, f.chain.Len())
	assert.False(t, f.chain.Contains(alternative.BlockHash))

	t.Run("by hash", func(t *testing.T) {
		fork, ok := f.chain.Fork(f.blocks[2].BlockHash)
		require.True(t, ok)
		assert.Equal(t, f.blocks[2].Tip(), fork.TipBlock().Tip())

		_, ok = f.chain.Fork(alternative.BlockHash)
		assert.False(t, ok)
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := f.chain.ForkAt(4)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

		_, err = NewChain(nil).ForkAt(0)
		require.Error(t, err)
	})

	t.Run("at the finalized tip", func(t *testing.T) {
		clone := f.chain.Clone()
		clone.PopRoot()

		fork, ok := clone.Fork(f.blocks[0].BlockHash)
		require.True(t, ok)
		assert.True(t, fork.IsEmpty())
		assert.Equal(t, 0, fork.AddressCount())
	})
}

func TestChainOrder(t *testing.T) {
	f := newChainFixture(t)

	// every block chains three transactions spending each other
	for height := uint32(1); height <= 3; height++ {
		var txs []*bt.Tx

		for i := 0; i < 3; i++ {
			tx := test.Spend(
				[]model.OutPoint{test.OutPointOf(f.tip().Transactions[0], 0)},
				alice.Pay(1), alice.Pay(2),
			)
			if i > 0 {
				tx = test.Spend([]model.OutPoint{test.OutPointOf(txs[i-1], 1)}, alice.Pay(1), alice.Pay(1))
			}

			txs = append(txs, tx)
		}

		f.push(t, test.NextBlock(f.tip(), 0, alice, reward, txs...))
	}

	transfers := f.chain.AddressTransfers(alice.Address)

	created := transfers.CreatedUtxos()
	require.Len(t, created, 1+3*7)

	for i := 1; i < len(created); i++ {
		assert.True(t, created[i-1].Location.Less(created[i].Location), "created %d out of order", i)
	}

	spent := transfers.SpentUtxos()
	require.Len(t, spent, 3*3)

	for i := 1; i < len(spent); i++ {
		assert.True(t, spent[i-1].Less(spent[i]), "spent %d out of order", i)
	}

	ids := transfers.TxIDs(f.chain.TxLocation)
	for i := 1; i < len(ids); i++ {
		assert.True(t, ids[i-1].Location.Less(ids[i].Location))
	}
}

func TestChainEndToEnd(t *testing.T) {
	f := &chainFixture{utxos: test.Utxos{}, chain: NewChain(nil)}
	f.push(t, test.Genesis(carol, reward))

	t1 := test.Spend([]model.OutPoint{test.OutPointOf(f.blocks[0].Transactions[0], 0)}, alice.Pay(50))
	f.push(t, test.NextBlock(f.tip(), 0, carol, reward, t1))

	t2 := test.Spend([]model.OutPoint{test.OutPointOf(t1, 0)}, alice.Pay(30))
	f.push(t, test.NextBlock(f.tip(), 0, carol, reward, t2))

	transfers := f.chain.AddressTransfers(alice.Address)
	require.NotNil(t, transfers)
	assert.Equal(t, int64(30), transfers.Balance().Int64())
	assert.Equal(t, uint32(1), transfers.TxIDMultiplicity(*t1.TxIDChainHash()))
	assert.Equal(t, uint32(2), transfers.TxIDMultiplicity(*t2.TxIDChainHash()))
	assert.Equal(t, 2, transfers.TxIDCount())
	assert.Len(t, transfers.CreatedUtxos(), 2)
	assert.Len(t, transfers.SpentUtxos(), 1)

	f.chain.PopTip()
	f.chain.PopTip()
	assert.Nil(t, f.chain.AddressTransfers(alice.Address))
}

func TestChainLifecycle(t *testing.T) {
	chain := NewChain(nil)
	assert.Equal(t, StateEmpty, chain.State())

	err := chain.Prune()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStateError))
	assert.Equal(t, StateEmpty, chain.State())

	genesis := test.Utxos{}.Contextualize(test.Genesis(alice, reward))
	require.NoError(t, chain.Push(genesis))
	assert.Equal(t, StateGrowing, chain.State())

	clone := chain.Clone()
	assert.Equal(t, StateGrowing, clone.State())

	require.NoError(t, chain.Prune())
	assert.Equal(t, StatePruned, chain.State())
	assert.Equal(t, StateGrowing, clone.State())

	require.Error(t, chain.Prune())

	requireStructuralPanic(t, func() { chain.PopTip() })
	requireStructuralPanic(t, func() { chain.PopRoot() })
	requireStructuralPanic(t, func() { _ = chain.Push(genesis) })

	require.NotNil(t, clone.PopRoot())
	assert.Equal(t, StateEmpty, clone.State())
}
