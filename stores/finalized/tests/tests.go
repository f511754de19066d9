// Package tests runs the same finalized.Store scenarios against every store implementation.
package tests

import (
	"context"
	"net/url"
	"testing"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/niklaslong/zebra/model"
	"github.com/niklaslong/zebra/services/state/nonfinalized"
	"github.com/niklaslong/zebra/stores/finalized"
	"github.com/niklaslong/zebra/stores/finalized/factory"
	"github.com/niklaslong/zebra/ulogger"
	"github.com/niklaslong/zebra/util/test"
	"github.com/stretchr/testify/require"
)

const Reward = 5000

var (
	Alice = test.NewKey(1)
	Bob   = test.NewKey(2)
	Carol = test.NewKey(3)
)

// StoreTestCase names a store implementation and how to open an empty instance of it.
type StoreTestCase struct {
	Name        string
	CreateStore func(t *testing.T) finalized.Store
}

func storeCase(name, rawURL string) StoreTestCase {
	return StoreTestCase{
		Name: name,
		CreateStore: func(t *testing.T) finalized.Store {
			storeURL, err := url.Parse(rawURL)
			require.NoError(t, err)

			store, err := factory.NewStore(ulogger.TestLogger{}, test.CreateBaseTestSettings(), storeURL)
			require.NoError(t, err)

			t.Cleanup(func() {
				_ = store.Close()
			})

			return store
		},
	}
}

// GetStoreTestCases returns every store implementation that runs without external services.
func GetStoreTestCases() []StoreTestCase {
	return []StoreTestCase{
		storeCase("memory", "memory://"),
		storeCase("sqlitememory", "sqlitememory:///finalized"),
	}
}

// Fixture is a three block chain, genesis and two blocks, finalized through a non-finalized
// chain so that every block carries its address transfers.
//
//	genesis: coinbase 5000 to alice
//	block 1: coinbase 5000 to carol, alice's 5000 split into 3000 for bob and 2000 for alice
//	block 2: coinbase 5000 to carol, bob's 3000 split into 1000 for carol and 2000 for bob
type Fixture struct {
	Utxos  test.Utxos
	Blocks []*model.Block
	// Finalized holds the block at every height, ready for CommitFinalized.
	Finalized []*model.FinalizedBlock
	// Txs are the non-coinbase transactions of block 1 and block 2.
	Txs []*bt.Tx
}

func NewFixture(t *testing.T) *Fixture {
	t.Helper()

	f := &Fixture{Utxos: test.Utxos{}}

	genesis := test.Genesis(Alice, Reward)

	tx1 := test.Spend([]model.OutPoint{test.OutPointOf(genesis.Transactions[0], 0)}, Bob.Pay(3000), Alice.Pay(2000))
	block1 := test.NextBlock(genesis, 1, Carol, Reward, tx1)

	tx2 := test.Spend([]model.OutPoint{test.OutPointOf(tx1, 0)}, Carol.Pay(1000), Bob.Pay(2000))
	block2 := test.NextBlock(block1, 2, Carol, Reward, tx2)

	f.Blocks = []*model.Block{genesis, block1, block2}
	f.Txs = []*bt.Tx{tx1, tx2}

	chain := nonfinalized.NewChain(nil)

	for _, block := range f.Blocks {
		require.NoError(t, chain.Push(f.Utxos.Contextualize(block)))
	}

	for range f.Blocks {
		root := chain.PopRoot()
		require.NotNil(t, root)

		f.Finalized = append(f.Finalized, root)
	}

	return f
}

// CommitAll commits every fixture block to store.
func (f *Fixture) CommitAll(t *testing.T, ctx context.Context, store finalized.Store) {
	t.Helper()

	for _, block := range f.Finalized {
		require.NoError(t, store.CommitFinalized(ctx, block))
	}
}

// Unindexed contextualizes block without address transfers, for blocks that a store has to
// reject before it looks at the transfers.
func (f *Fixture) Unindexed(block *model.Block) *model.FinalizedBlock {
	return &model.FinalizedBlock{ContextualBlock: f.Utxos.Contextualize(block)}
}
