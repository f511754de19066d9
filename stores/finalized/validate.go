package finalized

import (
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/niklaslong/zebra/errors"
	"github.com/niklaslong/zebra/model"
)

// CheckExtends fails unless block is the next block after tip. An empty store, hasTip false,
// only accepts a genesis block.
func CheckExtends(tip model.ChainTip, hasTip bool, block *model.FinalizedBlock) error {
	if !hasTip {
		if block.Height != 0 || !block.PrevHash().IsEqual(&chainhash.Hash{}) {
			return errors.NewBlockInvalidError("finalized store is empty, block %s at height %d is not a genesis block", block.BlockHash, block.Height)
		}

		return nil
	}

	if block.Height != tip.Height+1 || !block.PrevHash().IsEqual(&tip.Hash) {
		return errors.NewBlockInvalidError("block %s at height %d does not extend finalized tip %s", block.BlockHash, block.Height, tip)
	}

	return nil
}

// CheckInputs verifies that every input of block spends an output that is either stored and
// unspent, or created earlier in the block. stored looks up the stored outputs and returns
// ErrUtxoNotFound or ErrSpent like Store.Utxo.
func CheckInputs(block *model.FinalizedBlock, stored func(model.OutPoint) error) error {
	spentInBlock := make(map[model.OutPoint]struct{})

	for i, tx := range block.Transactions {
		if i == 0 {
			continue
		}

		for _, input := range tx.Inputs {
			outPoint := model.OutPointFromInput(input)

			if _, spent := spentInBlock[outPoint]; spent {
				return errors.NewTxInvalidDoubleSpendError("transaction %s spends %s twice in block %s", block.TxIDs[i], outPoint, block.BlockHash)
			}

			spentInBlock[outPoint] = struct{}{}

			if created, ok := block.NewOutputs[outPoint]; ok && created.TxIndexInBlock < uint32(i) {
				continue
			}

			err := stored(outPoint)

			switch {
			case err == nil:
			case errors.Is(err, errors.ErrUtxoNotFound):
				return errors.NewTxMissingInputError("transaction %s spends unknown output %s", block.TxIDs[i], outPoint)
			case errors.Is(err, errors.ErrSpent):
				return errors.NewTxInvalidDoubleSpendError("transaction %s spends finalized output %s which is already spent", block.TxIDs[i], outPoint, err)
			default:
				return err
			}
		}
	}

	return nil
}

// NewBalances adds the balance deltas of block to the balances returned by current. It fails
// with ErrAmountRange when a balance would become negative or exceed the money supply.
func NewBalances(block *model.FinalizedBlock, current func(model.Address) (model.Amount[model.NonNegative], error)) (map[model.Address]model.Amount[model.NonNegative], error) {
	deltas, err := block.BalanceDeltas()
	if err != nil {
		return nil, errors.NewBlockInvalidError("block %s address deltas", block.BlockHash, err)
	}

	balances := make(map[model.Address]model.Amount[model.NonNegative], len(deltas))

	for addr, delta := range deltas {
		balance, err := current(addr)
		if err != nil {
			return nil, err
		}

		sum, err := model.Amount[model.NegativeAllowed](balance).Add(delta)
		if err != nil {
			return nil, errors.NewAmountRangeError("balance of %s in block %s", addr, block.BlockHash, err)
		}

		if balances[addr], err = model.Constrain[model.NonNegative](sum); err != nil {
			return nil, errors.NewAmountRangeError("balance of %s would become %d in block %s", addr, sum.Int64(), block.BlockHash)
		}
	}

	return balances, nil
}
