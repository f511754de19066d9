package state

import (
	"context"

	"github.com/niklaslong/zebra/errors"
	"github.com/niklaslong/zebra/model"
)

// BlockVerifier checks a block whose inputs have been resolved. Any error rejects the block.
type BlockVerifier interface {
	VerifyBlock(ctx context.Context, block *model.ContextualBlock) error
}

// BlockVerifierFunc adapts a func to BlockVerifier.
type BlockVerifierFunc func(ctx context.Context, block *model.ContextualBlock) error

func (f BlockVerifierFunc) VerifyBlock(ctx context.Context, block *model.ContextualBlock) error {
	return f(ctx, block)
}

// StructureVerifier checks what can be checked without scripts: the merkle root, the coinbase
// position and that no transaction creates more value than it spends.
type StructureVerifier struct{}

func (StructureVerifier) VerifyBlock(_ context.Context, block *model.ContextualBlock) error {
	if len(block.Transactions) == 0 {
		return errors.NewBlockInvalidError("block %s has no transactions", block.BlockHash)
	}

	if err := block.CheckMerkleRoot(); err != nil {
		return err
	}

	for i, tx := range block.Transactions {
		if tx.IsCoinbase() != (i == 0) {
			return errors.NewBlockInvalidError("block %s has a coinbase transaction at index %d", block.BlockHash, i)
		}

		if i == 0 {
			continue
		}

		var in, out model.Amount[model.NonNegative]

		for _, input := range tx.Inputs {
			utxo, ok := block.SpentUtxos[model.OutPointFromInput(input)]
			if !ok {
				return errors.NewTxMissingInputError("transaction %s spends an unresolved output", block.TxIDs[i])
			}

			value, err := utxo.Value()
			if err != nil {
				return errors.NewBlockInvalidError("transaction %s input value", block.TxIDs[i], err)
			}

			if in, err = in.Add(value); err != nil {
				return errors.NewBlockInvalidError("transaction %s input total", block.TxIDs[i], err)
			}
		}

		for vout, output := range tx.Outputs {
			value, err := model.NewAmountFromSatoshis[model.NonNegative](output.Satoshis)
			if err != nil {
				return errors.NewBlockInvalidError("transaction %s output %d value", block.TxIDs[i], vout, err)
			}

			if out, err = out.Add(value); err != nil {
				return errors.NewBlockInvalidError("transaction %s output total", block.TxIDs[i], err)
			}
		}

		if out.Int64() > in.Int64() {
			return errors.NewBlockInvalidError("transaction %s spends %d but creates %d", block.TxIDs[i], in.Int64(), out.Int64())
		}
	}

	return nil
}
