package sql

import (
	"context"
	"database/sql"

	"github.com/jellydator/ttlcache/v3"
	"github.com/niklaslong/zebra/errors"
	"github.com/niklaslong/zebra/model"
	"github.com/niklaslong/zebra/stores/finalized"
	"github.com/niklaslong/zebra/tracing"
	"github.com/niklaslong/zebra/util/usql"
)

// CommitFinalized stores block and everything derived from it in one database transaction.
func (s *SQL) CommitFinalized(ctx context.Context, block *model.FinalizedBlock) (err error) {
	ctx, _, deferFn := tracing.StartTracing(ctx, "sql:CommitFinalized")
	defer func() {
		deferFn(err)
	}()

	err = s.db.WithTx(ctx, func(tx *usql.Tx) error {
		return s.commitFinalized(ctx, tx, block)
	})
	if err != nil {
		if errors.Is(err, errors.ErrBlockInvalid) || errors.Is(err, errors.ErrAmountRange) ||
			errors.Is(err, errors.ErrTxMissingInput) || errors.Is(err, errors.ErrTxInvalidDoubleSpend) {
			return err
		}

		return s.storageError(ctx, err, "failed to commit finalized block %s", block.BlockHash)
	}

	s.blockCache.Set(block.BlockHash, block.Block, ttlcache.DefaultTTL)
	s.logger.Debugf("[CommitFinalized] finalized block %s", block.Tip())

	return nil
}

func (s *SQL) commitFinalized(ctx context.Context, tx *usql.Tx, block *model.FinalizedBlock) error {
	tip, hasTip, err := s.tip(ctx, tx)
	if err != nil {
		return err
	}

	if err = finalized.CheckExtends(tip, hasTip, block); err != nil {
		return err
	}

	if err = finalized.CheckInputs(block, func(outPoint model.OutPoint) error {
		return s.storedUtxo(ctx, tx, outPoint)
	}); err != nil {
		return err
	}

	balances, err := finalized.NewBalances(block, func(addr model.Address) (model.Amount[model.NonNegative], error) {
		return s.addressBalance(ctx, tx, addr)
	})
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO blocks (height, hash, header, tx_count, block_bytes)
		VALUES ($1, $2, $3, $4, $5)
	`, block.Height, block.BlockHash[:], block.Header.Bytes(), len(block.Transactions), block.Bytes()); err != nil {
		return errors.NewStorageError("failed to insert block %s", block.BlockHash, err)
	}

	for i, btTx := range block.Transactions {
		txID := block.TxIDs[i]

		if _, err = tx.ExecContext(ctx, `
			INSERT INTO transactions (hash, height, tx_index, tx)
			VALUES ($1, $2, $3, $4)
		`, txID[:], block.Height, i, btTx.Bytes()); err != nil {
			return errors.NewStorageError("failed to insert transaction %s", txID, err)
		}

		for vout, output := range btTx.Outputs {
			if _, err = tx.ExecContext(ctx, `
				INSERT INTO utxos (tx_hash, vout, height, tx_index, coinbase, satoshis, locking_script)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, txID[:], vout, block.Height, i, i == 0, int64(output.Satoshis), lockingScript(output)); err != nil {
				return errors.NewStorageError("failed to insert output %s:%d", txID, vout, err)
			}
		}

		if i == 0 {
			continue
		}

		for _, input := range btTx.Inputs {
			outPoint := model.OutPointFromInput(input)

			if _, err = tx.ExecContext(ctx, `
				UPDATE utxos SET spending_tx = $1 WHERE tx_hash = $2 AND vout = $3
			`, txID[:], outPoint.Hash[:], outPoint.Index); err != nil {
				return errors.NewStorageError("failed to spend output %s", outPoint, err)
			}
		}
	}

	for _, transfer := range block.Transfers {
		if transfer.Spend {
			_, err = tx.ExecContext(ctx, `
				DELETE FROM address_utxos WHERE address = $1 AND location = $2
			`, transfer.Address.String(), transfer.Location.Bytes())
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO address_utxos (address, location, tx_hash, vout, satoshis, locking_script)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, transfer.Address.String(), transfer.Location.Bytes(), transfer.OutPoint.Hash[:], transfer.OutPoint.Index,
				int64(transfer.Output.Satoshis), lockingScript(transfer.Output))
		}

		if err != nil {
			return errors.NewStorageError("failed to index output %s of %s", transfer.OutPoint, transfer.Address, err)
		}

		if _, err = tx.ExecContext(ctx, `
			INSERT INTO address_txs (address, location, tx_hash)
			VALUES ($1, $2, $3)
			ON CONFLICT (address, location) DO NOTHING
		`, transfer.Address.String(), transfer.TxLocation.Bytes(), transfer.TxID[:]); err != nil {
			return errors.NewStorageError("failed to index transaction %s of %s", transfer.TxID, transfer.Address, err)
		}
	}

	for addr, balance := range balances {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO address_balances (address, balance)
			VALUES ($1, $2)
			ON CONFLICT (address) DO UPDATE SET balance = excluded.balance
		`, addr.String(), balance.Int64()); err != nil {
			return errors.NewStorageError("failed to update balance of %s", addr, err)
		}
	}

	return nil
}

func (s *SQL) tip(ctx context.Context, tx *usql.Tx) (model.ChainTip, bool, error) {
	var (
		height uint32
		hash   []byte
	)

	err := tx.QueryRowContext(ctx, `
		SELECT height, hash FROM blocks ORDER BY height DESC LIMIT 1
	`).Scan(&height, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ChainTip{}, false, nil
		}

		return model.ChainTip{}, false, errors.NewStorageError("failed to read finalized tip", err)
	}

	tipHash, err := newHash(hash)
	if err != nil {
		return model.ChainTip{}, false, err
	}

	return model.ChainTip{Height: height, Hash: *tipHash}, true, nil
}

func (s *SQL) storedUtxo(ctx context.Context, tx *usql.Tx, outPoint model.OutPoint) error {
	var spendingTx []byte

	err := tx.QueryRowContext(ctx, `
		SELECT spending_tx FROM utxos WHERE tx_hash = $1 AND vout = $2
	`, outPoint.Hash[:], outPoint.Index).Scan(&spendingTx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errors.NewUtxoNotFoundError("output %s not found", outPoint)
		}

		return errors.NewStorageError("failed to read output %s", outPoint, err)
	}

	if spendingTx != nil {
		return errors.NewUtxoSpentError("output %s is spent", outPoint)
	}

	return nil
}

func (s *SQL) addressBalance(ctx context.Context, tx *usql.Tx, addr model.Address) (model.Amount[model.NonNegative], error) {
	var balance int64

	err := tx.QueryRowContext(ctx, `
		SELECT balance FROM address_balances WHERE address = $1
	`, addr.String()).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}

		return 0, errors.NewStorageError("failed to read balance of %s", addr, err)
	}

	return model.NewAmount[model.NonNegative](balance)
}
