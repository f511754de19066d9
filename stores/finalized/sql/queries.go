package sql

import (
	"context"
	"database/sql"
	"math"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/bscript"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/jellydator/ttlcache/v3"
	"github.com/niklaslong/zebra/errors"
	"github.com/niklaslong/zebra/model"
	"github.com/niklaslong/zebra/stores/finalized"
	"github.com/niklaslong/zebra/tracing"
)

func newHash(b []byte) (*chainhash.Hash, error) {
	hash, err := chainhash.NewHash(b)
	if err != nil {
		return nil, errors.NewStorageError("invalid hash in database", err)
	}

	return hash, nil
}

func lockingScript(output *bt.Output) []byte {
	if output == nil || output.LockingScript == nil {
		return []byte{}
	}

	return *output.LockingScript
}

func (s *SQL) Tip(ctx context.Context) (model.ChainTip, error) {
	var (
		height uint32
		hash   []byte
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT height, hash FROM blocks ORDER BY height DESC LIMIT 1
	`).Scan(&height, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ChainTip{}, errors.NewNotFoundError("finalized store is empty")
		}

		return model.ChainTip{}, errors.NewStorageError("failed to read finalized tip", err)
	}

	tipHash, err := newHash(hash)
	if err != nil {
		return model.ChainTip{}, err
	}

	return model.ChainTip{Height: height, Hash: *tipHash}, nil
}

func (s *SQL) Height(ctx context.Context, hash *chainhash.Hash) (uint32, error) {
	if block := s.blockCache.Get(*hash); block != nil {
		return block.Value().Height, nil
	}

	var height uint32

	err := s.db.QueryRowContext(ctx, `
		SELECT height FROM blocks WHERE hash = $1
	`, hash[:]).Scan(&height)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, errors.NewBlockNotFoundError("block %s not found", hash)
		}

		return 0, errors.NewStorageError("failed to read height of block %s", hash, err)
	}

	return height, nil
}

func (s *SQL) Hash(ctx context.Context, height uint32) (*chainhash.Hash, error) {
	var hash []byte

	err := s.db.QueryRowContext(ctx, `
		SELECT hash FROM blocks WHERE height = $1
	`, height).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewBlockNotFoundError("no block at height %d", height)
		}

		return nil, errors.NewStorageError("failed to read block at height %d", height, err)
	}

	return newHash(hash)
}

func (s *SQL) Block(ctx context.Context, hash *chainhash.Hash) (*model.Block, error) {
	ctx, _, deferFn := tracing.StartTracing(ctx, "sql:Block")
	defer deferFn()

	if cached := s.blockCache.Get(*hash); cached != nil {
		return cached.Value(), nil
	}

	var (
		height     uint32
		blockBytes []byte
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT height, block_bytes FROM blocks WHERE hash = $1
	`, hash[:]).Scan(&height, &blockBytes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewBlockNotFoundError("block %s not found", hash)
		}

		return nil, errors.NewStorageError("failed to read block %s", hash, err)
	}

	block, err := model.NewBlockFromBytes(blockBytes, height)
	if err != nil {
		return nil, errors.NewStorageError("failed to decode block %s", hash, err)
	}

	s.blockCache.Set(*hash, block, ttlcache.DefaultTTL)

	return block, nil
}

func (s *SQL) Header(ctx context.Context, hash *chainhash.Hash) (model.CountedHeader, error) {
	if cached := s.blockCache.Get(*hash); cached != nil {
		return cached.Value().CountedHeader(), nil
	}

	var (
		headerBytes []byte
		txCount     uint64
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT header, tx_count FROM blocks WHERE hash = $1
	`, hash[:]).Scan(&headerBytes, &txCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.CountedHeader{}, errors.NewBlockNotFoundError("block %s not found", hash)
		}

		return model.CountedHeader{}, errors.NewStorageError("failed to read header %s", hash, err)
	}

	header, err := model.NewBlockHeaderFromBytes(headerBytes)
	if err != nil {
		return model.CountedHeader{}, errors.NewStorageError("failed to decode header %s", hash, err)
	}

	return model.CountedHeader{Header: header, TransactionCount: txCount}, nil
}

func (s *SQL) Transaction(ctx context.Context, hash *chainhash.Hash) (*bt.Tx, model.TransactionLocation, error) {
	var (
		location model.TransactionLocation
		txBytes  []byte
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT height, tx_index, tx FROM transactions WHERE hash = $1
	`, hash[:]).Scan(&location.Height, &location.Index, &txBytes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, location, errors.NewTxNotFoundError("transaction %s not found", hash)
		}

		return nil, location, errors.NewStorageError("failed to read transaction %s", hash, err)
	}

	tx, err := bt.NewTxFromBytes(txBytes)
	if err != nil {
		return nil, location, errors.NewStorageError("failed to decode transaction %s", hash, err)
	}

	return tx, location, nil
}

func (s *SQL) Utxo(ctx context.Context, outPoint model.OutPoint) (model.OrderedUtxo, error) {
	var (
		height, txIndex uint32
		coinbase        bool
		satoshis        int64
		script          []byte
		spendingTx      []byte
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT height, tx_index, coinbase, satoshis, locking_script, spending_tx
		FROM utxos WHERE tx_hash = $1 AND vout = $2
	`, outPoint.Hash[:], outPoint.Index).Scan(&height, &txIndex, &coinbase, &satoshis, &script, &spendingTx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.OrderedUtxo{}, errors.NewUtxoNotFoundError("output %s not found", outPoint)
		}

		return model.OrderedUtxo{}, errors.NewStorageError("failed to read output %s", outPoint, err)
	}

	if spendingTx != nil {
		return model.OrderedUtxo{}, errors.NewUtxoSpentError("output %s is spent", outPoint)
	}

	output := &bt.Output{Satoshis: uint64(satoshis), LockingScript: bscript.NewFromBytes(script)}

	return model.NewOrderedUtxo(output, height, txIndex, coinbase), nil
}

func (s *SQL) AddressBalance(ctx context.Context, addr model.Address) (model.Amount[model.NonNegative], error) {
	var balance int64

	err := s.db.QueryRowContext(ctx, `
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

func (s *SQL) AddressUtxos(ctx context.Context, addr model.Address) ([]finalized.AddressUtxo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT location, tx_hash, vout, satoshis, locking_script
		FROM address_utxos
		WHERE address = $1
		ORDER BY location ASC
	`, addr.String())
	if err != nil {
		return nil, errors.NewStorageError("failed to read outputs of %s", addr, err)
	}

	defer rows.Close()

	var utxos []finalized.AddressUtxo

	for rows.Next() {
		var (
			location, txHash, script []byte
			vout                     uint32
			satoshis                 int64
		)

		if err = rows.Scan(&location, &txHash, &vout, &satoshis, &script); err != nil {
			return nil, errors.NewStorageError("failed to scan output of %s", addr, err)
		}

		outputLocation, err := model.NewOutputLocationFromBytes(location)
		if err != nil {
			return nil, errors.NewStorageError("invalid output location of %s", addr, err)
		}

		hash, err := newHash(txHash)
		if err != nil {
			return nil, err
		}

		utxos = append(utxos, finalized.AddressUtxo{
			Location: outputLocation,
			OutPoint: model.OutPoint{Hash: *hash, Index: vout},
			Output:   &bt.Output{Satoshis: uint64(satoshis), LockingScript: bscript.NewFromBytes(script)},
		})
	}

	if err = rows.Err(); err != nil {
		return nil, errors.NewStorageError("failed to read outputs of %s", addr, err)
	}

	return utxos, nil
}

func (s *SQL) AddressTxIDs(ctx context.Context, addr model.Address, fromHeight, toHeight uint32) ([]finalized.AddressTx, error) {
	if fromHeight > toHeight {
		return nil, nil
	}

	from := model.TransactionLocation{Height: fromHeight}
	to := model.TransactionLocation{Height: toHeight, Index: math.MaxUint32}

	rows, err := s.db.QueryContext(ctx, `
		SELECT location, tx_hash
		FROM address_txs
		WHERE address = $1 AND location >= $2 AND location <= $3
		ORDER BY location ASC
	`, addr.String(), from.Bytes(), to.Bytes())
	if err != nil {
		return nil, errors.NewStorageError("failed to read transactions of %s", addr, err)
	}

	defer rows.Close()

	var txs []finalized.AddressTx

	for rows.Next() {
		var location, txHash []byte

		if err = rows.Scan(&location, &txHash); err != nil {
			return nil, errors.NewStorageError("failed to scan transaction of %s", addr, err)
		}

		txLocation, err := model.NewTransactionLocationFromBytes(location)
		if err != nil {
			return nil, errors.NewStorageError("invalid transaction location of %s", addr, err)
		}

		hash, err := newHash(txHash)
		if err != nil {
			return nil, err
		}

		txs = append(txs, finalized.AddressTx{Location: txLocation, TxID: *hash})
	}

	if err = rows.Err(); err != nil {
		return nil, errors.NewStorageError("failed to read transactions of %s", addr, err)
	}

	return txs, nil
}
