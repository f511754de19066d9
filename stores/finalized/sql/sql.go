// Package sql implements finalized.Store on postgres or sqlite.
package sql

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/jellydator/ttlcache/v3"
	"github.com/niklaslong/zebra/errors"
	"github.com/niklaslong/zebra/model"
	"github.com/niklaslong/zebra/settings"
	"github.com/niklaslong/zebra/ulogger"
	"github.com/niklaslong/zebra/util"
	"github.com/niklaslong/zebra/util/usql"
)

type SQL struct {
	db         *usql.DB
	engine     util.SQLEngine
	logger     ulogger.Logger
	blockCache *ttlcache.Cache[chainhash.Hash, *model.Block]
}

func New(logger ulogger.Logger, tSettings *settings.Settings, storeURL *url.URL) (*SQL, error) {
	logger = logger.New("fsql")

	db, err := util.InitSQLDB(logger, storeURL, tSettings)
	if err != nil {
		return nil, errors.NewStorageError("failed to init sql db", err)
	}

	engine := util.SQLEngine(storeURL.Scheme)

	switch engine {
	case util.Postgres:
		err = createSchema(db, "BYTEA")
	case util.Sqlite, util.SqliteMemory:
		err = createSchema(db, "BLOB")
	default:
		return nil, errors.NewConfigurationError("unknown database engine: %s", storeURL.Scheme)
	}

	if err != nil {
		return nil, err
	}

	s := &SQL{
		db:     db,
		engine: engine,
		logger: logger,
		blockCache: ttlcache.New[chainhash.Hash, *model.Block](
			ttlcache.WithTTL[chainhash.Hash, *model.Block](tSettings.State.BlockCacheTTL),
			ttlcache.WithDisableTouchOnHit[chainhash.Hash, *model.Block](),
		),
	}

	go s.blockCache.Start()

	return s, nil
}

func createSchema(db *usql.DB, blob string) error {
	statements := []struct {
		name  string
		query string
	}{
		{"blocks", fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS blocks (
		 height         BIGINT PRIMARY KEY
		,hash           %[1]s NOT NULL
		,header         %[1]s NOT NULL
		,tx_count       BIGINT NOT NULL
		,block_bytes    %[1]s NOT NULL
		,inserted_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`, blob)},
		{"ux_blocks_hash", `CREATE UNIQUE INDEX IF NOT EXISTS ux_blocks_hash ON blocks (hash);`},
		{"transactions", fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS transactions (
		 hash           %[1]s PRIMARY KEY
		,height         BIGINT NOT NULL
		,tx_index       BIGINT NOT NULL
		,tx             %[1]s NOT NULL
		);`, blob)},
		{"utxos", fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS utxos (
		 tx_hash        %[1]s NOT NULL
		,vout           BIGINT NOT NULL
		,height         BIGINT NOT NULL
		,tx_index       BIGINT NOT NULL
		,coinbase       BOOLEAN NOT NULL
		,satoshis       BIGINT NOT NULL
		,locking_script %[1]s NOT NULL
		,spending_tx    %[1]s NULL
		,PRIMARY KEY (tx_hash, vout)
		);`, blob)},
		{"address_balances", `
		CREATE TABLE IF NOT EXISTS address_balances (
		 address        VARCHAR(64) PRIMARY KEY
		,balance        BIGINT NOT NULL
		);`},
		{"address_utxos", fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS address_utxos (
		 address        VARCHAR(64) NOT NULL
		,location       %[1]s NOT NULL
		,tx_hash        %[1]s NOT NULL
		,vout           BIGINT NOT NULL
		,satoshis       BIGINT NOT NULL
		,locking_script %[1]s NOT NULL
		,PRIMARY KEY (address, location)
		);`, blob)},
		{"address_txs", fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS address_txs (
		 address        VARCHAR(64) NOT NULL
		,location       %[1]s NOT NULL
		,tx_hash        %[1]s NOT NULL
		,PRIMARY KEY (address, location)
		);`, blob)},
	}

	for _, statement := range statements {
		if _, err := db.Exec(statement.query); err != nil {
			_ = db.Close()
			return errors.NewStorageError("could not create %s", statement.name, err)
		}
	}

	return nil
}

func (s *SQL) Health(ctx context.Context, _ bool) (int, string, error) {
	details := fmt.Sprintf("SQL Engine is %s", s.engine)

	var num int

	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&num); err != nil {
		return http.StatusServiceUnavailable, details, errors.NewStorageUnavailableError("%s is not answering", s.engine, err)
	}

	return http.StatusOK, details, nil
}

// storageError marks err as unavailable when the database no longer answers a ping.
func (s *SQL) storageError(ctx context.Context, err error, message string, params ...interface{}) error {
	params = append(params, err)

	if pingErr := s.db.PingContext(ctx); pingErr != nil {
		return errors.NewStorageUnavailableError(message, params...)
	}

	return errors.NewStorageError(message, params...)
}

func (s *SQL) Close() error {
	s.blockCache.Stop()
	return s.db.Close()
}
