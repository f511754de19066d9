package settings

import (
	"time"

	"github.com/bsv-blockchain/go-chaincfg"
)

func NewSettings() *Settings {
	params, err := chaincfg.GetChainParams(getString("network", "mainnet"))
	if err != nil {
		panic(err)
	}

	return &Settings{
		ClientName:     getString("clientName", "zebra"),
		Version:        getString("version", "dev"),
		DataFolder:     getString("dataFolder", "data"),
		LogLevel:       getString("logLevel", "INFO"),
		LoggerType:     getString("logger", "zerolog"),
		ChainCfgParams: params,
		State: StateSettings{
			ReorgLimit:           getUint32("state_reorgLimit", 99),
			ConfirmationDepth:    getUint32("state_confirmationDepth", 100),
			FinalizedStore:       getURL("state_finalizedStore", "sqlitememory:///finalized"),
			PostgresMaxIdleConns: getInt("state_postgresMaxIdleConns", 10),
			PostgresMaxOpenConns: getInt("state_postgresMaxOpenConns", 80),
			BlockCacheTTL:        getDuration("state_blockCacheTTL", 10*time.Minute),
			MaxFindBlockHashes:   getInt("state_maxFindBlockHashes", 500),
			MaxFindBlockHeaders:  getInt("state_maxFindBlockHeaders", 160),
			MaxUtxoWait:          getDuration("state_maxUtxoWait", 30*time.Second),
			HTTPListenAddress:    getString("state_httpListenAddress", ":8090"),
		},
		Tracing: TracingSettings{
			Enabled:      getBool("tracing_enabled", false),
			SampleRate:   getFloat64("tracing_SampleRate", 0.01),
			CollectorURL: getURL("tracing_collectorURL", "http://localhost:4318"),
		},
	}
}
