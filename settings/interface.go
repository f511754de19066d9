package settings

import (
	"net/url"
	"time"

	"github.com/bsv-blockchain/go-chaincfg"
)

type StateSettings struct {
	// ReorgLimit is the depth below the best tip beyond which competing forks are dropped.
	ReorgLimit uint32
	// ConfirmationDepth is the number of blocks the best chain keeps in memory before its root
	// is finalized.
	ConfirmationDepth    uint32
	FinalizedStore       *url.URL
	PostgresMaxIdleConns int
	PostgresMaxOpenConns int
	BlockCacheTTL        time.Duration
	MaxFindBlockHashes   int
	MaxFindBlockHeaders  int
	// MaxUtxoWait caps how long an HTTP request may wait for an output to be created.
	MaxUtxoWait time.Duration
	// HTTPListenAddress serves health, metrics and read endpoints. Empty disables it.
	HTTPListenAddress string
}

type TracingSettings struct {
	Enabled      bool
	SampleRate   float64
	CollectorURL *url.URL
}

type Settings struct {
	ClientName     string
	Version        string
	DataFolder     string
	LogLevel       string
	LoggerType     string
	ChainCfgParams *chaincfg.Params
	State          StateSettings
	Tracing        TracingSettings
}
