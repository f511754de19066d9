package test

import (
	"github.com/bsv-blockchain/go-chaincfg"
	"github.com/niklaslong/zebra/settings"
)

// CreateBaseTestSettings returns regtest settings with a short reorg window.
func CreateBaseTestSettings() *settings.Settings {
	tSettings := settings.NewSettings()
	tSettings.ChainCfgParams = &chaincfg.RegressionNetParams
	tSettings.State.ReorgLimit = 3
	tSettings.State.ConfirmationDepth = 4
	tSettings.State.MaxFindBlockHashes = 500
	tSettings.State.MaxFindBlockHeaders = 160

	return tSettings
}
