package settings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// check settings object is initialised
func TestInitialiseSettings(t *testing.T) {
	tSettings := NewSettings()

	require.NotNil(t, tSettings.ChainCfgParams)
	require.NotNil(t, tSettings.State.FinalizedStore)

	assert.Equal(t, uint32(99), tSettings.State.ReorgLimit)
	assert.Equal(t, uint32(100), tSettings.State.ConfirmationDepth)
	assert.Equal(t, 500, tSettings.State.MaxFindBlockHashes)
	assert.Equal(t, 160, tSettings.State.MaxFindBlockHeaders)
	assert.Equal(t, 30*time.Second, tSettings.State.MaxUtxoWait)
	assert.Equal(t, 10*time.Minute, tSettings.State.BlockCacheTTL)
}

func TestHelperDefaults(t *testing.T) {
	assert.Equal(t, "fallback", getString("settings_test_missing_key", "fallback"))
	assert.Equal(t, 7, getInt("settings_test_missing_key", 7))
	assert.Equal(t, uint32(3), getUint32("settings_test_missing_key", 3))
	assert.InDelta(t, 0.5, getFloat64("settings_test_missing_key", 0.5), 1e-9)
	assert.Equal(t, time.Second, getDuration("settings_test_missing_key", time.Second))
	assert.True(t, getBool("settings_test_missing_key", true))
	assert.Equal(t, "memory", getURL("settings_test_missing_key", "memory:///x").Scheme)
}
