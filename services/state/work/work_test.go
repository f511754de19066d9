package work

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/niklaslong/zebra/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalcBlockWork(t *testing.T) {
	tests := []struct {
		name         string
		bits         uint32
		expectedWork string // hex string of expected work value
		expectsZero  bool
	}{
		{
			name:         "Genesis block difficulty",
			bits:         0x1d00ffff,
			expectedWork: "0000000000000000000000000000000000000000000000000000000100010001",
		},
		{
			name:         "Mainnet typical difficulty",
			bits:         0x1a05db8b,
			expectedWork: "000000000000000000000000000000000000000000000000002bb43836381c9c",
		},
		{
			name:         "High difficulty",
			bits:         0x17053894,
			expectedWork: "0000000000000000000000000000000000000000000031085d594cb7e26e94b5",
		},
		{
			name:         "Regtest difficulty",
			bits:         0x207fffff,
			expectedWork: "0000000000000000000000000000000000000000000000000000000000000002",
		},
		{
			name:        "Invalid negative target",
			bits:        0x01800000,
			expectsZero: true,
		},
		{
			name:        "Zero target",
			bits:        0x00000000,
			expectsZero: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			work := CalcBlockWork(tt.bits)
			require.NotNil(t, work)

			if tt.expectsZero {
				assert.Equal(t, 0, work.Sign())
				return
			}

			expectedBytes, err := hex.DecodeString(tt.expectedWork)
			require.NoError(t, err)

			expected := new(big.Int).SetBytes(expectedBytes)
			assert.Equal(t, 0, expected.Cmp(work), "expected %s, got %s", expected.Text(16), work.Text(16))
		})
	}
}

func TestAddBlockWork(t *testing.T) {
	nBit, err := model.NewNBitFromString("1d00ffff")
	require.NoError(t, err)

	one := AddBlockWork(nil, *nBit)
	two := AddBlockWork(one, *nBit)

	assert.Equal(t, 0, new(big.Int).Mul(CalcBlockWork(0x1d00ffff), big.NewInt(2)).Cmp(two))
	assert.Equal(t, 0, CalcBlockWork(0x1d00ffff).Cmp(one), "prevWork must not be modified")
}

func BenchmarkCalcBlockWork(b *testing.B) {
	for i := 0; i < b.N; i++ {
		CalcBlockWork(0x1d00ffff)
	}
}
