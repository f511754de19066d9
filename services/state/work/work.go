// Package work calculates proof-of-work values from compact difficulty targets.
//
// The work of a block is the expected number of hashes needed to find it:
//
//	work = 2^256 / (target + 1)
//
// Chains are compared by the sum of the work of their blocks.
package work

import (
	"math/big"

	"github.com/niklaslong/zebra/model"
)

var oneLsh256 = new(big.Int).Lsh(big.NewInt(1), 256)

// CalcBlockWork returns the work represented by bits. Zero and negative targets have no work.
func CalcBlockWork(bits uint32) *big.Int {
	target := model.NewNBitFromUint32(bits).CalculateTarget()
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}

	return new(big.Int).Div(oneLsh256, new(big.Int).Add(target, big.NewInt(1)))
}

// AddBlockWork returns prevWork plus the work of a block with difficulty nBits.
// prevWork is not modified.
func AddBlockWork(prevWork *big.Int, nBits model.NBit) *big.Int {
	w := CalcBlockWork(nBits.Uint32())
	if prevWork == nil {
		return w
	}

	return w.Add(w, prevWork)
}
