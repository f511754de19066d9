package model

import (
	"encoding/binary"
	"encoding/hex"
	"math/big"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/niklaslong/zebra/errors"
)

// NBit is the compact difficulty target as it appears in a serialized block header
// (little endian). String renders it the way nodes print it, e.g. "1d00ffff".
type NBit [4]byte

var maxTarget = new(big.Int).Lsh(big.NewInt(0xffff), 8*(0x1d-3))

func NewNBitFromString(s string) (*NBit, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("invalid nBits %q", s, err)
	}

	return NewNBitFromSlice(bt.ReverseBytes(b))
}

// NewNBitFromSlice expects the little endian header encoding.
func NewNBitFromSlice(b []byte) (*NBit, error) {
	if len(b) != 4 {
		return nil, errors.NewInvalidArgumentError("nBits should be 4 bytes long, got %d", len(b))
	}

	var n NBit

	copy(n[:], b)

	return &n, nil
}

func NewNBitFromUint32(bits uint32) NBit {
	var n NBit

	binary.LittleEndian.PutUint32(n[:], bits)

	return n
}

func (n NBit) Uint32() uint32 {
	return binary.LittleEndian.Uint32(n[:])
}

func (n NBit) String() string {
	return hex.EncodeToString(bt.ReverseBytes(n.CloneBytes()))
}

func (n NBit) CloneBytes() []byte {
	b := make([]byte, 4)
	copy(b, n[:])

	return b
}

// CalculateTarget expands the compact representation. A set sign bit yields a negative target.
func (n NBit) CalculateTarget() *big.Int {
	bits := n.Uint32()
	exponent := uint(bits >> 24)
	mantissa := int64(bits & 0x007fffff)

	target := big.NewInt(mantissa)
	if exponent <= 3 {
		target.Rsh(target, 8*(3-exponent))
	} else {
		target.Lsh(target, 8*(exponent-3))
	}

	if bits&0x00800000 != 0 {
		target.Neg(target)
	}

	return target
}

func (n NBit) CalculateDifficulty() *big.Float {
	target := n.CalculateTarget()
	if target.Sign() <= 0 {
		return new(big.Float)
	}

	return new(big.Float).Quo(new(big.Float).SetInt(maxTarget), new(big.Float).SetInt(target))
}
