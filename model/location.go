package model

import (
	"cmp"
	"encoding/binary"
	"fmt"

	"github.com/niklaslong/zebra/errors"
)

const (
	TransactionLocationSize = 8
	OutputLocationSize      = TransactionLocationSize + 4
)

// TransactionLocation is the position of a transaction in the block sequence.
// Ordering by (Height, Index) is chain order.
type TransactionLocation struct {
	Height uint32
	Index  uint32
}

func (l TransactionLocation) Compare(o TransactionLocation) int {
	if c := cmp.Compare(l.Height, o.Height); c != 0 {
		return c
	}

	return cmp.Compare(l.Index, o.Index)
}

func (l TransactionLocation) Less(o TransactionLocation) bool {
	return l.Compare(o) < 0
}

// Bytes is a big endian encoding, so byte order equals chain order.
func (l TransactionLocation) Bytes() []byte {
	b := make([]byte, TransactionLocationSize)
	binary.BigEndian.PutUint32(b[0:4], l.Height)
	binary.BigEndian.PutUint32(b[4:8], l.Index)

	return b
}

func (l TransactionLocation) String() string {
	return fmt.Sprintf("%d/%d", l.Height, l.Index)
}

func NewTransactionLocationFromBytes(b []byte) (TransactionLocation, error) {
	if len(b) != TransactionLocationSize {
		return TransactionLocation{}, errors.NewInvalidArgumentError("transaction location should be %d bytes, got %d", TransactionLocationSize, len(b))
	}

	return TransactionLocation{
		Height: binary.BigEndian.Uint32(b[0:4]),
		Index:  binary.BigEndian.Uint32(b[4:8]),
	}, nil
}

// OutputLocation is the position of an output in the block sequence.
type OutputLocation struct {
	TransactionLocation
	OutputIndex uint32
}

// NewOutputLocation locates the output referenced by outpoint, created by the transaction
// described by utxo.
func NewOutputLocation(outpoint OutPoint, utxo OrderedUtxo) OutputLocation {
	return OutputLocation{
		TransactionLocation: utxo.TransactionLocation(),
		OutputIndex:         outpoint.Index,
	}
}

func (l OutputLocation) Compare(o OutputLocation) int {
	if c := l.TransactionLocation.Compare(o.TransactionLocation); c != 0 {
		return c
	}

	return cmp.Compare(l.OutputIndex, o.OutputIndex)
}

func (l OutputLocation) Less(o OutputLocation) bool {
	return l.Compare(o) < 0
}

func (l OutputLocation) Bytes() []byte {
	b := make([]byte, OutputLocationSize)
	copy(b, l.TransactionLocation.Bytes())
	binary.BigEndian.PutUint32(b[TransactionLocationSize:], l.OutputIndex)

	return b
}

func (l OutputLocation) String() string {
	return fmt.Sprintf("%d/%d/%d", l.Height, l.Index, l.OutputIndex)
}

func NewOutputLocationFromBytes(b []byte) (OutputLocation, error) {
	if len(b) != OutputLocationSize {
		return OutputLocation{}, errors.NewInvalidArgumentError("output location should be %d bytes, got %d", OutputLocationSize, len(b))
	}

	txLoc, err := NewTransactionLocationFromBytes(b[:TransactionLocationSize])
	if err != nil {
		return OutputLocation{}, err
	}

	return OutputLocation{
		TransactionLocation: txLoc,
		OutputIndex:         binary.BigEndian.Uint32(b[TransactionLocationSize:]),
	}, nil
}
