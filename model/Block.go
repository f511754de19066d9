package model

import (
	"fmt"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/niklaslong/zebra/errors"
)

// Block is a full block. Height is not part of the wire encoding and is supplied by whoever
// decodes the block.
type Block struct {
	Header       *BlockHeader
	Height       uint32
	Transactions []*bt.Tx
}

func NewBlock(header *BlockHeader, height uint32, txs []*bt.Tx) *Block {
	return &Block{
		Header:       header,
		Height:       height,
		Transactions: txs,
	}
}

// NewBlockFromBytes decodes the wire encoding: header, varint transaction count, transactions.
func NewBlockFromBytes(blockBytes []byte, height uint32) (*Block, error) {
	if len(blockBytes) < BlockHeaderSize+1 {
		return nil, errors.NewBlockInvalidError("block is too short: %d bytes", len(blockBytes))
	}

	header, err := NewBlockHeaderFromBytes(blockBytes[:BlockHeaderSize])
	if err != nil {
		return nil, errors.NewBlockInvalidError("could not read block header", err)
	}

	offset := BlockHeaderSize

	txCount, size := bt.NewVarIntFromBytes(blockBytes[offset:])
	offset += size

	// every transaction takes more than one byte
	txs := make([]*bt.Tx, 0, min(uint64(txCount), uint64(len(blockBytes)-offset)))

	for i := uint64(0); i < uint64(txCount); i++ {
		if offset >= len(blockBytes) {
			return nil, errors.NewBlockInvalidError("block is missing transaction %d of %d", i, uint64(txCount))
		}

		tx, n, err := bt.NewTxFromStream(blockBytes[offset:])
		if err != nil {
			return nil, errors.NewBlockInvalidError("could not read transaction %d", i, err)
		}

		txs = append(txs, tx)
		offset += n
	}

	if offset != len(blockBytes) {
		return nil, errors.NewBlockInvalidError("block has %d trailing bytes", len(blockBytes)-offset)
	}

	return NewBlock(header, height, txs), nil
}

func (b *Block) Hash() *chainhash.Hash {
	return b.Header.Hash()
}

func (b *Block) PrevHash() *chainhash.Hash {
	return b.Header.HashPrevBlock
}

func (b *Block) CoinbaseTx() *bt.Tx {
	if len(b.Transactions) == 0 {
		return nil
	}

	return b.Transactions[0]
}

func (b *Block) TransactionCount() uint64 {
	return uint64(len(b.Transactions))
}

func (b *Block) CountedHeader() CountedHeader {
	return CountedHeader{
		Header:           b.Header,
		TransactionCount: b.TransactionCount(),
	}
}

func (b *Block) String() string {
	return fmt.Sprintf("%s (height %d, %d txs)", b.Hash(), b.Height, len(b.Transactions))
}

func (b *Block) Bytes() []byte {
	out := make([]byte, 0, BlockHeaderSize+9)
	out = append(out, b.Header.Bytes()...)
	out = append(out, bt.VarInt(uint64(len(b.Transactions))).Bytes()...)

	for _, tx := range b.Transactions {
		out = append(out, tx.Bytes()...)
	}

	return out
}

// CalculateMerkleRoot builds the merkle root over the transaction ids, duplicating the last
// hash of every odd level.
func (b *Block) CalculateMerkleRoot() *chainhash.Hash {
	if len(b.Transactions) == 0 {
		return &chainhash.Hash{}
	}

	level := make([]chainhash.Hash, 0, len(b.Transactions))
	for _, tx := range b.Transactions {
		level = append(level, *tx.TxIDChainHash())
	}

	var pair [chainhash.HashSize * 2]byte

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}

		next := make([]chainhash.Hash, 0, len(level)/2)

		for i := 0; i < len(level); i += 2 {
			copy(pair[:chainhash.HashSize], level[i][:])
			copy(pair[chainhash.HashSize:], level[i+1][:])
			next = append(next, chainhash.DoubleHashH(pair[:]))
		}

		level = next
	}

	return &level[0]
}

func (b *Block) CheckMerkleRoot() error {
	root := b.CalculateMerkleRoot()
	if b.Header.HashMerkleRoot == nil || !root.IsEqual(b.Header.HashMerkleRoot) {
		return errors.NewBlockInvalidError("merkle root mismatch: header %s, calculated %s", b.Header.HashMerkleRoot, root)
	}

	return nil
}
