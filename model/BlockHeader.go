package model

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/niklaslong/zebra/errors"
)

const BlockHeaderSize = 80

type BlockHeader struct {
	// Version of the block.  This is not the same as the protocol version.
	Version uint32

	// Hash of the previous block header in the blockchain.
	HashPrevBlock *chainhash.Hash

	// Merkle tree reference to hash of all transactions for the block.
	HashMerkleRoot *chainhash.Hash

	// Time the block was created in unix time.
	Timestamp uint32

	// Difficulty target for the block.
	Bits NBit

	// Nonce used to generate the block.
	Nonce uint32
}

func NewBlockHeaderFromBytes(headerBytes []byte) (*BlockHeader, error) {
	if len(headerBytes) != BlockHeaderSize {
		return nil, errors.NewInvalidArgumentError("block header should be %d bytes long, got %d", BlockHeaderSize, len(headerBytes))
	}

	hashPrevBlock, err := chainhash.NewHash(headerBytes[4:36])
	if err != nil {
		return nil, errors.NewInvalidArgumentError("error creating previous block hash from bytes", err)
	}

	hashMerkleRoot, err := chainhash.NewHash(headerBytes[36:68])
	if err != nil {
		return nil, errors.NewInvalidArgumentError("error creating merkle root hash from bytes", err)
	}

	var bits NBit

	copy(bits[:], headerBytes[72:76])

	return &BlockHeader{
		Version:        binary.LittleEndian.Uint32(headerBytes[:4]),
		HashPrevBlock:  hashPrevBlock,
		HashMerkleRoot: hashMerkleRoot,
		Timestamp:      binary.LittleEndian.Uint32(headerBytes[68:72]),
		Bits:           bits,
		Nonce:          binary.LittleEndian.Uint32(headerBytes[76:]),
	}, nil
}

func NewBlockHeaderFromString(headerHex string) (*BlockHeader, error) {
	headerBytes, err := hex.DecodeString(headerHex)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("error decoding hex string to bytes", err)
	}

	return NewBlockHeaderFromBytes(headerBytes)
}

func (bh *BlockHeader) Hash() *chainhash.Hash {
	hash := chainhash.DoubleHashH(bh.Bytes())
	return &hash
}

func (bh *BlockHeader) Bytes() []byte {
	b := make([]byte, BlockHeaderSize)

	binary.LittleEndian.PutUint32(b[0:4], bh.Version)

	if bh.HashPrevBlock != nil {
		copy(b[4:36], bh.HashPrevBlock[:])
	}

	if bh.HashMerkleRoot != nil {
		copy(b[36:68], bh.HashMerkleRoot[:])
	}

	binary.LittleEndian.PutUint32(b[68:72], bh.Timestamp)
	copy(b[72:76], bh.Bits[:])
	binary.LittleEndian.PutUint32(b[76:80], bh.Nonce)

	return b
}

func (bh *BlockHeader) String() string {
	return bh.Hash().String()
}

// CountedHeader is a block header together with the number of transactions in its block.
type CountedHeader struct {
	Header           *BlockHeader
	TransactionCount uint64
}
