package model

import (
	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/bscript"
)

// Address is the base58 rendering of a transparent address.
type Address string

func (a Address) String() string {
	return string(a)
}

// AddressFromLockingScript derives the address that can spend script. Only pay-to-public-key-hash
// outputs have one; anything else returns false.
func AddressFromLockingScript(script *bscript.Script) (Address, bool) {
	if script == nil || !script.IsP2PKH() {
		return "", false
	}

	addresses, err := script.Addresses()
	if err != nil || len(addresses) == 0 {
		return "", false
	}

	return Address(addresses[0]), true
}

// OutputAddress is AddressFromLockingScript for an output.
func OutputAddress(output *bt.Output) (Address, bool) {
	if output == nil {
		return "", false
	}

	return AddressFromLockingScript(output.LockingScript)
}
