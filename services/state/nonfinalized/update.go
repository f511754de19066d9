package nonfinalized

import (
	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/niklaslong/zebra/errors"
	"github.com/niklaslong/zebra/model"
)

// RevertPosition says which end of a chain a block is removed from.
type RevertPosition int

const (
	// Tip removes the newest block, when a fork loses or is truncated.
	Tip RevertPosition = iota
	// Root removes the oldest block, which is handed to finalized storage.
	Root
)

func (p RevertPosition) String() string {
	switch p {
	case Tip:
		return "tip"
	case Root:
		return "root"
	default:
		return "unknown"
	}
}

// TransferUpdate is one effect of a block on an address. It is either a CreatedOutput or a
// SpentOutput.
type TransferUpdate interface {
	// Address is the address the update belongs to.
	Address() model.Address
	// Location is the output created or spent.
	Location() model.OutputLocation
	// Delta is the signed change the update makes to the address balance.
	Delta() (model.Amount[model.NegativeAllowed], error)

	isTransferUpdate()
}

// CreatedOutput is an output sent to an address.
type CreatedOutput struct {
	Addr     model.Address
	OutPoint model.OutPoint
	Utxo     model.OrderedUtxo
}

func (c CreatedOutput) Address() model.Address {
	return c.Addr
}

func (c CreatedOutput) Location() model.OutputLocation {
	return model.NewOutputLocation(c.OutPoint, c.Utxo)
}

func (c CreatedOutput) Delta() (model.Amount[model.NegativeAllowed], error) {
	return c.value()
}

func (c CreatedOutput) value() (model.Amount[model.NegativeAllowed], error) {
	value, err := c.Utxo.Value()
	if err != nil {
		return 0, err
	}

	return model.Constrain[model.NegativeAllowed](value)
}

func (c CreatedOutput) mustValue() model.Amount[model.NegativeAllowed] {
	value, err := c.value()
	if err != nil {
		panic(errors.NewStructuralError("created output %s has an invalid value", c.OutPoint, err))
	}

	return value
}

func (CreatedOutput) isTransferUpdate() {}

// SpentOutput is an input spending an output that belongs to an address.
type SpentOutput struct {
	Addr         model.Address
	Input        *bt.Input
	SpendingTxID chainhash.Hash
	Spent        model.OrderedUtxo
}

func (s SpentOutput) Address() model.Address {
	return s.Addr
}

// OutPoint is the output spent by the input.
func (s SpentOutput) OutPoint() model.OutPoint {
	return model.OutPointFromInput(s.Input)
}

func (s SpentOutput) Location() model.OutputLocation {
	return model.NewOutputLocation(s.OutPoint(), s.Spent)
}

func (s SpentOutput) Delta() (model.Amount[model.NegativeAllowed], error) {
	value, err := s.value()
	if err != nil {
		return 0, err
	}

	return model.Amount[model.NegativeAllowed](0).Sub(value)
}

func (s SpentOutput) value() (model.Amount[model.NegativeAllowed], error) {
	value, err := s.Spent.Value()
	if err != nil {
		return 0, err
	}

	return model.Constrain[model.NegativeAllowed](value)
}

func (s SpentOutput) mustValue() model.Amount[model.NegativeAllowed] {
	value, err := s.value()
	if err != nil {
		panic(errors.NewStructuralError("spent output %s has an invalid value", s.OutPoint(), err))
	}

	return value
}

func (SpentOutput) isTransferUpdate() {}

// Updates derives the address updates of the transaction at txIndex in block: creations in output
// order, then spends in input order. Outputs without an address produce no update.
func Updates(block *model.ContextualBlock, txIndex int) []TransferUpdate {
	tx := block.Transactions[txIndex]
	txID := block.TxIDs[txIndex]
	coinbase := txIndex == 0

	updates := make([]TransferUpdate, 0, len(tx.Outputs)+len(tx.Inputs))

	for vout, output := range tx.Outputs {
		addr, ok := model.OutputAddress(output)
		if !ok {
			continue
		}

		updates = append(updates, CreatedOutput{
			Addr:     addr,
			OutPoint: model.OutPoint{Hash: txID, Index: uint32(vout)},
			Utxo:     model.NewOrderedUtxo(output, block.Height, uint32(txIndex), coinbase),
		})
	}

	if coinbase {
		return updates
	}

	for _, input := range tx.Inputs {
		spent, ok := block.SpentUtxos[model.OutPointFromInput(input)]
		if !ok {
			continue
		}

		addr, ok := model.OutputAddress(spent.Output)
		if !ok {
			continue
		}

		updates = append(updates, SpentOutput{
			Addr:         addr,
			Input:        input,
			SpendingTxID: txID,
			Spent:        spent,
		})
	}

	return updates
}

// AddressTransfer converts u, an update of the transaction at txLocation, for finalized storage.
func AddressTransfer(u TransferUpdate, txLocation model.TransactionLocation) model.AddressTransfer {
	switch u := u.(type) {
	case CreatedOutput:
		return model.AddressTransfer{
			Address:    u.Addr,
			Location:   u.Location(),
			OutPoint:   u.OutPoint,
			TxID:       u.OutPoint.Hash,
			TxLocation: txLocation,
			Output:     u.Utxo.Output,
		}
	case SpentOutput:
		return model.AddressTransfer{
			Address:    u.Addr,
			Location:   u.Location(),
			OutPoint:   u.OutPoint(),
			TxID:       u.SpendingTxID,
			TxLocation: txLocation,
			Output:     u.Spent.Output,
			Spend:      true,
		}
	default:
		panic(errors.NewStructuralError("unknown transfer update %T", u))
	}
}
