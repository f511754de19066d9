package nonfinalized

import (
	"bytes"
	"slices"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/dolthub/swiss"
	"github.com/google/btree"
	"github.com/niklaslong/zebra/errors"
	"github.com/niklaslong/zebra/model"
)

const btreeDegree = 16

// CreatedUtxo is an output received by an address, keyed by its location.
type CreatedUtxo struct {
	Location model.OutputLocation
	Output   *bt.Output
}

func createdLess(a, b CreatedUtxo) bool {
	return a.Location.Less(b.Location)
}

func locationLess(a, b model.OutputLocation) bool {
	return a.Less(b)
}

// TransparentTransfers is the partial transfer history of one address in one chain, relative
// to the finalized tip.
//
// Every field is updated by Apply and restored by Revert. A zero balance with no transactions
// and no outputs is the same as the address not being indexed.
type TransparentTransfers struct {
	balance      model.Amount[model.NegativeAllowed]
	txIDs        *swiss.Map[chainhash.Hash, uint32]
	createdUtxos *btree.BTreeG[CreatedUtxo]
	spentUtxos   *btree.BTreeG[model.OutputLocation]
}

func NewTransparentTransfers() *TransparentTransfers {
	return &TransparentTransfers{
		txIDs:        swiss.NewMap[chainhash.Hash, uint32](8),
		createdUtxos: btree.NewG(btreeDegree, createdLess),
		spentUtxos:   btree.NewG(btreeDegree, locationLess),
	}
}

// Clone returns an independent copy. The trees are copied lazily, the multiset eagerly.
func (t *TransparentTransfers) Clone() *TransparentTransfers {
	txIDs := swiss.NewMap[chainhash.Hash, uint32](uint32(t.txIDs.Count()) + 1)
	t.txIDs.Iter(func(hash chainhash.Hash, n uint32) bool {
		txIDs.Put(hash, n)
		return false
	})

	return &TransparentTransfers{
		balance:      t.balance,
		txIDs:        txIDs,
		createdUtxos: t.createdUtxos.Clone(),
		spentUtxos:   t.spentUtxos.Clone(),
	}
}

// Apply records u. It only fails when the balance would leave its range, in which case nothing
// is changed.
func (t *TransparentTransfers) Apply(u TransferUpdate) error {
	switch u := u.(type) {
	case CreatedOutput:
		return t.applyCreated(u)
	case SpentOutput:
		return t.applySpent(u)
	default:
		panic(errors.NewStructuralError("unknown transfer update %T", u))
	}
}

// Revert undoes u, which must be the most recent update applied to t that has not been reverted
// yet. Anything else is a structural fault and panics.
func (t *TransparentTransfers) Revert(u TransferUpdate, position RevertPosition) {
	switch u := u.(type) {
	case CreatedOutput:
		t.revertCreated(u, position)
	case SpentOutput:
		t.revertSpent(u, position)
	default:
		panic(errors.NewStructuralError("unknown transfer update %T", u))
	}
}

func (t *TransparentTransfers) applyCreated(u CreatedOutput) error {
	value, err := u.value()
	if err != nil {
		return err
	}

	balance, err := t.balance.Add(value)
	if err != nil {
		return err
	}

	location := u.Location()
	if t.createdUtxos.Has(CreatedUtxo{Location: location}) {
		panic(errors.NewStructuralError("unexpected created output %s at %s: duplicate update or duplicate UTXO", u.OutPoint, location))
	}

	t.balance = balance
	t.createdUtxos.ReplaceOrInsert(CreatedUtxo{Location: location, Output: u.Utxo.Output})
	t.addTxID(u.OutPoint.Hash)

	return nil
}

func (t *TransparentTransfers) revertCreated(u CreatedOutput, position RevertPosition) {
	value := u.mustValue()

	balance, err := t.balance.Sub(value)
	if err != nil {
		panic(errors.NewStructuralError("revert of created output %s at %s left the balance range", u.OutPoint, position, err))
	}

	location := u.Location()
	if _, removed := t.createdUtxos.Delete(CreatedUtxo{Location: location}); !removed {
		panic(errors.NewStructuralError("unexpected revert of created output %s at %s: duplicate revert or output never applied", u.OutPoint, position))
	}

	t.balance = balance
	t.removeTxID(u.OutPoint.Hash, position)
}

func (t *TransparentTransfers) applySpent(u SpentOutput) error {
	value, err := u.value()
	if err != nil {
		return err
	}

	balance, err := t.balance.Sub(value)
	if err != nil {
		return err
	}

	location := u.Location()
	if t.spentUtxos.Has(location) {
		panic(errors.NewStructuralError("unexpected spent output %s: duplicate update or duplicate spend", location))
	}

	t.balance = balance
	t.spentUtxos.ReplaceOrInsert(location)
	t.addTxID(u.SpendingTxID)

	return nil
}

func (t *TransparentTransfers) revertSpent(u SpentOutput, position RevertPosition) {
	value := u.mustValue()

	balance, err := t.balance.Add(value)
	if err != nil {
		panic(errors.NewStructuralError("revert of spent output at %s left the balance range", position, err))
	}

	location := u.Location()
	if _, removed := t.spentUtxos.Delete(location); !removed {
		panic(errors.NewStructuralError("unexpected revert of spent output %s at %s: duplicate revert or spend never applied", location, position))
	}

	t.balance = balance
	t.removeTxID(u.SpendingTxID, position)
}

func (t *TransparentTransfers) addTxID(hash chainhash.Hash) {
	n, _ := t.txIDs.Get(hash)
	t.txIDs.Put(hash, n+1)
}

func (t *TransparentTransfers) removeTxID(hash chainhash.Hash, position RevertPosition) {
	n, ok := t.txIDs.Get(hash)
	if !ok || n == 0 {
		panic(errors.NewStructuralError("unexpected revert of transaction %s at %s: duplicate revert or update never applied", hash, position))
	}

	if n == 1 {
		t.txIDs.Delete(hash)
		return
	}

	t.txIDs.Put(hash, n-1)
}

// IsEmpty reports whether the address has no transfers left in this chain.
func (t *TransparentTransfers) IsEmpty() bool {
	return t.balance.IsZero() &&
		t.txIDs.Count() == 0 &&
		t.createdUtxos.Len() == 0 &&
		t.spentUtxos.Len() == 0
}

// Balance is the net value moved to the address since the finalized tip. It can be negative.
func (t *TransparentTransfers) Balance() model.Amount[model.NegativeAllowed] {
	return t.balance
}

// TxIDMultiplicity returns how many updates recorded hash.
func (t *TransparentTransfers) TxIDMultiplicity(hash chainhash.Hash) uint32 {
	n, _ := t.txIDs.Get(hash)
	return n
}

// TxIDCount is the number of distinct transactions that touched the address.
func (t *TransparentTransfers) TxIDCount() int {
	return t.txIDs.Count()
}

// LocatedTxID is a transaction hash with its position in the chain.
type LocatedTxID struct {
	Location model.TransactionLocation
	Hash     chainhash.Hash
}

// TxIDs returns the distinct transactions that touched the address in chain order. locate must
// know every hash in the index, which holds for the chain owning it.
func (t *TransparentTransfers) TxIDs(locate func(chainhash.Hash) (model.TransactionLocation, bool)) []LocatedTxID {
	ids := make([]LocatedTxID, 0, t.txIDs.Count())

	t.txIDs.Iter(func(hash chainhash.Hash, _ uint32) bool {
		location, ok := locate(hash)
		if !ok {
			panic(errors.NewStructuralError("transaction %s is indexed for an address but not in its chain", hash))
		}

		ids = append(ids, LocatedTxID{Location: location, Hash: hash})

		return false
	})

	slices.SortFunc(ids, func(a, b LocatedTxID) int {
		return a.Location.Compare(b.Location)
	})

	return ids
}

// CreatedUtxos returns the outputs received by the address in chain order. Some of them may
// be spent.
func (t *TransparentTransfers) CreatedUtxos() []CreatedUtxo {
	out := make([]CreatedUtxo, 0, t.createdUtxos.Len())

	t.createdUtxos.Ascend(func(c CreatedUtxo) bool {
		out = append(out, c)
		return true
	})

	return out
}

// SpentUtxos returns the locations of outputs spent by the address in chain order.
func (t *TransparentTransfers) SpentUtxos() []model.OutputLocation {
	out := make([]model.OutputLocation, 0, t.spentUtxos.Len())

	t.spentUtxos.Ascend(func(l model.OutputLocation) bool {
		out = append(out, l)
		return true
	})

	return out
}

// Equal reports whether both indexes hold the same state.
func (t *TransparentTransfers) Equal(o *TransparentTransfers) bool {
	if t.balance != o.balance || t.txIDs.Count() != o.txIDs.Count() {
		return false
	}

	same := true

	t.txIDs.Iter(func(hash chainhash.Hash, n uint32) bool {
		if m, _ := o.txIDs.Get(hash); m != n {
			same = false
		}

		return !same
	})

	if !same {
		return false
	}

	created, otherCreated := t.CreatedUtxos(), o.CreatedUtxos()
	if !slices.EqualFunc(created, otherCreated, func(a, b CreatedUtxo) bool {
		return a.Location == b.Location && (a.Output == b.Output || bytes.Equal(a.Output.Bytes(), b.Output.Bytes()))
	}) {
		return false
	}

	return slices.Equal(t.SpentUtxos(), o.SpentUtxos())
}
