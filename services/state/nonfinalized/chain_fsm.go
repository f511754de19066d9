package nonfinalized

import (
	"context"

	"github.com/looplab/fsm"
	"github.com/niklaslong/zebra/errors"
)

// Chain lifecycle states.
const (
	StateEmpty      = "EMPTY"
	StateGrowing    = "GROWING"
	StateFinalizing = "FINALIZING"
	StatePruned     = "PRUNED"
)

// Chain lifecycle events.
const (
	EventExtend        = "EXTEND"
	EventFinalizeRoot  = "FINALIZE_ROOT"
	EventRootFinalized = "ROOT_FINALIZED"
	EventDrain         = "DRAIN"
	EventPrune         = "PRUNE"
)

// newLifecycle creates the state machine of a chain:
// - EXTEND: EMPTY -> GROWING, on the first block
// - FINALIZE_ROOT: GROWING -> FINALIZING, while the root is removed
// - ROOT_FINALIZED: FINALIZING -> GROWING
// - DRAIN: GROWING or FINALIZING -> EMPTY, when the last block is removed
// - PRUNE: GROWING -> PRUNED, when the chain loses
//
// There is no way out of EMPTY other than EXTEND, and none out of PRUNED.
func newLifecycle(initial string) *fsm.FSM {
	return fsm.NewFSM(
		initial,
		fsm.Events{
			{
				Name: EventExtend,
				Src:  []string{StateEmpty},
				Dst:  StateGrowing,
			},
			{
				Name: EventFinalizeRoot,
				Src:  []string{StateGrowing},
				Dst:  StateFinalizing,
			},
			{
				Name: EventRootFinalized,
				Src:  []string{StateFinalizing},
				Dst:  StateGrowing,
			},
			{
				Name: EventDrain,
				Src:  []string{StateGrowing, StateFinalizing},
				Dst:  StateEmpty,
			},
			{
				Name: EventPrune,
				Src:  []string{StateGrowing},
				Dst:  StatePruned,
			},
		},
		fsm.Callbacks{},
	)
}

// State is the current lifecycle state of the chain.
func (c *Chain) State() string {
	return c.lifecycle.Current()
}

func (c *Chain) transition(event string) {
	if err := c.lifecycle.Event(context.Background(), event); err != nil {
		panic(errors.NewStructuralError("chain lifecycle: %s from %s", event, c.lifecycle.Current(), err))
	}
}

func (c *Chain) mustBeLive(op string) {
	if c.lifecycle.Current() == StatePruned {
		panic(errors.NewStructuralError("%s on a pruned chain", op))
	}
}
