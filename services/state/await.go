package state

import (
	"sync"

	"github.com/niklaslong/zebra/model"
)

// utxoWaiters tracks AwaitUtxo requests until a committed block creates the output they wait for.
type utxoWaiters struct {
	mu      sync.Mutex
	waiting map[model.OutPoint][]chan model.Utxo
	count   int
}

func newUtxoWaiters() *utxoWaiters {
	return &utxoWaiters{
		waiting: make(map[model.OutPoint][]chan model.Utxo),
	}
}

// register returns a channel that receives the output once, and a func that removes the
// registration if it has not been answered yet.
func (w *utxoWaiters) register(outPoint model.OutPoint) (<-chan model.Utxo, func()) {
	ch := make(chan model.Utxo, 1)

	w.mu.Lock()
	w.waiting[outPoint] = append(w.waiting[outPoint], ch)
	w.count++
	prometheusStateAwaitUtxoWaiters.Set(float64(w.count))
	w.mu.Unlock()

	return ch, func() {
		w.mu.Lock()
		defer w.mu.Unlock()

		chans := w.waiting[outPoint]
		for i, c := range chans {
			if c == ch {
				chans = append(chans[:i], chans[i+1:]...)
				w.count--

				break
			}
		}

		if len(chans) == 0 {
			delete(w.waiting, outPoint)
		} else {
			w.waiting[outPoint] = chans
		}

		prometheusStateAwaitUtxoWaiters.Set(float64(w.count))
	}
}

// respond answers every waiter of an output created by block.
func (w *utxoWaiters) respond(block *model.ContextualBlock) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.waiting) == 0 {
		return
	}

	for outPoint, utxo := range block.NewOutputs {
		chans, ok := w.waiting[outPoint]
		if !ok {
			continue
		}

		for _, ch := range chans {
			ch <- utxo.Utxo
		}

		w.count -= len(chans)
		delete(w.waiting, outPoint)
	}

	prometheusStateAwaitUtxoWaiters.Set(float64(w.count))
}

// len is the number of waiting requests.
func (w *utxoWaiters) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.count
}
