// Package state is the chain state service: the single writer of the non-finalized chains and
// the finalized store, and the read side serving the rest of the node.
package state

import (
	"context"
	"net/http"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/niklaslong/zebra/errors"
	"github.com/niklaslong/zebra/model"
	"github.com/niklaslong/zebra/services/state/nonfinalized"
	"github.com/niklaslong/zebra/settings"
	"github.com/niklaslong/zebra/stores/finalized"
	"github.com/niklaslong/zebra/ulogger"
	"github.com/niklaslong/zebra/util/health"
	"go.uber.org/atomic"
)

// snapshot is what readers see: the chains and finalized tip after a whole block was committed.
// The blocks and indices of its chains are never mutated; a chain dropped by a later block only
// has its lifecycle state moved to pruned.
type snapshot struct {
	// chains are ordered best first.
	chains       []*nonfinalized.Chain
	finalizedTip fn.Option[model.ChainTip]
}

func (s *snapshot) best() *nonfinalized.Chain {
	if len(s.chains) == 0 {
		return nil
	}

	return s.chains[0]
}

func (s *snapshot) tip() fn.Option[model.ChainTip] {
	if best := s.best(); best != nil {
		if tip, ok := best.Tip(); ok {
			return fn.Some(tip)
		}
	}

	return s.finalizedTip
}

type Option func(*Server)

// WithVerifier replaces the StructureVerifier.
func WithVerifier(verifier BlockVerifier) Option {
	return func(s *Server) {
		s.verifier = verifier
	}
}

// WithComparator replaces the cumulative work comparison of chains.
func WithComparator(compare nonfinalized.ChainComparator) Option {
	return func(s *Server) {
		s.compare = compare
	}
}

type Server struct {
	logger   ulogger.Logger
	settings *settings.Settings
	store    finalized.Store
	verifier BlockVerifier
	compare  nonfinalized.ChainComparator

	// mu serializes every write.
	mu    sync.Mutex
	state *nonfinalized.NonFinalizedState

	// finalizeMu is held for writing while a root moves to the store and the matching snapshot
	// is published, so that readers combining both never count a block twice.
	finalizeMu sync.RWMutex
	snapshot   atomic.Pointer[snapshot]

	waiters *utxoWaiters
}

func New(logger ulogger.Logger, tSettings *settings.Settings, store finalized.Store, opts ...Option) *Server {
	initPrometheusMetrics()

	s := &Server{
		logger:   logger.New("state"),
		settings: tSettings,
		store:    store,
		verifier: StructureVerifier{},
		waiters:  newUtxoWaiters(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Server) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	if checkLiveness {
		return http.StatusOK, "OK", nil
	}

	checks := []health.Check{
		{Name: "FinalizedStore", Check: s.store.Health},
		{Name: "ChainState", Check: func(context.Context, bool) (int, string, error) {
			if s.snapshot.Load() == nil {
				return http.StatusServiceUnavailable, "not initialised", errors.NewServiceUnavailableError("state service was not initialised")
			}

			return http.StatusOK, "OK", nil
		}},
	}

	return health.CheckAll(ctx, checkLiveness, checks)
}

// Init loads the finalized tip and starts with no non-finalized chains.
func (s *Server) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	opts := make([]nonfinalized.Option, 0, 2)

	tip, err := s.store.Tip(ctx)

	switch {
	case err == nil:
		opts = append(opts, nonfinalized.WithFinalizedTip(tip))
		s.logger.Infof("[Init] finalized tip %s", tip)
	case errors.Is(err, errors.ErrNotFound):
		s.logger.Infof("[Init] finalized store is empty, waiting for a genesis block")
	default:
		return errors.NewStateInitializationError("failed to read finalized tip", err)
	}

	if s.compare != nil {
		opts = append(opts, nonfinalized.WithComparator(s.compare))
	}

	s.state = nonfinalized.New(s.logger, s.settings, opts...)
	s.publish()

	return nil
}

// Start blocks until ctx is done. readyCh is closed once the service accepts requests.
func (s *Server) Start(ctx context.Context, readyCh chan<- struct{}) error {
	if s.snapshot.Load() == nil {
		return errors.NewServiceNotStartedError("state service was not initialised")
	}

	close(readyCh)

	<-ctx.Done()

	return nil
}

func (s *Server) Stop(_ context.Context) error {
	return s.store.Close()
}

// publish makes the current chains visible to readers. Callers hold mu, and finalizeMu when the
// store changed since the last publication.
func (s *Server) publish() {
	snap := &snapshot{
		chains:       s.state.Chains(),
		finalizedTip: fn.None[model.ChainTip](),
	}

	if tip, ok := s.state.FinalizedTip(); ok {
		snap.finalizedTip = fn.Some(tip)
		prometheusStateFinalizedHeight.Set(float64(tip.Height))
	}

	snap.tip().WhenSome(func(tip model.ChainTip) {
		prometheusStateBestHeight.Set(float64(tip.Height))
	})

	prometheusStateChains.Set(float64(len(snap.chains)))

	s.snapshot.Store(snap)
}

// view returns the published snapshot. The store is consistent with it until release is called.
func (s *Server) view() (*snapshot, func()) {
	s.finalizeMu.RLock()

	snap := s.snapshot.Load()
	if snap == nil {
		snap = &snapshot{finalizedTip: fn.None[model.ChainTip]()}
	}

	return snap, s.finalizeMu.RUnlock
}

var _ ClientI = (*Server)(nil)
