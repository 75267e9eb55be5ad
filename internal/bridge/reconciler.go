package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/crossmesh/bridgekit/internal/oracle"
)

// ReconcilerConfig tunes the background polling loops.
type ReconcilerConfig struct {
	// PollInterval is the cadence between status polls for one transfer.
	PollInterval time.Duration
	// PollTimeout bounds a single oracle call.
	PollTimeout time.Duration
	// GraceBuffer is added to a transfer's estimated duration before the
	// "taking longer than expected" advisory is raised.
	GraceBuffer time.Duration
}

func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		PollInterval: 30 * time.Second,
		PollTimeout:  10 * time.Second,
		GraceBuffer:  2 * time.Minute,
	}
}

func (c ReconcilerConfig) withDefaults() ReconcilerConfig {
	d := DefaultReconcilerConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = d.PollTimeout
	}
	if c.GraceBuffer <= 0 {
		c.GraceBuffer = d.GraceBuffer
	}
	return c
}

// Reconciler drives every tracked transfer toward a terminal state. Each
// transfer gets its own polling loop, so a slow or erroring poll for one
// never blocks reconciliation of the others. Transient oracle errors are
// retried with exponential backoff and never fail the transfer; only an
// oracle-confirmed terminal failure does.
type Reconciler struct {
	orch   *Orchestrator
	oracle oracle.StatusOracle
	clock  oracle.Clock
	cfg    ReconcilerConfig
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	loops map[string]struct{}
}

func NewReconciler(orch *Orchestrator, statusOracle oracle.StatusOracle, clock oracle.Clock, cfg ReconcilerConfig, logger *zap.Logger) *Reconciler {
	if clock == nil {
		clock = oracle.SystemClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		orch:   orch,
		oracle: statusOracle,
		clock:  clock,
		cfg:    cfg.withDefaults(),
		logger: logger.Named("reconciler"),
		ctx:    ctx,
		cancel: cancel,
		loops:  make(map[string]struct{}),
	}
}

// Track starts a polling loop for one transfer. Starting an already tracked
// transfer is a no-op.
func (r *Reconciler) Track(transferID, trackingRef string, estimated time.Duration) {
	r.mu.Lock()
	if _, exists := r.loops[transferID]; exists || r.ctx.Err() != nil {
		r.mu.Unlock()
		return
	}
	r.loops[transferID] = struct{}{}
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.loops, transferID)
			r.mu.Unlock()
		}()
		r.poll(transferID, trackingRef, estimated)
	}()
}

// Resume re-attaches polling loops to every non-terminal transfer in the
// store, for engine restarts within a session.
func (r *Reconciler) Resume() {
	for _, t := range r.orch.store.ListNonTerminal() {
		if t.TrackingRef != "" {
			r.Track(t.ID, t.TrackingRef, t.EstimatedDuration)
		}
	}
}

// TrackedCount reports how many polling loops are live.
func (r *Reconciler) TrackedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.loops)
}

// Shutdown tears down all polling loops. Recorded transfers are untouched;
// Resume can pick them back up.
func (r *Reconciler) Shutdown(ctx context.Context) error {
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.logger.Warn("Reconciler shutdown timeout")
		return ctx.Err()
	}
}

func (r *Reconciler) poll(transferID, trackingRef string, estimated time.Duration) {
	logger := r.logger.With(zap.String("transfer_id", transferID))
	logger.Debug("Polling loop started",
		zap.Duration("interval", r.cfg.PollInterval),
		zap.Duration("estimated", estimated))

	deadline := r.clock.Now().Add(estimated + r.cfg.GraceBuffer)
	delayedRaised := false

	retryPolicy := r.newRetryPolicy()
	wait := r.cfg.PollInterval
	for {
		select {
		case <-r.ctx.Done():
			logger.Debug("Polling loop stopped by shutdown")
			return
		case <-r.clock.After(wait):
		}

		obs, err := r.pollOnce(trackingRef)
		if err != nil {
			var term *oracle.TerminalError
			if errors.As(err, &term) {
				// Authoritative failure from the oracle, unlike a poll error.
				if _, _, err := r.orch.ApplyObservation(transferID, oracle.Observation{
					Stage:         oracle.StageFailed,
					FailureReason: term.Reason,
				}); err != nil {
					logger.Error("Failed to record oracle failure", zap.Error(err))
				}
				return
			}
			// Transient: status unknown, state untouched, retry with backoff.
			wait = retryPolicy.NextBackOff()
			logger.Warn("Status poll failed, retrying",
				zap.Duration("next_poll", wait),
				zap.Error(err))
			continue
		}
		retryPolicy = r.newRetryPolicy()
		wait = r.cfg.PollInterval

		t, changed, err := r.orch.ApplyObservation(transferID, obs)
		if err != nil {
			logger.Error("Failed to apply observation", zap.Error(err))
			continue
		}
		if changed {
			logger.Info("Transfer state advanced", zap.String("state", string(t.State)))
		}
		if t.State.Terminal() {
			return
		}

		if !delayedRaised && r.clock.Now().After(deadline) {
			if _, err := r.orch.MarkDelayed(transferID); err != nil {
				logger.Error("Failed to mark transfer delayed", zap.Error(err))
			}
			delayedRaised = true
		}
	}
}

// newRetryPolicy builds the backoff schedule used after transient poll
// errors, starting from the regular interval and capped at four times it.
func (r *Reconciler) newRetryPolicy() *backoff.ExponentialBackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.cfg.PollInterval
	policy.MaxInterval = 4 * r.cfg.PollInterval
	return policy
}

func (r *Reconciler) pollOnce(trackingRef string) (oracle.Observation, error) {
	ctx, cancel := context.WithTimeout(r.ctx, r.cfg.PollTimeout)
	defer cancel()
	return r.oracle.Status(ctx, trackingRef)
}
