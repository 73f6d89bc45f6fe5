package pricing

import (
	"context"
	"sync"
	"time"

	pkgerrors "github.com/deliverly/checkout-core/pkg/errors"
	"github.com/deliverly/checkout-core/pkg/logger"
	"github.com/deliverly/checkout-core/pkg/metrics"
	"github.com/deliverly/checkout-core/pkg/types"
)

const defaultDebounceWindow = 300 * time.Millisecond

// Quoter computes an authoritative breakdown for the given inputs.
type Quoter interface {
	Quote(ctx context.Context, req types.QuoteRequest) (*types.PricingBreakdown, error)
}

// Options configures the reconciler.
type Options struct {
	Quoter         Quoter
	DebounceWindow time.Duration
	Logger         *logger.Logger
	Metrics        *metrics.CartMetrics
}

// Reconciler debounces recalculation triggers and applies pricing responses
// in sequence-number order so a slow response to an earlier cart state can
// never clobber the price of the current one. It is the single writer of the
// latest breakdown.
type Reconciler struct {
	quoter  Quoter
	window  time.Duration
	logg    *logger.Logger
	metrics *metrics.CartMetrics

	mu      sync.Mutex
	timer   *time.Timer
	pending *types.QuoteRequest

	seq     uint64
	settled bool
	latest  *appliedBreakdown
	lastErr error
}

type appliedBreakdown struct {
	breakdown types.PricingBreakdown
	request   types.QuoteRequest
	seq       uint64
}

// NewReconciler builds a reconciler over the given quoter.
func NewReconciler(opts Options) (*Reconciler, error) {
	if opts.Quoter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "pricing reconciler requires a quoter")
	}
	window := opts.DebounceWindow
	if window <= 0 {
		window = defaultDebounceWindow
	}
	return &Reconciler{
		quoter:  opts.Quoter,
		window:  window,
		logg:    opts.Logger,
		metrics: opts.Metrics,
		settled: true,
	}, nil
}

// Schedule coalesces recalculation triggers: the debounce timer is reset on
// every call, so a burst of edits produces exactly one network call once the
// burst settles. The last scheduled inputs win.
func (r *Reconciler) Schedule(ctx context.Context, req types.QuoteRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = &req
	if r.timer != nil {
		r.timer.Stop()
		r.metrics.IncDebounceCoalesced()
	}
	r.timer = time.AfterFunc(r.window, func() {
		r.fire(ctx)
	})
}

func (r *Reconciler) fire(ctx context.Context) {
	r.mu.Lock()
	req := r.pending
	r.pending = nil
	r.timer = nil
	r.mu.Unlock()

	if req == nil {
		return
	}
	r.Recalculate(ctx, *req)
}

// Recalculate issues the pricing call immediately, tagged with the next
// sequence number.
func (r *Reconciler) Recalculate(ctx context.Context, req types.QuoteRequest) {
	r.mu.Lock()
	r.seq++
	seq := r.seq
	r.settled = false
	r.mu.Unlock()

	r.metrics.IncPricingRequest()
	if r.logg != nil {
		r.logg.Info(r.logg.WithPricingSeq(ctx, seq), "pricing.recalculate")
	}

	go r.execute(ctx, seq, req)
}

func (r *Reconciler) execute(ctx context.Context, seq uint64, req types.QuoteRequest) {
	start := time.Now()
	breakdown, err := r.quoter.Quote(ctx, req)
	r.metrics.ObservePricingDuration(time.Since(start))

	r.mu.Lock()
	defer r.mu.Unlock()

	if seq != r.seq {
		// A newer request is already in flight or applied; this response is
		// stale regardless of whether it succeeded.
		r.metrics.IncStaleDiscarded()
		if r.logg != nil {
			r.logg.Info(r.logg.WithPricingSeq(ctx, seq), "pricing.stale_response_discarded")
		}
		return
	}

	r.settled = true
	if err != nil {
		// Keep the previous breakdown on screen; the error flag clears on
		// the next successful recalculation.
		r.lastErr = pkgerrors.Wrap(pkgerrors.CodePricingUnavailable, err, "pricing recalculation failed")
		r.metrics.IncPricingFailure()
		if r.logg != nil {
			r.logg.Error(r.logg.WithPricingSeq(ctx, seq), "pricing.recalculate_failed", err)
		}
		return
	}

	r.lastErr = nil
	r.latest = &appliedBreakdown{breakdown: *breakdown, request: req, seq: seq}
}

// Latest returns the currently displayed breakdown together with the inputs
// that produced it; ok is false until a first breakdown lands.
func (r *Reconciler) Latest() (types.PricingBreakdown, types.QuoteRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest == nil {
		return types.PricingBreakdown{}, types.QuoteRequest{}, false
	}
	return r.latest.breakdown, r.latest.request, true
}

// Busy reports whether a recalculation is outstanding. The UI disables
// checkout submission while busy without disabling item editing.
func (r *Reconciler) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.settled
}

// Err returns the recoverable error from the most recent settled
// recalculation, nil when pricing is healthy.
func (r *Reconciler) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Stop cancels any pending debounce timer.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.pending = nil
}
