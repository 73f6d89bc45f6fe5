package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records counters for the optimistic mutation engine and the
// pricing reconciler.
type CartMetrics struct {
	mutationsCommitted  *prometheus.CounterVec
	mutationsRolledBack *prometheus.CounterVec
	rollbackConflicts   prometheus.Counter
	pricingRequests     prometheus.Counter
	pricingFailures     prometheus.Counter
	staleDiscarded      prometheus.Counter
	debounceCoalesced   prometheus.Counter
	pricingDuration     prometheus.Histogram
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	committed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_committed_total",
		Help: "Optimistic cart mutations confirmed by the remote service.",
	}, []string{"type"})
	rolledBack := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_rolled_back_total",
		Help: "Optimistic cart mutations reverted after a failed confirmation.",
	}, []string{"type"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_rollback_conflicts_total",
		Help: "Rollbacks downgraded to no-ops because a later write had committed.",
	})
	requests := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pricing_requests_total",
		Help: "Recalculation requests issued to the pricing service.",
	})
	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pricing_failures_total",
		Help: "Pricing requests that returned an error.",
	})
	stale := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pricing_stale_responses_discarded_total",
		Help: "Pricing responses dropped because a newer response already landed.",
	})
	coalesced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pricing_debounce_coalesced_total",
		Help: "Schedule calls absorbed by an already pending debounce window.",
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pricing_request_duration_seconds",
		Help:    "Duration of pricing service calls in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(committed, rolledBack, conflicts, requests, failures, stale, coalesced, duration)
	return &CartMetrics{
		mutationsCommitted:  committed,
		mutationsRolledBack: rolledBack,
		rollbackConflicts:   conflicts,
		pricingRequests:     requests,
		pricingFailures:     failures,
		staleDiscarded:      stale,
		debounceCoalesced:   coalesced,
		pricingDuration:     duration,
	}
}

// IncCommitted increments the committed counter for the mutation type.
func (c *CartMetrics) IncCommitted(mutationType string) {
	if c == nil || c.mutationsCommitted == nil {
		return
	}
	c.mutationsCommitted.WithLabelValues(normalizeLabel(mutationType)).Inc()
}

// IncRolledBack increments the rollback counter for the mutation type.
func (c *CartMetrics) IncRolledBack(mutationType string) {
	if c == nil || c.mutationsRolledBack == nil {
		return
	}
	c.mutationsRolledBack.WithLabelValues(normalizeLabel(mutationType)).Inc()
}

// IncRollbackConflict counts a rollback downgraded by a later committed write.
func (c *CartMetrics) IncRollbackConflict() {
	if c == nil || c.rollbackConflicts == nil {
		return
	}
	c.rollbackConflicts.Inc()
}

// IncPricingRequest counts an issued recalculation.
func (c *CartMetrics) IncPricingRequest() {
	if c == nil || c.pricingRequests == nil {
		return
	}
	c.pricingRequests.Inc()
}

// IncPricingFailure counts a failed recalculation.
func (c *CartMetrics) IncPricingFailure() {
	if c == nil || c.pricingFailures == nil {
		return
	}
	c.pricingFailures.Inc()
}

// IncStaleDiscarded counts a discarded out-of-order pricing response.
func (c *CartMetrics) IncStaleDiscarded() {
	if c == nil || c.staleDiscarded == nil {
		return
	}
	c.staleDiscarded.Inc()
}

// IncDebounceCoalesced counts a schedule call folded into a pending window.
func (c *CartMetrics) IncDebounceCoalesced() {
	if c == nil || c.debounceCoalesced == nil {
		return
	}
	c.debounceCoalesced.Inc()
}

// ObservePricingDuration records the duration of a pricing call.
func (c *CartMetrics) ObservePricingDuration(duration time.Duration) {
	if c == nil || c.pricingDuration == nil {
		return
	}
	c.pricingDuration.Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
