package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"procview/internal/handle"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procview",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Events published by providers.",
		}, []string{"provider", "type"},
	)
	eventsDrained = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "procview",
			Subsystem: "events",
			Name:      "drained_total",
			Help:      "Events drained by the UI goroutine.",
		},
	)
	drainBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "procview",
			Subsystem: "events",
			Name:      "drain_batch_size",
			Help:      "Number of events per drain cycle.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
	orderingAnomalies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procview",
			Subsystem: "events",
			Name:      "ordering_anomalies_total",
			Help:      "Modified/Removed events that referenced an unknown key.",
		}, []string{"collection", "type"},
	)
	highlightBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procview",
			Subsystem: "highlight",
			Name:      "actions_total",
			Help:      "Highlight actions applied, by stage.",
		}, []string{"collection", "stage"},
	)
	highlightDiscarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procview",
			Subsystem: "highlight",
			Name:      "discarded_total",
			Help:      "Highlight actions dropped because the surface was torn down.",
		}, []string{"collection"},
	)
	handleMisuse = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procview",
			Subsystem: "handle",
			Name:      "misuse_total",
			Help:      "Saturated acquire/release calls.",
		}, []string{"op"},
	)
	handlesLive = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "procview",
			Subsystem: "handle",
			Name:      "live",
			Help:      "Entity handles not yet finalized.",
		}, func() float64 { return float64(handle.Live()) },
	)
	providerCycles = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "procview",
			Subsystem: "provider",
			Name:      "cycle_duration_seconds",
			Help:      "Time spent collecting one provider cycle.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"},
	)
	providerEntities = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "procview",
			Subsystem: "provider",
			Name:      "entities",
			Help:      "Entities known to each provider after its last cycle.",
		}, []string{"provider"},
	)
	displayedItems = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "procview",
			Subsystem: "presenter",
			Name:      "items",
			Help:      "Rows currently displayed, including rows pending removal.",
		}, []string{"collection"},
	)
	providerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procview",
			Subsystem: "provider",
			Name:      "errors_total",
			Help:      "Failed provider cycles.",
		}, []string{"provider"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		eventsPublished, eventsDrained, drainBatchSize, orderingAnomalies,
		highlightBatches, highlightDiscarded, handleMisuse, handlesLive,
		providerCycles, providerEntities, providerErrors, displayedItems,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	handle.OnMisuse = IncHandleMisuse
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncPublished(provider, typ string) {
	if regOK.Load() {
		eventsPublished.WithLabelValues(provider, typ).Inc()
	}
}

func ObserveDrain(n int) {
	if regOK.Load() {
		eventsDrained.Add(float64(n))
		drainBatchSize.Observe(float64(n))
	}
}

func IncOrderingAnomaly(collection, typ string) {
	if regOK.Load() {
		orderingAnomalies.WithLabelValues(collection, typ).Inc()
	}
}

func ObserveHighlightBatch(collection, stage string, n int) {
	if regOK.Load() {
		highlightBatches.WithLabelValues(collection, stage).Add(float64(n))
	}
}

func AddHighlightDiscarded(collection string, n int) {
	if regOK.Load() {
		highlightDiscarded.WithLabelValues(collection).Add(float64(n))
	}
}

func IncHandleMisuse(op string) {
	if regOK.Load() {
		handleMisuse.WithLabelValues(op).Inc()
	}
}

func ObserveProviderCycle(provider string, seconds float64, entities int) {
	if regOK.Load() {
		providerCycles.WithLabelValues(provider).Observe(seconds)
		providerEntities.WithLabelValues(provider).Set(float64(entities))
	}
}

func IncProviderError(provider string) {
	if regOK.Load() {
		providerErrors.WithLabelValues(provider).Inc()
	}
}

func SetDisplayedItems(collection string, n int) {
	if regOK.Load() {
		displayedItems.WithLabelValues(collection).Set(float64(n))
	}
}
