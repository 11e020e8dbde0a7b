// Copyright 2025 Certen Protocol
//
// Diagnostic-only health metrics (spec.md §4.4): outcome histogram, depth
// histogram, candidate-count histogram, frontier high-water. These never
// participate in any binding digest and are never read by pkg/verifier —
// Recorder is an optional side channel the search engine reports into.
// Grounded on the minimal Registerer-wrapper shape of
// _examples/luxfi-consensus/metrics/metrics.go, expanded with the concrete
// collectors spec.md §4.4 and §2's health-metrics row call for.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/certen/sterling/pkg/search"
)

// Recorder reports best-first search progress into a Prometheus registry.
// A nil *Recorder is valid and every method becomes a no-op, so callers
// that don't want metrics can pass nil instead of branching.
type Recorder struct {
	registry prometheus.Registerer

	expansionsTotal   prometheus.Counter
	candidatesTotal   *prometheus.CounterVec
	depthHistogram    prometheus.Histogram
	candidateHist     prometheus.Histogram
	frontierHighWater prometheus.Gauge
	terminationTotal  *prometheus.CounterVec
}

// NewRecorder builds a Recorder and registers its collectors against reg.
// worldID is attached as a constant label so metrics from concurrent runs
// of different worlds don't collide in a shared registry.
func NewRecorder(reg prometheus.Registerer, worldID string) (*Recorder, error) {
	constLabels := prometheus.Labels{"world_id": worldID}

	r := &Recorder{
		registry: reg,
		expansionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "sterling",
			Subsystem:   "search",
			Name:        "expansions_total",
			Help:        "Total nodes popped from the frontier and expanded.",
			ConstLabels: constLabels,
		}),
		candidatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "sterling",
			Subsystem:   "search",
			Name:        "candidates_total",
			Help:        "Candidates processed, partitioned by outcome kind.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		depthHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "sterling",
			Subsystem:   "search",
			Name:        "node_depth",
			Help:        "Depth of expanded nodes.",
			ConstLabels: constLabels,
			Buckets:     prometheus.LinearBuckets(0, 4, 16),
		}),
		candidateHist: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "sterling",
			Subsystem:   "search",
			Name:        "candidates_per_expansion",
			Help:        "Number of candidates generated per expansion.",
			ConstLabels: constLabels,
			Buckets:     prometheus.LinearBuckets(0, 2, 16),
		}),
		frontierHighWater: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "sterling",
			Subsystem:   "search",
			Name:        "frontier_high_water",
			Help:        "Largest frontier size observed so far this run.",
			ConstLabels: constLabels,
		}),
		terminationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "sterling",
			Subsystem:   "search",
			Name:        "termination_total",
			Help:        "Runs terminated, partitioned by reason kind.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
	}

	collectors := []prometheus.Collector{
		r.expansionsTotal, r.candidatesTotal, r.depthHistogram,
		r.candidateHist, r.frontierHighWater, r.terminationTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveExpansion records one frontier pop: its depth and how many
// candidates it produced.
func (r *Recorder) ObserveExpansion(depth uint32, candidateCount int) {
	if r == nil {
		return
	}
	r.expansionsTotal.Inc()
	r.depthHistogram.Observe(float64(depth))
	r.candidateHist.Observe(float64(candidateCount))
}

// ObserveCandidateOutcome records one candidate's disposition.
func (r *Recorder) ObserveCandidateOutcome(kind search.CandidateOutcomeKind) {
	if r == nil {
		return
	}
	r.candidatesTotal.WithLabelValues(string(kind)).Inc()
}

// ObserveFrontierSize sets the high-water gauge to highWater.
// Prometheus gauges have no compare-and-set, so the caller is expected to
// pass the engine's own running high-water value (already max-tracked),
// not the instantaneous frontier size.
func (r *Recorder) ObserveFrontierSize(highWater uint64) {
	if r == nil {
		return
	}
	r.frontierHighWater.Set(float64(highWater))
}

// ObserveTermination records why a run stopped.
func (r *Recorder) ObserveTermination(reason search.TerminationReasonKind) {
	if r == nil {
		return
	}
	r.terminationTotal.WithLabelValues(string(reason)).Inc()
}
