// Copyright 2025 Certen Protocol

package metrics

import "github.com/certen/sterling/pkg/search"

// SinkWrapper multiplexes search.Run's single Sink slot: it forwards every
// event to an inner Sink unchanged (normally the tape writer, which owns the
// normative .stap/search_graph.json projection) and additionally reports
// into a Recorder. Both observers run synchronously in Run's own goroutine,
// so metrics observation can never reorder relative to tape emission.
type SinkWrapper struct {
	inner    search.Sink
	recorder *Recorder
}

// Wrap returns a Sink that drives inner and r together. recorder may be nil
// (every Observe* call becomes a no-op); inner may also be nil.
func Wrap(inner search.Sink, recorder *Recorder) *SinkWrapper {
	return &SinkWrapper{inner: inner, recorder: recorder}
}

func (s *SinkWrapper) OnNodeCreated(node search.SearchNode) {
	if s.inner != nil {
		s.inner.OnNodeCreated(node)
	}
}

func (s *SinkWrapper) OnExpansion(event search.ExpandEvent) {
	if s.inner != nil {
		s.inner.OnExpansion(event)
	}
	s.recorder.ObserveExpansion(event.FrontierPopKey.Depth, len(event.Candidates))
	for _, c := range event.Candidates {
		s.recorder.ObserveCandidateOutcome(c.Kind)
	}
}

func (s *SinkWrapper) OnTermination(reason search.TerminationReason, frontierHighWater uint64) {
	if s.inner != nil {
		s.inner.OnTermination(reason, frontierHighWater)
	}
	s.recorder.ObserveFrontierSize(frontierHighWater)
	s.recorder.ObserveTermination(reason.Kind)
}
