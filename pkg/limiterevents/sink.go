package limiterevents

import "context"

// Sink accepts published events. Implementations must not block the
// caller for long: Publish is called synchronously from the hot path of
// an acquisition's completion, so slow sinks should buffer internally
// (as KafkaPublisher and ClickHouseSink both do).
type Sink interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// MultiSink fans one event out to every underlying sink, collecting
// (not short-circuiting on) individual failures.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink builds a MultiSink over sinks. A nil sink in the slice is
// skipped, so callers can conditionally include the Kafka/ClickHouse
// sinks without filtering the slice themselves.
func NewMultiSink(sinks ...Sink) *MultiSink {
	filtered := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &MultiSink{sinks: filtered}
}

func (m *MultiSink) Publish(ctx context.Context, ev Event) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Publish(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiSink) Close() error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
