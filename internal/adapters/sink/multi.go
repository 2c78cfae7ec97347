package sink

import (
	"context"
	"errors"

	"github.com/FrancoRivero2025/quote-average/internal/adapters/metrics"
	"github.com/FrancoRivero2025/quote-average/internal/domain"
)

// Multi fans a snapshot out to every sink. A failing sink does not stop the
// others; all failures are joined.
type Multi struct {
	sinks []Sink
}

func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Sinks() []Sink { return m.sinks }

func (m *Multi) Publish(ctx context.Context, qs domain.QuoteSet) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Publish(ctx, qs); err != nil {
			metrics.IncPublishError(s.Name())
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	return CloseAll(m.sinks...)
}
