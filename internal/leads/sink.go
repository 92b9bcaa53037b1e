// Package leads delivers captured visitor leads to external channels.
// Delivery is best-effort: callers log and drop errors.
package leads

import (
	"context"
	stderrors "errors"
	"fmt"

	"business-directory/internal/common/logger"
	"business-directory/internal/common/metrics"
	"business-directory/internal/models"
)

// Sink delivers a captured lead somewhere outside the directory.
type Sink interface {
	Send(ctx context.Context, lead models.LeadCapture) error
}

// Noop discards every lead.
type Noop struct{}

func (Noop) Send(context.Context, models.LeadCapture) error { return nil }

// Named pairs a sink with the label used in logs and metrics.
type Named struct {
	Name string
	Sink Sink
}

// FanOut sends each lead to every sink in order. A failing sink does not stop
// the others; their errors are joined.
type FanOut struct {
	sinks  []Named
	logger logger.Logger
}

func NewFanOut(log logger.Logger, sinks ...Named) *FanOut {
	return &FanOut{
		sinks:  sinks,
		logger: log.WithFields(map[string]interface{}{"component": "lead-fanout"}),
	}
}

func (f *FanOut) Send(ctx context.Context, lead models.LeadCapture) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Sink.Send(ctx, lead); err != nil {
			metrics.LeadSinkFailures.WithLabelValues(s.Name).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		f.logger.Debug("lead delivered", map[string]interface{}{
			"sink":       s.Name,
			"businessId": lead.BusinessID,
		})
	}
	return stderrors.Join(errs...)
}

func (f *FanOut) Len() int { return len(f.sinks) }
