package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/seatlens/seatlens/pkg/analytics"
	"github.com/seatlens/seatlens/pkg/observability"
)

// SummarySource computes usage summaries
type SummarySource interface {
	GetUsageSummary(ctx context.Context, days int) (*analytics.Result[analytics.SummaryReport], error)
}

// Publisher computes summaries and stores them as snapshots
type Publisher struct {
	source  SummarySource
	store   *Store
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewPublisher creates a snapshot publisher
func NewPublisher(source SummarySource, store *Store, logger *observability.Logger, metrics *observability.Metrics) *Publisher {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Publisher{
		source:  source,
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// Publish computes the summary for one window, stores it and updates the
// window's gauges
func (p *Publisher) Publish(ctx context.Context, days int) (_ *Snapshot, err error) {
	window := strconv.Itoa(days)
	defer func() {
		if p.metrics == nil {
			return
		}
		status := "success"
		if err != nil {
			status = "error"
		}
		p.metrics.SnapshotPublishTotal.WithLabelValues(window, status).Inc()
	}()

	res, err := p.source.GetUsageSummary(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("computing %d-day summary: %w", days, err)
	}

	s := &Snapshot{
		Days:        days,
		GeneratedAt: res.GeneratedAt,
		Partial:     res.Partial,
		Summary:     res.Data,
	}
	if err := p.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("storing %d-day summary: %w", days, err)
	}

	if p.metrics != nil {
		p.metrics.ActiveUsers.WithLabelValues(window).Set(float64(res.Data.ActiveUsers))
		p.metrics.TotalActions.WithLabelValues(window).Set(float64(res.Data.TotalCopilotActions))
	}

	p.logger.WithFields(map[string]interface{}{
		"days":          days,
		"total_users":   res.Data.TotalUsers,
		"active_users":  res.Data.ActiveUsers,
		"total_actions": res.Data.TotalCopilotActions,
		"partial":       res.Partial,
	}).Info("Published usage summary snapshot")
	return s, nil
}

// PublishAll publishes every window. A failed window does not stop the
// others; the failures are returned joined.
func (p *Publisher) PublishAll(ctx context.Context, windows []int) error {
	var errs []error
	for _, days := range windows {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := p.Publish(ctx, days); err != nil {
			p.logger.WithError(err).WithField("days", days).Error("Snapshot publish failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
