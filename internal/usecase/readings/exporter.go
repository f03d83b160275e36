package readings

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/renhe-cloud/gaswatch/internal/metrics"
)

// Publisher pushes collected readings to an external surface (MQTT).
type Publisher interface {
	PublishReadings(values map[string]float64) error
}

// Exporter periodically collects readings, updates the Prometheus gauges and
// pushes the available values to the publisher.
type Exporter struct {
	service   *Service
	publisher Publisher // may be nil (export disabled)
	interval  time.Duration
	logger    *zap.Logger
}

// NewExporter creates an exporter. publisher may be nil to only update gauges.
func NewExporter(service *Service, publisher Publisher, interval time.Duration, logger *zap.Logger) *Exporter {
	return &Exporter{
		service:   service,
		publisher: publisher,
		interval:  interval,
		logger:    logger,
	}
}

// Export runs one collect-and-publish pass.
func (e *Exporter) Export() {
	values := make(map[string]float64)
	for _, v := range e.service.Collect() {
		if !v.Available {
			continue
		}
		values[v.Key] = v.Value
		metrics.ReadingValue.WithLabelValues(v.Key).Set(v.Value)
	}

	if e.publisher == nil || len(values) == 0 {
		return
	}
	if err := e.publisher.PublishReadings(values); err != nil {
		// Transient: the next pass republishes the full state.
		e.logger.Warn("publish readings failed", zap.Error(err))
	}
}

// Run exports immediately and then on every interval until ctx is cancelled.
func (e *Exporter) Run(ctx context.Context) {
	e.Export()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Export()
		}
	}
}
