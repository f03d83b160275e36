// Package refresh owns the periodic fetch-and-cache cycle for one upstream
// data series.
package refresh

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Fetcher retrieves one snapshot from the upstream source.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Coordinator periodically invokes its Fetcher and caches the last successful
// result. Concurrent refreshes collapse into one in-flight fetch; a failed
// fetch never disturbs the cached snapshot.
type Coordinator[T any] struct {
	name     string
	fetch    Fetcher[T]
	interval time.Duration
	logger   *zap.Logger

	group   singleflight.Group
	current atomic.Pointer[snapshot[T]]
}

type snapshot[T any] struct {
	value     T
	fetchedAt time.Time
}

// New creates a coordinator for the named source.
func New[T any](name string, fetch Fetcher[T], interval time.Duration, logger *zap.Logger) *Coordinator[T] {
	return &Coordinator[T]{
		name:     name,
		fetch:    fetch,
		interval: interval,
		logger:   logger,
	}
}

// Refresh fetches a new snapshot and publishes it. Callers arriving while a
// fetch is already in flight join it and receive the same result; the context
// of the caller that started the fetch governs it. On failure the previous
// snapshot stays published and the error is returned.
func (c *Coordinator[T]) Refresh(ctx context.Context) (T, error) {
	v, err, _ := c.group.Do("refresh", func() (any, error) {
		value, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.current.Store(&snapshot[T]{value: value, fetchedAt: time.Now()})
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Current returns the most recent successfully cached snapshot.
// ok is false if no fetch has ever succeeded.
func (c *Coordinator[T]) Current() (value T, ok bool) {
	s := c.current.Load()
	if s == nil {
		var zero T
		return zero, false
	}
	return s.value, true
}

// FetchedAt returns when the current snapshot was captured.
// ok is false if no fetch has ever succeeded.
func (c *Coordinator[T]) FetchedAt() (t time.Time, ok bool) {
	s := c.current.Load()
	if s == nil {
		return time.Time{}, false
	}
	return s.fetchedAt, true
}

// Interval returns the configured refresh period.
func (c *Coordinator[T]) Interval() time.Duration {
	return c.interval
}

// Run refreshes immediately and then on every interval tick until ctx is
// cancelled. A fetch outlasting the interval simply absorbs the next tick;
// no second fetch starts while one is in flight.
func (c *Coordinator[T]) Run(ctx context.Context) {
	c.refreshLogged(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refreshLogged(ctx)
		}
	}
}

func (c *Coordinator[T]) refreshLogged(ctx context.Context) {
	if _, err := c.Refresh(ctx); err != nil {
		// Transient: keep serving the previous snapshot until the next cycle.
		c.logger.Warn("refresh failed",
			zap.String("source", c.name), zap.Error(err))
		return
	}
	c.logger.Debug("refreshed", zap.String("source", c.name))
}
