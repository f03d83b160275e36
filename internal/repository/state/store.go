// Package state persists the accrual anchor across restarts.
package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/renhe-cloud/gaswatch/internal/db"
	"github.com/renhe-cloud/gaswatch/internal/domain"
	"github.com/renhe-cloud/gaswatch/internal/metrics"
)

// store is the consumer interface for state persistence (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Store saves and restores domain.AccrualState as two durable keys.
// A malformed stored value degrades that one field to absent rather than
// failing the whole restore.
type Store struct {
	store  store
	prefix string
	serial string
	logger *zap.Logger
}

// New creates a state store scoped to one account serial.
func New(s store, prefix, serial string, logger *zap.Logger) *Store {
	return &Store{
		store:  s,
		prefix: prefix,
		serial: serial,
		logger: logger,
	}
}

func (s *Store) balanceKey() string {
	return fmt.Sprintf("%sstate:%s:anchor_balance", s.prefix, s.serial)
}

func (s *Store) dateKey() string {
	return fmt.Sprintf("%sstate:%s:anchor_date", s.prefix, s.serial)
}

// Restore loads the persisted accrual state. Missing keys yield absent
// fields; only transport-level failures are returned as errors.
func (s *Store) Restore(ctx context.Context) (domain.AccrualState, error) {
	var st domain.AccrualState

	data, err := s.store.Get(ctx, s.balanceKey())
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		// first run, nothing stored yet
	case err != nil:
		metrics.StateStoreErrorsTotal.WithLabelValues("restore").Inc()
		return domain.AccrualState{}, fmt.Errorf("restore anchor balance: %w", err)
	case len(data) == 0:
		// anchor was persisted while still absent
	default:
		if v, perr := strconv.ParseFloat(string(data), 64); perr != nil {
			s.logger.Warn("discarding malformed stored anchor balance",
				zap.String("value", string(data)), zap.Error(perr))
		} else {
			st.AnchorBalance = &v
		}
	}

	data, err = s.store.Get(ctx, s.dateKey())
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		// first run, nothing stored yet
	case err != nil:
		metrics.StateStoreErrorsTotal.WithLabelValues("restore").Inc()
		return domain.AccrualState{}, fmt.Errorf("restore anchor date: %w", err)
	case len(data) == 0:
		// anchor was persisted while still absent
	default:
		if !domain.ValidDate(string(data)) {
			s.logger.Warn("discarding malformed stored anchor date",
				zap.String("value", string(data)))
		} else {
			st.AnchorDate = string(data)
		}
	}

	return st, nil
}

// Save writes the accrual state. Called synchronously on every rollover; the
// write must be durable before the caller proceeds.
func (s *Store) Save(ctx context.Context, st domain.AccrualState) error {
	balance := ""
	if st.AnchorBalance != nil {
		balance = strconv.FormatFloat(*st.AnchorBalance, 'f', -1, 64)
	}

	if err := s.store.Set(ctx, s.balanceKey(), []byte(balance)); err != nil {
		metrics.StateStoreErrorsTotal.WithLabelValues("save").Inc()
		return fmt.Errorf("save anchor balance: %w", err)
	}
	if err := s.store.Set(ctx, s.dateKey(), []byte(st.AnchorDate)); err != nil {
		metrics.StateStoreErrorsTotal.WithLabelValues("save").Inc()
		return fmt.Errorf("save anchor date: %w", err)
	}
	return nil
}
