// Package accrual derives the daily consumption cost from the two
// coordinator caches.
//
// The engine is a two-state machine. With no anchor date it is
// uninitialized; the first tick that sees balance data anchors the
// start-of-day balance and every later tick within the same calendar day
// computes cost against that anchor. A tick observing a new calendar date
// re-anchors and resets the cost to zero: the anchor is the start-of-day
// baseline, so cost on the rollover tick is by definition zero.
package accrual

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/renhe-cloud/gaswatch/internal/domain"
	"github.com/renhe-cloud/gaswatch/internal/metrics"
)

// Engine owns the accrual state machine. It pulls from the coordinator
// caches on its own cadence and never triggers a fetch itself. Only Run and
// Tick mutate; State and Cost are safe for concurrent readers.
type Engine struct {
	balances  BalanceReader
	recharges RechargeReader
	store     StateStore
	interval  time.Duration
	now       func() time.Time
	logger    *zap.Logger

	state atomic.Pointer[domain.AccrualState]
	cost  atomic.Pointer[domain.CostReading]
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine. Call Restore before Run.
func New(balances BalanceReader, recharges RechargeReader, store StateStore,
	interval time.Duration, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		balances:  balances,
		recharges: recharges,
		store:     store,
		interval:  interval,
		now:       time.Now,
		logger:    logger,
	}
	e.state.Store(&domain.AccrualState{})
	e.cost.Store(&domain.CostReading{})
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Restore loads the persisted anchor. Any failure degrades to an empty state
// (the engine re-anchors on its first tick); restore never blocks startup.
func (e *Engine) Restore(ctx context.Context) {
	st, err := e.store.Restore(ctx)
	if err != nil {
		e.logger.Warn("state restore failed, starting uninitialized", zap.Error(err))
		return
	}
	e.state.Store(&st)
	if st.Initialized() {
		e.logger.Info("accrual state restored",
			zap.String("anchor_date", st.AnchorDate),
			zap.Float64p("anchor_balance", st.AnchorBalance))
	}
}

// Tick runs one evaluation of the state machine against the current
// coordinator caches and wall-clock date.
func (e *Engine) Tick(ctx context.Context) {
	today := domain.CivilDate(e.now())

	// The meter-side balance field must itself be present; a snapshot that
	// parsed but lacks it is still "no balance data" for accrual purposes.
	var balance float64
	haveBalance := false
	if snap, ok := e.balances.Current(); ok {
		balance, haveBalance = snap.Value(domain.ReadingMeterBalance)
	}

	var recharge float64
	if total, ok := e.recharges.Current(); ok {
		recharge = total.Amount
	}

	st := e.State()

	if st.AnchorDate != today {
		// Day rollover (or first-ever tick). Cost for the rollover tick is
		// zero regardless of prior value.
		if !haveBalance {
			// No balance data: report zero but do not fabricate an anchor.
			e.cost.Store(&domain.CostReading{})
			metrics.AccrualTicksTotal.WithLabelValues("no_data").Inc()
			return
		}

		ns := domain.AccrualState{AnchorBalance: &balance, AnchorDate: today}
		if err := e.store.Save(ctx, ns); err != nil {
			// Absorbed: the anchor still advances in memory, a restart before
			// the next successful save re-anchors from the restored state.
			e.logger.Warn("state save failed", zap.Error(err))
		}
		e.state.Store(&ns)
		e.cost.Store(&domain.CostReading{HasData: true})
		metrics.AccrualTicksTotal.WithLabelValues("rollover").Inc()
		metrics.AccrualRolloversTotal.Inc()
		metrics.ReadingValue.WithLabelValues(domain.ReadingDailyCost).Set(0)
		e.logger.Info("day rollover",
			zap.String("anchor_date", today), zap.Float64("anchor_balance", balance))
		return
	}

	// Same accounting day: recompute cost against the start-of-day anchor.
	// The anchor is never touched here, so repeated intra-day ticks all
	// yield cost-since-start-of-day.
	var anchor float64
	if st.AnchorBalance != nil {
		anchor = *st.AnchorBalance
	}

	cost := anchor - balance
	if recharge > 0 {
		// A recharge posted in this window raised the balance; counting it
		// into the baseline keeps the delta a pure consumption figure.
		cost = anchor + recharge - balance
	}

	e.cost.Store(&domain.CostReading{Amount: cost, HasData: haveBalance})
	metrics.AccrualTicksTotal.WithLabelValues("steady").Inc()
	metrics.ReadingValue.WithLabelValues(domain.ReadingDailyCost).Set(cost)
}

// State returns the current accrual state.
func (e *Engine) State() domain.AccrualState {
	return *e.state.Load()
}

// Cost returns the current derived cost reading.
func (e *Engine) Cost() domain.CostReading {
	return *e.cost.Load()
}

// Run ticks immediately and then on every interval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.Tick(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}
