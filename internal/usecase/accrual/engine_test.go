package accrual

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/renhe-cloud/gaswatch/internal/domain"
)

// --- Mocks ---

type mockBalance struct {
	snap domain.BalanceSnapshot
	ok   bool
}

func (m *mockBalance) Current() (domain.BalanceSnapshot, bool) { return m.snap, m.ok }

func (m *mockBalance) set(v float64) {
	m.snap = domain.BalanceSnapshot{Values: map[string]float64{domain.ReadingMeterBalance: v}}
	m.ok = true
}

type mockRecharge struct {
	total domain.RechargeTotal
	ok    bool
}

func (m *mockRecharge) Current() (domain.RechargeTotal, bool) { return m.total, m.ok }

func (m *mockRecharge) set(amount float64) {
	m.total = domain.RechargeTotal{Amount: amount}
	m.ok = true
}

type mockStore struct {
	state      domain.AccrualState
	restoreErr error
	saveErr    error
	saves      int
}

func (m *mockStore) Restore(context.Context) (domain.AccrualState, error) {
	if m.restoreErr != nil {
		return domain.AccrualState{}, m.restoreErr
	}
	return m.state, nil
}

func (m *mockStore) Save(_ context.Context, st domain.AccrualState) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.state = st
	m.saves++
	return nil
}

type fixture struct {
	engine   *Engine
	balance  *mockBalance
	recharge *mockRecharge
	store    *mockStore
	clock    *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.Local)
	f := &fixture{
		balance:  &mockBalance{},
		recharge: &mockRecharge{},
		store:    &mockStore{},
		clock:    &now,
	}
	f.engine = New(f.balance, f.recharge, f.store, time.Minute, zap.NewNop(),
		WithClock(func() time.Time { return *f.clock }))
	return f
}

func (f *fixture) advanceDay() {
	*f.clock = f.clock.AddDate(0, 0, 1)
}

// --- Tests ---

func TestTick_FirstTickAnchors(t *testing.T) {
	f := newFixture(t)
	f.balance.set(100)
	ctx := context.Background()

	f.engine.Tick(ctx)

	st := f.engine.State()
	if st.AnchorDate != "2024-03-01" {
		t.Errorf("AnchorDate = %q, want 2024-03-01", st.AnchorDate)
	}
	if st.AnchorBalance == nil || *st.AnchorBalance != 100 {
		t.Errorf("AnchorBalance = %v, want 100", st.AnchorBalance)
	}
	cost := f.engine.Cost()
	if cost.Amount != 0 {
		t.Errorf("Cost = %v, want 0 on anchoring tick", cost.Amount)
	}
	if !cost.HasData {
		t.Error("HasData = false, want true")
	}
	if f.store.saves != 1 {
		t.Errorf("saves = %d, want 1", f.store.saves)
	}
}

func TestTick_CostFormula_PureConsumption(t *testing.T) {
	f := newFixture(t)
	f.balance.set(100)
	ctx := context.Background()

	f.engine.Tick(ctx) // anchor at 100
	f.balance.set(70)
	f.engine.Tick(ctx)

	if got := f.engine.Cost().Amount; got != 30 {
		t.Errorf("Cost = %v, want 30", got)
	}
}

func TestTick_CostFormula_WithRecharge(t *testing.T) {
	f := newFixture(t)
	f.balance.set(100)
	ctx := context.Background()

	f.engine.Tick(ctx) // anchor at 100
	f.balance.set(150)
	f.recharge.set(80)
	f.engine.Tick(ctx)

	if got := f.engine.Cost().Amount; got != 30 {
		t.Errorf("Cost = %v, want 30", got)
	}
}

func TestTick_SameDayLeavesAnchorUntouched(t *testing.T) {
	f := newFixture(t)
	f.balance.set(100)
	ctx := context.Background()

	f.engine.Tick(ctx)
	f.balance.set(70)
	f.engine.Tick(ctx)
	f.balance.set(60)
	f.engine.Tick(ctx)

	st := f.engine.State()
	if st.AnchorBalance == nil || *st.AnchorBalance != 100 {
		t.Errorf("AnchorBalance = %v, want 100 after intra-day ticks", st.AnchorBalance)
	}
	if f.store.saves != 1 {
		t.Errorf("saves = %d, want 1 (anchor persisted only on rollover)", f.store.saves)
	}
	// Cost is since start of day, not since last tick.
	if got := f.engine.Cost().Amount; got != 40 {
		t.Errorf("Cost = %v, want 40", got)
	}
}

func TestTick_Deterministic(t *testing.T) {
	f := newFixture(t)
	f.balance.set(100)
	ctx := context.Background()

	f.engine.Tick(ctx)
	f.balance.set(70)
	f.engine.Tick(ctx)
	first := f.engine.Cost()
	f.engine.Tick(ctx)
	second := f.engine.Cost()

	if first != second {
		t.Errorf("same inputs gave %v then %v", first, second)
	}
}

func TestTick_DayBoundaryResetsCost(t *testing.T) {
	f := newFixture(t)
	f.balance.set(100)
	ctx := context.Background()

	f.engine.Tick(ctx)
	f.balance.set(40)
	f.engine.Tick(ctx)
	if got := f.engine.Cost().Amount; got != 60 {
		t.Fatalf("Cost = %v, want 60", got)
	}

	f.advanceDay()
	f.engine.Tick(ctx)

	if got := f.engine.Cost().Amount; got != 0 {
		t.Errorf("Cost = %v, want 0 on rollover tick", got)
	}
	st := f.engine.State()
	if st.AnchorDate != "2024-03-02" {
		t.Errorf("AnchorDate = %q, want 2024-03-02", st.AnchorDate)
	}
	if st.AnchorBalance == nil || *st.AnchorBalance != 40 {
		t.Errorf("AnchorBalance = %v, want 40", st.AnchorBalance)
	}
	if f.store.saves != 2 {
		t.Errorf("saves = %d, want 2", f.store.saves)
	}
}

func TestTick_MissingBalanceDegrades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.engine.Tick(ctx)

	cost := f.engine.Cost()
	if cost.Amount != 0 {
		t.Errorf("Cost = %v, want 0", cost.Amount)
	}
	if cost.HasData {
		t.Error("HasData = true, want false with no balance data")
	}
	if f.engine.State().Initialized() {
		t.Error("anchor advanced without balance data")
	}
	if f.store.saves != 0 {
		t.Errorf("saves = %d, want 0", f.store.saves)
	}
}

func TestTick_MeterBalanceFieldAbsentDoesNotAnchor(t *testing.T) {
	f := newFixture(t)
	// The snapshot parsed, but without the meter-side balance reading.
	f.balance.snap = domain.BalanceSnapshot{
		Values: map[string]float64{domain.ReadingAccountBalance: 55},
	}
	f.balance.ok = true

	f.engine.Tick(context.Background())

	cost := f.engine.Cost()
	if cost.Amount != 0 {
		t.Errorf("Cost = %v, want 0", cost.Amount)
	}
	if cost.HasData {
		t.Error("HasData = true, want false without a meter balance reading")
	}
	if f.engine.State().Initialized() {
		t.Error("anchor advanced without a meter balance reading")
	}
	if f.store.saves != 0 {
		t.Errorf("saves = %d, want 0", f.store.saves)
	}
}

func TestTick_MeterBalanceFieldLostMidDay(t *testing.T) {
	f := newFixture(t)
	f.balance.set(100)
	ctx := context.Background()

	f.engine.Tick(ctx)
	// Later scrapes still parse but drop the meter balance field.
	f.balance.snap = domain.BalanceSnapshot{
		Values: map[string]float64{domain.ReadingAccountBalance: 55},
	}
	f.engine.Tick(ctx)

	cost := f.engine.Cost()
	// Computed with balance treated as 0, flagged as missing data.
	if cost.Amount != 100 {
		t.Errorf("Cost = %v, want 100", cost.Amount)
	}
	if cost.HasData {
		t.Error("HasData = true, want false")
	}
	st := f.engine.State()
	if st.AnchorBalance == nil || *st.AnchorBalance != 100 {
		t.Errorf("AnchorBalance = %v, want 100 (unchanged)", st.AnchorBalance)
	}
}

func TestTick_MissingBalanceMidDay(t *testing.T) {
	f := newFixture(t)
	f.balance.set(100)
	ctx := context.Background()

	f.engine.Tick(ctx)
	f.balance.ok = false // balance source goes dark
	f.engine.Tick(ctx)

	cost := f.engine.Cost()
	// Computed with balance treated as 0, flagged as missing data.
	if cost.Amount != 100 {
		t.Errorf("Cost = %v, want 100", cost.Amount)
	}
	if cost.HasData {
		t.Error("HasData = true, want false")
	}
}

func TestTick_MissingRechargeTreatedAsZero(t *testing.T) {
	f := newFixture(t)
	f.balance.set(100)
	ctx := context.Background()

	f.engine.Tick(ctx)
	f.balance.set(95)
	f.engine.Tick(ctx)

	if got := f.engine.Cost().Amount; got != 5 {
		t.Errorf("Cost = %v, want 5", got)
	}
}

func TestTick_SaveFailureAbsorbed(t *testing.T) {
	f := newFixture(t)
	f.balance.set(100)
	f.store.saveErr = errors.New("store down")

	f.engine.Tick(context.Background())

	// The anchor still advances in memory.
	if !f.engine.State().Initialized() {
		t.Error("anchor did not advance after save failure")
	}
}

func TestRestore_ResumesSteady(t *testing.T) {
	f := newFixture(t)
	anchor := 42.5
	f.store.state = domain.AccrualState{AnchorBalance: &anchor, AnchorDate: "2024-03-01"}

	f.engine.Restore(context.Background())

	st := f.engine.State()
	if st.AnchorDate != "2024-03-01" {
		t.Errorf("AnchorDate = %q, want 2024-03-01", st.AnchorDate)
	}
	if st.AnchorBalance == nil || *st.AnchorBalance != 42.5 {
		t.Errorf("AnchorBalance = %v, want 42.5", st.AnchorBalance)
	}

	// A same-day tick after restore computes cost, no re-anchor.
	f.balance.set(30)
	f.engine.Tick(context.Background())
	if got := f.engine.Cost().Amount; got != 12.5 {
		t.Errorf("Cost = %v, want 12.5", got)
	}
	if f.store.saves != 0 {
		t.Errorf("saves = %d, want 0 after same-day restore", f.store.saves)
	}
}

func TestRestore_ErrorStartsUninitialized(t *testing.T) {
	f := newFixture(t)
	f.store.restoreErr = errors.New("store down")

	f.engine.Restore(context.Background())

	if f.engine.State().Initialized() {
		t.Error("Initialized() = true after failed restore")
	}

	// First tick then anchors as a first run would.
	f.balance.set(100)
	f.engine.Tick(context.Background())
	if !f.engine.State().Initialized() {
		t.Error("engine did not recover by re-anchoring")
	}
}

func TestRestore_StaleAnchorRollsOverOnFirstTick(t *testing.T) {
	f := newFixture(t)
	anchor := 80.0
	f.store.state = domain.AccrualState{AnchorBalance: &anchor, AnchorDate: "2024-02-28"}

	ctx := context.Background()
	f.engine.Restore(ctx)
	f.balance.set(75)
	f.engine.Tick(ctx)

	st := f.engine.State()
	if st.AnchorDate != "2024-03-01" {
		t.Errorf("AnchorDate = %q, want 2024-03-01", st.AnchorDate)
	}
	if st.AnchorBalance == nil || *st.AnchorBalance != 75 {
		t.Errorf("AnchorBalance = %v, want 75", st.AnchorBalance)
	}
	if got := f.engine.Cost().Amount; got != 0 {
		t.Errorf("Cost = %v, want 0 on rollover", got)
	}
}
