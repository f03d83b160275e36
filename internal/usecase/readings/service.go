// Package readings assembles the exported reading set from the coordinator
// caches and the accrual engine. One descriptor-driven catalog replaces
// per-reading presentation code on every export surface.
package readings

import (
	"time"

	"github.com/renhe-cloud/gaswatch/internal/domain"
)

// BalanceSource provides the cached balance snapshot.
type BalanceSource interface {
	Current() (domain.BalanceSnapshot, bool)
	FetchedAt() (time.Time, bool)
}

// RechargeSource provides the cached recharge total.
type RechargeSource interface {
	Current() (domain.RechargeTotal, bool)
}

// CostSource provides the derived daily cost.
type CostSource interface {
	Cost() domain.CostReading
}

// Value is one reading with its current state.
type Value struct {
	domain.Reading
	Value     float64
	Available bool
	FetchedAt time.Time // zero for derived readings
}

// Service collects current values for the full reading catalog.
type Service struct {
	balance  BalanceSource
	recharge RechargeSource
	cost     CostSource
}

// New creates a readings service.
func New(balance BalanceSource, recharge RechargeSource, cost CostSource) *Service {
	return &Service{balance: balance, recharge: recharge, cost: cost}
}

// Collect returns every cataloged reading in display order. Readings whose
// source has never produced data are marked unavailable rather than omitted.
func (s *Service) Collect() []Value {
	snap, haveSnap := s.balance.Current()
	fetchedAt, _ := s.balance.FetchedAt()
	recharge, haveRecharge := s.recharge.Current()
	cost := s.cost.Cost()

	out := make([]Value, 0, len(domain.Readings()))
	for _, r := range domain.Readings() {
		v := Value{Reading: r}
		switch r.Key {
		case domain.ReadingRechargeTotal:
			if haveRecharge {
				v.Value = recharge.Amount
				v.Available = true
				v.FetchedAt = recharge.FetchedAt
			}
		case domain.ReadingDailyCost:
			v.Value = cost.Amount
			v.Available = cost.HasData
		default:
			if haveSnap {
				if val, ok := snap.Value(r.Key); ok {
					v.Value = val
					v.Available = true
					v.FetchedAt = fetchedAt
				}
			}
		}
		out = append(out, v)
	}
	return out
}
