package accrual

import (
	"context"

	"github.com/renhe-cloud/gaswatch/internal/domain"
)

// BalanceReader provides read access to the balance coordinator's cache.
type BalanceReader interface {
	Current() (domain.BalanceSnapshot, bool)
}

// RechargeReader provides read access to the recharge coordinator's cache.
type RechargeReader interface {
	Current() (domain.RechargeTotal, bool)
}

// StateStore persists the accrual anchor across restarts.
type StateStore interface {
	Restore(ctx context.Context) (domain.AccrualState, error)
	Save(ctx context.Context, st domain.AccrualState) error
}
