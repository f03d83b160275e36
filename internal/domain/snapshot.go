package domain

import "time"

// BalanceSnapshot is the full result of one successful balance-page fetch.
// Values is keyed by canonical reading key. A snapshot is immutable once
// captured; the next successful fetch replaces it wholesale.
type BalanceSnapshot struct {
	Values    map[string]float64
	FetchedAt time.Time
}

// Value returns the named reading and whether it was present in the scrape.
func (s BalanceSnapshot) Value(key string) (float64, bool) {
	v, ok := s.Values[key]
	return v, ok
}

// RechargeTotal is the summed recharge amount posted on a single calendar
// date. The provider only exposes settled prior-day transactions, so Date is
// always the day before the fetch.
type RechargeTotal struct {
	Amount    float64
	Date      string // YYYY-MM-DD, host-local
	FetchedAt time.Time
}
