package domain

import "time"

// DateLayout is the calendar-date format used for anchor dates and recharge
// query windows.
const DateLayout = "2006-01-02"

// AccrualState is the only state that must survive a restart: the balance
// recorded at the start of the current accounting day and the date it was
// captured on. Zero values mean "absent" (first-ever run, or restore failed).
type AccrualState struct {
	AnchorBalance *float64
	AnchorDate    string // YYYY-MM-DD, empty = absent
}

// Initialized reports whether an anchor has been established.
func (s AccrualState) Initialized() bool {
	return s.AnchorDate != ""
}

// CostReading is the derived net cost for the current accounting day.
// HasData distinguishes a real zero from "no balance data yet".
type CostReading struct {
	Amount  float64
	HasData bool
}

// CivilDate formats t as a host-local calendar date.
func CivilDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ValidDate reports whether s is a well-formed YYYY-MM-DD date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
