package domain

// Canonical reading keys. Stable identifiers used in MQTT payloads, the HTTP
// API and metric labels; provider-specific labels are mapped onto these at the
// scrape layer.
const (
	ReadingMeterBalance    = "meter_balance"
	ReadingAccountBalance  = "account_balance"
	ReadingArrears         = "arrears"
	ReadingCumulativeUsage = "cumulative_usage"
	ReadingValveStatus     = "valve_status"
	ReadingRechargeTotal   = "recharge_total"
	ReadingDailyCost       = "daily_cost"
)

// Kind describes the accumulation semantic of a reading.
type Kind string

const (
	// KindMeasurement is a point-in-time value that can go up or down.
	KindMeasurement Kind = "measurement"
	// KindTotal is a monotonically increasing lifetime total.
	KindTotal Kind = "total"
)

// Unit constants for exported readings.
const (
	UnitYuan       = "CNY"
	UnitCubicMeter = "m³"
	UnitNone       = ""
)

// Reading describes one exported reading: a canonical key plus the
// presentation metadata every export surface (MQTT discovery, HTTP API)
// derives from.
type Reading struct {
	Key  string
	Name string
	Unit string
	Kind Kind
}

// Readings is the full catalog of exported readings, in display order.
func Readings() []Reading {
	return []Reading{
		{Key: ReadingMeterBalance, Name: "Meter Balance", Unit: UnitYuan, Kind: KindMeasurement},
		{Key: ReadingAccountBalance, Name: "Account Balance", Unit: UnitYuan, Kind: KindMeasurement},
		{Key: ReadingArrears, Name: "Arrears", Unit: UnitYuan, Kind: KindMeasurement},
		{Key: ReadingCumulativeUsage, Name: "Cumulative Usage", Unit: UnitCubicMeter, Kind: KindTotal},
		{Key: ReadingValveStatus, Name: "Valve Status", Unit: UnitNone, Kind: KindMeasurement},
		{Key: ReadingRechargeTotal, Name: "Recharge Total", Unit: UnitYuan, Kind: KindMeasurement},
		{Key: ReadingDailyCost, Name: "Daily Cost", Unit: UnitYuan, Kind: KindMeasurement},
	}
}
