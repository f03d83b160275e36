package health

import (
	"context"
	"time"
)

// StorePinger checks state-store connectivity.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// Source reports the freshness of one coordinator's cache.
type Source interface {
	FetchedAt() (time.Time, bool)
	Interval() time.Duration
}

// BrokerStatus reports whether the MQTT broker connection is active.
type BrokerStatus interface {
	IsConnected() bool
}
