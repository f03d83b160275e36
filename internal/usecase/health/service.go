// Package health reports daemon liveness for the /healthz endpoint.
package health

import (
	"context"
	"fmt"
	"time"
)

// Status is the overall daemon health.
type Status string

const (
	Healthy  Status = "healthy"
	Degraded Status = "degraded"
)

// Check result values for a single component.
const (
	CheckOK      = "ok"
	CheckNoData  = "no data"
	CheckStale   = "stale"
	CheckError   = "error"
	CheckOffline = "offline"
)

// staleAfter is how many missed refresh intervals mark a source stale.
const staleAfter = 3

// Result is the outcome of one health evaluation.
type Result struct {
	Status Status            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Service evaluates daemon health.
type Service struct {
	store   StorePinger
	sources map[string]Source
	broker  BrokerStatus
	now     func() time.Time
}

// New creates a health service over the state store and the named sources.
func New(store StorePinger, sources map[string]Source) *Service {
	return &Service{store: store, sources: sources, now: time.Now}
}

// WithBroker adds the MQTT broker connection to the checked components.
func (s *Service) WithBroker(broker BrokerStatus) *Service {
	s.broker = broker
	return s
}

// Check evaluates every component. A source that has never produced data or
// whose snapshot outlived three refresh intervals degrades overall health;
// so does an unreachable state store or a dropped broker connection.
func (s *Service) Check(ctx context.Context) Result {
	r := Result{Status: Healthy, Checks: map[string]string{}}

	if err := s.store.Ping(ctx); err != nil {
		r.Status = Degraded
		r.Checks["state_store"] = CheckError
	} else {
		r.Checks["state_store"] = CheckOK
	}

	if s.broker != nil {
		if s.broker.IsConnected() {
			r.Checks["mqtt"] = CheckOK
		} else {
			r.Status = Degraded
			r.Checks["mqtt"] = CheckOffline
		}
	}

	for name, src := range s.sources {
		fetchedAt, ok := src.FetchedAt()
		switch {
		case !ok:
			r.Status = Degraded
			r.Checks[name] = CheckNoData
		case s.now().Sub(fetchedAt) > staleAfter*src.Interval():
			r.Status = Degraded
			r.Checks[name] = fmt.Sprintf("%s (last success %s)", CheckStale, fetchedAt.Format(time.RFC3339))
		default:
			r.Checks[name] = CheckOK
		}
	}

	return r
}
