package mqtt

// FakePublisher records published payloads for test assertions.
type FakePublisher struct {
	// DiscoveryCalls counts PublishDiscovery invocations.
	DiscoveryCalls int

	// Readings contains every published reading map.
	Readings []map[string]float64

	// PublishError, if set, is returned by both publish methods.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Connected: true}
}

// PublishDiscovery records the call.
func (f *FakePublisher) PublishDiscovery() error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.DiscoveryCalls++
	return nil
}

// PublishReadings records the reading map.
func (f *FakePublisher) PublishReadings(values map[string]float64) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	copied := make(map[string]float64, len(values))
	for k, v := range values {
		copied[k] = v
	}
	f.Readings = append(f.Readings, copied)
	return nil
}

// IsConnected reports the configured connection state.
func (f *FakePublisher) IsConnected() bool { return f.Connected }

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}
