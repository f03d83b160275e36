// Package mqtt exports readings to Home Assistant over MQTT, with an
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"

	"github.com/renhe-cloud/gaswatch/internal/domain"
)

// Publisher publishes readings and discovery configs to a broker.
type Publisher interface {
	// PublishDiscovery announces every cataloged reading to Home Assistant.
	// Called once after connecting; configs are retained by the broker.
	PublishDiscovery() error

	// PublishReadings sends one retained state payload with the current
	// values. Returns an error if publishing fails (never crashes the daemon).
	PublishReadings(values map[string]float64) error

	// Close marks the daemon offline and disconnects from the broker.
	Close() error
}

// Topics derives the topic layout for one account.
type Topics struct {
	Prefix          string // e.g. "gaswatch"
	DiscoveryPrefix string // e.g. "homeassistant"
	Serial          string
}

// State is the topic carrying the JSON reading payload.
func (t Topics) State() string {
	return fmt.Sprintf("%s/%s/state", t.Prefix, t.Serial)
}

// Availability is the online/offline topic (also the LWT target).
func (t Topics) Availability() string {
	return fmt.Sprintf("%s/%s/status", t.Prefix, t.Serial)
}

// Discovery is the Home Assistant discovery config topic for one reading.
func (t Topics) Discovery(key string) string {
	return fmt.Sprintf("%s/sensor/gaswatch_%s/%s/config", t.DiscoveryPrefix, t.Serial, key)
}

// discoveryConfig is the Home Assistant MQTT discovery payload for a sensor.
type discoveryConfig struct {
	Name              string          `json:"name"`
	UniqueID          string          `json:"unique_id"`
	StateTopic        string          `json:"state_topic"`
	AvailabilityTopic string          `json:"availability_topic"`
	ValueTemplate     string          `json:"value_template"`
	UnitOfMeasurement string          `json:"unit_of_measurement,omitempty"`
	StateClass        string          `json:"state_class,omitempty"`
	Device            discoveryDevice `json:"device"`
}

type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
}

// FormatDiscovery builds the retained discovery payload for one reading.
func FormatDiscovery(t Topics, r domain.Reading) ([]byte, error) {
	stateClass := "measurement"
	if r.Kind == domain.KindTotal {
		stateClass = "total_increasing"
	}
	if r.Unit == domain.UnitNone {
		// Unitless readings (valve status) carry no state class either.
		stateClass = ""
	}

	cfg := discoveryConfig{
		Name:              r.Name,
		UniqueID:          fmt.Sprintf("gaswatch_%s_%s", t.Serial, r.Key),
		StateTopic:        t.State(),
		AvailabilityTopic: t.Availability(),
		ValueTemplate:     fmt.Sprintf("{{ value_json.%s }}", r.Key),
		UnitOfMeasurement: r.Unit,
		StateClass:        stateClass,
		Device: discoveryDevice{
			Identifiers:  []string{"gaswatch_" + t.Serial},
			Name:         "Gas Meter " + t.Serial,
			Manufacturer: "Huayuan Gas",
		},
	}
	return json.Marshal(cfg)
}

// FormatReadings builds the state payload from current values.
func FormatReadings(values map[string]float64) ([]byte, error) {
	return json.Marshal(values)
}
