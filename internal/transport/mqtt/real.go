package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/renhe-cloud/gaswatch/internal/domain"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client paho.Client
	topics Topics
}

// NewRealPublisher connects to the broker with an offline LWT and marks the
// daemon online.
func NewRealPublisher(broker, clientID string, topics Topics) (*RealPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(topics.Availability(), "offline", 1, true)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	p := &RealPublisher{client: client, topics: topics}
	if err := p.publish(topics.Availability(), []byte("online"), 1, true); err != nil {
		return nil, fmt.Errorf("announce online: %w", err)
	}
	return p, nil
}

// PublishDiscovery announces every cataloged reading to Home Assistant.
func (p *RealPublisher) PublishDiscovery() error {
	for _, r := range domain.Readings() {
		payload, err := FormatDiscovery(p.topics, r)
		if err != nil {
			return fmt.Errorf("format discovery %s: %w", r.Key, err)
		}
		if err := p.publish(p.topics.Discovery(r.Key), payload, 1, true); err != nil {
			return fmt.Errorf("publish discovery %s: %w", r.Key, err)
		}
	}
	return nil
}

// PublishReadings sends the retained state payload.
func (p *RealPublisher) PublishReadings(values map[string]float64) error {
	payload, err := FormatReadings(values)
	if err != nil {
		return fmt.Errorf("format readings: %w", err)
	}
	if err := p.publish(p.topics.State(), payload, 0, true); err != nil {
		return fmt.Errorf("publish readings: %w", err)
	}
	return nil
}

// IsConnected reports whether the broker connection is active.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close marks the daemon offline and disconnects.
func (p *RealPublisher) Close() error {
	// Best effort: the LWT covers us if this publish is lost.
	_ = p.publish(p.topics.Availability(), []byte("offline"), 1, true)
	p.client.Disconnect(1000)
	return nil
}

func (p *RealPublisher) publish(topic string, payload []byte, qos byte, retained bool) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	return token.Error()
}
