package device

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"ps-rental-backend/internal/model"
)

// KeyLister yields the currently-valid bridge credentials. Each active
// license key names one broadcast topic.
type KeyLister interface {
	ListActiveLicenses(ctx context.Context, now time.Time) ([]model.License, error)
}

// MQTTGateway publishes commands to an MQTT broker, one publish per active
// license topic.
type MQTTGateway struct {
	client      paho.Client
	topicPrefix string
	keys        KeyLister
}

// NewMQTTGateway connects to the broker and returns a gateway.
func NewMQTTGateway(broker, clientID, topicPrefix string, keys KeyLister) (*MQTTGateway, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &MQTTGateway{
		client:      client,
		topicPrefix: topicPrefix,
		keys:        keys,
	}, nil
}

// Send broadcasts the command to every active license topic. QoS 0, not
// retained: the contract is "attempted", nothing more.
func (g *MQTTGateway) Send(ctx context.Context, cmd Command) error {
	payload, err := FormatPayload(cmd)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	licenses, err := g.keys.ListActiveLicenses(ctx, cmd.Timestamp)
	if err != nil {
		return fmt.Errorf("list bridge licenses: %w", err)
	}
	if len(licenses) == 0 {
		return fmt.Errorf("no active bridge licenses")
	}

	for _, lic := range licenses {
		topic := g.topicPrefix + "/" + lic.Key
		token := g.client.Publish(topic, 0, false, payload)
		if !token.WaitTimeout(5 * time.Second) {
			return fmt.Errorf("publish timeout on %s", topic)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish on %s: %w", topic, err)
		}
	}
	return nil
}

// Close disconnects from the broker.
func (g *MQTTGateway) Close() error {
	g.client.Disconnect(1000) // 1 second timeout
	return nil
}
