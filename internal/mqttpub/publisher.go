// Package mqttpub publishes retained laser status messages to an external
// MQTT broker.
package mqttpub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

// Publisher maintains one auto-reconnecting broker connection and publishes
// JSON payloads to a fixed topic.
type Publisher struct {
	cm    *autopaho.ConnectionManager
	topic string
}

// Connect dials the broker and waits for the connection to come up. The
// clientID must be unique on the broker.
func Connect(ctx context.Context, brokerURL, clientID, topic string) (*Publisher, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid mqtt broker url %q: %w", brokerURL, err)
	}

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{u},
		KeepAlive:                     20,
		CleanStartOnInitialConnection: false,
		SessionExpiryInterval:         60,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
			log.Printf("mqtt connection up (broker %s)", u.Host)
		},
		OnConnectError: func(err error) {
			log.Printf("mqtt connection error: %v", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: clientID,
			OnClientError: func(err error) {
				log.Printf("mqtt client error: %v", err)
			},
		},
	}

	cm, err := autopaho.NewConnection(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := cm.AwaitConnection(ctx); err != nil {
		return nil, err
	}

	return &Publisher{cm: cm, topic: topic}, nil
}

// Publish sends payload as a retained QoS 1 JSON message.
func (p *Publisher) Publish(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal mqtt payload: %w", err)
	}

	_, err = p.cm.Publish(ctx, &paho.Publish{
		QoS:     1,
		Retain:  true,
		Topic:   p.topic,
		Payload: body,
	})
	return err
}

// Close disconnects from the broker.
func (p *Publisher) Close(ctx context.Context) error {
	return p.cm.Disconnect(ctx)
}
