// Package notify publishes fleet events to subscribers outside the API.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event types
const (
	EventReservationGranted = "reservation.granted"
	EventCarStatus          = "car.status"
	EventDayAdvanced        = "day.advanced"
)

// Event is a single fleet change.
type Event struct {
	Type      string    `json:"type"`
	Day       int       `json:"day"`
	PersonID  string    `json:"person_id,omitempty"`
	CarID     string    `json:"car_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers fleet events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops all events. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// MQTTPublisher sends events as JSON to <prefix>/<event type path>,
// e.g. fleet/reservation/granted.
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
	qos    byte
}

// NewMQTTPublisher connects to the broker.
func NewMQTTPublisher(broker, clientID, prefix string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, errors.New("mqtt connect timed out")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return NewMQTTPublisherWithClient(client, prefix), nil
}

// NewMQTTPublisherWithClient wraps an already configured client.
func NewMQTTPublisherWithClient(client mqtt.Client, prefix string) *MQTTPublisher {
	return &MQTTPublisher{client: client, prefix: strings.TrimSuffix(prefix, "/"), qos: 1}
}

// Topic returns the topic an event type is published on.
func (p *MQTTPublisher) Topic(eventType string) string {
	return p.prefix + "/" + strings.ReplaceAll(eventType, ".", "/")
}

// Publish sends the event and waits for the broker acknowledgement or ctx.
func (p *MQTTPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	token := p.client.Publish(p.Topic(event.Type), p.qos, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
