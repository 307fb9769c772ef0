// Package mqtt publishes live predictions to an MQTT broker.
package mqtt

import (
	"context"
	"time"
)

// DefaultTopic is the base topic when none is configured.
const DefaultTopic = "kamiai"

// Client is the broker connection used by Publisher.
type Client interface {
	// Connect dials the broker. Attempts closer together than the reconnect
	// cooldown fail without dialing.
	Connect(ctx context.Context) error
	// Publish sends payload to topic at QoS 0, or returns ErrNotConnected.
	Publish(ctx context.Context, topic string, payload []byte) error
	IsConnected() bool
	Disconnect()
}

// Config holds broker settings. Zero durations take the DefaultConfig values.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // base topic, predictions go to <Topic>/prediction
	Retain   bool

	ReconnectCooldown time.Duration
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// DefaultConfig returns the settings used for unset fields.
func DefaultConfig() Config {
	return Config{
		Topic:             DefaultTopic,
		ReconnectCooldown: 5 * time.Second,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Topic == "" {
		c.Topic = def.Topic
	}
	for _, d := range []struct{ v, fallback *time.Duration }{
		{&c.ReconnectCooldown, &def.ReconnectCooldown},
		{&c.ConnectTimeout, &def.ConnectTimeout},
		{&c.PublishTimeout, &def.PublishTimeout},
		{&c.DisconnectTimeout, &def.DisconnectTimeout},
	} {
		if *d.v <= 0 {
			*d.v = *d.fallback
		}
	}
	return c
}
