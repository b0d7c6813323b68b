package main

import (
	"errors"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// publishTimeout bounds how long a handler waits for the broker to ack.
const publishTimeout = 5 * time.Second

// mqttPublisher is a thin wrapper over the paho client.  The connection is
// retried in the background, so the board keeps running while the broker is
// unreachable.
type mqttPublisher struct {
	client mqtt.Client
}

func newMQTTPublisher(cfg MQTTConfig, board string) *mqttPublisher {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = appName + "-" + board
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		slog.Info("mqtt connected", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("mqtt connection lost", "err", err)
	})

	c := mqtt.NewClient(opts)
	// With ConnectRetry the token only completes once connected; do not wait.
	c.Connect()
	return &mqttPublisher{client: c}
}

// Publish sends payload with QoS 1.
func (p *mqttPublisher) Publish(topic string, payload []byte) error {
	tok := p.client.Publish(topic, 1, false, payload)
	if !tok.WaitTimeout(publishTimeout) {
		return errors.New("mqtt publish timed out")
	}
	return tok.Error()
}

// Close disconnects, allowing in-flight messages a short grace period.
func (p *mqttPublisher) Close() {
	p.client.Disconnect(250)
}
