package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"battery_dashboard/internal/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Message is one outgoing broker publication.
type Message struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// Publisher delivers messages to a broker.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// MQTTConfig holds the broker connection settings.
type MQTTConfig struct {
	Broker   string // e.g. tcp://127.0.0.1:1883
	ClientID string
	Username string
	Password string
	// ConnectTimeout bounds the initial connection attempt.
	ConnectTimeout time.Duration
}

// MQTTPublisher publishes over a paho client that reconnects on its own.
type MQTTPublisher struct {
	client mqtt.Client
	log    *logger.Logger
}

var errConnectTimeout = errors.New("mqtt connect timed out")

// DialMQTT connects to the broker. The client keeps retrying in the
// background after the first successful connection.
func DialMQTT(cfg MQTTConfig, log *logger.Logger) (*MQTTPublisher, error) {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warnw("mqtt_connection_lost", "err", err)
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Infow("mqtt_connected", "broker", cfg.Broker)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("%w: %s", errConnectTimeout, cfg.Broker)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	return &MQTTPublisher{client: client, log: log}, nil
}

// Publish waits for the broker acknowledgement or ctx.
func (p *MQTTPublisher) Publish(ctx context.Context, msg Message) error {
	token := p.client.Publish(msg.Topic, msg.QoS, msg.Retain, msg.Payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects, allowing in-flight work a short grace period.
func (p *MQTTPublisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
		p.log.Infow("mqtt_disconnected")
	}
}
