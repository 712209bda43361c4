package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

const defaultAckTimeout = 10 * time.Second

// disconnect quiesce window, milliseconds
const disconnectQuiesceMS = 250

// Options configures the MQTT transport for one session.
type Options struct {
	BrokerAddr string // resolved host:port
	ClientID   string
	Username   string
	Password   string
	TLS        *tls.Config // nil for plaintext
	AckTimeout time.Duration
}

func (o Options) WithDefaults() Options {
	if o.AckTimeout <= 0 {
		o.AckTimeout = defaultAckTimeout
	}
	return o
}

// MQTT is the production Transport on the paho MQTT client.
type MQTT struct {
	client     mqtt.Client
	ackTimeout time.Duration
}

var _ Transport = (*MQTT)(nil)

// NewMQTT builds an unconnected MQTT transport.
func NewMQTT(opts Options) *MQTT {
	opts = opts.WithDefaults()
	return &MQTT{
		client:     mqtt.NewClient(newClientOptions(opts)),
		ackTimeout: opts.AckTimeout,
	}
}

func newClientOptions(opts Options) *mqtt.ClientOptions {
	scheme := "tcp"
	if opts.TLS != nil {
		scheme = "ssl"
	}
	// Clean session stays off and subscriptions are resumed so the reply
	// subscription survives a broker reconnect.
	co := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s", scheme, opts.BrokerAddr)).
		SetClientID(opts.ClientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetCleanSession(false).
		SetResumeSubs(true).
		SetAutoReconnect(true).
		SetOrderMatters(false)
	if opts.TLS != nil {
		co.SetTLSConfig(opts.TLS)
	}
	co.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Str("broker", opts.BrokerAddr).Err(err).Msg("transport connection lost")
	})
	return co
}

func (m *MQTT) Connect(ctx context.Context, timeout time.Duration) error {
	tok := m.client.Connect()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			return fmt.Errorf("transport: connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("transport: connect: %w", ctx.Err())
	case <-timer.C:
		return ErrConnectTimeout
	}
}

func (m *MQTT) Publish(topic string, qos byte, payload []byte) error {
	tok := m.client.Publish(topic, qos, false, payload)
	if !tok.WaitTimeout(m.ackTimeout) {
		return fmt.Errorf("%w: publish %q", ErrAckTimeout, topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("transport: publish %q: %w", topic, err)
	}
	return nil
}

func (m *MQTT) Subscribe(topic string, qos byte, fn Handler) error {
	tok := m.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		fn(msg.Topic(), msg.Payload())
	})
	if !tok.WaitTimeout(m.ackTimeout) {
		return fmt.Errorf("%w: subscribe %q", ErrAckTimeout, topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("transport: subscribe %q: %w", topic, err)
	}
	return nil
}

func (m *MQTT) Unsubscribe(topic string) error {
	tok := m.client.Unsubscribe(topic)
	if !tok.WaitTimeout(m.ackTimeout) {
		return fmt.Errorf("%w: unsubscribe %q", ErrAckTimeout, topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("transport: unsubscribe %q: %w", topic, err)
	}
	return nil
}

func (m *MQTT) Disconnect() {
	m.client.Disconnect(disconnectQuiesceMS)
}
