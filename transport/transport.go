// Package transport owns the pub/sub client surface the session layer
// depends on, plus transport security and address resolution.
package transport

import (
	"context"
	"errors"
	"time"
)

// QoSAtLeastOnce is the delivery guarantee used for every bus operation:
// at-least-once, sender blocks for acknowledgment.
const QoSAtLeastOnce byte = 1

var (
	ErrConnectTimeout = errors.New("transport: connect timeout")
	ErrAckTimeout     = errors.New("transport: acknowledgment timeout")
	ErrHostRequired   = errors.New("transport: host required")
)

// Handler receives one message delivered on a subscribed topic.
type Handler func(topic string, payload []byte)

// Transport is the thin adapter over the pub/sub client. Exclusively owned
// by one session; released on Disconnect.
type Transport interface {
	// Connect starts the client and blocks until the transport reports a
	// logically-connected state, ctx is done, or timeout elapses.
	Connect(ctx context.Context, timeout time.Duration) error

	// Publish sends payload to topic and blocks for the transport
	// acknowledgment. The blocking ack is the system's backpressure.
	Publish(topic string, qos byte, payload []byte) error

	// Subscribe registers fn for topic and blocks until the transport
	// confirms the subscription.
	Subscribe(topic string, qos byte, fn Handler) error

	Unsubscribe(topic string) error

	Disconnect()
}
