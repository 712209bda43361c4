// Package session implements the connection object for the bus: a validated
// transport session with a private reply channel and the synchronous
// call/cast protocol on top of asynchronous publish/subscribe.
package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/busrpc/discovery"
	"github.com/danmuck/busrpc/envelope"
	"github.com/danmuck/busrpc/logging"
	"github.com/danmuck/busrpc/transport"
)

// replyPrefix roots every session's private reply address.
const replyPrefix = "reply"

const (
	replyMailboxDepth = 16
	inboundDepth      = 64
)

// Delivery is one message received on an explicitly subscribed topic.
type Delivery struct {
	Topic   string
	Payload []byte
}

// Session is one live connection to the message bus. It exclusively owns
// its transport handle and its reply address registration. The reply
// address is subscribed exactly once, at construction, and stays
// subscribed for the session's entire lifetime.
type Session struct {
	id        string
	replyAddr string
	tr        transport.Transport

	// mailbox queues raw replies arriving on the private reply address
	mailbox chan []byte
	inbound chan Delivery

	// callMu serializes calls; overlapping calls on one session would
	// compete for the same reply address
	callMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

// Connect establishes and validates a transport session. It resolves the
// broker host (browsing mDNS when none is configured), merges the internal
// service identity with the provider-sourced password, builds transport
// security options, starts the transport, and blocks until the transport
// reports a logically-connected state or cfg.ConnectTimeout elapses.
// Each call produces an independent session with a distinct reply address.
func Connect(cfg Config, creds CredentialSource) (*Session, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if lvl, ok := logging.ParseLevel(cfg.LogLevel); ok {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	host := strings.TrimSpace(cfg.Host)
	port := cfg.Port
	if host == "" {
		broker, err := discovery.Browse(ctx, cfg.DiscoveryService)
		if err != nil {
			return nil, fmt.Errorf("session: locate broker: %w", err)
		}
		log.Info().Str("name", broker.Name).Str("host", broker.Host).Int("port", broker.Port).
			Msg("using discovered broker")
		host, port = broker.Host, broker.Port
	}

	addr, err := transport.ResolveHost(ctx, host)
	if err != nil {
		return nil, err
	}

	password, err := creds.BusPassword()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentials, err)
	}

	tlsOpts := cfg.TLS
	if tlsOpts.ServerName == "" {
		tlsOpts.ServerName = host
	}
	tlsCfg, err := transport.BuildTLSConfig(tlsOpts)
	if err != nil {
		if !errors.Is(err, transport.ErrTLSCAFileRequired) {
			return nil, err
		}
		// Degraded mode: TLS requested without a CA certificate. The
		// connection proceeds in plaintext rather than failing.
		log.Error().Str("tls_mode", string(tlsOpts.Mode)).
			Msg("tls requested without ca certificate, connecting without tls")
		tlsCfg = nil
	}

	id := uuid.NewString()
	tr := cfg.Dialer(transport.Options{
		BrokerAddr: net.JoinHostPort(addr, strconv.Itoa(port)),
		ClientID:   "busrpc-" + id,
		Username:   InternalUsername,
		Password:   password,
		TLS:        tlsCfg,
		AckTimeout: cfg.AckTimeout,
	})
	// The connect timeout bounds the wait for the connected signal itself,
	// not the resolution steps above, so the transport gets a fresh context.
	if err := tr.Connect(context.Background(), cfg.ConnectTimeout); err != nil {
		if errors.Is(err, transport.ErrConnectTimeout) {
			return nil, ErrConnectTimeout
		}
		return nil, fmt.Errorf("session: connect: %w", err)
	}

	s := &Session{
		id:        id,
		replyAddr: replyPrefix + "/" + id,
		tr:        tr,
		mailbox:   make(chan []byte, replyMailboxDepth),
		inbound:   make(chan Delivery, inboundDepth),
	}
	if err := tr.Subscribe(s.replyAddr, transport.QoSAtLeastOnce, s.deliverReply); err != nil {
		tr.Disconnect()
		return nil, fmt.Errorf("session: subscribe reply address: %w", err)
	}
	log.Debug().Str("session_id", s.id).Str("reply_addr", s.replyAddr).Msg("session established")
	return s, nil
}

// ID returns the session identifier generated at connect time.
func (s *Session) ID() string {
	return s.id
}

// ReplyAddress returns the session's private reply address.
func (s *Session) ReplyAddress() string {
	return s.replyAddr
}

// Subscribe registers topic at the at-least-once guarantee and blocks until
// the transport confirms the subscription. Messages arrive on Inbound.
func (s *Session) Subscribe(topic string) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	return s.tr.Subscribe(topic, transport.QoSAtLeastOnce, s.deliverInbound)
}

// Unsubscribe removes a topic subscription.
func (s *Session) Unsubscribe(topic string) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	return s.tr.Unsubscribe(topic)
}

// Inbound exposes messages delivered on explicitly subscribed topics. The
// private reply address never feeds this channel.
func (s *Session) Inbound() <-chan Delivery {
	return s.inbound
}

// PublishOptions tune a single publish.
type PublishOptions struct {
	// WarnThreshold emits an advisory log warning when the encoded message
	// exceeds this many bytes. Zero disables the check. Never blocks the
	// publish.
	WarnThreshold int
}

// Publish encodes env and publishes it to topic at the at-least-once
// guarantee, blocking for the transport acknowledgment.
func (s *Session) Publish(env envelope.Envelope, topic string, opts PublishOptions) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	data, err := envelope.Encode(env)
	if err != nil {
		return err
	}
	if opts.WarnThreshold > 0 && len(data) > opts.WarnThreshold {
		log.Warn().Str("topic", topic).Int("size", len(data)).Int("threshold", opts.WarnThreshold).
			Msg("encoded message exceeds size threshold")
	}
	if err := s.tr.Publish(topic, transport.QoSAtLeastOnce, data); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Disconnect tears down the transport connection. Every later operation on
// the session fails with ErrSessionClosed.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true
	s.tr.Disconnect()
	log.Debug().Str("session_id", s.id).Msg("session disconnected")
	return nil
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) deliverReply(topic string, payload []byte) {
	select {
	case s.mailbox <- payload:
	default:
		log.Warn().Str("topic", topic).Msg("reply mailbox full, dropping message")
	}
}

func (s *Session) deliverInbound(topic string, payload []byte) {
	select {
	case s.inbound <- Delivery{Topic: topic, Payload: payload}:
	default:
		log.Warn().Str("topic", topic).Msg("inbound channel full, dropping message")
	}
}
