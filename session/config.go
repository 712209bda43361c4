package session

import (
	"fmt"
	"time"

	"github.com/danmuck/busrpc/transport"
)

const (
	// InternalUsername is the reserved service identity distinguishing
	// infrastructure connections from user connections on the bus.
	InternalUsername = "svc.busrpc"

	DefaultPort           = 1883
	DefaultConnectTimeout = 5 * time.Second
	DefaultCallTimeout    = 5 * time.Second
)

// CredentialSource supplies the process-wide bus password at connect time.
type CredentialSource interface {
	BusPassword() (string, error)
}

// Dialer builds the transport for a merged set of options. Tests inject
// in-memory fakes through it.
type Dialer func(transport.Options) transport.Transport

// Config is the caller-supplied connect configuration.
type Config struct {
	Host string // broker host; empty triggers mDNS discovery
	Port int

	// LogLevel adjusts process log verbosity when non-empty.
	LogLevel string

	TLS transport.TLSOptions

	// ConnectTimeout bounds the wait for the logically-connected signal.
	ConnectTimeout time.Duration

	// AckTimeout bounds every blocking publish/subscribe acknowledgment.
	AckTimeout time.Duration

	// DiscoveryService overrides the mDNS service type browsed when Host
	// is empty.
	DiscoveryService string

	Dialer Dialer
}

func (c Config) WithDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Dialer == nil {
		c.Dialer = func(opts transport.Options) transport.Transport {
			return transport.NewMQTT(opts)
		}
	}
	return c
}

func (c Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	return nil
}
