// Package discovery locates a bus broker on the local network via mDNS.
// It is consulted only when no broker host is configured.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog/log"
)

// DefaultService is the DNS-SD service type brokers advertise under.
const DefaultService = "_mqtt._tcp"

const defaultBrowseTimeout = 2 * time.Second

var ErrNoBrokerFound = errors.New("discovery: no broker found")

// Broker describes one discovered bus broker.
type Broker struct {
	Name string
	Host string
	Port int
}

// Browse queries the local network once and returns the first advertised
// broker. The query window is bounded by ctx's deadline when one is set.
func Browse(ctx context.Context, service string) (Broker, error) {
	if err := ctx.Err(); err != nil {
		return Broker{}, err
	}
	if strings.TrimSpace(service) == "" {
		service = DefaultService
	}

	timeout := defaultBrowseTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return Broker{}, context.DeadlineExceeded
	}

	entries := make(chan *mdns.ServiceEntry, 8)
	found := make(chan Broker, 1)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for entry := range entries {
			if entry.AddrV4 == nil {
				continue
			}
			log.Debug().
				Str("name", entry.Name).
				Str("host", entry.AddrV4.String()).
				Int("port", entry.Port).
				Msg("discovered broker")
			select {
			case found <- Broker{Name: entry.Name, Host: entry.AddrV4.String(), Port: entry.Port}:
			default:
			}
		}
	}()

	params := &mdns.QueryParam{
		Service: service,
		Domain:  "local",
		Timeout: timeout,
		Entries: entries,
	}
	err := mdns.Query(params)
	close(entries)
	<-drained
	if err != nil {
		return Broker{}, fmt.Errorf("discovery: mdns query: %w", err)
	}

	select {
	case broker := <-found:
		return broker, nil
	default:
		return Broker{}, fmt.Errorf("%w: service %q", ErrNoBrokerFound, service)
	}
}
