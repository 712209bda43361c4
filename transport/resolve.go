package transport

import (
	"context"
	"fmt"
	"net"
	"strings"
)

// ResolveHost resolves a textual host to a dialable address. Literal IPs
// pass through untouched.
func ResolveHost(ctx context.Context, host string) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", ErrHostRequired
	}
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}
	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return "", fmt.Errorf("transport: resolve %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("transport: resolve %q: no addresses", host)
	}
	return addrs[0], nil
}
