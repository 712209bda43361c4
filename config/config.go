// Package config loads file-backed connect configuration and supplies
// process-wide credentials to session.Connect.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/danmuck/busrpc/session"
	"github.com/danmuck/busrpc/transport"
)

var (
	ErrInvalidTLSMode = errors.New("config: invalid tls_mode")
	ErrInvalidPort    = errors.New("config: invalid port")
)

// BusConfig mirrors the TOML connect configuration document.
type BusConfig struct {
	Host             string `toml:"host"`
	Port             int    `toml:"port"`
	LogLevel         string `toml:"log_level"`
	TLSMode          string `toml:"tls_mode"`
	TLSCACert        string `toml:"tls_ca_cert"`
	TLSCRLFile       string `toml:"tls_crl_file"`
	ConnectTimeoutMS int    `toml:"connect_timeout_ms"`
	AckTimeoutMS     int    `toml:"ack_timeout_ms"`
	DiscoveryService string `toml:"discovery_service"`
}

// LoadBusConfig reads, defaults, and validates a TOML config file.
func LoadBusConfig(path string) (BusConfig, error) {
	var cfg BusConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return BusConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return BusConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if cfg.Port == 0 {
		cfg.Port = session.DefaultPort
	}
	if cfg.ConnectTimeoutMS == 0 {
		cfg.ConnectTimeoutMS = int(session.DefaultConnectTimeout / time.Millisecond)
	}
	if err := ValidateBusConfig(cfg); err != nil {
		return BusConfig{}, err
	}
	return cfg, nil
}

func ValidateBusConfig(cfg BusConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, cfg.Port)
	}
	switch transport.NormalizeTLSMode(transport.TLSMode(cfg.TLSMode)) {
	case transport.TLSDisabled, transport.TLSVerifyPeer, transport.TLSVerifyNone:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTLSMode, cfg.TLSMode)
	}
	return nil
}

// SessionConfig converts the file document into connect options.
func (c BusConfig) SessionConfig() session.Config {
	return session.Config{
		Host:     c.Host,
		Port:     c.Port,
		LogLevel: c.LogLevel,
		TLS: transport.TLSOptions{
			Mode:    transport.TLSMode(c.TLSMode),
			CAFile:  c.TLSCACert,
			CRLFile: c.TLSCRLFile,
		},
		ConnectTimeout:   time.Duration(c.ConnectTimeoutMS) * time.Millisecond,
		AckTimeout:       time.Duration(c.AckTimeoutMS) * time.Millisecond,
		DiscoveryService: c.DiscoveryService,
	}
}
