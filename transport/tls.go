package transport

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

// TLSMode selects transport security for the broker connection.
type TLSMode string

const (
	TLSDisabled   TLSMode = "disabled"
	TLSVerifyPeer TLSMode = "verify-peer"
	TLSVerifyNone TLSMode = "verify-none"
)

var (
	ErrInvalidTLSMode     = errors.New("transport: invalid tls mode")
	ErrTLSCAFileRequired  = errors.New("transport: tls ca file required")
	ErrCertificateRevoked = errors.New("transport: peer certificate revoked")
)

// TLSOptions describe the transport security configuration supplied at
// connect time. Read-only for the life of a session.
type TLSOptions struct {
	Mode       TLSMode
	CAFile     string
	CRLFile    string // optional revocation list, checked during verify-peer handshakes
	ServerName string
}

func NormalizeTLSMode(mode TLSMode) TLSMode {
	if strings.TrimSpace(string(mode)) == "" {
		return TLSDisabled
	}
	return TLSMode(strings.ToLower(strings.TrimSpace(string(mode))))
}

// BuildTLSConfig turns opts into a *tls.Config, or nil when mode is disabled.
// Any non-disabled mode without a CA file returns ErrTLSCAFileRequired; the
// caller decides whether that is fatal.
func BuildTLSConfig(opts TLSOptions) (*tls.Config, error) {
	mode := NormalizeTLSMode(opts.Mode)
	switch mode {
	case TLSDisabled:
		return nil, nil
	case TLSVerifyPeer, TLSVerifyNone:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidTLSMode, opts.Mode)
	}

	caFile := strings.TrimSpace(opts.CAFile)
	if caFile == "" {
		return nil, ErrTLSCAFileRequired
	}

	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         strings.TrimSpace(opts.ServerName),
		InsecureSkipVerify: mode == TLSVerifyNone,
	}

	caPEM, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("transport: read tls ca bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(caPEM); !ok {
		return nil, fmt.Errorf("transport: parse tls ca bundle: %s", caFile)
	}
	cfg.RootCAs = pool

	if crlFile := strings.TrimSpace(opts.CRLFile); crlFile != "" {
		crl, err := loadCRL(crlFile)
		if err != nil {
			return nil, err
		}
		cfg.VerifyPeerCertificate = revocationCheck(crl)
	}

	return cfg, nil
}

func loadCRL(path string) (*x509.RevocationList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("transport: read crl: %w", err)
	}
	if block, _ := pem.Decode(data); block != nil {
		data = block.Bytes
	}
	crl, err := x509.ParseRevocationList(data)
	if err != nil {
		return nil, fmt.Errorf("transport: parse crl %s: %w", path, err)
	}
	return crl, nil
}

func revocationCheck(crl *x509.RevocationList) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		for _, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return fmt.Errorf("transport: parse peer certificate: %w", err)
			}
			for _, entry := range crl.RevokedCertificateEntries {
				if cert.SerialNumber.Cmp(entry.SerialNumber) == 0 {
					return fmt.Errorf("%w: serial=%s", ErrCertificateRevoked, cert.SerialNumber)
				}
			}
		}
		return nil
	}
}
