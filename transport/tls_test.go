package transport

import (
	"errors"
	"testing"

	"github.com/danmuck/busrpc/internal/testutil/tlstest"
)

func TestBuildTLSConfigDisabled(t *testing.T) {
	cfg, err := BuildTLSConfig(TLSOptions{Mode: TLSDisabled})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected nil config for disabled mode")
	}

	// empty mode normalizes to disabled
	cfg, err = BuildTLSConfig(TLSOptions{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected nil config for empty mode")
	}
}

func TestBuildTLSConfigInvalidMode(t *testing.T) {
	if _, err := BuildTLSConfig(TLSOptions{Mode: "mutual"}); !errors.Is(err, ErrInvalidTLSMode) {
		t.Fatalf("expected ErrInvalidTLSMode, got %v", err)
	}
}

func TestBuildTLSConfigRequiresCA(t *testing.T) {
	for _, mode := range []TLSMode{TLSVerifyPeer, TLSVerifyNone} {
		if _, err := BuildTLSConfig(TLSOptions{Mode: mode}); !errors.Is(err, ErrTLSCAFileRequired) {
			t.Fatalf("mode %q: expected ErrTLSCAFileRequired, got %v", mode, err)
		}
	}
}

func TestBuildTLSConfigVerifyPeer(t *testing.T) {
	dir := t.TempDir()
	ca := tlstest.NewAuthority(t, dir, "busrpc-test-ca")

	cfg, err := BuildTLSConfig(TLSOptions{
		Mode:       TLSVerifyPeer,
		CAFile:     ca.CAFile(),
		ServerName: "bus.local",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if cfg.InsecureSkipVerify {
		t.Fatalf("verify-peer must not skip verification")
	}
	if cfg.RootCAs == nil {
		t.Fatalf("expected CA pool")
	}
	if cfg.ServerName != "bus.local" {
		t.Fatalf("server name = %q", cfg.ServerName)
	}
}

func TestBuildTLSConfigVerifyNone(t *testing.T) {
	dir := t.TempDir()
	ca := tlstest.NewAuthority(t, dir, "busrpc-test-ca")

	cfg, err := BuildTLSConfig(TLSOptions{Mode: TLSVerifyNone, CAFile: ca.CAFile()})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !cfg.InsecureSkipVerify {
		t.Fatalf("verify-none must skip verification")
	}
}

func TestRevocationCheck(t *testing.T) {
	dir := t.TempDir()
	ca := tlstest.NewAuthority(t, dir, "busrpc-test-ca")
	revokedDER, revokedSerial := ca.IssueLeafDER(t, "revoked.bus.local")
	okDER, _ := ca.IssueLeafDER(t, "ok.bus.local")
	crlPath := ca.WriteCRL(t, dir, revokedSerial)

	cfg, err := BuildTLSConfig(TLSOptions{
		Mode:    TLSVerifyPeer,
		CAFile:  ca.CAFile(),
		CRLFile: crlPath,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if cfg.VerifyPeerCertificate == nil {
		t.Fatalf("expected revocation callback")
	}

	if err := cfg.VerifyPeerCertificate([][]byte{okDER}, nil); err != nil {
		t.Fatalf("unrevoked cert rejected: %v", err)
	}
	if err := cfg.VerifyPeerCertificate([][]byte{revokedDER}, nil); !errors.Is(err, ErrCertificateRevoked) {
		t.Fatalf("expected ErrCertificateRevoked, got %v", err)
	}
}
