package session

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/busrpc/envelope"
	"github.com/danmuck/busrpc/internal/testutil/bustest"
	"github.com/danmuck/busrpc/internal/testutil/testlog"
	"github.com/danmuck/busrpc/internal/testutil/tlstest"
	"github.com/danmuck/busrpc/transport"
)

type staticCreds string

func (c staticCreds) BusPassword() (string, error) { return string(c), nil }

type failingCreds struct{}

func (failingCreds) BusPassword() (string, error) {
	return "", errors.New("vault sealed")
}

func testConfig(f *bustest.Fake) Config {
	return Config{
		Host:   "127.0.0.1",
		Dialer: f.Dialer(),
	}
}

func mustConnect(t *testing.T, f *bustest.Fake) *Session {
	t.Helper()
	s, err := Connect(testConfig(f), staticCreds("hunter2"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	return s
}

func TestConnectEstablishesSession(t *testing.T) {
	testlog.Start(t)
	f := bustest.New()

	s := mustConnect(t, f)

	if s.ID() == "" {
		t.Fatalf("expected non-empty session id")
	}
	if !strings.Contains(s.ReplyAddress(), s.ID()) {
		t.Fatalf("reply address %q does not contain id %q", s.ReplyAddress(), s.ID())
	}
	if !f.Subscribed(s.ReplyAddress()) {
		t.Fatalf("reply address not subscribed")
	}

	opts, ok := f.DialedOptions()
	if !ok {
		t.Fatalf("dialer never invoked")
	}
	if opts.Username != InternalUsername {
		t.Fatalf("username = %q, want internal service identity", opts.Username)
	}
	if opts.Password != "hunter2" {
		t.Fatalf("password = %q", opts.Password)
	}
	if opts.BrokerAddr != "127.0.0.1:1883" {
		t.Fatalf("broker addr = %q", opts.BrokerAddr)
	}
	if opts.TLS != nil {
		t.Fatalf("expected plaintext by default")
	}
}

func TestConnectDistinctSessions(t *testing.T) {
	testlog.Start(t)

	s1 := mustConnect(t, bustest.New())
	s2 := mustConnect(t, bustest.New())

	if s1.ID() == s2.ID() {
		t.Fatalf("sequential connects share id %q", s1.ID())
	}
	if s1.ReplyAddress() == s2.ReplyAddress() {
		t.Fatalf("sequential connects share reply address %q", s1.ReplyAddress())
	}
}

func TestConnectTimeout(t *testing.T) {
	testlog.Start(t)
	f := bustest.New()
	f.NeverConnect = true

	cfg := testConfig(f)
	cfg.ConnectTimeout = 100 * time.Millisecond

	start := time.Now()
	_, err := Connect(cfg, staticCreds("x"))
	elapsed := time.Since(start)

	if !errors.Is(err, ErrConnectTimeout) {
		t.Fatalf("expected ErrConnectTimeout, got %v", err)
	}
	if elapsed < 100*time.Millisecond {
		t.Fatalf("returned before timeout elapsed: %s", elapsed)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("timeout took far too long: %s", elapsed)
	}
}

func TestConnectTLSDegradedWithoutCA(t *testing.T) {
	testlog.Start(t)

	for _, mode := range []transport.TLSMode{transport.TLSVerifyPeer, transport.TLSVerifyNone} {
		t.Run(string(mode), func(t *testing.T) {
			f := bustest.New()
			cfg := testConfig(f)
			cfg.TLS.Mode = mode // no CA file supplied

			s, err := Connect(cfg, staticCreds("x"))
			if err != nil {
				t.Fatalf("degraded connect must not fail: %v", err)
			}
			if s == nil {
				t.Fatalf("expected a working session")
			}
			opts, _ := f.DialedOptions()
			if opts.TLS != nil {
				t.Fatalf("degraded mode must connect without tls, got %+v", opts.TLS)
			}
		})
	}
}

func TestConnectTLSVerifyNone(t *testing.T) {
	testlog.Start(t)
	f := bustest.New()
	ca := tlstest.NewAuthority(t, t.TempDir(), "busrpc-test-ca")

	cfg := testConfig(f)
	cfg.TLS.Mode = transport.TLSVerifyNone
	cfg.TLS.CAFile = ca.CAFile()

	if _, err := Connect(cfg, staticCreds("x")); err != nil {
		t.Fatalf("connect: %v", err)
	}
	opts, _ := f.DialedOptions()
	if opts.TLS == nil || !opts.TLS.InsecureSkipVerify {
		t.Fatalf("verify-none must produce a skip-verify tls config")
	}
}

func TestConnectInvalidPort(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig(bustest.New())
	cfg.Port = -4

	if _, err := Connect(cfg, staticCreds("x")); !errors.Is(err, ErrInvalidPort) {
		t.Fatalf("expected ErrInvalidPort, got %v", err)
	}
}

func TestConnectCredentialFailure(t *testing.T) {
	testlog.Start(t)

	if _, err := Connect(testConfig(bustest.New()), failingCreds{}); !errors.Is(err, ErrCredentials) {
		t.Fatalf("expected ErrCredentials, got %v", err)
	}
}

func TestDisconnectInvalidatesSession(t *testing.T) {
	testlog.Start(t)
	f := bustest.New()
	s := mustConnect(t, f)

	if err := s.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if f.Connected() {
		t.Fatalf("transport still connected after disconnect")
	}
	if err := s.Disconnect(); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("second disconnect: expected ErrSessionClosed, got %v", err)
	}
	if err := s.Subscribe("t"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("subscribe after disconnect: %v", err)
	}
	if err := s.Cast("t", "op", nil); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("cast after disconnect: %v", err)
	}
	if _, err := s.Call("t", "op", nil, time.Second); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("call after disconnect: %v", err)
	}
}

func TestSubscribeDelivery(t *testing.T) {
	testlog.Start(t)
	f := bustest.New()
	s := mustConnect(t, f)

	if err := s.Subscribe("metrics/agg"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if !f.Deliver("metrics/agg", []byte(`{"cpu":42}`)) {
		t.Fatalf("no handler registered for topic")
	}

	select {
	case d := <-s.Inbound():
		if d.Topic != "metrics/agg" {
			t.Fatalf("topic = %q", d.Topic)
		}
		if !bytes.Equal(d.Payload, []byte(`{"cpu":42}`)) {
			t.Fatalf("payload = %q", d.Payload)
		}
	case <-time.After(time.Second):
		t.Fatalf("inbound delivery never arrived")
	}

	if err := s.Unsubscribe("metrics/agg"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if f.Deliver("metrics/agg", []byte("late")) {
		t.Fatalf("handler survived unsubscribe")
	}
}

func TestPublishSizeWarningIsAdvisory(t *testing.T) {
	testlog.Start(t)
	f := bustest.New()
	s := mustConnect(t, f)

	env := envelope.NewCast("bulk.load", envelope.Payload{
		"blob": strings.Repeat("x", 4096),
	})
	if err := s.Publish(env, "svc/bulk", PublishOptions{WarnThreshold: 64}); err != nil {
		t.Fatalf("oversize publish must stay non-fatal: %v", err)
	}
	if got := len(f.Published()); got != 1 {
		t.Fatalf("published %d messages, want 1", got)
	}
}

func TestPublishFailure(t *testing.T) {
	testlog.Start(t)
	f := bustest.New()
	s := mustConnect(t, f)
	f.PublishErr = errors.New("broker rejected")

	env := envelope.NewCast("noop", nil)
	if err := s.Publish(env, "svc/noop", PublishOptions{}); !errors.Is(err, ErrPublishFailed) {
		t.Fatalf("expected ErrPublishFailed, got %v", err)
	}
}
