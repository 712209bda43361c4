// Package bustest provides an in-memory Transport fake for session tests:
// scriptable acknowledgments, recorded publishes, and loopback responders.
package bustest

import (
	"context"
	"sync"
	"time"

	"github.com/danmuck/busrpc/envelope"
	"github.com/danmuck/busrpc/transport"
)

// Publication records one acknowledged publish.
type Publication struct {
	Topic   string
	QoS     byte
	Payload []byte
}

// Fake implements transport.Transport in memory.
type Fake struct {
	// NeverConnect makes Connect block until the timeout elapses.
	NeverConnect bool
	// ConnectErr fails Connect immediately.
	ConnectErr error
	// PublishErr fails every Publish.
	PublishErr error

	mu        sync.Mutex
	connected bool
	opts      transport.Options
	optsSet   bool
	subs      map[string]transport.Handler
	published []Publication
	onPublish func(Publication)
}

var _ transport.Transport = (*Fake)(nil)

func New() *Fake {
	return &Fake{subs: make(map[string]transport.Handler)}
}

// Dialer returns a dial function handing out this fake and recording the
// options the session merged.
func (f *Fake) Dialer() func(transport.Options) transport.Transport {
	return func(opts transport.Options) transport.Transport {
		f.mu.Lock()
		f.opts = opts
		f.optsSet = true
		f.mu.Unlock()
		return f
	}
}

// DialedOptions reports the options the session dialed with.
func (f *Fake) DialedOptions() (transport.Options, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opts, f.optsSet
}

func (f *Fake) Connect(ctx context.Context, timeout time.Duration) error {
	if f.NeverConnect {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return transport.ErrConnectTimeout
		}
	}
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *Fake) Publish(topic string, qos byte, payload []byte) error {
	if f.PublishErr != nil {
		return f.PublishErr
	}
	p := Publication{Topic: topic, QoS: qos, Payload: append([]byte(nil), payload...)}
	f.mu.Lock()
	f.published = append(f.published, p)
	hook := f.onPublish
	f.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return nil
}

func (f *Fake) Subscribe(topic string, _ byte, fn transport.Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[topic] = fn
	return nil
}

func (f *Fake) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, topic)
	return nil
}

func (f *Fake) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

// Connected reports whether Connect succeeded and Disconnect has not run.
func (f *Fake) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Subscribed reports whether topic currently has a handler.
func (f *Fake) Subscribed(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.subs[topic]
	return ok
}

// Published returns a copy of all acknowledged publishes.
func (f *Fake) Published() []Publication {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Publication, len(f.published))
	copy(out, f.published)
	return out
}

// Deliver simulates the broker delivering payload on topic. It reports
// whether a subscription consumed the message.
func (f *Fake) Deliver(topic string, payload []byte) bool {
	f.mu.Lock()
	fn, ok := f.subs[topic]
	f.mu.Unlock()
	if !ok {
		return false
	}
	fn(topic, payload)
	return true
}

// OnPublish installs a hook invoked after each acknowledged publish.
func (f *Fake) OnPublish(hook func(Publication)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onPublish = hook
}

// RespondOn answers every call envelope published to routingTopic: respond
// produces the reply payload (or an error turned into an error reply), and
// the reply is delivered to the call's reply address.
func (f *Fake) RespondOn(routingTopic string, respond func(env envelope.Envelope) (envelope.Payload, error)) {
	f.OnPublish(func(p Publication) {
		if p.Topic != routingTopic {
			return
		}
		env, err := envelope.Decode(p.Payload)
		if err != nil || env.Kind != envelope.KindCall {
			return
		}
		var reply envelope.Envelope
		payload, respondErr := respond(env)
		if respondErr != nil {
			reply = envelope.NewErrorReply(respondErr.Error())
		} else {
			reply = envelope.NewReply(payload)
		}
		data, err := envelope.Encode(reply)
		if err != nil {
			return
		}
		f.Deliver(env.ReplyTo, data)
	})
}
