package session

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/busrpc/envelope"
)

// Call publishes a tagged request to routingTopic and blocks until a reply
// arrives on the session's private reply address or timeout elapses.
// Replies already queued when the call starts belong to earlier timed-out
// calls and are discarded first. A failed publish returns immediately
// without waiting. Calls on one session are serialized; there are no
// retries at this layer.
func (s *Session) Call(routingTopic, endpoint string, payload envelope.Payload, timeout time.Duration) (envelope.Payload, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	s.callMu.Lock()
	defer s.callMu.Unlock()

	s.flushStaleReplies()

	env := envelope.NewCall(s.replyAddr, endpoint, payload)
	if err := s.Publish(env, routingTopic, PublishOptions{}); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case data := <-s.mailbox:
		reply, err := envelope.Decode(data)
		if err != nil {
			return nil, err
		}
		if reply.Kind != envelope.KindReply {
			return nil, fmt.Errorf("%w: kind %q", ErrUnexpectedEnvelope, reply.Kind)
		}
		if reply.Err != "" {
			return nil, fmt.Errorf("%w: %s", ErrRemote, reply.Err)
		}
		return reply.Payload, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: endpoint %q after %s", ErrCallTimeout, endpoint, timeout)
	}
}

// Cast publishes a one-way request to routingTopic and returns the publish
// result without waiting for any reply.
func (s *Session) Cast(routingTopic, endpoint string, payload envelope.Payload) error {
	return s.Publish(envelope.NewCast(endpoint, payload), routingTopic, PublishOptions{})
}

// Reply answers a received call: it publishes a reply envelope to the
// requester's private reply address. A non-nil callErr produces an error
// reply instead of a payload.
func (s *Session) Reply(to string, payload envelope.Payload, callErr error) error {
	env := envelope.NewReply(payload)
	if callErr != nil {
		env = envelope.NewErrorReply(callErr.Error())
	}
	return s.Publish(env, to, PublishOptions{})
}

// flushStaleReplies drains whatever is already queued on the private reply
// address. It only discards what is queued at call start; a late reply
// arriving during the next wait window is not guarded against.
func (s *Session) flushStaleReplies() {
	for {
		select {
		case <-s.mailbox:
			log.Debug().Str("session_id", s.id).Msg("discarding stale reply")
		default:
			return
		}
	}
}
