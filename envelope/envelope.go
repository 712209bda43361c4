// Package envelope owns the wire contract for bus messages.
//
// Ownership boundary:
// - the three envelope kinds (call, cast, reply)
// - encode/decode to the JSON wire format
// - structural validation of outbound envelopes
package envelope

// Kind discriminates the envelope kinds on the wire.
type Kind string

const (
	KindCall  Kind = "call"
	KindCast  Kind = "cast"
	KindReply Kind = "reply"
)

// Payload is opaque keyed request/response data. The bus never inspects it.
type Payload map[string]any

// Envelope is one bus message. Constructed fresh per call/cast/reply,
// never shared across sessions.
type Envelope struct {
	Kind     Kind
	ReplyTo  string // call only: the requester's private reply address
	Endpoint string // call/cast: logical operation name
	Payload  Payload
	Err      string // reply only: remote error indicator
}

// NewCall builds a request envelope expecting one correlated reply on replyTo.
func NewCall(replyTo, endpoint string, payload Payload) Envelope {
	return Envelope{
		Kind:     KindCall,
		ReplyTo:  replyTo,
		Endpoint: endpoint,
		Payload:  payload,
	}
}

// NewCast builds a one-way request envelope. No reply address, no reply.
func NewCast(endpoint string, payload Payload) Envelope {
	return Envelope{
		Kind:     KindCast,
		Endpoint: endpoint,
		Payload:  payload,
	}
}

// NewReply builds a success reply envelope.
func NewReply(payload Payload) Envelope {
	return Envelope{
		Kind:    KindReply,
		Payload: payload,
	}
}

// NewErrorReply builds a reply envelope carrying a remote error indicator.
func NewErrorReply(message string) Envelope {
	return Envelope{
		Kind: KindReply,
		Err:  message,
	}
}
