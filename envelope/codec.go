package envelope

import (
	"encoding/json"
	"fmt"
	"strings"
)

type wire struct {
	Type     string  `json:"type"`
	ReplyTo  string  `json:"reply_to,omitempty"`
	Endpoint string  `json:"endpoint,omitempty"`
	Payload  Payload `json:"payload,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// Encode validates env and writes it in the wire format.
func Encode(env Envelope) ([]byte, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(wire{
		Type:     string(env.Kind),
		ReplyTo:  env.ReplyTo,
		Endpoint: env.Endpoint,
		Payload:  env.Payload,
		Error:    env.Err,
	})
	if err != nil {
		return nil, fmt.Errorf("envelope: encode: %w", err)
	}
	return data, nil
}

// Decode parses one wire message back into an Envelope.
func Decode(data []byte) (Envelope, error) {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	env := Envelope{
		Kind:     Kind(w.Type),
		ReplyTo:  w.ReplyTo,
		Endpoint: w.Endpoint,
		Payload:  w.Payload,
		Err:      w.Error,
	}
	switch env.Kind {
	case KindCall, KindCast, KindReply:
	default:
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownKind, w.Type)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Validate checks the structural rules for env's kind.
func (e Envelope) Validate() error {
	switch e.Kind {
	case KindCall:
		if strings.TrimSpace(e.ReplyTo) == "" {
			return ErrMissingReplyTo
		}
		if strings.TrimSpace(e.Endpoint) == "" {
			return ErrMissingEndpoint
		}
	case KindCast:
		if strings.TrimSpace(e.Endpoint) == "" {
			return ErrMissingEndpoint
		}
	case KindReply:
		if e.Payload == nil && strings.TrimSpace(e.Err) == "" {
			return ErrEmptyReply
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	return nil
}
