package envelope

import "errors"

var (
	ErrUnknownKind     = errors.New("envelope: unknown kind")
	ErrMalformed       = errors.New("envelope: malformed data")
	ErrMissingReplyTo  = errors.New("envelope: missing reply address")
	ErrMissingEndpoint = errors.New("envelope: missing endpoint")
	ErrEmptyReply      = errors.New("envelope: reply needs payload or error")
)
