package session

import "errors"

var (
	ErrConnectTimeout     = errors.New("session: connect refused, no connection within timeout")
	ErrCallTimeout        = errors.New("session: call timeout")
	ErrPublishFailed      = errors.New("session: publish failed")
	ErrSessionClosed      = errors.New("session: closed")
	ErrRemote             = errors.New("session: remote error reply")
	ErrUnexpectedEnvelope = errors.New("session: unexpected envelope on reply address")
	ErrInvalidPort        = errors.New("session: invalid port")
	ErrCredentials        = errors.New("session: credentials unavailable")
)
