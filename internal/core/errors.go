package core

// Error codes carried on room-error events. Codes cross the wire verbatim,
// the joining side matches on them to pick a recovery message.
const (
	// ErrCodeSessionExpired rejects a join addressed to a room whose host
	// has already disconnected.
	ErrCodeSessionExpired = "SESSION_EXPIRED"
	// ErrCodeBadRequest rejects a malformed envelope at the transport
	// boundary. It never originates from the hub.
	ErrCodeBadRequest = "bad_request"
)

// RelayError wraps a code and human-readable message.
type RelayError struct {
	Code    string
	Message string
}

func (e *RelayError) Error() string {
	return e.Message
}

func relayError(code, msg string) *RelayError {
	return &RelayError{Code: code, Message: msg}
}
