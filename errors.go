package rtm

import (
	"errors"
	"fmt"
)

var (
	// ErrChannelNotFound is returned when a #name destination matches no
	// known channel.
	ErrChannelNotFound = errors.New("rtm: channel not found")

	// ErrDeliveryFailed is returned when no direct channel could be found
	// or opened for an @name destination.
	ErrDeliveryFailed = errors.New("rtm: delivery failed")

	// ErrClientClosed is the close reason after Client.Close.
	ErrClientClosed = errors.New("rtm: client closed")

	ErrAlreadyStarted = errors.New("rtm: client already started")
	ErrNotConnected   = errors.New("rtm: not connected")
)

// HandshakeErrorKind classifies why the session bootstrap failed.
type HandshakeErrorKind int

const (
	HandshakeOther HandshakeErrorKind = iota
	HandshakeTimeout
	HandshakeNXDomain
)

func (k HandshakeErrorKind) String() string {
	switch k {
	case HandshakeTimeout:
		return "timeout"
	case HandshakeNXDomain:
		return "nxdomain"
	}
	return "other"
}

// HandshakeError is returned from Client.Run when the bootstrap call fails.
// The client never reaches StateConnected in that case.
type HandshakeError struct {
	Kind HandshakeErrorKind
	Err  error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("rtm: handshake failed (%s): %v", e.Kind, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// APIError is an "ok": false response from the web API. Callers can use
// errors.As to get at the code:
//
//	var apiErr *APIError
//	if errors.As(err, &apiErr) && apiErr.Code == "invalid_auth" { ... }
type APIError struct {
	Method string
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rtm: %s: %s", e.Method, e.Code)
}

// IsAPIError checks whether err is an *APIError with the given code.
func IsAPIError(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// DecodeError is handed to Handler.OnInfo when an inbound frame cannot be
// parsed. The frame is dropped and the connection carries on.
type DecodeError struct {
	Raw []byte
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("rtm: undecodable frame (%d bytes): %v", len(e.Raw), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// CloseError reports a close frame received from the server.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("rtm: connection closed by server (%d)", e.Code)
	}
	return fmt.Sprintf("rtm: connection closed by server (%d): %s", e.Code, e.Reason)
}
