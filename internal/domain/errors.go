package domain

import (
	"errors"
	"fmt"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a transport fault. These are always recovered by
// the fixed-delay reconnect loop; the user only ever sees a status indicator
// transition.
type NetworkError struct {
	Op        string // Operation that failed (e.g., "dial", "read")
	Err       error  // Underlying error
	Retriable bool
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// maxPreviewLen bounds the raw payload excerpt attached to decode errors.
const maxPreviewLen = 120

// DecodeError represents a malformed or unexpectedly shaped message. The
// message is dropped and prior cache state is untouched; the channel keeps
// running, so decode errors are never retriable.
type DecodeError struct {
	Channel Channel
	Preview string // bounded excerpt of the offending payload
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v (payload %q)", e.Channel, e.Err, e.Preview)
}

func (e *DecodeError) IsRetriable() bool {
	return false
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NewDecodeError creates a DecodeError with a truncated payload preview.
func NewDecodeError(channel Channel, payload []byte, err error) *DecodeError {
	return &DecodeError{Channel: channel, Preview: Preview(payload), Err: err}
}

// Preview truncates a payload for log output.
func Preview(payload []byte) string {
	if len(payload) <= maxPreviewLen {
		return string(payload)
	}
	return string(payload[:maxPreviewLen]) + "..."
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrEmptyMessage is returned when a transport delivers an empty frame.
	ErrEmptyMessage = errors.New("empty message")

	// ErrUnknownChannel is returned for a message on an unrecognized channel.
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrUnknownWidgetKind is returned when no factory is registered for a kind.
	ErrUnknownWidgetKind = errors.New("unknown widget kind")

	// ErrWidgetNotFound is returned when an operation targets an unmounted widget.
	ErrWidgetNotFound = errors.New("widget not found")

	// ErrConnectionFailed is returned when the channel transport cannot dial. Usually retriable.
	ErrConnectionFailed = errors.New("connection failed")
)
