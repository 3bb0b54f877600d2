// Package errors defines the single error type reported by the redbot client.
//
// Every failure is flattened into an APIError carrying a Source tag that
// names the failing layer and a diagnostic Message. Application-level
// failures synthesized by the client itself carry an empty Source.
package errors

import (
	"errors"
	"fmt"
)

// Source tags identifying where a failure originated.
const (
	// SourceTransport marks failures of the HTTP transport (connection, TLS, timeout, cancellation).
	SourceTransport = "transport"
	// SourceIO marks local I/O failures such as an unreadable config file.
	SourceIO = "io"
	// SourceDecode marks JSON or TOML decoding failures.
	SourceDecode = "decode"
	// SourceInvalidMethod marks an HTTP method string that is not a valid token.
	SourceInvalidMethod = "invalid_method"
)

// APIError is the flat error reported by every fallible client operation.
// It intentionally carries no wrapped cause; the Message holds the
// collaborator's diagnostic text.
type APIError struct {
	// Source identifies the failure domain. Empty for application errors.
	Source string
	// Message is a human-readable description suitable for logging.
	Message string
}

func (e *APIError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("API error: %s", e.Message)
	}
	return fmt.Sprintf("API error from '%s': %s", e.Source, e.Message)
}

// Transport converts a transport failure into an APIError.
func Transport(err error) *APIError {
	return &APIError{Source: SourceTransport, Message: messageOf(err)}
}

// IO converts a local I/O failure into an APIError.
func IO(err error) *APIError {
	return &APIError{Source: SourceIO, Message: messageOf(err)}
}

// Decode converts a decoding failure into an APIError.
func Decode(err error) *APIError {
	return &APIError{Source: SourceDecode, Message: messageOf(err)}
}

// InvalidMethod reports a method string that cannot be used as an HTTP method.
func InvalidMethod(method string) *APIError {
	return &APIError{Source: SourceInvalidMethod, Message: fmt.Sprintf("invalid HTTP method %q", method)}
}

// Application builds an untagged error synthesized by the client.
func Application(message string) *APIError {
	return &APIError{Message: message}
}

// Applicationf is Application with fmt.Sprintf formatting.
func Applicationf(format string, args ...any) *APIError {
	return &APIError{Message: fmt.Sprintf(format, args...)}
}

// StatusError reports a client or server error status returned by the API.
func StatusError(code int) *APIError {
	return Applicationf("Server error, code %d", code)
}

// HasSource reports whether err is an APIError tagged with source.
func HasSource(err error, source string) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Source == source
}

// IsApplication reports whether err is an untagged application error.
func IsApplication(err error) bool {
	return HasSource(err, "")
}

func messageOf(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
