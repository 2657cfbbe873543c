package docintel

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AuthError means the resource rejected the API key (401/403).
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("resource rejected the API key (HTTP %d)", e.StatusCode)
}

// TransportError is a network-level failure: timeout, DNS, connection
// refused. The remote service never saw or never answered the request.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthorizationError is a non-2xx answer to the authorize-copy call.
type AuthorizationError struct {
	StatusCode int
	Message    string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("copy authorization rejected (HTTP %d): %s", e.StatusCode, e.Message)
}

// InitiationError is a non-2xx answer to the copy-to call.
type InitiationError struct {
	StatusCode int
	Message    string
}

func (e *InitiationError) Error() string {
	return fmt.Sprintf("copy initiation rejected (HTTP %d): %s", e.StatusCode, e.Message)
}

// MissingHandleError means the copy-to call succeeded but the response
// carried no Operation-Location header, so the copy cannot be tracked.
// Distinct from a rejected request: the service accepted the copy.
type MissingHandleError struct{}

func (e *MissingHandleError) Error() string {
	return "copy accepted but response carried no Operation-Location header"
}

// errorMessage extracts a human-readable message from a service error
// body. Handles the structured {"error":{"message":...}} shape, a plain
// {"error":"..."} string, and falls back to the raw body.
func errorMessage(body []byte) string {
	var structured struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &structured); err == nil && structured.Error.Message != "" {
		return structured.Error.Message
	}

	var plain struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &plain); err == nil && plain.Error != "" {
		return plain.Error
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	if msg == "" {
		msg = "no error detail in response"
	}
	return msg
}
