package bff

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRejected means the BFF answered with a non-2xx status
	ErrRejected = errors.New("bff rejected request")

	// ErrTransport means no response was received at all
	ErrTransport = errors.New("bff request failed")

	// ErrPayloadTooLarge means a successful response exceeded the read limit
	ErrPayloadTooLarge = errors.New("bff response too large")
)

// StatusError is a non-2xx answer from the BFF
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: bff returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: bff returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrRejected
}

// ResourceError is a structured failure reported by the resource boundary.
// Type is the discriminator from the JSON error body, e.g. "Unauthorized".
type ResourceError struct {
	StatusCode int
	Type       string
	Body       string
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("fetch resource: %s (status %d)", e.Type, e.StatusCode)
}

func (e *ResourceError) Is(target error) bool {
	return target == ErrRejected
}

type resourceErrorBody struct {
	Type *string `json:"type"`
}

// parseResourceError returns a ResourceError when body is a JSON object with a
// type field, and a plain StatusError otherwise.
func parseResourceError(statusCode int, body string) error {
	var parsed resourceErrorBody
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &parsed); err == nil && parsed.Type != nil {
		return &ResourceError{
			StatusCode: statusCode,
			Type:       *parsed.Type,
			Body:       body,
		}
	}
	return &StatusError{Op: opFetchResource, StatusCode: statusCode, Body: body}
}
