package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/feedsync/internal/domain/timeline"
	"github.com/rpggio/feedsync/internal/domain/watermark"
	"github.com/rpggio/feedsync/internal/engine"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	if e.RecoveryHint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.RecoveryHint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to MCP error codes. Unknown errors become
// INTERNAL_ERROR.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, timeline.ErrUnknownSource):
		return &APIError{Code: "UNKNOWN_SOURCE", Message: err.Error(), RecoveryHint: "Use remote_status, call, sms or mms"}
	case errors.Is(err, timeline.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error(), RecoveryHint: "Limit, offset and before must not be negative"}
	case errors.Is(err, engine.ErrUnknownDeviceKind):
		return &APIError{Code: "UNKNOWN_DEVICE_LOG", Message: err.Error(), RecoveryHint: "Use calllog or messagelog"}
	case errors.Is(err, watermark.ErrUnknownKind):
		return &APIError{Code: "UNKNOWN_KIND", Message: err.Error()}
	default:
		return &APIError{Code: "INTERNAL_ERROR", Message: err.Error()}
	}
}

// statusHint suggests what a caller should do after a non-OK status.
func statusHint(s engine.Status) string {
	switch s {
	case engine.StatusNoConnectivity:
		return "The remote service is unreachable; retry when the network is back"
	case engine.StatusNotReady:
		return "Prerequisite syncs are incomplete; the refresh is retried automatically"
	case engine.StatusCommsTimeout:
		return "The remote service did not answer in time; retry later"
	case engine.StatusServerError:
		return "The remote service rejected the request; check the token and server logs"
	case engine.StatusInternalError:
		return "Check the feedsync log for details"
	}
	return ""
}
