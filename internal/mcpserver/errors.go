package mcpserver

import (
	"errors"
	"fmt"

	amanerrors "github.com/Aman-CERP/codesearch-mcp/internal/errors"
)

// Standard JSON-RPC error codes plus the taxonomy-specific codes this
// server maps spec §7's error kinds onto, grounded on the teacher's
// internal/mcp/errors.go code block.
const (
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603

	ErrCodeDimensionMismatch   = -32001
	ErrCodeExternalUnavailable = -32002
	ErrCodeNotFound            = -32003
	ErrCodeBudgetExceeded      = -32004
	ErrCodeRateLimited         = -32005
)

// ToolError is a structured tool-RPC error carrying a stable code and a
// human-readable message (spec §7 policy: "a structured error with a
// stable code and a human-readable message").
type ToolError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool error %d: %s", e.Code, e.Message)
}

// NewMethodNotFoundError reports an unregistered tool method (spec §6).
func NewMethodNotFoundError(method string) *ToolError {
	return &ToolError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", method)}
}

// NewInvalidParamsError reports a missing or malformed required parameter
// (spec §6).
func NewInvalidParamsError(message string) *ToolError {
	return &ToolError{Code: ErrCodeInvalidParams, Message: message}
}

// MapError converts an internal error into a ToolError, mapping
// AmanError's taxonomy (spec §7) onto stable tool-RPC codes.
func MapError(err error) *ToolError {
	if err == nil {
		return nil
	}
	var amanErr *amanerrors.AmanError
	if errors.As(err, &amanErr) {
		switch amanErr.Kind {
		case amanerrors.KindDimensionMismatch:
			return &ToolError{Code: ErrCodeDimensionMismatch, Message: amanErr.Error()}
		case amanerrors.KindExternalUnavailable:
			return &ToolError{Code: ErrCodeExternalUnavailable, Message: amanErr.Error()}
		case amanerrors.KindNotFound:
			return &ToolError{Code: ErrCodeNotFound, Message: amanErr.Error()}
		case amanerrors.KindBudgetExceeded:
			return &ToolError{Code: ErrCodeBudgetExceeded, Message: amanErr.Error()}
		case amanerrors.KindRateLimited:
			return &ToolError{Code: ErrCodeRateLimited, Message: amanErr.Error()}
		case amanerrors.KindConfigInvalid:
			return &ToolError{Code: ErrCodeInvalidParams, Message: amanErr.Error()}
		default:
			return &ToolError{Code: ErrCodeInternalError, Message: amanErr.Error()}
		}
	}
	return &ToolError{Code: ErrCodeInternalError, Message: err.Error()}
}
