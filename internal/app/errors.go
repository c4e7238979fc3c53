package app

import (
	"errors"
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

var (
	// ErrAuthRequired means the request carried no usable session.
	ErrAuthRequired = errors.New("authentication required")
	errChatDisabled = domainError(http.StatusInternalServerError, "CHAT_UNAVAILABLE", "Chat model not configured", nil)
)

func errTodoNotFound() *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", "Todo not found", nil)
}

func errInternal(message string) *DomainError {
	return domainError(http.StatusInternalServerError, "SERVER_ERROR", message, nil)
}

// ValidationError carries the issues rendered in the validation payload.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "validation failed"
	}
	return "validation failed: " + e.Issues[0].Message
}

// Issue is one rejected input field.
type Issue struct {
	Code     string `json:"code"`
	Expected string `json:"expected,omitempty"`
	Received string `json:"received,omitempty"`
	Minimum  *int   `json:"minimum,omitempty"`
	Path     []any  `json:"path"`
	Message  string `json:"message"`
}

func invalid(issues ...Issue) *ValidationError {
	return &ValidationError{Issues: issues}
}
