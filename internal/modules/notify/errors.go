package notify

import (
	"fmt"
	"net/http"
	"strings"
)

// DomainError is a structured, self-describing domain error used across the notify module.
// It carries RFC7807-friendly metadata so httpx.ToProblem can render it without
// enumerating error types.
type DomainError struct {
	// Code is a stable, machine-readable business code (e.g., "ErrTemplateInUse").
	Code string

	// HTTPStatus is the HTTP status suggested for this error.
	HTTPStatus int

	// Title is a short human summary; if empty the formatter will default to StatusText(HTTPStatus).
	Title string

	// Message is a human-readable message primarily for logs. When Detail is empty,
	// this is used as the public detail.
	Message string

	// Detail is a user-friendly, safe explanation for clients. If empty, Message is used.
	Detail string

	// TypeURI is an RFC7807 type URI, e.g., "urn:problem:notify/err-template-in-use".
	TypeURI string

	// Context is an optional extension payload for clients (e.g., missing keys).
	Context any

	cause error
}

// Error satisfies the standard Go error interface.
// It includes the underlying cause's error message if it exists.
func (e *DomainError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Message
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is matches on Code so copies made by the With* helpers still match their sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of e wrapping err.
func (e *DomainError) WithCause(err error) *DomainError {
	if err == nil {
		return e
	}
	cp := *e
	cp.cause = err
	return &cp
}

// WithDetail sets a public-friendly detail message for clients.
func (e *DomainError) WithDetail(detail string) *DomainError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithContext attaches an extension payload for clients.
func (e *DomainError) WithContext(ctx any) *DomainError {
	cp := *e
	cp.Context = ctx
	return &cp
}

// --- RFC7807 mapping accessors (satisfy httpx.DomainProblem) ---

func (e *DomainError) ProblemCode() string { return e.Code }
func (e *DomainError) ProblemStatus() int {
	if e.HTTPStatus == 0 {
		return http.StatusInternalServerError
	}
	return e.HTTPStatus
}
func (e *DomainError) ProblemTitle() string { return e.Title }
func (e *DomainError) ProblemDetail() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Message
}
func (e *DomainError) ProblemTypeURI() string { return e.TypeURI }
func (e *DomainError) ProblemContext() any    { return e.Context }

// missingVariables builds the direct-mode error for unresolved placeholders.
func missingVariables(keys []string) *DomainError {
	return ErrMissingVariables.
		WithDetail("Missing required template variables: " + strings.Join(keys, ", ")).
		WithContext(map[string]any{"missingKeys": keys})
}

// --- Pre-defined Domain Errors ---

var (
	ErrTemplateNotFound = &DomainError{
		Code:       "ErrTemplateNotFound",
		HTTPStatus: http.StatusNotFound,
		Title:      "Not Found",
		Message:    "notification template not found",
		TypeURI:    "urn:problem:notify/err-template-not-found",
	}

	ErrTemplateNameTaken = &DomainError{
		Code:       "ErrTemplateNameTaken",
		HTTPStatus: http.StatusConflict,
		Title:      "Conflict",
		Message:    "a template with this name already exists",
		TypeURI:    "urn:problem:notify/err-template-name-taken",
	}

	ErrTemplateInUse = &DomainError{
		Code:       "ErrTemplateInUse",
		HTTPStatus: http.StatusConflict,
		Title:      "Conflict",
		Message:    "Cannot delete template that is in use. Remove it from all preferences first.",
		TypeURI:    "urn:problem:notify/err-template-in-use",
	}

	ErrInvalidTemplate = &DomainError{
		Code:       "ErrInvalidTemplate",
		HTTPStatus: http.StatusBadRequest,
		Title:      "Bad Request",
		Message:    "invalid notification template",
		TypeURI:    "urn:problem:notify/err-invalid-template",
	}

	ErrPreferenceNotFound = &DomainError{
		Code:       "ErrPreferenceNotFound",
		HTTPStatus: http.StatusNotFound,
		Title:      "Not Found",
		Message:    "notification preference not found",
		TypeURI:    "urn:problem:notify/err-preference-not-found",
	}

	ErrRoutineNotFound = &DomainError{
		Code:       "ErrRoutineNotFound",
		HTTPStatus: http.StatusNotFound,
		Title:      "Not Found",
		Message:    "routine not found",
		TypeURI:    "urn:problem:notify/err-routine-not-found",
	}

	ErrInvalidRecipient = &DomainError{
		Code:       "ErrInvalidRecipient",
		HTTPStatus: http.StatusBadRequest,
		Title:      "Bad Request",
		Message:    "invalid recipient",
		TypeURI:    "urn:problem:notify/err-invalid-recipient",
	}

	ErrInvalidChannel = &DomainError{
		Code:       "ErrInvalidChannel",
		HTTPStatus: http.StatusBadRequest,
		Title:      "Bad Request",
		Message:    "notification type must be email or sms",
		TypeURI:    "urn:problem:notify/err-invalid-channel",
	}

	ErrMissingVariables = &DomainError{
		Code:       "ErrMissingVariables",
		HTTPStatus: http.StatusUnprocessableEntity,
		Title:      "Unprocessable Entity",
		Message:    "missing required template variables",
		TypeURI:    "urn:problem:notify/err-missing-variables",
	}

	ErrPublishFailed = &DomainError{
		Code:       "ErrPublishFailed",
		HTTPStatus: http.StatusBadGateway,
		Title:      "Bad Gateway",
		Message:    "failed to queue notification",
		TypeURI:    "urn:problem:notify/err-publish-failed",
	}

	ErrScanInProgress = &DomainError{
		Code:       "ErrScanInProgress",
		HTTPStatus: http.StatusConflict,
		Title:      "Conflict",
		Message:    "a notification scan is already running",
		TypeURI:    "urn:problem:notify/err-scan-in-progress",
	}

	ErrInternal = &DomainError{
		Code:       "ErrInternal",
		HTTPStatus: http.StatusInternalServerError,
		Title:      "Internal Server Error",
		Message:    "an unexpected error occurred",
		TypeURI:    "urn:problem:notify/err-internal",
	}
)
