package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes shared by the API and the engine.
const (
	CodeValidation   = "VALIDATION_FAILED"
	CodeScheduling   = "SCHEDULING_FAILED"
	CodeNotFound     = "NOT_FOUND"
	CodeNetwork      = "NETWORK_ERROR"
	CodeDecode       = "DECODE_ERROR"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeInternal     = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may retry the same operation unchanged.
func (e *DomainError) Retryable() bool {
	return e.Code == CodeNetwork
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

// NewSchedulingError reports a date/slot combination that cannot be used for a visit.
// Reason is "past" or "invalid".
func NewSchedulingError(reason, message string) error {
	return NewDomainError(CodeScheduling, message, http.StatusBadRequest, map[string]any{"reason": reason})
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewNetworkError wraps a transport or upstream API failure.
func NewNetworkError(message string, status int, err error) error {
	details := map[string]any{}
	if status > 0 {
		details["upstream_status"] = status
	}
	return &DomainError{
		Code:       CodeNetwork,
		Message:    message,
		HTTPStatus: http.StatusBadGateway,
		Details:    details,
		Err:        err,
	}
}

// NewDecodeError reports a response body whose shape is not recognised.
func NewDecodeError(message string, err error) error {
	return &DomainError{Code: CodeDecode, Message: message, HTTPStatus: http.StatusBadGateway, Err: err}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

// MapError converts err into a DomainError, keeping nil as nil.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// CodeOf returns the DomainError code carried by err, or "" when none is present.
func CodeOf(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsValidation matches validation failures, scheduling failures included.
func IsValidation(err error) bool {
	code := CodeOf(err)
	return code == CodeValidation || code == CodeScheduling
}

func IsScheduling(err error) bool {
	return CodeOf(err) == CodeScheduling
}

func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

func IsNetwork(err error) bool {
	return CodeOf(err) == CodeNetwork
}

// SchedulingReason returns the reason attached to a scheduling error.
func SchedulingReason(err error) string {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != CodeScheduling {
		return ""
	}
	reason, _ := domainErr.Details["reason"].(string)
	return reason
}
