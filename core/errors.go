// Package core implements the authenticated request pipeline shared by the
// resource clients: transport, tenant token caching, envelope checks and
// pagination.
package core

import (
	"errors"
	"fmt"
	"net/http"
)

// Remote business codes callers commonly branch on.
const (
	CodeInvalidAccessToken = 99991663
	CodeAccessTokenExpired = 99991664
	CodeNoPermission       = 99991672
	CodeTooManyRequests    = 99991400
)

// APIError is returned for non-2xx transport responses and, at the resource
// layer, for 2xx responses whose envelope carries a non-zero code.
type APIError struct {
	// Status is the HTTP status of the response.
	Status int
	// Code is the envelope business code, zero when the failure was at the
	// transport level.
	Code    int
	Message string
	// Data is whatever part of the response body parsed as JSON.
	Data any
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s (code: %d)", e.Message, e.Code)
	}
	return e.Message
}

// IsAuthFailure reports whether the remote rejected the access token
func (e *APIError) IsAuthFailure() bool {
	return e.Status == http.StatusUnauthorized ||
		e.Code == CodeInvalidAccessToken ||
		e.Code == CodeAccessTokenExpired
}

// IsPermissionDenied reports whether the app lacks a scope for the resource
func (e *APIError) IsPermissionDenied() bool {
	return e.Status == http.StatusForbidden || e.Code == CodeNoPermission
}

// IsNotFound reports whether the resource was not found
func (e *APIError) IsNotFound() bool {
	return e.Status == http.StatusNotFound
}

// IsRateLimited reports whether the request was throttled
func (e *APIError) IsRateLimited() bool {
	return e.Status == http.StatusTooManyRequests || e.Code == CodeTooManyRequests
}

// AuthError is returned when the tenant credential exchange reports a
// business failure, e.g. a wrong app secret.
type AuthError struct {
	Code    int
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// ValidationError is returned when a request descriptor or a response body
// does not have the expected shape.
type ValidationError struct {
	Message string
	// Errors holds the underlying decode or rule errors, if any.
	Errors error
}

func (e *ValidationError) Error() string {
	if e.Errors != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Errors)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Errors
}

// AsAPIError returns the *APIError in err's chain, if any
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsAuthError reports whether err is a credential exchange failure
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsValidationError reports whether err is a shape validation failure
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}
