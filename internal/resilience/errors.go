// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// ErrorType represents different types of errors for handling strategies
type ErrorType int

const (
	ErrorTypeUnknown            ErrorType = iota
	ErrorTypeTransient                    // Temporary network issues
	ErrorTypePermanent                    // Auth failures, unusable responses
	ErrorTypeTimeout                      // Request timeouts
	ErrorTypeRateLimit                    // Recognizer or model host throttling
	ErrorTypeServiceUnavailable           // 5xx from the recognizer or model host
	ErrorTypeInvalidInput                 // 4xx other than throttling
	ErrorTypeResourceNotFound             // Missing model artifact, unknown endpoint
)

// ClassifiedError wraps an error with type information
type ClassifiedError struct {
	Original  error
	Type      ErrorType
	Message   string
	Retryable bool
}

func (e *ClassifiedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Original == nil {
		return e.Type.String()
	}
	return e.Original.Error()
}

func (e *ClassifiedError) Unwrap() error {
	return e.Original
}

// IsRetryable returns whether this error should be retried
func (e *ClassifiedError) IsRetryable() bool {
	return e.Retryable
}

// StatusError is returned by HTTP clients in this module when a remote
// endpoint answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.URL, e.StatusCode)
}

// ClassifyError categorizes an error for appropriate handling
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return ClassifyStatus(statusErr.StatusCode, err)
	}

	if isTimeoutError(err) {
		return &ClassifiedError{
			Original:  err,
			Type:      ErrorTypeTimeout,
			Message:   fmt.Sprintf("Timeout error: %v", err),
			Retryable: true,
		}
	}

	if isNetworkError(err) {
		return &ClassifiedError{
			Original:  err,
			Type:      ErrorTypeTransient,
			Message:   fmt.Sprintf("Network error: %v", err),
			Retryable: true,
		}
	}

	return &ClassifiedError{
		Original:  err,
		Type:      ErrorTypeUnknown,
		Message:   fmt.Sprintf("Unknown error: %v", err),
		Retryable: false,
	}
}

// ClassifyStatus maps an HTTP status code to a classified error.
func ClassifyStatus(code int, err error) *ClassifiedError {
	switch {
	case code == http.StatusTooManyRequests:
		return &ClassifiedError{Original: err, Type: ErrorTypeRateLimit, Message: fmt.Sprintf("Rate limit exceeded: %v", err), Retryable: true}
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return &ClassifiedError{Original: err, Type: ErrorTypeTimeout, Message: fmt.Sprintf("Timeout error: %v", err), Retryable: true}
	case code >= 500:
		return &ClassifiedError{Original: err, Type: ErrorTypeServiceUnavailable, Message: fmt.Sprintf("Service unavailable: %v", err), Retryable: true}
	case code == http.StatusNotFound:
		return &ClassifiedError{Original: err, Type: ErrorTypeResourceNotFound, Message: fmt.Sprintf("Resource not found: %v", err), Retryable: false}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &ClassifiedError{Original: err, Type: ErrorTypePermanent, Message: fmt.Sprintf("Authentication/authorization error: %v", err), Retryable: false}
	case code >= 400:
		return &ClassifiedError{Original: err, Type: ErrorTypeInvalidInput, Message: fmt.Sprintf("Invalid input: %v", err), Retryable: false}
	default:
		return &ClassifiedError{Original: err, Type: ErrorTypeUnknown, Message: fmt.Sprintf("Unknown error: %v", err), Retryable: false}
	}
}

// isNetworkError checks if an error is network-related
func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH)
}

// isTimeoutError checks if an error is timeout-related
func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// NewTransientError creates a new transient error
func NewTransientError(message string, cause error) *ClassifiedError {
	return &ClassifiedError{
		Original:  cause,
		Type:      ErrorTypeTransient,
		Message:   message,
		Retryable: true,
	}
}

// NewPermanentError creates a new permanent error
func NewPermanentError(message string, cause error) *ClassifiedError {
	return &ClassifiedError{
		Original:  cause,
		Type:      ErrorTypePermanent,
		Message:   message,
		Retryable: false,
	}
}
