// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package redaction

import (
	"fmt"
)

// RedactionErrorType defines the type of redaction error
type RedactionErrorType int

const (
	// ErrorRecognition indicates the entity recognizer failed
	ErrorRecognition RedactionErrorType = iota

	// ErrorValidation indicates a detector produced unusable spans
	ErrorValidation

	// ErrorConfiguration indicates an invalid engine configuration
	ErrorConfiguration
)

// String returns the string representation of the error type
func (ret RedactionErrorType) String() string {
	switch ret {
	case ErrorRecognition:
		return "recognition"
	case ErrorValidation:
		return "validation"
	case ErrorConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// RedactionError represents an error that occurred during redaction.
// It never carries any part of the analysed text.
type RedactionError struct {
	// Type is the type of error
	Type RedactionErrorType

	// Operation is the engine operation that failed
	Operation string

	// Message is the error message
	Message string

	// Cause is the underlying error that caused this error
	Cause error
}

// Error implements the error interface
func (re *RedactionError) Error() string {
	if re.Cause != nil {
		return fmt.Sprintf("[%s] %s (operation: %s): %v", re.Type, re.Message, re.Operation, re.Cause)
	}
	return fmt.Sprintf("[%s] %s (operation: %s)", re.Type, re.Message, re.Operation)
}

// Unwrap returns the underlying error for error unwrapping
func (re *RedactionError) Unwrap() error {
	return re.Cause
}

// NewRedactionError creates a new RedactionError
func NewRedactionError(errorType RedactionErrorType, operation, message string, cause error) *RedactionError {
	return &RedactionError{
		Type:      errorType,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}
