package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Standard error types that can be used throughout the application
var (
	ErrNotFound      = errors.New("resource not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInternalError = errors.New("internal error")
	ErrTimeout       = errors.New("operation timed out")
	ErrUnavailable   = errors.New("service unavailable")

	// Detection pipeline failures. All of these are recovered locally by the
	// pipeline except ErrCampaignNotFound, which is surfaced to callers.
	ErrDecodeFailed         = errors.New("audio decode failed")
	ErrClassificationFailed = errors.New("classification failed")
	ErrSTTUnavailable       = errors.New("speech-to-text unavailable")
	ErrDeliveryFailed       = errors.New("message delivery failed")
	ErrCampaignNotFound     = errors.New("campaign not found")
)

// Error represents a structured error with caller location and additional context
type Error struct {
	original error
	message  string
	fields   map[string]interface{}

	file string
	line int

	// Code is an optional error code for categorization
	Code string
}

func newError(original error, message, code string, fields []map[string]interface{}) *Error {
	_, file, line, _ := runtime.Caller(2)

	fieldMap := make(map[string]interface{})
	if len(fields) > 0 && fields[0] != nil {
		for k, v := range fields[0] {
			fieldMap[k] = v
		}
	}

	return &Error{
		original: original,
		message:  message,
		fields:   fieldMap,
		file:     file,
		line:     line,
		Code:     code,
	}
}

// New creates a new structured error with the given message
func New(message string, fields ...map[string]interface{}) *Error {
	return newError(errors.New(message), message, "", fields)
}

// Wrap wraps an existing error with additional context
func Wrap(err error, message string, fields ...map[string]interface{}) *Error {
	if err == nil {
		return nil
	}
	return newError(err, message, "", fields)
}

// WithField returns a copy of the error with one more context field
func (e *Error) WithField(key string, value interface{}) *Error {
	if e == nil {
		return nil
	}
	return e.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a copy of the error with the given context fields merged in
func (e *Error) WithFields(fields map[string]interface{}) *Error {
	if e == nil {
		return nil
	}

	result := *e
	result.fields = make(map[string]interface{}, len(e.fields)+len(fields))
	for k, v := range e.fields {
		result.fields[k] = v
	}
	for k, v := range fields {
		result.fields[k] = v
	}
	return &result
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil || e.original == nil {
		return ""
	}

	if e.message == "" || e.message == e.original.Error() {
		return e.original.Error()
	}

	return fmt.Sprintf("%s: %v", e.message, e.original)
}

// Unwrap implements the errors.Unwrap interface
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.original
}

// Location returns the file:line where the error was created
func (e *Error) Location() string {
	if e == nil {
		return ""
	}

	parts := strings.Split(e.file, "/")
	return fmt.Sprintf("%s:%d", parts[len(parts)-1], e.line)
}

// GetFields returns the error's context fields
func (e *Error) GetFields() map[string]interface{} {
	if e == nil {
		return nil
	}
	return e.fields
}

// Is reports whether the wrapped error matches target.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	return errors.Is(e.original, target)
}

// NewNotFound creates a new ErrNotFound error with additional context
func NewNotFound(message string, fields ...map[string]interface{}) *Error {
	return newError(ErrNotFound, message, "NOT_FOUND", fields)
}

// NewInvalidInput creates a new ErrInvalidInput error with additional context
func NewInvalidInput(message string, fields ...map[string]interface{}) *Error {
	return newError(ErrInvalidInput, message, "INVALID_INPUT", fields)
}

// NewCampaignNotFound creates a new ErrCampaignNotFound for the given campaign ID
func NewCampaignNotFound(campaignID string) *Error {
	return newError(ErrCampaignNotFound, fmt.Sprintf("campaign not found: %s", campaignID), "CAMPAIGN_NOT_FOUND",
		[]map[string]interface{}{{"campaign_id": campaignID}})
}

// NewDecodeFailed wraps a decoder failure
func NewDecodeFailed(err error, format string) *Error {
	return newError(ErrDecodeFailed, fmt.Sprintf("%s: %v", format, err), "DECODE_FAILED",
		[]map[string]interface{}{{"format": format}})
}

// NewDeliveryFailed wraps a delivery channel failure
func NewDeliveryFailed(err error, attempts int) *Error {
	return newError(ErrDeliveryFailed, fmt.Sprintf("%d attempt(s): %v", attempts, err), "DELIVERY_FAILED",
		[]map[string]interface{}{{"attempts": attempts}})
}

// IsErrorType checks if an error is of a specific error type
func IsErrorType(err, target error) bool {
	return errors.Is(err, target)
}

// GetErrorCode extracts the error code from an error if it's a structured error
func GetErrorCode(err error) string {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Code
	}
	return ""
}

// GetErrorFields extracts fields from an error if it's a structured error
func GetErrorFields(err error) map[string]interface{} {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.GetFields()
	}
	return nil
}
