package platformerrors

import (
	"context"
	"errors"
	"fmt"

	"relaydesk/services/channel-api/internal/infrastructure/logger"
)

// Layer identifies which architectural layer produced an error.
type Layer string

const (
	LayerAPI            Layer = "api"
	LayerDomain         Layer = "domain"
	LayerRepository     Layer = "repository"
	LayerInfrastructure Layer = "infrastructure"
)

// ErrorType tags an error with its failure class so callers can branch on
// kind without string matching.
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeConflict      ErrorType = "conflict"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeUpstream      ErrorType = "upstream"
	ErrorTypeInternal      ErrorType = "internal"
)

// PlatformError is the error type carried across layer boundaries.
type PlatformError struct {
	Layer   Layer
	Type    ErrorType
	Message string
	Code    string
	Cause   error
}

func (e *PlatformError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s/%s] %s: %v", e.Layer, e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s/%s] %s", e.Layer, e.Type, e.Message)
}

func (e *PlatformError) Unwrap() error {
	return e.Cause
}

// NewError creates a tagged error and logs it with its stable code.
func NewError(ctx context.Context, layer Layer, errType ErrorType, message string, cause error, code string) error {
	err := &PlatformError{
		Layer:   layer,
		Type:    errType,
		Message: message,
		Code:    code,
		Cause:   cause,
	}
	log := logger.GetLogger()
	log.Debug().
		Str("error_code", code).
		Str("layer", string(layer)).
		Str("error_type", string(errType)).
		Err(cause).
		Msg(message)
	return err
}

// AsError wraps err in the given layer, preserving the original error type
// when err is already a PlatformError.
func AsError(ctx context.Context, layer Layer, err error, message string) error {
	if err == nil {
		return nil
	}
	errType := ErrorTypeInternal
	var pe *PlatformError
	if errors.As(err, &pe) {
		errType = pe.Type
	}
	return &PlatformError{
		Layer:   layer,
		Type:    errType,
		Message: message,
		Cause:   err,
	}
}

// TypeOf returns the tagged type of err, or ErrorTypeInternal for untyped errors.
func TypeOf(err error) ErrorType {
	var pe *PlatformError
	if errors.As(err, &pe) {
		return pe.Type
	}
	return ErrorTypeInternal
}

// IsType reports whether err carries the given tagged type.
func IsType(err error, t ErrorType) bool {
	return TypeOf(err) == t
}
