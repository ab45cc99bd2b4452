package errors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindConfig    Kind = "config"
	KindBootstrap Kind = "bootstrap"
	KindTransport Kind = "transport"
	KindCamera    Kind = "camera"
	KindVision    Kind = "vision"
	KindSpeech    Kind = "speech"
	KindSession   Kind = "session"
	KindUnknown   Kind = "unknown"
)

// Code narrows a Kind to the concrete failure the session layer recovers from.
type Code string

const (
	CodeDeviceUnavailable Code = "device_unavailable"
	CodeCaptureFailed     Code = "capture_failed"
	CodeAnalysisNetwork   Code = "analysis_network"
	CodeAnalysisTimeout   Code = "analysis_timeout"
	CodeAnalysisMalformed Code = "analysis_malformed"
	CodeSynthesisFailed   Code = "synthesis_failed"
	CodeConnectionLost    Code = "connection_lost"
	CodeNone              Code = ""
)

type Error struct {
	Kind    Kind
	Code    Code
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Wrap(kind Kind, op, message string, err error) *Error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

func New(kind Kind, op, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
	}
}

// NewCode builds an error carrying a concrete failure code.
func NewCode(kind Kind, code Code, op, message string) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Op:      op,
		Message: message,
	}
}

// WrapCode wraps err with both kind and code. Returns nil when err is nil.
func WrapCode(kind Kind, code Code, op, message string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:    kind,
		Code:    code,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

// IsKind checks whether any error in the chain matches the provided kind.
func IsKind(err error, kind Kind) bool {
	var target *Error
	for err != nil {
		if errors.As(err, &target) {
			return target.Kind == kind
		}
		err = errors.Unwrap(err)
	}
	return false
}

// CodeOf extracts the failure code from the error chain, CodeNone if absent.
func CodeOf(err error) Code {
	var target *Error
	if errors.As(err, &target) {
		return target.Code
	}
	return CodeNone
}
