// internal/apperrors/errors.go
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindUnauthenticated Kind = "UNAUTHENTICATED"
	KindForbidden       Kind = "FORBIDDEN"
	KindNotFound        Kind = "NOT_FOUND"
	KindInvalidState    Kind = "INVALID_STATE"
	KindConflict        Kind = "CONFLICT"
	KindGatewayFailure  Kind = "GATEWAY_FAILURE"
	KindValidation      Kind = "VALIDATION_ERROR"
	KindInternal        Kind = "INTERNAL_ERROR"
)

type Metadata struct {
	HTTPStatus int
	Retryable  bool
	// MessageKey is the i18n key used when the caller-facing message is localized.
	MessageKey string
}

var metadataByKind = map[Kind]Metadata{
	KindUnauthenticated: {HTTPStatus: http.StatusUnauthorized, MessageKey: "error.unauthenticated"},
	KindForbidden:       {HTTPStatus: http.StatusForbidden, MessageKey: "error.forbidden"},
	KindNotFound:        {HTTPStatus: http.StatusNotFound, MessageKey: "error.not_found"},
	KindInvalidState:    {HTTPStatus: http.StatusUnprocessableEntity, MessageKey: "error.invalid_state"},
	KindConflict:        {HTTPStatus: http.StatusConflict, MessageKey: "error.conflict"},
	KindGatewayFailure:  {HTTPStatus: http.StatusBadGateway, Retryable: true, MessageKey: "error.gateway_failure"},
	KindValidation:      {HTTPStatus: http.StatusBadRequest, MessageKey: "error.validation"},
	KindInternal:        {HTTPStatus: http.StatusInternalServerError, MessageKey: "error.internal"},
}

func MetadataFor(kind Kind) Metadata {
	if meta, ok := metadataByKind[kind]; ok {
		return meta
	}
	return metadataByKind[KindInternal]
}

type Error struct {
	kind    Kind
	message string
	details map[string]interface{}
	cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, message string) *Error {
	if err == nil {
		return New(kind, message)
	}
	return &Error{kind: kind, message: message, cause: err}
}

func (e *Error) Kind() Kind {
	if e == nil {
		return KindInternal
	}
	return e.kind
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() map[string]interface{} {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e == nil {
		return nil
	}
	if e.details == nil {
		e.details = make(map[string]interface{})
	}
	e.details[key] = value
	return e
}

func (e *Error) Retryable() bool {
	return MetadataFor(e.Kind()).Retryable
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As extracts the first *Error in the chain.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return nil
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	if typed := As(err); typed != nil {
		return typed.kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func IsRetryable(err error) bool {
	return err != nil && MetadataFor(KindOf(err)).Retryable
}

func Unauthenticated(message string) *Error { return New(KindUnauthenticated, message) }
func Forbidden(message string) *Error       { return New(KindForbidden, message) }
func NotFound(resource string) *Error       { return Newf(KindNotFound, "%s not found", resource) }
func InvalidState(message string) *Error    { return New(KindInvalidState, message) }
func Conflict(message string) *Error        { return New(KindConflict, message) }
func Validation(message string) *Error      { return New(KindValidation, message) }

func GatewayFailure(err error, message string) *Error {
	return Wrap(KindGatewayFailure, err, message)
}

func Internal(err error, message string) *Error {
	return Wrap(KindInternal, err, message)
}
