package services

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindNotFound
	KindStateConflict
	KindAuthorization
	KindTransientStore
)

// DomainError carries the precise domain reason for a failed operation.
// State-conflict messages are surfaced verbatim to cashiers; transient store
// errors are downgraded to a generic retry prompt at the boundary.
type DomainError struct {
	Kind    ErrorKind
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func Validationf(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: KindStateConflict, Message: fmt.Sprintf(format, args...)}
}

func Unauthorizedf(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: KindAuthorization, Message: fmt.Sprintf(format, args...)}
}

func Transientf(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: KindTransientStore, Message: fmt.Sprintf(format, args...)}
}

// HTTPStatus maps a domain error to its response code. Unknown errors are
// treated as internal.
func HTTPStatus(err error) int {
	var de *DomainError
	if !errors.As(err, &de) {
		return http.StatusInternalServerError
	}
	switch de.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindStateConflict:
		return http.StatusConflict
	case KindAuthorization:
		return http.StatusUnauthorized
	case KindTransientStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicError hides transient store details behind a retry prompt; every
// other kind keeps its message.
func PublicError(err error) error {
	var de *DomainError
	if errors.As(err, &de) && de.Kind == KindTransientStore {
		return errors.New("temporary problem processing the request, please try again")
	}
	return err
}
