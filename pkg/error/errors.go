package error

import (
	"errors"
	"net/http"
)

// GenericError is implemented by every error that knows how it maps to an
// HTTP response. The recovery middleware and REST handlers rely on it.
type GenericError interface {
	Error() string
	ErrCode() string
	StatusCode() int
}

type NotFoundError string

func (err NotFoundError) Error() string {
	return string(err)
}

func (err NotFoundError) ErrCode() string {
	return "NOT_FOUND_ERROR"
}

func (err NotFoundError) StatusCode() int {
	return http.StatusNotFound
}

type ValidationError string

func (err ValidationError) Error() string {
	return string(err)
}

func (err ValidationError) ErrCode() string {
	return "VALIDATION_ERROR"
}

func (err ValidationError) StatusCode() int {
	return http.StatusBadRequest
}

type UnauthorizedError string

func (err UnauthorizedError) Error() string {
	return string(err)
}

func (err UnauthorizedError) ErrCode() string {
	return "UNAUTHORIZED"
}

func (err UnauthorizedError) StatusCode() int {
	return http.StatusUnauthorized
}

// ServiceUnavailableError tells the provider to retry later (queue full,
// shutting down).
type ServiceUnavailableError string

func (err ServiceUnavailableError) Error() string {
	return string(err)
}

func (err ServiceUnavailableError) ErrCode() string {
	return "SERVICE_UNAVAILABLE"
}

func (err ServiceUnavailableError) StatusCode() int {
	return http.StatusServiceUnavailable
}

type PayloadTooLargeError string

func (err PayloadTooLargeError) Error() string {
	return string(err)
}

func (err PayloadTooLargeError) ErrCode() string {
	return "PAYLOAD_TOO_LARGE"
}

func (err PayloadTooLargeError) StatusCode() int {
	return http.StatusRequestEntityTooLarge
}

type InternalServerError string

func (err InternalServerError) Error() string {
	return string(err)
}

func (err InternalServerError) ErrCode() string {
	return "INTERNAL_SERVER_ERROR"
}

func (err InternalServerError) StatusCode() int {
	return http.StatusInternalServerError
}

// AsGenericError unwraps err until it finds a GenericError. Anything else is
// reported as an internal server error.
func AsGenericError(err error) GenericError {
	var ge GenericError
	if errors.As(err, &ge) {
		return ge
	}
	return InternalServerError(err.Error())
}
