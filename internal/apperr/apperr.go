// Package apperr carries the HTTP-facing error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Error is an error with the HTTP status it should be reported as.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Detail returns the wrapped error text, empty when there is none.
func (e *Error) Detail() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func New(status int, message string, err error) *Error {
	return &Error{Status: status, Message: message, Err: err}
}

func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, message, nil)
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, message, nil)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, message, nil)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, message, nil)
}

func Conflict(message string) *Error {
	return New(http.StatusConflict, message, nil)
}

// Unavailable reports a failed call to an external dependency (gateway, mail).
func Unavailable(message string, err error) *Error {
	return New(http.StatusServiceUnavailable, message, err)
}

func Internal(message string, err error) *Error {
	return New(http.StatusInternalServerError, message, err)
}

// From converts any error into an *Error, mapping known store and library
// errors onto the taxonomy. Unknown errors become 500.
func From(err error) *Error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return New(http.StatusNotFound, "Resource not found", err)
	}
	if errors.Is(err, primitive.ErrInvalidHex) {
		return New(http.StatusBadRequest, "Invalid id", err)
	}
	if mongo.IsDuplicateKeyError(err) {
		return New(http.StatusConflict, "Duplicate value", err)
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make([]string, 0, len(validationErrs))
		for _, fe := range validationErrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
		return New(http.StatusBadRequest, "Invalid input: "+strings.Join(fields, ", "), err)
	}

	if errors.Is(err, jwt.ErrTokenExpired) {
		return New(http.StatusUnauthorized, "Token expired, please log in again", err)
	}
	if errors.Is(err, jwt.ErrTokenMalformed) || errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return New(http.StatusUnauthorized, "Invalid token, please log in again", err)
	}

	return New(http.StatusInternalServerError, "Internal server error", err)
}
