package api

import (
	"errors"
	"net/http"

	"github.com/lukman83/closeshave/internal/models"
)

// Error is a failure returned to API clients as
// {"error": Code, "message": Message, "details": Details}.
type Error struct {
	Status  int            `json:"-"`
	Code    string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func validationError(msg string, details map[string]any) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "VALIDATION_ERROR", Message: msg, Details: details}
}

func imageProxyError(status int, msg string) *Error {
	return &Error{Status: status, Code: "IMAGE_PROXY_ERROR", Message: msg}
}

var errInternal = &Error{
	Status:  http.StatusInternalServerError,
	Code:    "INTERNAL_SERVER_ERROR",
	Message: "An unexpected error occurred",
}

// toAPIError maps err onto the response shape. Anything unrecognised is an
// internal error whose text is not exposed.
func toAPIError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return validationError(verr.Err.Error(), nil)
	}
	return errInternal
}
