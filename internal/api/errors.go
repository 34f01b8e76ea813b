package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"
)

type AppError struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
	// RetryAfter is emitted as a Retry-After header on 429/503 replies.
	RetryAfter time.Duration `json:"-"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrBadRequest      = &AppError{Code: http.StatusBadRequest, Message: "bad request"}
	ErrUnauthorized    = &AppError{Code: http.StatusUnauthorized, Message: "unauthorized"}
	ErrNotFound        = &AppError{Code: http.StatusNotFound, Message: "not found"}
	ErrInternalServer  = &AppError{Code: http.StatusInternalServerError, Message: "internal server error"}
	ErrInvalidIdentity = &AppError{Code: http.StatusBadRequest, Message: "missing or malformed identity"}
	ErrValidation      = &AppError{Code: http.StatusBadRequest, Message: "validation error"}
	ErrInvalidToken    = &AppError{Code: http.StatusUnauthorized, Message: "invalid or expired token"}
)

func NewBadRequestError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func NewTooManyRequestsError(msg string, retryAfter time.Duration) *AppError {
	return &AppError{Code: http.StatusTooManyRequests, Message: msg, RetryAfter: retryAfter}
}

func NewServiceUnavailableError(msg string, retryAfter time.Duration) *AppError {
	return &AppError{Code: http.StatusServiceUnavailable, Message: msg, RetryAfter: retryAfter}
}

func HandleError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(appErr.RetryAfter)))
		}
		JSONErrorMessage(w, appErr.Code, appErr.Message)
		return
	}
	JSONErrorMessage(w, http.StatusInternalServerError, "internal server error")
}

// retryAfterSeconds rounds up so a 500ms back-off doesn't become "retry now".
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
