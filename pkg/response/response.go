package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the unified API response format.
type Response struct {
	Code    int         `json:"code"`
	Kind    Kind        `json:"kind,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Kind classifies an error so callers can branch on the failure mode
// ("server is slow" versus "server rejected the request").
type Kind string

const (
	KindTimeout          Kind = "timeout"
	KindUnauthorized     Kind = "unauthorized"
	KindNotFound         Kind = "not_found"
	KindValidation       Kind = "validation"
	KindPermissionDenied Kind = "permission_denied"
	KindInternal         Kind = "internal"
)

// FieldError is a field-level validation message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError represents a structured application error with HTTP status and error code.
type AppError struct {
	HTTPStatus int          // HTTP status code (e.g. 400, 404, 500)
	Code       int          // Application-level error code
	Kind       Kind         // Failure category
	Message    string       // Human-readable error message
	Fields     []FieldError // Only set for KindValidation
}

func (e *AppError) Error() string {
	return e.Message
}

// Is matches any *AppError of the same kind, so errors.Is(err, ErrTimeout) works
// regardless of message.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrTimeout          = &AppError{Kind: KindTimeout}
	ErrUnauthorized     = &AppError{Kind: KindUnauthorized}
	ErrNotFound         = &AppError{Kind: KindNotFound}
	ErrValidation       = &AppError{Kind: KindValidation}
	ErrPermissionDenied = &AppError{Kind: KindPermissionDenied}
)

func NewBadRequest(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusBadRequest, Code: 400, Kind: KindValidation, Message: msg}
}

func NewValidation(msg string, fields []FieldError) *AppError {
	return &AppError{HTTPStatus: http.StatusBadRequest, Code: 400, Kind: KindValidation, Message: msg, Fields: fields}
}

func NewUnauthorized(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusUnauthorized, Code: 401, Kind: KindUnauthorized, Message: msg}
}

func NewPermissionDenied(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusForbidden, Code: 403, Kind: KindPermissionDenied, Message: msg}
}

func NewNotFound(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusNotFound, Code: 404, Kind: KindNotFound, Message: msg}
}

func NewTimeout(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusServiceUnavailable, Code: 503, Kind: KindTimeout, Message: msg}
}

func NewServerError(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusInternalServerError, Code: 500, Kind: KindInternal, Message: msg}
}

// KindOf returns the Kind of err, or KindInternal for anything that is not an *AppError.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// --- Gin response helpers ---

// Success sends a 200 OK response with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "ok",
		Data:    data,
	})
}

// Created sends a 201 Created response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    0,
		Message: "created",
		Data:    data,
	})
}

// Error sends an error response. If err is an *AppError, its code and status
// are used; otherwise a generic 500 internal server error is returned.
func Error(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		body := Response{
			Code:    appErr.Code,
			Kind:    appErr.Kind,
			Message: appErr.Message,
		}
		if len(appErr.Fields) > 0 {
			body.Data = gin.H{"fields": appErr.Fields}
		}
		c.JSON(appErr.HTTPStatus, body)
		return
	}
	c.JSON(http.StatusInternalServerError, Response{
		Code:    500,
		Kind:    KindInternal,
		Message: err.Error(),
	})
}

// Convenience error response functions

func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Code: 400, Kind: KindValidation, Message: msg})
}

func Unauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, Response{Code: 401, Kind: KindUnauthorized, Message: msg})
}

func Forbidden(c *gin.Context, msg string) {
	c.JSON(http.StatusForbidden, Response{Code: 403, Kind: KindPermissionDenied, Message: msg})
}

func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, Response{Code: 404, Kind: KindNotFound, Message: msg})
}

func TooManyRequests(c *gin.Context, msg string) {
	c.JSON(http.StatusTooManyRequests, Response{Code: 429, Message: msg})
}
