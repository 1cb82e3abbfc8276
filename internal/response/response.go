// Package response writes the JSON envelope shared by every API route.
package response

import (
	"net/http"

	"github.com/suteetoe/scouting-service/pkg/apperror"

	"github.com/labstack/echo/v4"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Message string            `json:"message,omitempty"`
	Reason  string            `json:"reason,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// NoStore marks a response as private to the tenant and user.
func NoStore(c echo.Context) {
	h := c.Response().Header()
	h.Set("Cache-Control", "private, no-store, max-age=0")
	h.Set("Vary", "Authorization, Cookie")
}

// JSON writes env with status and the no-store headers.
func JSON(c echo.Context, status int, env Envelope) error {
	NoStore(c)
	return c.JSON(status, env)
}

// OK writes data with 200.
func OK(c echo.Context, data any) error {
	return JSON(c, http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes data with 201.
func Created(c echo.Context, data any, message string) error {
	return JSON(c, http.StatusCreated, Envelope{Success: true, Data: data, Message: message})
}

// Message writes a data-less success.
func Message(c echo.Context, message string) error {
	return JSON(c, http.StatusOK, Envelope{Success: true, Message: message})
}

// NotFound always answers 404 whatever the underlying reason.
func NotFound(c echo.Context, what string) error {
	msg := "not found"
	if what != "" {
		msg = what + " not found"
	}
	return JSON(c, http.StatusNotFound, Envelope{Error: msg})
}

// Internal answers 500 without any error detail.
func Internal(c echo.Context) error {
	return JSON(c, http.StatusInternalServerError, Envelope{Error: "internal server error"})
}

// BadRequest answers 400 with per-field messages, if any.
func BadRequest(c echo.Context, msg string, fields map[string]string) error {
	return JSON(c, http.StatusBadRequest, Envelope{Error: msg, Fields: fields})
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code string) int {
	switch code {
	case apperror.EInvalid:
		return http.StatusBadRequest
	case apperror.EUnauthorized:
		return http.StatusUnauthorized
	case apperror.EForbidden:
		return http.StatusForbidden
	case apperror.ENotFound:
		return http.StatusNotFound
	case apperror.EConflict:
		return http.StatusConflict
	case apperror.EBadGateway:
		return http.StatusBadGateway
	case apperror.EGatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as an envelope. Not-found codes go through NotFound and
// internal errors through Internal.
func Error(c echo.Context, err error) error {
	code := apperror.ErrorCode(err)
	switch code {
	case apperror.ENotFound:
		return NotFound(c, "")
	case apperror.EInternal:
		return Internal(c)
	}
	return JSON(c, StatusFor(code), Envelope{
		Error:  apperror.ErrorMessage(err),
		Reason: apperror.ErrorReason(err),
	})
}
