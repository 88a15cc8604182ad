package resputil

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quarrel-lab/quarrel/pkg/apperr"
)

// Response is the envelope every endpoint returns. Msg holds a human
// readable message on the happy path and field-level detail on validation
// failures, so it is typed loosely on purpose.
type Response[T any] struct {
	Success bool    `json:"success"`
	Type    string  `json:"type"`
	Reason  *string `json:"reason"`
	Msg     any     `json:"msg"`
	Data    T       `json:"data"`
}

func wrapResponse(c *gin.Context, status int, success bool, typ string, reason *string, msg, data any) {
	c.JSON(status, Response[any]{
		Success: success,
		Type:    typ,
		Reason:  reason,
		Msg:     msg,
		Data:    data,
	})
}

// Info reports a successful read.
func Info(c *gin.Context, msg string, data any) {
	wrapResponse(c, http.StatusOK, true, TypeInfo, nil, msg, data)
}

// Success reports a successful mutation.
func Success(c *gin.Context, msg string, data any) {
	wrapResponse(c, http.StatusOK, true, TypeSuccess, nil, msg, data)
}

// Created reports a successful creation.
func Created(c *gin.Context, msg string, data any) {
	wrapResponse(c, http.StatusCreated, true, TypeSuccess, nil, msg, data)
}

// HTTPError reports a failure with an explicit status code and reason.
func HTTPError(c *gin.Context, status int, reason string, msg any) {
	wrapResponse(c, status, false, TypeError, &reason, msg, nil)
}

func BadRequestError(c *gin.Context, msg any) {
	HTTPError(c, http.StatusBadRequest, ReasonUnknown, msg)
}

func ValidationFailed(c *gin.Context, fields any) {
	HTTPError(c, http.StatusBadRequest, ReasonValidation, fields)
}

func Unauthorized(c *gin.Context) {
	HTTPError(c, http.StatusUnauthorized, ReasonUnauthorized, "Unauthorized")
}

func NotFound(c *gin.Context, msg string) {
	HTTPError(c, http.StatusNotFound, ReasonNotFound, msg)
}

func Forbidden(c *gin.Context, msg string) {
	HTTPError(c, http.StatusForbidden, ReasonForbidden, msg)
}

// Error translates a service error into the envelope. Storage and other
// unexpected failures intentionally share the generic 400 with client
// faults; the boundary does not reveal which side broke.
func Error(c *gin.Context, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		NotFound(c, notFoundMsg)
	case errors.Is(err, apperr.ErrForbidden):
		Forbidden(c, "Not have access to do the operation. Only creator, assignee and administrator has access to do this")
	default:
		if ve, ok := apperr.IsValidation(err); ok {
			ValidationFailed(c, ve.Fields)
			return
		}
		BadRequestError(c, "Something went wrong, please contact support")
	}
}
