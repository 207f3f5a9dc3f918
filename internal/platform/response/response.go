package response

import (
	"net/http"

	"github.com/Kilat-Pet-Delivery/service-tracking/internal/platform/domain"
	"github.com/gin-gonic/gin"
)

// Envelope is the JSON shape of every API response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success writes a 200 response.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// BadRequest writes a 400 validation response.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Envelope{
		Error: &ErrorBody{Code: string(domain.CodeValidation), Message: message},
	})
}

// Error maps err to an HTTP status and writes it.
func Error(c *gin.Context, err error) {
	ErrorWithData(c, err, nil)
}

// ErrorWithData maps err to an HTTP status and writes it with a payload,
// for failures that still carry a usable result.
func ErrorWithData(c *gin.Context, err error, data interface{}) {
	code := domain.CodeOf(err)
	message := err.Error()
	if code == domain.CodeInternal {
		message = "internal server error"
	}
	c.JSON(StatusFor(code), Envelope{
		Data:  data,
		Error: &ErrorBody{Code: string(code), Message: message},
	})
}

// StatusFor returns the HTTP status for an error code.
func StatusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeValidation:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeConflict, domain.CodeInvalidState:
		return http.StatusConflict
	case domain.CodePermissionDenied:
		return http.StatusForbidden
	case domain.CodeSampleSource:
		return http.StatusBadGateway
	case domain.CodeStorage, domain.CodeStorageInit:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
