package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error categories carried in the "code" field of every error body.
const (
	CodeBadRequest = "bad_request"
	CodeNotFound   = "not_found"
	CodeConflict   = "conflict"
	CodeInternal   = "internal_error"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "requestID"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success writes data as the bare JSON body.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Error writes a categorized error body. Server errors hide their cause from
// the client.
func Error(c *gin.Context, status int, category string, err interface{}) {
	msg := ""
	switch e := err.(type) {
	case string:
		msg = e
	case error:
		msg = e.Error()
	default:
		msg = "Internal Server Error"
	}

	log := zap.S().With("request_id", c.GetString(RequestIDKey), "status", status, "code", category)
	if status >= http.StatusInternalServerError {
		log.Errorf("API Error: %s", msg)
		msg = "Internal Server Error"
	} else {
		log.Warnf("API Error: %s", msg)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Code:    category,
		Message: msg,
	})
}

func BadRequest(c *gin.Context, err interface{}) {
	Error(c, http.StatusBadRequest, CodeBadRequest, err)
}

func NotFound(c *gin.Context, err interface{}) {
	Error(c, http.StatusNotFound, CodeNotFound, err)
}

func Internal(c *gin.Context, err interface{}) {
	Error(c, http.StatusInternalServerError, CodeInternal, err)
}
