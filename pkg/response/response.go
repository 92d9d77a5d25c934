// Package response writes the JSON envelope shared by every HTTP endpoint:
// {"success":bool,"data":...} on success, {"success":false,"error":{...}}
// otherwise.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes carried in ErrorInfo.Code.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

var statusCodes = map[int]string{
	http.StatusBadRequest:          CodeBadRequest,
	http.StatusUnauthorized:        CodeUnauthorized,
	http.StatusForbidden:           CodeForbidden,
	http.StatusNotFound:            CodeNotFound,
	http.StatusConflict:            CodeConflict,
	http.StatusTooManyRequests:     CodeRateLimited,
	http.StatusInternalServerError: CodeInternal,
	http.StatusServiceUnavailable:  CodeServiceUnavailable,
}

// Response is the envelope of every API response.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo describes a failed request.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

// Raw writes a pre-encoded JSON payload as the data field of a success
// envelope without decoding it first.
func Raw(c *gin.Context, data []byte) {
	if len(data) == 0 {
		data = []byte("null")
	}
	const head, tail = `{"success":true,"data":`, `}`
	body := make([]byte, 0, len(head)+len(data)+len(tail))
	body = append(body, head...)
	body = append(body, data...)
	body = append(body, tail...)
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// Error aborts the handler chain with an error envelope.
func Error(c *gin.Context, statusCode int, code, message string) {
	c.AbortWithStatusJSON(statusCode, Response{
		Error: &ErrorInfo{Code: code, Message: message},
	})
}

// Status aborts with the error code registered for statusCode, falling
// back to INTERNAL_ERROR.
func Status(c *gin.Context, statusCode int, message string) {
	code, ok := statusCodes[statusCode]
	if !ok {
		code = CodeInternal
	}
	Error(c, statusCode, code, message)
}

func BadRequest(c *gin.Context, message string) {
	Status(c, http.StatusBadRequest, message)
}

func Unauthorized(c *gin.Context, message string) {
	Status(c, http.StatusUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	Status(c, http.StatusForbidden, message)
}

func NotFound(c *gin.Context, message string) {
	Status(c, http.StatusNotFound, message)
}

func Conflict(c *gin.Context, message string) {
	Status(c, http.StatusConflict, message)
}

func TooManyRequests(c *gin.Context, message string) {
	Status(c, http.StatusTooManyRequests, message)
}

func InternalError(c *gin.Context, message string) {
	Status(c, http.StatusInternalServerError, message)
}

func ServiceUnavailable(c *gin.Context, message string) {
	Status(c, http.StatusServiceUnavailable, message)
}
