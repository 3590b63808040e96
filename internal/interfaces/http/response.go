package http

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-reimbursement/internal/application/service"
)

const codeUnauthorized = "UNAUTHORIZED"

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody describes a failed request
type ErrorBody struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// statusFor maps business error codes onto HTTP status codes
func statusFor(code service.ErrorCode) int {
	switch code {
	case service.CodeNotFound, service.CodeLoanNotFound:
		return http.StatusNotFound
	case service.CodeForbidden, service.CodeUserMismatch:
		return http.StatusForbidden
	case service.CodeInvalidState, service.CodeFormLocked:
		return http.StatusConflict
	case service.CodeInternal:
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

func (h *Handlers) ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// fail writes err; unexpected errors are logged and hidden behind the request id
func (h *Handlers) fail(c *gin.Context, err error) {
	reqID := requestID(c)

	if be, ok := service.AsError(err); ok && be.Code != service.CodeInternal {
		c.JSON(statusFor(be.Code), Response{
			Success: false,
			Error: &ErrorBody{
				Code:      string(be.Code),
				Message:   be.Message,
				Details:   be.Details,
				RequestID: reqID,
			},
		})
		return
	}

	h.logger.Error("Request failed",
		"error", err,
		"request_id", reqID,
		"method", c.Request.Method,
		"path", c.Request.URL.Path)
	c.JSON(http.StatusInternalServerError, Response{
		Success: false,
		Error: &ErrorBody{
			Code:      string(service.CodeInternal),
			Message:   "internal server error",
			RequestID: reqID,
		},
	})
}

func (h *Handlers) badRequest(c *gin.Context, format string, args ...interface{}) {
	h.fail(c, &service.Error{Code: service.CodeInvalidInput, Message: fmt.Sprintf(format, args...)})
}

func (h *Handlers) forbidden(c *gin.Context, message string) {
	h.fail(c, &service.Error{Code: service.CodeForbidden, Message: message})
}

func (h *Handlers) download(c *gin.Context, file *service.ExportFile) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(file.Name)))
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
