package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/expense-reimbursement/internal/application/service"
)

// Identity and tracing headers
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserRole  = "X-User-Role"
	HeaderRequestID = "X-Request-ID"
)

const (
	ctxActor     = "actor"
	ctxRequestID = "request_id"
)

// requestIDMiddleware reuses a caller supplied request id or mints one
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// identityMiddleware resolves the caller from the identity headers
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(strings.TrimSpace(c.GetHeader(HeaderUserID)), 10, 64)
		role := service.Role(strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderUserRole))))

		if err != nil || userID <= 0 || !role.IsValid() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error: &ErrorBody{
					Code:      codeUnauthorized,
					Message:   "missing or invalid identity headers",
					RequestID: requestID(c),
				},
			})
			return
		}

		c.Set(ctxActor, service.Actor{UserID: userID, Role: role})
		c.Next()
	}
}

func actorFrom(c *gin.Context) service.Actor {
	actor, _ := c.MustGet(ctxActor).(service.Actor)
	return actor
}

func requestID(c *gin.Context) string {
	return c.GetString(ctxRequestID)
}
