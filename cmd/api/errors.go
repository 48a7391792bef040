package main

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/startsmart/internal/data"
	"github.com/PaulBabatuyi/startsmart/internal/dto"
	"github.com/PaulBabatuyi/startsmart/internal/middleware"
	"github.com/PaulBabatuyi/startsmart/internal/negotiation"
	"github.com/PaulBabatuyi/startsmart/internal/notify"
)

// envelope is the shape of every JSON response.
type envelope struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
	Error   string            `json:"error,omitempty"`
	Details map[string]string `json:"details,omitempty"`
	Stack   string            `json:"stack,omitempty"`
}

const flushTimeout = 5 * time.Second

func (s *Server) writeData(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func (s *Server) writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, envelope{Success: false, Message: message, Error: code})
}

// bindError answers a failed ShouldBind* call with 400.
func (s *Server) bindError(c *gin.Context, err error) {
	if fields, ok := dto.ValidationMessages(err); ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, envelope{
			Success: false,
			Message: "Validation failed",
			Error:   "VALIDATION_ERROR",
			Details: fields,
		})
		return
	}
	s.writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Malformed request body")
}

// fail maps service and store errors to a status code. Anything unknown is a 500.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, negotiation.ErrFundingRequestNotFound),
		errors.Is(err, negotiation.ErrMessageNotFound),
		errors.Is(err, data.ErrNotFound):
		s.writeError(c, http.StatusNotFound, "NOT_FOUND", capitalize(err.Error()))

	case errors.Is(err, negotiation.ErrForbidden),
		errors.Is(err, negotiation.ErrNotSender),
		errors.Is(err, negotiation.ErrRoleNotAllowed):
		s.writeError(c, http.StatusForbidden, "FORBIDDEN", capitalize(err.Error()))

	case errors.Is(err, negotiation.ErrNotFailed),
		errors.Is(err, negotiation.ErrContentRequired),
		errors.Is(err, negotiation.ErrContentTooLong),
		errors.Is(err, negotiation.ErrInvalidMessageType):
		s.writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", capitalize(err.Error()))

	case errors.Is(err, negotiation.ErrAlreadyInterested),
		errors.Is(err, data.ErrDuplicateEmail):
		s.writeError(c, http.StatusConflict, "CONFLICT", capitalize(err.Error()))

	default:
		s.internalError(c, err)
	}
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.log.Error("request failed",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	_ = c.Error(err)

	body := envelope{
		Success: false,
		Message: "Internal server error",
		Error:   "INTERNAL_ERROR",
	}
	if !s.production {
		body.Message = err.Error()
		body.Stack = string(debug.Stack())
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, body)
}

// flush persists queued notifications. Failures are logged, never returned to
// the client: the primary write already succeeded.
func (s *Server) flush(c *gin.Context, out *notify.Outbox) {
	if out == nil || out.Len() == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), flushTimeout)
	defer cancel()

	if err := out.Flush(ctx, s.notifications); err != nil {
		s.log.Warn("failed to persist notifications",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err),
		)
	}
}

// pathID parses an ObjectID path parameter, answering 400 when it is malformed.
func (s *Server) pathID(c *gin.Context, name string) (bson.ObjectID, bool) {
	id, err := bson.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, envelope{
			Success: false,
			Message: "Validation failed",
			Error:   "VALIDATION_ERROR",
			Details: map[string]string{name: "must be a valid id"},
		})
		return bson.ObjectID{}, false
	}
	return id, true
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
