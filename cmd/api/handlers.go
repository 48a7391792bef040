package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/startsmart/internal/auth"
	"github.com/PaulBabatuyi/startsmart/internal/data"
	"github.com/PaulBabatuyi/startsmart/internal/dto"
	"github.com/PaulBabatuyi/startsmart/internal/negotiation"
	"github.com/PaulBabatuyi/startsmart/internal/notify"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 100
)

type tokenResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      *data.User `json:"user"`
}

// register handles user registration: hashes password, stores user, returns JWT token
func (s *Server) register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.bindError(c, err)
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		s.internalError(c, err)
		return
	}

	user, err := s.users.CreateUser(c.Request.Context(), req.Name, req.Email, hashed, data.Role(req.Role))
	if err != nil {
		s.fail(c, err)
		return
	}

	token, expiresAt, err := s.auth.GenerateToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		s.internalError(c, err)
		return
	}

	out := &notify.Outbox{}
	out.Add(notify.Welcome(user.ID, user.Name))
	s.flush(c, out)

	s.writeData(c, http.StatusCreated, "Registration successful", tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	})
}

// login authenticates a user and returns a JWT token
func (s *Server) login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.bindError(c, err)
		return
	}

	user, err := s.users.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			s.writeError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
			return
		}
		s.internalError(c, err)
		return
	}

	if err := auth.CheckPassword(user.Password, req.Password); err != nil {
		s.writeError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		return
	}

	token, expiresAt, err := s.auth.GenerateToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		s.internalError(c, err)
		return
	}

	s.writeData(c, http.StatusOK, "Login successful", tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	})
}

// caller loads the authenticated user. Role-gated operations use the stored
// role, not the one in the token, so a role change applies immediately.
func (s *Server) caller(c *gin.Context) (negotiation.Caller, bool) {
	user, err := s.users.GetUserByID(c.Request.Context(), callerID(c))
	if err != nil {
		s.fail(c, err)
		return negotiation.Caller{}, false
	}
	return negotiation.Caller{ID: user.ID, Name: user.Name, Role: user.Role}, true
}

func (s *Server) createFundingRequest(c *gin.Context) {
	var req dto.CreateFundingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.bindError(c, err)
		return
	}

	caller, ok := s.caller(c)
	if !ok {
		return
	}
	fr, err := s.negotiation.CreateFundingRequest(c.Request.Context(), caller, req.Input())
	if err != nil {
		s.fail(c, err)
		return
	}
	s.writeData(c, http.StatusCreated, "Funding request created", fr)
}

func (s *Server) getFundingRequest(c *gin.Context) {
	id, ok := s.pathID(c, "fundingRequestId")
	if !ok {
		return
	}

	fr, err := s.negotiation.GetFundingRequest(c.Request.Context(), callerID(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.writeData(c, http.StatusOK, "", fr)
}

// recordInterest registers an investor's interest in an idea and notifies the
// entrepreneurs behind it.
func (s *Server) recordInterest(c *gin.Context) {
	var req dto.CreateInterestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.bindError(c, err)
		return
	}
	caller, ok := s.caller(c)
	if !ok {
		return
	}

	ideaID, _ := bson.ObjectIDFromHex(req.IdeaID)
	in, out, err := s.negotiation.RecordInterest(c.Request.Context(), caller, ideaID, req.Note)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.flush(c, out)
	s.writeData(c, http.StatusCreated, "Interest recorded", in)
}

func (s *Server) listNotifications(c *gin.Context) {
	limit := defaultNotificationLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a positive integer")
			return
		}
		limit = min(n, maxNotificationLimit)
	}

	list, err := s.notifications.ListForUser(c.Request.Context(), callerID(c), int64(limit))
	if err != nil {
		s.internalError(c, err)
		return
	}
	if list == nil {
		list = []*data.Notification{}
	}
	s.writeData(c, http.StatusOK, "", list)
}

func (s *Server) markNotificationRead(c *gin.Context) {
	id, ok := s.pathID(c, "id")
	if !ok {
		return
	}

	if err := s.notifications.MarkRead(c.Request.Context(), id, callerID(c)); err != nil {
		s.fail(c, err)
		return
	}
	s.writeData(c, http.StatusOK, "Notification marked as read", nil)
}

func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if !s.health.IsHealthy(ctx) {
		s.log.Warn("health check failed: database unreachable")
		c.JSON(http.StatusServiceUnavailable, envelope{
			Success: false,
			Message: "Database unavailable",
			Error:   "UNHEALTHY",
			Data:    gin.H{"status": "degraded", "database": "down"},
		})
		return
	}
	s.writeData(c, http.StatusOK, "", gin.H{
		"status":   "ok",
		"database": "up",
		"time":     time.Now().Unix(),
	})
}
