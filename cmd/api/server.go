package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/startsmart/internal/auth"
	"github.com/PaulBabatuyi/startsmart/internal/data"
	"github.com/PaulBabatuyi/startsmart/internal/dto"
	"github.com/PaulBabatuyi/startsmart/internal/middleware"
	"github.com/PaulBabatuyi/startsmart/internal/negotiation"
	"github.com/PaulBabatuyi/startsmart/internal/notify"
)

// userStore is the subset of data.UsersStore the handlers use.
type userStore interface {
	CreateUser(ctx context.Context, name, email, hashedPassword string, role data.Role) (*data.User, error)
	GetUserByEmail(ctx context.Context, email string) (*data.User, error)
	GetUserByID(ctx context.Context, id bson.ObjectID) (*data.User, error)
}

// notificationStore is the subset of data.NotificationsStore the handlers use.
type notificationStore interface {
	notify.Sink
	ListForUser(ctx context.Context, userID bson.ObjectID, limit int64) ([]*data.Notification, error)
	MarkRead(ctx context.Context, id, userID bson.ObjectID) error
}

// negotiator is implemented by *negotiation.Service.
type negotiator interface {
	ListMessages(ctx context.Context, caller, fundingRequestID bson.ObjectID, page, limit int) (*negotiation.MessagePage, error)
	Send(ctx context.Context, caller, fundingRequestID bson.ObjectID, in negotiation.SendInput) (*data.NegotiationMessage, *notify.Outbox, error)
	MarkDelivered(ctx context.Context, caller, fundingRequestID bson.ObjectID, ids []bson.ObjectID) (int64, error)
	Retry(ctx context.Context, caller, messageID bson.ObjectID) (*data.NegotiationMessage, error)
	UnreadCount(ctx context.Context, caller bson.ObjectID, fundingRequestID *bson.ObjectID) (int64, error)
	MarkViewed(ctx context.Context, caller, messageID bson.ObjectID) (bool, error)
	CreateFundingRequest(ctx context.Context, caller negotiation.Caller, in negotiation.FundingInput) (*data.FundingRequest, error)
	GetFundingRequest(ctx context.Context, caller, fundingRequestID bson.ObjectID) (*data.FundingRequest, error)
	RecordInterest(ctx context.Context, caller negotiation.Caller, ideaID bson.ObjectID, note string) (*data.Interest, *notify.Outbox, error)
}

// healthChecker reports database reachability; *db.Client implements it.
type healthChecker interface {
	IsHealthy(ctx context.Context) bool
}

// Server holds the handler dependencies.
type Server struct {
	users         userStore
	notifications notificationStore
	negotiation   negotiator
	health        healthChecker
	auth          *auth.JWTManager
	log           *zap.Logger

	// production hides stack traces from 500 responses
	production bool
}

// newServer returns a ready-to-use Server wired with stores and auth manager.
func newServer(users userStore, notifications notificationStore, neg negotiator, health healthChecker, authMgr *auth.JWTManager, log *zap.Logger, production bool) *Server {
	return &Server{
		users:         users,
		notifications: notifications,
		negotiation:   neg,
		health:        health,
		auth:          authMgr,
		log:           log,
		production:    production,
	}
}

// routes builds the gin engine. limiter guards register and login.
func (s *Server) routes(limiter *middleware.LimiterStore) *gin.Engine {
	dto.Register()

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(s.log),
		middleware.Recovery(s.log, !s.production),
	)
	r.NoRoute(func(c *gin.Context) {
		s.writeError(c, http.StatusNotFound, "NOT_FOUND", "Route not found")
	})

	r.GET("/health", s.healthCheck)

	api := r.Group("/api")

	authGroup := api.Group("/auth", middleware.RateLimit(limiter))
	authGroup.POST("/register", s.register)
	authGroup.POST("/login", s.login)

	protected := api.Group("", authenticate(s.auth))

	protected.POST("/funding", s.createFundingRequest)
	protected.GET("/funding/:fundingRequestId", s.getFundingRequest)
	protected.POST("/interests", s.recordInterest)

	neg := protected.Group("/negotiation")
	neg.GET("/unread", s.unreadCount)
	neg.GET("/funding/:fundingRequestId", s.listMessages)
	neg.POST("/funding/:fundingRequestId", s.sendMessage)
	neg.PUT("/funding/:fundingRequestId/delivered", s.markDelivered)
	neg.GET("/funding/:fundingRequestId/unread", s.unreadCount)
	neg.PUT("/:messageId/retry", s.retryMessage)
	neg.PUT("/:messageId/viewed", s.markViewed)

	protected.GET("/notifications", s.listNotifications)
	protected.PUT("/notifications/:id/read", s.markNotificationRead)

	return r
}
