package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/startsmart/internal/dto"
)

// listMessages returns one page of a funding request's negotiation thread, oldest first.
func (s *Server) listMessages(c *gin.Context) {
	frID, ok := s.pathID(c, "fundingRequestId")
	if !ok {
		return
	}

	var q dto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.bindError(c, err)
		return
	}

	page, err := s.negotiation.ListMessages(c.Request.Context(), callerID(c), frID, q.Page, q.Limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.writeData(c, http.StatusOK, "", page)
}

// sendMessage appends a message to the thread on behalf of the caller.
func (s *Server) sendMessage(c *gin.Context) {
	frID, ok := s.pathID(c, "fundingRequestId")
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.bindError(c, err)
		return
	}

	msg, out, err := s.negotiation.Send(c.Request.Context(), callerID(c), frID, req.Input())
	if err != nil {
		s.fail(c, err)
		return
	}

	s.flush(c, out)
	s.writeData(c, http.StatusCreated, "Message sent", msg)
}

func (s *Server) markDelivered(c *gin.Context) {
	frID, ok := s.pathID(c, "fundingRequestId")
	if !ok {
		return
	}

	var req dto.MarkDeliveredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.bindError(c, err)
		return
	}

	n, err := s.negotiation.MarkDelivered(c.Request.Context(), callerID(c), frID, req.ObjectIDs())
	if err != nil {
		s.fail(c, err)
		return
	}
	s.writeData(c, http.StatusOK, "Messages marked as delivered", gin.H{"modifiedCount": n})
}

// retryMessage resets a failed message of the caller back to sent.
func (s *Server) retryMessage(c *gin.Context) {
	id, ok := s.pathID(c, "messageId")
	if !ok {
		return
	}

	msg, err := s.negotiation.Retry(c.Request.Context(), callerID(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.writeData(c, http.StatusOK, "Message queued for retry", msg)
}

// unreadCount serves both the per-thread and the across-threads route.
func (s *Server) unreadCount(c *gin.Context) {
	var filter *bson.ObjectID
	if c.Param("fundingRequestId") != "" {
		id, ok := s.pathID(c, "fundingRequestId")
		if !ok {
			return
		}
		filter = &id
	}

	n, err := s.negotiation.UnreadCount(c.Request.Context(), callerID(c), filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.writeData(c, http.StatusOK, "", gin.H{"unreadCount": n})
}

func (s *Server) markViewed(c *gin.Context) {
	id, ok := s.pathID(c, "messageId")
	if !ok {
		return
	}

	added, err := s.negotiation.MarkViewed(c.Request.Context(), callerID(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.writeData(c, http.StatusOK, "", gin.H{"viewed": true, "recorded": added})
}
