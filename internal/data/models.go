package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Role is the platform role a user registered with.
type Role string

const (
	RoleEntrepreneur Role = "entrepreneur"
	RoleInvestor     Role = "investor"
	RoleAdmin        Role = "admin"
)

// User maps to users collection (id, name, email, password hash, role, timestamps)
type User struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string        `bson:"name" json:"name"`
	Email     string        `bson:"email" json:"email"`
	Password  string        `bson:"password" json:"-"`
	Role      Role          `bson:"role" json:"role"`
	CreatedAt time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time     `bson:"updated_at" json:"updatedAt"`
}

// FundingStatus is the lifecycle state of a funding request.
type FundingStatus string

const (
	FundingPending    FundingStatus = "pending"
	FundingNegotiated FundingStatus = "negotiated"
	FundingAccepted   FundingStatus = "accepted"
	FundingDeclined   FundingStatus = "declined"
)

// FundingRequest maps to funding_requests collection. It owns one negotiation thread.
type FundingRequest struct {
	ID             bson.ObjectID `bson:"_id,omitempty" json:"id"`
	IdeaID         bson.ObjectID `bson:"idea_id" json:"ideaId"`
	EntrepreneurID bson.ObjectID `bson:"entrepreneur_id" json:"entrepreneurId"`
	Amount         float64       `bson:"amount" json:"amount"`
	Equity         float64       `bson:"equity" json:"equity"`
	Description    string        `bson:"description,omitempty" json:"description,omitempty"`
	Status         FundingStatus `bson:"status" json:"status"`
	CreatedAt      time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time     `bson:"updated_at" json:"updatedAt"`
}

// Interest maps to interests collection: an investor's interest in an idea.
type Interest struct {
	ID         bson.ObjectID `bson:"_id,omitempty" json:"id"`
	IdeaID     bson.ObjectID `bson:"idea_id" json:"ideaId"`
	InvestorID bson.ObjectID `bson:"investor_id" json:"investorId"`
	Note       string        `bson:"note,omitempty" json:"note,omitempty"`
	CreatedAt  time.Time     `bson:"created_at" json:"createdAt"`
}

// SenderRole classifies the author of a negotiation message.
type SenderRole string

const (
	SenderInvestor     SenderRole = "investor"
	SenderEntrepreneur SenderRole = "entrepreneur"
)

// MessageType of a negotiation message.
type MessageType string

const (
	MessageText     MessageType = "text"
	MessageProposal MessageType = "proposal"
	MessageSystem   MessageType = "system"
)

// MessageStatus is the delivery bookkeeping state of a negotiation message.
type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusFailed    MessageStatus = "failed"
)

// ProposalData carries the terms of a proposal message.
type ProposalData struct {
	Amount    float64 `bson:"amount" json:"amount"`
	Equity    float64 `bson:"equity" json:"equity"`
	Valuation float64 `bson:"valuation" json:"valuation"`
}

// ViewedEntry is a read receipt.
type ViewedEntry struct {
	User     bson.ObjectID `bson:"user" json:"user"`
	ViewedAt time.Time     `bson:"viewed_at" json:"viewedAt"`
}

// SenderInfo is the resolved identity of a message sender; never persisted.
type SenderInfo struct {
	ID    bson.ObjectID `bson:"_id" json:"id"`
	Name  string        `bson:"name" json:"name"`
	Email string        `bson:"email" json:"email"`
}

// NegotiationMessage maps to negotiation_messages collection.
type NegotiationMessage struct {
	ID               bson.ObjectID `bson:"_id,omitempty" json:"id"`
	FundingRequestID bson.ObjectID `bson:"funding_request_id" json:"fundingRequestId"`
	SenderID         bson.ObjectID `bson:"sender_id" json:"senderId"`
	SenderRole       SenderRole    `bson:"sender_role" json:"senderRole"`
	MessageType      MessageType   `bson:"message_type" json:"messageType"`
	Content          string        `bson:"content" json:"content"`
	ProposalData     *ProposalData `bson:"proposal_data,omitempty" json:"proposalData,omitempty"`
	Status           MessageStatus `bson:"status" json:"status"`
	RetryCount       int           `bson:"retry_count" json:"retryCount"`
	ErrorMessage     string        `bson:"error_message,omitempty" json:"errorMessage,omitempty"`
	ViewedBy         []ViewedEntry `bson:"viewed_by" json:"viewedBy"`
	CreatedAt        time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt        time.Time     `bson:"updated_at" json:"updatedAt"`

	// Sender is filled by reads that resolve the sender ($lookup on users)
	Sender *SenderInfo `bson:"sender,omitempty" json:"sender,omitempty"`
}

// NotificationType names the event a notification was created for.
type NotificationType string

const (
	NotificationWelcome          NotificationType = "welcome"
	NotificationInvestorInterest NotificationType = "investor_interest"
	NotificationNewMessage       NotificationType = "new_message"
)

// Notification maps to notifications collection.
type Notification struct {
	ID        bson.ObjectID    `bson:"_id,omitempty" json:"id"`
	UserID    bson.ObjectID    `bson:"user_id" json:"userId"`
	Type      NotificationType `bson:"type" json:"type"`
	Title     string           `bson:"title" json:"title"`
	Body      string           `bson:"body,omitempty" json:"body,omitempty"`
	RefID     *bson.ObjectID   `bson:"ref_id,omitempty" json:"refId,omitempty"`
	Read      bool             `bson:"read" json:"read"`
	CreatedAt time.Time        `bson:"created_at" json:"createdAt"`
}
