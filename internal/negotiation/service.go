// Package negotiation implements the funding-request negotiation thread:
// listing, sending, delivery acknowledgement, retry, unread counts and read
// receipts, plus the funding request and interest records that authorize it.
package negotiation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/startsmart/internal/data"
	"github.com/PaulBabatuyi/startsmart/internal/normalize"
	"github.com/PaulBabatuyi/startsmart/internal/notify"
)

// MaxContentLength is the longest message body accepted, in characters.
const MaxContentLength = 2000

var (
	ErrFundingRequestNotFound = errors.New("funding request not found")
	ErrMessageNotFound        = errors.New("message not found")
	ErrForbidden              = errors.New("not a participant of this negotiation")
	ErrNotSender              = errors.New("only the sender can retry a message")
	ErrNotFailed              = errors.New("only failed messages can be retried")
	ErrContentRequired        = errors.New("content is required")
	ErrContentTooLong         = fmt.Errorf("content must be at most %d characters", MaxContentLength)
	ErrInvalidMessageType     = errors.New("invalid message type")
)

// FundingRequests is the subset of data.FundingRequestsStore the service uses.
type FundingRequests interface {
	Create(ctx context.Context, fr *data.FundingRequest) (*data.FundingRequest, error)
	GetByID(ctx context.Context, id bson.ObjectID) (*data.FundingRequest, error)
	MarkNegotiated(ctx context.Context, id bson.ObjectID) (bool, error)
	ListByIdea(ctx context.Context, ideaID bson.ObjectID) ([]*data.FundingRequest, error)
	IDsByEntrepreneur(ctx context.Context, entrepreneurID bson.ObjectID) ([]bson.ObjectID, error)
	IDsByIdeas(ctx context.Context, ideaIDs []bson.ObjectID) ([]bson.ObjectID, error)
}

// Interests is the subset of data.InterestsStore the service uses.
type Interests interface {
	Create(ctx context.Context, ideaID, investorID bson.ObjectID, note string) (*data.Interest, error)
	Exists(ctx context.Context, ideaID, investorID bson.ObjectID) (bool, error)
	IdeaIDsByInvestor(ctx context.Context, investorID bson.ObjectID) ([]bson.ObjectID, error)
	InvestorIDsByIdea(ctx context.Context, ideaID bson.ObjectID) ([]bson.ObjectID, error)
}

// Messages is the subset of data.MessagesStore the service uses.
type Messages interface {
	Insert(ctx context.Context, msg *data.NegotiationMessage) (*data.NegotiationMessage, error)
	GetByID(ctx context.Context, id bson.ObjectID) (*data.NegotiationMessage, error)
	ListByFundingRequest(ctx context.Context, fundingRequestID bson.ObjectID, skip, limit int64) ([]*data.NegotiationMessage, error)
	CountByFundingRequest(ctx context.Context, fundingRequestID bson.ObjectID) (int64, error)
	MarkDelivered(ctx context.Context, fundingRequestID bson.ObjectID, ids []bson.ObjectID) (int64, error)
	RetryFailed(ctx context.Context, id, senderID bson.ObjectID) (*data.NegotiationMessage, error)
	CountUnread(ctx context.Context, userID bson.ObjectID, fundingRequestIDs []bson.ObjectID) (int64, error)
	MarkViewed(ctx context.Context, id, userID bson.ObjectID, at time.Time) (bool, error)
}

// Service coordinates the negotiation stores.
type Service struct {
	fundings  FundingRequests
	interests Interests
	msgs      Messages
	log       *zap.Logger
	now       func() time.Time
}

// NewService returns a Service. A nil logger disables logging.
func NewService(fundings FundingRequests, interests Interests, msgs Messages, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		fundings:  fundings,
		interests: interests,
		msgs:      msgs,
		log:       log,
		now:       time.Now,
	}
}

// SendInput is a validated send request.
type SendInput struct {
	Content      string
	MessageType  data.MessageType
	ProposalData *data.ProposalData
}

// MessagePage is one page of a thread.
type MessagePage struct {
	Messages []*data.NegotiationMessage `json:"messages"`
	Page     int                        `json:"page"`
	Limit    int                        `json:"limit"`
	Total    int64                      `json:"total"`
	Pages    int64                      `json:"pages"`
}

// access loads the funding request and derives the caller's side of the thread:
// the owning entrepreneur, or an investor with an interest record on the idea.
func (s *Service) access(ctx context.Context, caller, fundingRequestID bson.ObjectID) (*data.FundingRequest, data.SenderRole, error) {
	fr, err := s.fundings.GetByID(ctx, fundingRequestID)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, "", ErrFundingRequestNotFound
		}
		return nil, "", fmt.Errorf("load funding request: %w", err)
	}

	if fr.EntrepreneurID == caller {
		return fr, data.SenderEntrepreneur, nil
	}

	interested, err := s.interests.Exists(ctx, fr.IdeaID, caller)
	if err != nil {
		return nil, "", fmt.Errorf("check interest: %w", err)
	}
	if interested {
		return fr, data.SenderInvestor, nil
	}

	return nil, "", ErrForbidden
}

// ListMessages returns a page of the thread, oldest first, with senders resolved.
func (s *Service) ListMessages(ctx context.Context, caller, fundingRequestID bson.ObjectID, page, limit int) (*MessagePage, error) {
	if _, _, err := s.access(ctx, caller, fundingRequestID); err != nil {
		return nil, err
	}

	page, limit, skip := normalize.Page(page, limit)

	msgs, err := s.msgs.ListByFundingRequest(ctx, fundingRequestID, skip, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	total, err := s.msgs.CountByFundingRequest(ctx, fundingRequestID)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	return &MessagePage{
		Messages: msgs,
		Page:     page,
		Limit:    limit,
		Total:    total,
		Pages:    normalize.Pages(total, limit),
	}, nil
}

// Send appends a message to the thread and returns it with its sender resolved.
// The first message on a pending funding request moves it to negotiated. The
// returned outbox holds notifications for the other side of the thread.
func (s *Service) Send(ctx context.Context, caller, fundingRequestID bson.ObjectID, in SendInput) (*data.NegotiationMessage, *notify.Outbox, error) {
	msgType := in.MessageType
	if msgType == "" {
		msgType = data.MessageText
	}
	switch msgType {
	case data.MessageText, data.MessageProposal, data.MessageSystem:
	default:
		return nil, nil, ErrInvalidMessageType
	}

	content := strings.TrimSpace(in.Content)
	if content == "" && msgType != data.MessageSystem {
		return nil, nil, ErrContentRequired
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, nil, ErrContentTooLong
	}

	fr, role, err := s.access(ctx, caller, fundingRequestID)
	if err != nil {
		return nil, nil, err
	}

	msg := &data.NegotiationMessage{
		FundingRequestID: fundingRequestID,
		SenderID:         caller,
		SenderRole:       role,
		MessageType:      msgType,
		Content:          content,
		Status:           data.StatusSent,
		CreatedAt:        s.now().UTC(),
	}
	if msgType == data.MessageProposal && in.ProposalData != nil {
		p := *in.ProposalData
		msg.ProposalData = &p
	}

	saved, err := s.msgs.Insert(ctx, msg)
	if err != nil {
		return nil, nil, fmt.Errorf("insert message: %w", err)
	}

	// Not transactional with the insert. The flip is conditional on pending, so a
	// lost flip is repeated by the next send or by the repair-status backfill.
	if fr.Status == data.FundingPending {
		if _, err := s.fundings.MarkNegotiated(ctx, fundingRequestID); err != nil {
			s.log.Error("failed to mark funding request negotiated",
				zap.String("funding_request_id", fundingRequestID.Hex()),
				zap.String("message_id", saved.ID.Hex()),
				zap.Error(err),
			)
		}
	}

	if resolved, err := s.msgs.GetByID(ctx, saved.ID); err == nil {
		saved = resolved
	} else {
		s.log.Warn("failed to resolve message sender",
			zap.String("message_id", saved.ID.Hex()),
			zap.Error(err),
		)
	}

	return saved, s.counterpartEvents(ctx, fr, caller, role), nil
}

// counterpartEvents queues a new_message notification for everyone on the other side.
func (s *Service) counterpartEvents(ctx context.Context, fr *data.FundingRequest, caller bson.ObjectID, role data.SenderRole) *notify.Outbox {
	out := &notify.Outbox{}

	if role == data.SenderInvestor {
		out.Add(notify.NewMessage(fr.EntrepreneurID, fr.ID, role))
		return out
	}

	investors, err := s.interests.InvestorIDsByIdea(ctx, fr.IdeaID)
	if err != nil {
		s.log.Warn("failed to list investors for notification",
			zap.String("funding_request_id", fr.ID.Hex()),
			zap.Error(err),
		)
		return out
	}
	for _, id := range investors {
		if id != caller {
			out.Add(notify.NewMessage(id, fr.ID, role))
		}
	}
	return out
}

// MarkDelivered moves the listed messages of the thread from sent to delivered
// and returns how many changed.
func (s *Service) MarkDelivered(ctx context.Context, caller, fundingRequestID bson.ObjectID, ids []bson.ObjectID) (int64, error) {
	if _, _, err := s.access(ctx, caller, fundingRequestID); err != nil {
		return 0, err
	}

	n, err := s.msgs.MarkDelivered(ctx, fundingRequestID, ids)
	if err != nil {
		return 0, fmt.Errorf("mark delivered: %w", err)
	}
	return n, nil
}

// Retry resets a failed message of the caller back to sent.
func (s *Service) Retry(ctx context.Context, caller, messageID bson.ObjectID) (*data.NegotiationMessage, error) {
	msg, err := s.msgs.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("load message: %w", err)
	}

	if msg.SenderID != caller {
		return nil, ErrNotSender
	}
	if msg.Status != data.StatusFailed {
		return nil, ErrNotFailed
	}

	updated, err := s.msgs.RetryFailed(ctx, messageID, caller)
	if err != nil {
		// another retry won the race
		if errors.Is(err, data.ErrNotFound) {
			return nil, ErrNotFailed
		}
		return nil, fmt.Errorf("retry message: %w", err)
	}

	updated.Sender = msg.Sender
	return updated, nil
}

// UnreadCount counts messages not sent by the caller that are still sent or
// pending. With a funding request id the count covers that thread only;
// otherwise every thread the caller participates in.
func (s *Service) UnreadCount(ctx context.Context, caller bson.ObjectID, fundingRequestID *bson.ObjectID) (int64, error) {
	var threads []bson.ObjectID

	if fundingRequestID != nil {
		if _, _, err := s.access(ctx, caller, *fundingRequestID); err != nil {
			return 0, err
		}
		threads = []bson.ObjectID{*fundingRequestID}
	} else {
		var err error
		threads, err = s.participatingThreads(ctx, caller)
		if err != nil {
			return 0, err
		}
	}

	n, err := s.msgs.CountUnread(ctx, caller, threads)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

func (s *Service) participatingThreads(ctx context.Context, caller bson.ObjectID) ([]bson.ObjectID, error) {
	owned, err := s.fundings.IDsByEntrepreneur(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("list owned funding requests: %w", err)
	}

	ideas, err := s.interests.IdeaIDsByInvestor(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("list interests: %w", err)
	}
	invested, err := s.fundings.IDsByIdeas(ctx, ideas)
	if err != nil {
		return nil, fmt.Errorf("list funding requests by idea: %w", err)
	}

	seen := make(map[bson.ObjectID]struct{}, len(owned)+len(invested))
	threads := make([]bson.ObjectID, 0, len(owned)+len(invested))
	for _, id := range append(owned, invested...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		threads = append(threads, id)
	}
	return threads, nil
}

// MarkViewed records a read receipt for the caller. Receipts are informational
// and do not change the unread count.
func (s *Service) MarkViewed(ctx context.Context, caller, messageID bson.ObjectID) (bool, error) {
	msg, err := s.msgs.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return false, ErrMessageNotFound
		}
		return false, fmt.Errorf("load message: %w", err)
	}

	if _, _, err := s.access(ctx, caller, msg.FundingRequestID); err != nil {
		return false, err
	}

	added, err := s.msgs.MarkViewed(ctx, messageID, caller, s.now())
	if err != nil {
		return false, fmt.Errorf("mark viewed: %w", err)
	}
	return added, nil
}
