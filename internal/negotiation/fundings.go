package negotiation

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/startsmart/internal/data"
	"github.com/PaulBabatuyi/startsmart/internal/notify"
)

var (
	ErrRoleNotAllowed    = errors.New("role not allowed for this action")
	ErrAlreadyInterested = errors.New("interest already recorded for this idea")
)

// Caller is the authenticated user behind a request.
type Caller struct {
	ID   bson.ObjectID
	Name string
	Role data.Role
}

// FundingInput is a validated funding request submission.
type FundingInput struct {
	IdeaID      bson.ObjectID
	Amount      float64
	Equity      float64
	Description string
}

// CreateFundingRequest opens a new pending funding request owned by the caller.
func (s *Service) CreateFundingRequest(ctx context.Context, caller Caller, in FundingInput) (*data.FundingRequest, error) {
	if caller.Role != data.RoleEntrepreneur {
		return nil, ErrRoleNotAllowed
	}

	fr, err := s.fundings.Create(ctx, &data.FundingRequest{
		IdeaID:         in.IdeaID,
		EntrepreneurID: caller.ID,
		Amount:         in.Amount,
		Equity:         in.Equity,
		Description:    in.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("create funding request: %w", err)
	}
	return fr, nil
}

// GetFundingRequest returns a funding request to one of its thread participants.
func (s *Service) GetFundingRequest(ctx context.Context, caller, fundingRequestID bson.ObjectID) (*data.FundingRequest, error) {
	fr, _, err := s.access(ctx, caller, fundingRequestID)
	if err != nil {
		return nil, err
	}
	return fr, nil
}

// RecordInterest registers the caller's interest in an idea, which admits them to
// the negotiation threads of that idea's funding requests. The owning
// entrepreneurs are queued an investor_interest notification.
func (s *Service) RecordInterest(ctx context.Context, caller Caller, ideaID bson.ObjectID, note string) (*data.Interest, *notify.Outbox, error) {
	if caller.Role != data.RoleInvestor {
		return nil, nil, ErrRoleNotAllowed
	}

	in, err := s.interests.Create(ctx, ideaID, caller.ID, note)
	if err != nil {
		if errors.Is(err, data.ErrDuplicateInterest) {
			return nil, nil, ErrAlreadyInterested
		}
		return nil, nil, fmt.Errorf("create interest: %w", err)
	}

	out := &notify.Outbox{}
	frs, err := s.fundings.ListByIdea(ctx, ideaID)
	if err != nil {
		s.log.Warn("failed to list funding requests for notification", zap.String("idea_id", ideaID.Hex()), zap.Error(err))
		return in, out, nil
	}

	notified := make(map[bson.ObjectID]bool)
	for _, fr := range frs {
		if notified[fr.EntrepreneurID] {
			continue
		}
		notified[fr.EntrepreneurID] = true
		out.Add(notify.InvestorInterest(fr.EntrepreneurID, fr.ID, caller.Name))
	}
	return in, out, nil
}
