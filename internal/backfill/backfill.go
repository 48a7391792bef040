// Package backfill holds the one-off data repairs run by cmd/backfill.
package backfill

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/startsmart/internal/data"
)

// Threads is the subset of data.FundingRequestsStore the backfills use.
type Threads interface {
	EachLegacyThread(ctx context.Context, fn func(*data.LegacyThread) error) error
	PendingWithMessages(ctx context.Context, messagesColl string) ([]bson.ObjectID, error)
	MarkNegotiated(ctx context.Context, id bson.ObjectID) (bool, error)
}

// Messages is the subset of data.MessagesStore the backfills use.
type Messages interface {
	Insert(ctx context.Context, msg *data.NegotiationMessage) (*data.NegotiationMessage, error)
	ExistsWithContentAt(ctx context.Context, fundingRequestID bson.ObjectID, content string, createdAt time.Time) (bool, error)
}

// Report counts what a run did.
type Report struct {
	Threads  int `json:"threads"`
	Scanned  int `json:"scanned"`
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"` // already migrated
	Invalid  int `json:"invalid"`
	Repaired int `json:"repaired"`
}

func (r Report) String() string {
	return fmt.Sprintf("threads=%d scanned=%d inserted=%d skipped=%d invalid=%d repaired=%d",
		r.Threads, r.Scanned, r.Inserted, r.Skipped, r.Invalid, r.Repaired)
}

// Runner executes backfills. With DryRun set nothing is written.
type Runner struct {
	threads      Threads
	msgs         Messages
	messagesColl string
	log          *zap.Logger
	DryRun       bool
}

// NewRunner returns a Runner. messagesColl names the collection messages live in.
func NewRunner(threads Threads, msgs Messages, messagesColl string, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{threads: threads, msgs: msgs, messagesColl: messagesColl, log: log}
}

// MigrateMessages copies embedded thread entries into the messages collection.
// An entry whose (funding request, content, created time) already exists is
// skipped, so the run can be repeated safely.
func (r *Runner) MigrateMessages(ctx context.Context) (Report, error) {
	var rep Report

	err := r.threads.EachLegacyThread(ctx, func(t *data.LegacyThread) error {
		rep.Threads++
		for _, lm := range t.Messages {
			rep.Scanned++

			msg, ok := convert(t, lm)
			if !ok {
				rep.Invalid++
				r.log.Warn("skipping invalid legacy message",
					zap.String("funding_request_id", t.ID.Hex()),
					zap.Time("created_at", lm.CreatedAt),
				)
				continue
			}

			exists, err := r.msgs.ExistsWithContentAt(ctx, t.ID, msg.Content, msg.CreatedAt)
			if err != nil {
				return fmt.Errorf("check %s: %w", t.ID.Hex(), err)
			}
			if exists {
				rep.Skipped++
				continue
			}

			if !r.DryRun {
				if _, err := r.msgs.Insert(ctx, msg); err != nil {
					return fmt.Errorf("insert into %s: %w", t.ID.Hex(), err)
				}
			}
			rep.Inserted++
		}
		return nil
	})
	if err != nil {
		return rep, err
	}

	r.log.Info("message backfill finished", zap.Stringer("report", rep), zap.Bool("dry_run", r.DryRun))
	return rep, nil
}

// RepairStatus flips pending funding requests that already have messages to
// negotiated, fixing threads whose status update was lost after a send.
func (r *Runner) RepairStatus(ctx context.Context) (Report, error) {
	var rep Report

	ids, err := r.threads.PendingWithMessages(ctx, r.messagesColl)
	if err != nil {
		return rep, fmt.Errorf("find pending threads: %w", err)
	}
	rep.Threads = len(ids)

	for _, id := range ids {
		if r.DryRun {
			rep.Repaired++
			continue
		}
		flipped, err := r.threads.MarkNegotiated(ctx, id)
		if err != nil {
			return rep, fmt.Errorf("repair %s: %w", id.Hex(), err)
		}
		if flipped {
			rep.Repaired++
		}
	}

	r.log.Info("status repair finished", zap.Stringer("report", rep), zap.Bool("dry_run", r.DryRun))
	return rep, nil
}

// convert maps a legacy entry onto the collection layout, filling the defaults the
// old schema left implicit. Entries without a sender, or without content for a
// non-system type, cannot be migrated.
func convert(t *data.LegacyThread, lm data.LegacyMessage) (*data.NegotiationMessage, bool) {
	if lm.Sender.IsZero() {
		return nil, false
	}

	msgType := lm.MessageType
	if msgType == "" {
		msgType = data.MessageText
	}
	if lm.Content == "" && msgType != data.MessageSystem {
		return nil, false
	}

	role := lm.SenderRole
	if role == "" {
		role = data.SenderInvestor
		if lm.Sender == t.EntrepreneurID {
			role = data.SenderEntrepreneur
		}
	}

	status := lm.Status
	switch status {
	case data.StatusPending, data.StatusSent, data.StatusDelivered, data.StatusFailed:
	default:
		status = data.StatusSent
	}

	createdAt := lm.CreatedAt
	if createdAt.IsZero() {
		createdAt = t.CreatedAt
	}

	msg := &data.NegotiationMessage{
		FundingRequestID: t.ID,
		SenderID:         lm.Sender,
		SenderRole:       role,
		MessageType:      msgType,
		Content:          lm.Content,
		Status:           status,
		CreatedAt:        createdAt.UTC().Truncate(time.Millisecond),
	}
	if msgType == data.MessageProposal && lm.ProposalData != nil {
		p := *lm.ProposalData
		msg.ProposalData = &p
	}
	return msg, true
}
