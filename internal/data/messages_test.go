package data

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/startsmart/internal/db"
)

func seedThread(t *testing.T, c *db.Client) (entrepreneur, investor *User, fr *FundingRequest) {
	t.Helper()
	ctx := context.Background()

	users := NewUsersStore(c.Users())
	var err error
	entrepreneur, err = users.CreateUser(ctx, "Erin", "erin@example.com", "h", RoleEntrepreneur)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	investor, err = users.CreateUser(ctx, "Ivan", "ivan@example.com", "h", RoleInvestor)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	fr, err = NewFundingRequestsStore(c.FundingRequests()).Create(ctx, &FundingRequest{
		IdeaID:         bson.NewObjectID(),
		EntrepreneurID: entrepreneur.ID,
		Amount:         50000,
		Equity:         10,
	})
	if err != nil {
		t.Fatalf("Create funding request failed: %v", err)
	}
	return entrepreneur, investor, fr
}

func TestMessagesListOrderAndSender(t *testing.T) {
	c := setupDB(t)
	ctx := context.Background()
	e, i, fr := seedThread(t, c)
	msgs := NewMessagesStore(c.Messages(), db.UsersCollection)

	// insert out of chronological order
	now := time.Now().UTC().Truncate(time.Millisecond)
	if _, err := msgs.Insert(ctx, &NegotiationMessage{
		FundingRequestID: fr.ID, SenderID: e.ID, SenderRole: SenderEntrepreneur,
		MessageType: MessageText, Content: "Can we do 8%?", Status: StatusSent, CreatedAt: now.Add(time.Second),
	}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := msgs.Insert(ctx, &NegotiationMessage{
		FundingRequestID: fr.ID, SenderID: i.ID, SenderRole: SenderInvestor,
		MessageType: MessageText, Content: "Interested at $50k for 10%", Status: StatusSent, CreatedAt: now,
	}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	list, err := msgs.ListByFundingRequest(ctx, fr.ID, 0, 50)
	if err != nil {
		t.Fatalf("ListByFundingRequest failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(list))
	}
	if list[0].SenderRole != SenderInvestor || list[1].SenderRole != SenderEntrepreneur {
		t.Fatalf("messages not ordered oldest first: %s, %s", list[0].SenderRole, list[1].SenderRole)
	}
	if list[0].Sender == nil || list[0].Sender.Email != "ivan@example.com" || list[0].Sender.Name != "Ivan" {
		t.Fatalf("sender not resolved: %+v", list[0].Sender)
	}

	page2, err := msgs.ListByFundingRequest(ctx, fr.ID, 1, 1)
	if err != nil {
		t.Fatalf("ListByFundingRequest page 2 failed: %v", err)
	}
	if len(page2) != 1 || page2[0].Content != "Can we do 8%?" {
		t.Fatalf("unexpected second page: %+v", page2)
	}

	total, err := msgs.CountByFundingRequest(ctx, fr.ID)
	if err != nil || total != 2 {
		t.Fatalf("CountByFundingRequest: total=%d err=%v", total, err)
	}
}

func TestMessagesMarkDeliveredIsScopedAndIdempotent(t *testing.T) {
	c := setupDB(t)
	ctx := context.Background()
	e, i, fr := seedThread(t, c)
	msgs := NewMessagesStore(c.Messages(), db.UsersCollection)

	a, _ := msgs.Insert(ctx, &NegotiationMessage{FundingRequestID: fr.ID, SenderID: i.ID, Content: "a", Status: StatusSent})
	b, _ := msgs.Insert(ctx, &NegotiationMessage{FundingRequestID: fr.ID, SenderID: e.ID, Content: "b", Status: StatusSent})
	other, _ := msgs.Insert(ctx, &NegotiationMessage{FundingRequestID: bson.NewObjectID(), SenderID: e.ID, Content: "c", Status: StatusSent})

	n, err := msgs.MarkDelivered(ctx, fr.ID, []bson.ObjectID{a.ID, b.ID, other.ID})
	if err != nil {
		t.Fatalf("MarkDelivered failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 modified, got %d", n)
	}

	n, err = msgs.MarkDelivered(ctx, fr.ID, []bson.ObjectID{a.ID, b.ID})
	if err != nil || n != 0 {
		t.Fatalf("second MarkDelivered: n=%d err=%v", n, err)
	}

	got, err := msgs.GetByID(ctx, other.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != StatusSent {
		t.Fatalf("message of another thread changed status: %s", got.Status)
	}
}

func TestMessagesRetryFailed(t *testing.T) {
	c := setupDB(t)
	ctx := context.Background()
	_, i, fr := seedThread(t, c)
	msgs := NewMessagesStore(c.Messages(), db.UsersCollection)

	failed, err := msgs.Insert(ctx, &NegotiationMessage{
		FundingRequestID: fr.ID, SenderID: i.ID, Content: "x",
		Status: StatusFailed, ErrorMessage: "gateway timeout",
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// wrong sender matches nothing
	if _, err := msgs.RetryFailed(ctx, failed.ID, bson.NewObjectID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other sender, got %v", err)
	}

	got, err := msgs.RetryFailed(ctx, failed.ID, i.ID)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if got.Status != StatusSent || got.RetryCount != 1 || got.ErrorMessage != "" {
		t.Fatalf("unexpected message after retry: %+v", got)
	}

	// no longer failed, so a second retry matches nothing
	if _, err := msgs.RetryFailed(ctx, failed.ID, i.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second retry, got %v", err)
	}
}

func TestMessagesUnreadAndViewed(t *testing.T) {
	c := setupDB(t)
	ctx := context.Background()
	e, i, fr := seedThread(t, c)
	msgs := NewMessagesStore(c.Messages(), db.UsersCollection)

	m1, _ := msgs.Insert(ctx, &NegotiationMessage{FundingRequestID: fr.ID, SenderID: i.ID, Content: "1", Status: StatusSent})
	_, _ = msgs.Insert(ctx, &NegotiationMessage{FundingRequestID: fr.ID, SenderID: i.ID, Content: "2", Status: StatusPending})
	_, _ = msgs.Insert(ctx, &NegotiationMessage{FundingRequestID: fr.ID, SenderID: i.ID, Content: "3", Status: StatusDelivered})
	_, _ = msgs.Insert(ctx, &NegotiationMessage{FundingRequestID: fr.ID, SenderID: e.ID, Content: "4", Status: StatusSent})

	n, err := msgs.CountUnread(ctx, e.ID, []bson.ObjectID{fr.ID})
	if err != nil || n != 2 {
		t.Fatalf("CountUnread for entrepreneur: n=%d err=%v", n, err)
	}
	n, err = msgs.CountUnread(ctx, i.ID, []bson.ObjectID{fr.ID})
	if err != nil || n != 1 {
		t.Fatalf("CountUnread for investor: n=%d err=%v", n, err)
	}

	added, err := msgs.MarkViewed(ctx, m1.ID, e.ID, time.Now())
	if err != nil || !added {
		t.Fatalf("MarkViewed: added=%v err=%v", added, err)
	}
	added, err = msgs.MarkViewed(ctx, m1.ID, e.ID, time.Now())
	if err != nil || added {
		t.Fatalf("second MarkViewed should be a no-op: added=%v err=%v", added, err)
	}

	// receipts do not affect the unread count
	n, _ = msgs.CountUnread(ctx, e.ID, []bson.ObjectID{fr.ID})
	if n != 2 {
		t.Fatalf("expected unread count unchanged by receipts, got %d", n)
	}
}

func TestFundingRequestMarkNegotiatedOnce(t *testing.T) {
	c := setupDB(t)
	ctx := context.Background()
	_, _, fr := seedThread(t, c)
	store := NewFundingRequestsStore(c.FundingRequests())

	flipped, err := store.MarkNegotiated(ctx, fr.ID)
	if err != nil || !flipped {
		t.Fatalf("first MarkNegotiated: flipped=%v err=%v", flipped, err)
	}
	flipped, err = store.MarkNegotiated(ctx, fr.ID)
	if err != nil || flipped {
		t.Fatalf("second MarkNegotiated: flipped=%v err=%v", flipped, err)
	}

	got, err := store.GetByID(ctx, fr.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != FundingNegotiated {
		t.Fatalf("expected negotiated, got %s", got.Status)
	}
}
