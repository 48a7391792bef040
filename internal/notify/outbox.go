// Package notify collects notification side effects produced by an operation
// so the caller decides when, and whether, to persist them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/startsmart/internal/data"
)

// Event is a pending notification for one user.
type Event struct {
	Type   data.NotificationType
	UserID bson.ObjectID
	Title  string
	Body   string
	RefID  *bson.ObjectID
}

// Sink persists notifications.
type Sink interface {
	Insert(ctx context.Context, n *data.Notification) (*data.Notification, error)
}

// Outbox is an ordered list of events. The zero value is ready to use.
type Outbox struct {
	mu     sync.Mutex
	events []Event
}

// Add queues an event.
func (o *Outbox) Add(ev Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
}

// Events returns a copy of the queued events.
func (o *Outbox) Events() []Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Event(nil), o.events...)
}

// Len returns the number of queued events.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.events)
}

// Flush persists every queued event in order and empties the outbox. A failing
// event does not stop the others; all failures are joined into the returned error.
func (o *Outbox) Flush(ctx context.Context, sink Sink) error {
	o.mu.Lock()
	events := o.events
	o.events = nil
	o.mu.Unlock()

	var errs []error
	for _, ev := range events {
		_, err := sink.Insert(ctx, &data.Notification{
			UserID: ev.UserID,
			Type:   ev.Type,
			Title:  ev.Title,
			Body:   ev.Body,
			RefID:  ev.RefID,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("notify %s for %s: %w", ev.Type, ev.UserID.Hex(), err))
		}
	}
	return errors.Join(errs...)
}

// Welcome is queued when a user registers.
func Welcome(userID bson.ObjectID, name string) Event {
	return Event{
		Type:   data.NotificationWelcome,
		UserID: userID,
		Title:  "Welcome to StartSmart",
		Body:   fmt.Sprintf("Hi %s, your account is ready.", name),
	}
}

// InvestorInterest is queued for an entrepreneur when an investor shows interest in their idea.
func InvestorInterest(entrepreneurID, fundingRequestID bson.ObjectID, investorName string) Event {
	ref := fundingRequestID
	return Event{
		Type:   data.NotificationInvestorInterest,
		UserID: entrepreneurID,
		Title:  "New investor interest",
		Body:   fmt.Sprintf("%s is interested in your idea.", investorName),
		RefID:  &ref,
	}
}

// NewMessage is queued for the other side of a negotiation thread.
func NewMessage(recipientID, fundingRequestID bson.ObjectID, role data.SenderRole) Event {
	ref := fundingRequestID
	return Event{
		Type:   data.NotificationNewMessage,
		UserID: recipientID,
		Title:  "New negotiation message",
		Body:   fmt.Sprintf("You have a new message from the %s.", role),
		RefID:  &ref,
	}
}
