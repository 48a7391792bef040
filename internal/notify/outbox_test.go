package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/startsmart/internal/data"
)

type recordingSink struct {
	got    []*data.Notification
	failOn data.NotificationType
}

func (s *recordingSink) Insert(_ context.Context, n *data.Notification) (*data.Notification, error) {
	if n.Type == s.failOn {
		return nil, errors.New("insert failed")
	}
	s.got = append(s.got, n)
	return n, nil
}

func TestOutboxFlushPersistsInOrder(t *testing.T) {
	var o Outbox
	u1, u2, fr := bson.NewObjectID(), bson.NewObjectID(), bson.NewObjectID()

	o.Add(Welcome(u1, "Ada"))
	o.Add(NewMessage(u2, fr, data.SenderInvestor))
	require.Equal(t, 2, o.Len())

	sink := &recordingSink{}
	require.NoError(t, o.Flush(context.Background(), sink))

	require.Len(t, sink.got, 2)
	assert.Equal(t, data.NotificationWelcome, sink.got[0].Type)
	assert.Equal(t, u1, sink.got[0].UserID)
	assert.Equal(t, data.NotificationNewMessage, sink.got[1].Type)
	require.NotNil(t, sink.got[1].RefID)
	assert.Equal(t, fr, *sink.got[1].RefID)
	assert.Equal(t, 0, o.Len(), "flush empties the outbox")
}

func TestOutboxFlushContinuesPastFailures(t *testing.T) {
	var o Outbox
	o.Add(InvestorInterest(bson.NewObjectID(), bson.NewObjectID(), "Ivan"))
	o.Add(Welcome(bson.NewObjectID(), "Ada"))

	sink := &recordingSink{failOn: data.NotificationInvestorInterest}
	err := o.Flush(context.Background(), sink)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "investor_interest")
	require.Len(t, sink.got, 1)
	assert.Equal(t, data.NotificationWelcome, sink.got[0].Type)
}

func TestOutboxEventsIsACopy(t *testing.T) {
	var o Outbox
	o.Add(Welcome(bson.NewObjectID(), "Ada"))

	evs := o.Events()
	evs[0].Title = "changed"
	assert.Equal(t, "Welcome to StartSmart", o.Events()[0].Title)
}

func TestEmptyOutboxFlush(t *testing.T) {
	var o Outbox
	assert.NoError(t, o.Flush(context.Background(), &recordingSink{}))
}
