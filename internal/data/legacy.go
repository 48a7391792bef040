package data

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// LegacyMessagesField is the array funding requests used to embed their thread in.
const LegacyMessagesField = "negotiation_messages"

// LegacyMessage is a thread entry in the old embedded layout. Field names follow
// the old documents, which used camelCase.
type LegacyMessage struct {
	Sender       bson.ObjectID `bson:"sender"`
	SenderRole   SenderRole    `bson:"senderRole,omitempty"`
	MessageType  MessageType   `bson:"messageType,omitempty"`
	Content      string        `bson:"content"`
	ProposalData *ProposalData `bson:"proposalData,omitempty"`
	Status       MessageStatus `bson:"status,omitempty"`
	CreatedAt    time.Time     `bson:"createdAt"`
}

// LegacyThread is a funding request still carrying an embedded thread.
type LegacyThread struct {
	ID             bson.ObjectID   `bson:"_id"`
	EntrepreneurID bson.ObjectID   `bson:"entrepreneur_id"`
	CreatedAt      time.Time       `bson:"created_at"`
	Messages       []LegacyMessage `bson:"negotiation_messages"`
}

// EachLegacyThread calls fn for every funding request with a non-empty embedded
// thread, stopping at the first error.
func (f *FundingRequestsStore) EachLegacyThread(ctx context.Context, fn func(*LegacyThread) error) error {
	filter := bson.M{LegacyMessagesField + ".0": bson.M{"$exists": true}}
	opts := options.Find().
		SetProjection(bson.M{"_id": 1, "entrepreneur_id": 1, "created_at": 1, LegacyMessagesField: 1}).
		SetSort(bson.M{"_id": 1})

	cursor, err := f.coll.Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var t LegacyThread
		if err := cursor.Decode(&t); err != nil {
			return err
		}
		if err := fn(&t); err != nil {
			return err
		}
	}
	return cursor.Err()
}
