package data

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MessagesStore provides negotiation message database operations.
type MessagesStore struct {
	// coll is reference to "negotiation_messages" collection in MongoDB
	coll *mongo.Collection

	// usersColl is the collection senders are resolved from
	usersColl string
}

// NewMessagesStore returns a MessagesStore using given collection. Senders are
// resolved against the collection named usersColl.
func NewMessagesStore(coll *mongo.Collection, usersColl string) *MessagesStore {
	return &MessagesStore{coll: coll, usersColl: usersColl}
}

// Insert stores a new message and returns it with its generated id.
func (m *MessagesStore) Insert(ctx context.Context, msg *NegotiationMessage) (*NegotiationMessage, error) {
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now

	// $push on a null field fails, so always start with an empty receipt list
	if msg.ViewedBy == nil {
		msg.ViewedBy = []ViewedEntry{}
	}
	msg.Sender = nil

	result, err := m.coll.InsertOne(ctx, msg)
	if err != nil {
		return nil, err
	}

	msg.ID = result.InsertedID.(bson.ObjectID)
	return msg, nil
}

// GetByID returns a message with its sender resolved.
func (m *MessagesStore) GetByID(ctx context.Context, id bson.ObjectID) (*NegotiationMessage, error) {
	msgs, err := m.find(ctx, bson.D{{Key: "_id", Value: id}}, 0, 1)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, ErrNotFound
	}
	return msgs[0], nil
}

// ListByFundingRequest returns one page of a thread, oldest first, with senders resolved.
func (m *MessagesStore) ListByFundingRequest(ctx context.Context, fundingRequestID bson.ObjectID, skip, limit int64) ([]*NegotiationMessage, error) {
	return m.find(ctx, bson.D{{Key: "funding_request_id", Value: fundingRequestID}}, skip, limit)
}

// CountByFundingRequest returns the number of messages in a thread.
func (m *MessagesStore) CountByFundingRequest(ctx context.Context, fundingRequestID bson.ObjectID) (int64, error) {
	return m.coll.CountDocuments(ctx, bson.M{"funding_request_id": fundingRequestID})
}

// MarkDelivered moves the given messages of a thread from sent to delivered and
// returns how many documents actually changed. Ids outside the thread or not in
// sent state are ignored.
func (m *MessagesStore) MarkDelivered(ctx context.Context, fundingRequestID bson.ObjectID, ids []bson.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	res, err := m.coll.UpdateMany(ctx,
		bson.M{
			"_id":                bson.M{"$in": ids},
			"funding_request_id": fundingRequestID,
			"status":             StatusSent,
		},
		bson.M{"$set": bson.M{"status": StatusDelivered, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// RetryFailed resets a failed message owned by sender back to sent, bumps its
// retry counter and clears the error. The failed status is part of the filter so
// concurrent retries increment the counter once; ErrNotFound means nothing matched.
func (m *MessagesStore) RetryFailed(ctx context.Context, id, senderID bson.ObjectID) (*NegotiationMessage, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var msg NegotiationMessage
	err := m.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "sender_id": senderID, "status": StatusFailed},
		bson.M{
			"$set":   bson.M{"status": StatusSent, "updated_at": time.Now().UTC()},
			"$inc":   bson.M{"retry_count": 1},
			"$unset": bson.M{"error_message": ""},
		},
		opts,
	).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// CountUnread counts messages in the given threads that were not sent by userID
// and are still sent or pending.
func (m *MessagesStore) CountUnread(ctx context.Context, userID bson.ObjectID, fundingRequestIDs []bson.ObjectID) (int64, error) {
	if len(fundingRequestIDs) == 0 {
		return 0, nil
	}

	return m.coll.CountDocuments(ctx, bson.M{
		"funding_request_id": bson.M{"$in": fundingRequestIDs},
		"sender_id":          bson.M{"$ne": userID},
		"status":             bson.M{"$in": bson.A{StatusSent, StatusPending}},
	})
}

// MarkViewed appends a read receipt for userID unless one already exists.
// It reports whether a receipt was added.
func (m *MessagesStore) MarkViewed(ctx context.Context, id, userID bson.ObjectID, at time.Time) (bool, error) {
	res, err := m.coll.UpdateOne(ctx,
		bson.M{"_id": id, "viewed_by.user": bson.M{"$ne": userID}},
		bson.M{"$push": bson.M{"viewed_by": ViewedEntry{User: userID, ViewedAt: at.UTC()}}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// ExistsWithContentAt reports whether the thread already holds a message with the
// same content and creation time. Used to keep backfills idempotent.
func (m *MessagesStore) ExistsWithContentAt(ctx context.Context, fundingRequestID bson.ObjectID, content string, createdAt time.Time) (bool, error) {
	n, err := m.coll.CountDocuments(ctx, bson.M{
		"funding_request_id": fundingRequestID,
		"content":            content,
		"created_at":         createdAt.UTC(),
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// find runs the shared read pipeline: match → sort by creation → page → resolve sender.
func (m *MessagesStore) find(ctx context.Context, match bson.D, skip, limit int64) ([]*NegotiationMessage, error) {
	pipeline := mongo.Pipeline{
		// Stage 1: $match - restrict to the requested documents
		bson.D{{Key: "$match", Value: match}},

		// Stage 2: $sort - oldest first; _id breaks ties between equal timestamps
		bson.D{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}}},
	}

	// Stage 3: page through the thread
	if skip > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$skip", Value: skip}})
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}

	pipeline = append(pipeline,
		// Stage 4: $lookup - resolve the sender document
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: m.usersColl},
			{Key: "localField", Value: "sender_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "sender"},
		}}},

		// Stage 5: $unwind - one sender per message; keep messages whose sender is gone
		bson.D{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$sender"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},

		// Stage 6: $project - only identity fields of the sender leave the database
		bson.D{{Key: "$project", Value: bson.D{
			{Key: "sender.password", Value: 0},
			{Key: "sender.role", Value: 0},
			{Key: "sender.created_at", Value: 0},
			{Key: "sender.updated_at", Value: 0},
		}}},
	)

	cursor, err := m.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	messages := []*NegotiationMessage{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}
