package data

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// NotificationsStore provides notification database operations.
type NotificationsStore struct {
	coll *mongo.Collection
}

// NewNotificationsStore returns a NotificationsStore using given collection.
func NewNotificationsStore(coll *mongo.Collection) *NotificationsStore {
	return &NotificationsStore{coll: coll}
}

// Insert stores an unread notification.
func (s *NotificationsStore) Insert(ctx context.Context, n *Notification) (*Notification, error) {
	n.Read = false
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	result, err := s.coll.InsertOne(ctx, n)
	if err != nil {
		return nil, err
	}
	n.ID = result.InsertedID.(bson.ObjectID)
	return n, nil
}

// ListForUser returns a user's notifications, newest first.
func (s *NotificationsStore) ListForUser(ctx context.Context, userID bson.ObjectID, limit int64) ([]*Notification, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []*Notification{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead marks one of the user's notifications read. ErrNotFound is returned
// when the notification does not exist or belongs to someone else.
func (s *NotificationsStore) MarkRead(ctx context.Context, id, userID bson.ObjectID) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
