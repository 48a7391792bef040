package data

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// FundingRequestsStore provides funding request database operations.
type FundingRequestsStore struct {
	coll *mongo.Collection
}

// NewFundingRequestsStore returns a FundingRequestsStore using given collection.
func NewFundingRequestsStore(coll *mongo.Collection) *FundingRequestsStore {
	return &FundingRequestsStore{coll: coll}
}

// Create inserts a funding request in pending state.
func (f *FundingRequestsStore) Create(ctx context.Context, fr *FundingRequest) (*FundingRequest, error) {
	now := time.Now().UTC()
	fr.ID = bson.ObjectID{}
	fr.Status = FundingPending
	fr.CreatedAt = now
	fr.UpdatedAt = now

	result, err := f.coll.InsertOne(ctx, fr)
	if err != nil {
		return nil, err
	}
	fr.ID = result.InsertedID.(bson.ObjectID)
	return fr, nil
}

// GetByID finds a funding request by ObjectID.
func (f *FundingRequestsStore) GetByID(ctx context.Context, id bson.ObjectID) (*FundingRequest, error) {
	var fr FundingRequest
	if err := f.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&fr); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &fr, nil
}

// MarkNegotiated flips a pending funding request to negotiated. The status is part
// of the filter, so the transition is one-way and repeated calls are no-ops.
// It reports whether this call performed the flip.
func (f *FundingRequestsStore) MarkNegotiated(ctx context.Context, id bson.ObjectID) (bool, error) {
	res, err := f.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": FundingPending},
		bson.M{"$set": bson.M{"status": FundingNegotiated, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// ListByIdea returns every funding request raised for an idea.
func (f *FundingRequestsStore) ListByIdea(ctx context.Context, ideaID bson.ObjectID) ([]*FundingRequest, error) {
	cursor, err := f.coll.Find(ctx, bson.M{"idea_id": ideaID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*FundingRequest
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// IDsByEntrepreneur returns the ids of funding requests owned by an entrepreneur.
func (f *FundingRequestsStore) IDsByEntrepreneur(ctx context.Context, entrepreneurID bson.ObjectID) ([]bson.ObjectID, error) {
	return f.ids(ctx, bson.M{"entrepreneur_id": entrepreneurID})
}

// IDsByIdeas returns the ids of funding requests raised for any of the ideas.
func (f *FundingRequestsStore) IDsByIdeas(ctx context.Context, ideaIDs []bson.ObjectID) ([]bson.ObjectID, error) {
	if len(ideaIDs) == 0 {
		return nil, nil
	}
	return f.ids(ctx, bson.M{"idea_id": bson.M{"$in": ideaIDs}})
}

// PendingWithMessages returns ids of pending funding requests that already have at
// least one message in the messages collection, i.e. those whose status flip was lost.
func (f *FundingRequestsStore) PendingWithMessages(ctx context.Context, messagesColl string) ([]bson.ObjectID, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "status", Value: FundingPending}}}},
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: messagesColl},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "funding_request_id"},
			{Key: "as", Value: "msgs"},
		}}},
		bson.D{{Key: "$match", Value: bson.D{{Key: "msgs.0", Value: bson.D{{Key: "$exists", Value: true}}}}}},
		bson.D{{Key: "$project", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	cursor, err := f.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID bson.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	ids := make([]bson.ObjectID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (f *FundingRequestsStore) ids(ctx context.Context, filter bson.M) ([]bson.ObjectID, error) {
	cursor, err := f.coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID bson.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	ids := make([]bson.ObjectID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, nil
}
