package data

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ErrDuplicateInterest is returned when an investor registers interest in the same idea twice.
var ErrDuplicateInterest = errors.New("interest already recorded")

// InterestsStore provides interest record operations.
type InterestsStore struct {
	coll *mongo.Collection
}

// NewInterestsStore returns an InterestsStore using given collection.
func NewInterestsStore(coll *mongo.Collection) *InterestsStore {
	return &InterestsStore{coll: coll}
}

// Create inserts an interest record.
func (s *InterestsStore) Create(ctx context.Context, ideaID, investorID bson.ObjectID, note string) (*Interest, error) {
	in := &Interest{
		IdeaID:     ideaID,
		InvestorID: investorID,
		Note:       note,
		CreatedAt:  time.Now().UTC(),
	}

	result, err := s.coll.InsertOne(ctx, in)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateInterest
		}
		return nil, err
	}
	in.ID = result.InsertedID.(bson.ObjectID)
	return in, nil
}

// Exists reports whether the investor has an interest record on the idea.
func (s *InterestsStore) Exists(ctx context.Context, ideaID, investorID bson.ObjectID) (bool, error) {
	n, err := s.coll.CountDocuments(ctx,
		bson.M{"idea_id": ideaID, "investor_id": investorID},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IdeaIDsByInvestor returns the ideas an investor has shown interest in.
func (s *InterestsStore) IdeaIDsByInvestor(ctx context.Context, investorID bson.ObjectID) ([]bson.ObjectID, error) {
	cursor, err := s.coll.Find(ctx,
		bson.M{"investor_id": investorID},
		options.Find().SetProjection(bson.M{"idea_id": 1}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		IdeaID bson.ObjectID `bson:"idea_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	ids := make([]bson.ObjectID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.IdeaID)
	}
	return ids, nil
}

// InvestorIDsByIdea returns the investors that have an interest record on the idea.
func (s *InterestsStore) InvestorIDsByIdea(ctx context.Context, ideaID bson.ObjectID) ([]bson.ObjectID, error) {
	cursor, err := s.coll.Find(ctx,
		bson.M{"idea_id": ideaID},
		options.Find().SetProjection(bson.M{"investor_id": 1}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		InvestorID bson.ObjectID `bson:"investor_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	ids := make([]bson.ObjectID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.InvestorID)
	}
	return ids, nil
}
