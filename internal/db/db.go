// Package db manages the MongoDB connection pool and collections.
package db

import (
	"context" // For connection timeout/cancellation
	"fmt"     // Error formatting
	"time"    // Duration for timeouts

	"go.mongodb.org/mongo-driver/v2/bson"           // Index key documents
	"go.mongodb.org/mongo-driver/v2/mongo"          // MongoDB driver
	"go.mongodb.org/mongo-driver/v2/mongo/options"  // MongoDB options
	"go.mongodb.org/mongo-driver/v2/mongo/readpref" // MongoDB read preference
)

// DefaultDatabase is used when no database name is configured.
const DefaultDatabase = "startsmart"

// Collection names.
const (
	UsersCollection           = "users"
	FundingRequestsCollection = "funding_requests"
	InterestsCollection       = "interests"
	MessagesCollection        = "negotiation_messages"
	NotificationsCollection   = "notifications"
)

// Client wraps mongo.Client and exposes collections.
// It is created once at startup and passed to every store that needs it.
type Client struct {
	// client is the underlying MongoDB connection pool (thread-safe, can be reused)
	client *mongo.Client

	// db is the application database; collections are accessed via this reference
	db *mongo.Database
}

// Open connects to MongoDB, verifies the connection and returns a Client.
func Open(ctx context.Context, mongoURI, database string) (*Client, error) {
	if database == "" {
		database = DefaultDatabase
	}

	// SetConnectTimeout: fail fast if MongoDB is unreachable
	opts := options.Client().
		ApplyURI(mongoURI).                 // Parse connection string
		SetConnectTimeout(10 * time.Second) // Max time to connect

	// Creates the pool; sockets are dialled lazily
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping is the actual connection test
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(database),
	}, nil
}

// IsHealthy pings the primary with a short timeout.
func (c *Client) IsHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.client.Ping(ctx, readpref.Primary()) == nil
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	// ctx can have timeout if you want to force shutdown after N seconds
	return c.client.Disconnect(ctx)
}

// Collection returns a collection of the application database by name.
func (c *Client) Collection(name string) *mongo.Collection {
	// Created if doesn't exist (MongoDB creates on first write)
	return c.db.Collection(name)
}

// Database returns the application database.
func (c *Client) Database() *mongo.Database { return c.db }

// Users returns the users collection.
func (c *Client) Users() *mongo.Collection { return c.Collection(UsersCollection) }

// FundingRequests returns the funding_requests collection.
func (c *Client) FundingRequests() *mongo.Collection {
	return c.Collection(FundingRequestsCollection)
}

// Interests returns the interests collection.
func (c *Client) Interests() *mongo.Collection { return c.Collection(InterestsCollection) }

// Messages returns the negotiation_messages collection.
func (c *Client) Messages() *mongo.Collection { return c.Collection(MessagesCollection) }

// Notifications returns the notifications collection.
func (c *Client) Notifications() *mongo.Collection {
	return c.Collection(NotificationsCollection)
}

// CreateIndexes creates the indexes every collection relies on.
func (c *Client) CreateIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		// ===== USERS =====
		// Unique email: prevents duplicate registration, backs GetUserByEmail()
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},

		// ===== FUNDING REQUESTS =====
		// entrepreneur_id: thread discovery for unread counts
		// idea_id: interest notifications and investor thread discovery
		FundingRequestsCollection: {
			{Keys: bson.D{{Key: "entrepreneur_id", Value: 1}}},
			{Keys: bson.D{{Key: "idea_id", Value: 1}}},
		},

		// ===== INTERESTS =====
		// One interest record per (idea, investor); backs the thread access check
		InterestsCollection: {
			{
				Keys:    bson.D{{Key: "idea_id", Value: 1}, {Key: "investor_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "investor_id", Value: 1}}},
		},

		// ===== NEGOTIATION MESSAGES =====
		// (funding_request_id, created_at): thread listing in creation order
		// (sender_id, status): unread counts
		MessagesCollection: {
			{Keys: bson.D{{Key: "funding_request_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "status", Value: 1}}},
		},

		// ===== NOTIFICATIONS =====
		// newest first per user
		NotificationsCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}

	for name, models := range indexes {
		if _, err := c.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", name, err)
		}
	}

	return nil
}
