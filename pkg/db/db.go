package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"watch-history/pkg/domain"
)

// mongoRecord is the document shape stored in the cleaned_data collection.
type mongoRecord struct {
	ID                     primitive.ObjectID `bson:"_id"`
	CreatedAt              time.Time          `bson:"created_at"`
	domain.PersistedRecord `bson:",inline"`
}

// MongoClient wraps the MongoDB client and the cleaned_data collection.
type MongoClient struct {
	mongoClient *mongo.Client
	collection  *mongo.Collection
	connectErr  error
}

// NewMongoClient creates a new database client
func NewMongoClient(connectionString, databaseName string) *MongoClient {
	clientOptions := options.Client().ApplyURI(connectionString)
	mongoClient, err := mongo.Connect(context.Background(), clientOptions)
	if err != nil {
		// Reported by Connect()
		return &MongoClient{connectErr: fmt.Errorf("connect to mongo: %w", err)}
	}

	return &MongoClient{
		mongoClient: mongoClient,
		collection:  mongoClient.Database(databaseName).Collection(CleanedDataTable),
	}
}

// Connect establishes connection to MongoDB
func (c *MongoClient) Connect(ctx context.Context) error {
	if c.connectErr != nil {
		return c.connectErr
	}
	if c.mongoClient == nil {
		return fmt.Errorf("mongo client not initialized")
	}
	return c.mongoClient.Ping(ctx, nil)
}

// Close closes the MongoDB connection
func (c *MongoClient) Close(ctx context.Context) error {
	if c.mongoClient == nil {
		return nil
	}
	return c.mongoClient.Disconnect(ctx)
}

// InsertCleanedRows writes the batch with one ordered InsertMany. Standalone
// servers have no multi-document transactions, so a failed batch is rolled
// back by deleting the documents that made it in.
func (c *MongoClient) InsertCleanedRows(ctx context.Context, rows []domain.PersistedRecord) error {
	if len(rows) == 0 {
		return nil
	}
	if c.collection == nil {
		return fmt.Errorf("collection not initialized")
	}

	now := time.Now().UTC()
	ids := make([]primitive.ObjectID, len(rows))
	docs := make([]interface{}, len(rows))
	for i, r := range rows {
		ids[i] = primitive.NewObjectID()
		docs[i] = mongoRecord{ID: ids[i], CreatedAt: now, PersistedRecord: r}
	}

	_, err := c.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err == nil {
		return nil
	}

	// Use a fresh context: the caller's may be the reason the insert failed.
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if _, delErr := c.collection.DeleteMany(cleanupCtx, bson.M{"_id": bson.M{"$in": ids}}); delErr != nil {
		return fmt.Errorf("insert into %s: %w (rollback failed: %v)", CleanedDataTable, err, delErr)
	}
	return fmt.Errorf("insert into %s: %w", CleanedDataTable, err)
}

// ReadCleanedRows fetches every document in the collection, oldest first.
func (c *MongoClient) ReadCleanedRows(ctx context.Context) ([]domain.PersistedRecord, error) {
	if c.collection == nil {
		return nil, fmt.Errorf("collection not initialized")
	}

	cursor, err := c.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", CleanedDataTable, err)
	}
	defer cursor.Close(ctx)

	var rows []domain.PersistedRecord
	for cursor.Next(ctx) {
		var doc mongoRecord
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		rows = append(rows, doc.PersistedRecord)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return rows, nil
}

// CountCleanedRows returns the number of documents in the collection.
func (c *MongoClient) CountCleanedRows(ctx context.Context) (int64, error) {
	if c.collection == nil {
		return 0, fmt.Errorf("collection not initialized")
	}
	n, err := c.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}
