package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/milklog/internal/domain/models"
)

// SinkName identifies the archive sink in export requests.
const SinkName = "mongodb"

const summariesCollection = "collection_summaries"

// Repository archives exported summaries. Nothing is read back.
type Repository interface {
	SaveSummary(ctx context.Context, summary models.CollectionSummary) error
}

// MongoDBRepository implements the Repository interface for MongoDB.
type MongoDBRepository struct {
	client   *mongo.Client
	dbName   string
	collName string
	now      func() time.Time
}

// archivedSummary is the stored document: the summary plus export metadata.
type archivedSummary struct {
	ID         string    `bson:"_id"`
	ExportedAt time.Time `bson:"exported_at"`
	CowAmount  float64   `bson:"cow_amount"`

	models.CollectionSummary `bson:",inline"`
}

// NewMongoDBRepository creates a new MongoDB repository.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{
		client:   client,
		dbName:   dbName,
		collName: summariesCollection,
		now:      time.Now,
	}, nil
}

// Name implements the export sink contract.
func (r *MongoDBRepository) Name() string { return SinkName }

// Save implements the export sink contract.
func (r *MongoDBRepository) Save(ctx context.Context, summary models.CollectionSummary) error {
	return r.SaveSummary(ctx, summary)
}

// SaveSummary inserts one archived copy of the summary.
func (r *MongoDBRepository) SaveSummary(ctx context.Context, summary models.CollectionSummary) error {
	doc := newArchivedSummary(summary, uuid.NewString(), r.now())
	collection := r.client.Database(r.dbName).Collection(r.collName)
	if _, err := collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert collection summary: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func newArchivedSummary(summary models.CollectionSummary, id string, exportedAt time.Time) archivedSummary {
	var cowAmount float64
	for _, entry := range summary.Entries {
		if entry.CowMilk != nil {
			cowAmount += entry.CowMilk.Amount()
		}
	}
	return archivedSummary{
		ID:                id,
		ExportedAt:        exportedAt.UTC(),
		CowAmount:         cowAmount,
		CollectionSummary: summary.Clone(),
	}
}
