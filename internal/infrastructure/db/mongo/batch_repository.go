package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/parcel-intake/internal/core/domain"
	"github.com/99minutos/parcel-intake/internal/core/ports"
)

const collectionBatches = "receiving_batches"

// BatchRepository implements ports.BatchRepository using MongoDB. Each batch
// is one document with its entries embedded.
type BatchRepository struct {
	col *mongo.Collection
}

func NewBatchRepository(db *mongo.Database) *BatchRepository {
	return &BatchRepository{col: db.Collection(collectionBatches)}
}

// Create inserts a new batch document.
func (r *BatchRepository) Create(ctx context.Context, b *domain.Batch) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, b)
	return err
}

func (r *BatchRepository) FindByID(ctx context.Context, id string) (*domain.Batch, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var b domain.Batch
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&b)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrBatchNotFound
		}
		return nil, err
	}
	return &b, nil
}

// List returns one page of batches, newest first, plus the total match count.
func (r *BatchRepository) List(ctx context.Context, f ports.ListBatchesFilter) ([]*domain.Batch, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := listFilter(f)

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((f.Page - 1) * f.Limit)).
		SetLimit(int64(f.Limit))

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	batches := make([]*domain.Batch, 0, f.Limit)
	if err := cur.All(ctx, &batches); err != nil {
		return nil, 0, err
	}
	return batches, total, nil
}

// AppendEntries pushes entries onto the batch only while it is open.
func (r *BatchRepository) AppendEntries(ctx context.Context, id string, entries []domain.BatchEntry, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "status": string(domain.BatchOpen)}
	update := bson.M{
		"$push": bson.M{"entries": bson.M{"$each": entries}},
		"$set":  bson.M{"updated_at": at.UTC()},
	}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return r.missOrClosed(ctx, id)
	}
	return nil
}

func (r *BatchRepository) UpdateEntryNotes(ctx context.Context, id, trackingNumber, notes string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"_id":                     id,
		"status":                  string(domain.BatchOpen),
		"entries.tracking_number": trackingNumber,
	}
	update := bson.M{"$set": bson.M{
		"entries.$.notes": notes,
		"updated_at":      at.UTC(),
	}}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

func (r *BatchRepository) RemoveEntry(ctx context.Context, id, trackingNumber string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"_id":                     id,
		"status":                  string(domain.BatchOpen),
		"entries.tracking_number": trackingNumber,
	}
	update := bson.M{
		"$pull": bson.M{"entries": bson.M{"tracking_number": trackingNumber}},
		"$set":  bson.M{"updated_at": at.UTC()},
	}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

// MarkSubmitted flips an open batch to submitted and stores the receipt.
func (r *BatchRepository) MarkSubmitted(ctx context.Context, id, receiptID string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "status": string(domain.BatchOpen)}
	update := bson.M{"$set": bson.M{
		"status":       string(domain.BatchSubmitted),
		"receipt_id":   receiptID,
		"submitted_at": at.UTC(),
		"updated_at":   at.UTC(),
	}}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return r.missOrClosed(ctx, id)
	}
	return nil
}

// EnsureIndexes creates necessary indexes on the batches collection.
func (r *BatchRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "operator_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "recipient_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

// missOrClosed tells a missing batch apart from one that is no longer open.
func (r *BatchRepository) missOrClosed(ctx context.Context, id string) error {
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrBatchNotFound
	}
	return domain.ErrBatchClosed
}

func listFilter(f ports.ListBatchesFilter) bson.M {
	filter := bson.M{}
	if f.OperatorID != "" {
		filter["operator_id"] = f.OperatorID
	}
	if f.RecipientID != "" {
		filter["recipient_id"] = f.RecipientID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}
