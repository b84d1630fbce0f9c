package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/datamartgh/datamart_backend/models"
	"github.com/datamartgh/datamart_backend/utils"
)

const storeTimeout = 10 * time.Second

// CommissionRepository owns the commissions collection. Status transitions
// are compare-and-set updates filtered on the expected current status, so
// two interleaved writers can never both apply the same transition.
type CommissionRepository struct {
	collection *mongo.Collection
	retry      utils.RetryConfig
}

func NewCommissionRepository(db *mongo.Database) *CommissionRepository {
	return &CommissionRepository{
		collection: db.Collection("commissions"),
		retry:      utils.DefaultRetryConfig(),
	}
}

// Insert persists a new commission record. The partial unique index on
// (sourceType, sourceId) turns a concurrent duplicate into a
// duplicate_source error.
func (r *CommissionRepository) Insert(ctx context.Context, rec *models.CommissionRecord) error {
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.Version = 1

	return utils.WithRetry(ctx, r.retry, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()

		_, err := r.collection.InsertOne(ctx, rec)
		if mongo.IsDuplicateKeyError(err) {
			return utils.NewAppErrorf(utils.ErrKindDuplicateSource,
				"active commission already exists for %s %s", rec.SourceType, rec.SourceID.Hex())
		}
		return err
	})
}

// FindActiveBySource returns the non-reversed record for a source, or a
// not_found error.
func (r *CommissionRepository) FindActiveBySource(ctx context.Context, sourceType string, sourceID primitive.ObjectID) (*models.CommissionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	filter := bson.M{
		"sourceType": sourceType,
		"sourceId":   sourceID,
		"status":     bson.M{"$ne": models.CommissionReversed},
	}
	var rec models.CommissionRecord
	err := r.collection.FindOne(ctx, filter).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.NewAppErrorf(utils.ErrKindNotFound,
			"no active commission for %s %s", sourceType, sourceID.Hex())
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindEarnedOldestFirst returns an agent's earned commissions in stable
// creation order, the order the withdrawal processor consumes them in.
func (r *CommissionRepository) FindEarnedOldestFirst(ctx context.Context, agentID primitive.ObjectID) ([]models.CommissionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"agentId": agentID, "status": models.CommissionEarned}, opts)
	if err != nil {
		return nil, err
	}
	var records []models.CommissionRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// FindByAgent returns an agent's commissions, optionally filtered by status.
func (r *CommissionRepository) FindByAgent(ctx context.Context, agentID primitive.ObjectID, statuses ...string) ([]models.CommissionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	filter := bson.M{"agentId": agentID}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var records []models.CommissionRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// FindByWithdrawal returns the commissions locked under a withdrawal in the
// given status.
func (r *CommissionRepository) FindByWithdrawal(ctx context.Context, withdrawalID primitive.ObjectID, status string) ([]models.CommissionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{"withdrawalId": withdrawalID, "status": status})
	if err != nil {
		return nil, err
	}
	var records []models.CommissionRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// SumByStatus aggregates the amount of an agent's commissions in one status.
func (r *CommissionRepository) SumByStatus(ctx context.Context, agentID primitive.ObjectID, status string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	pipeline := []bson.M{
		{"$match": bson.M{"agentId": agentID, "status": status}},
		{"$group": bson.M{"_id": nil, "total": bson.M{"$sum": "$amount"}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	total := 0.0
	if cursor.Next(ctx) {
		var result struct {
			Total float64 `bson:"total"`
		}
		if err := cursor.Decode(&result); err == nil {
			total = result.Total
		}
	}
	return total, nil
}

// Transition moves one record from one status to another. The expected
// current status is part of the update filter; when it no longer matches the
// call fails with invalid_transition (or not_found for an unknown id) and
// nothing is written.
func (r *CommissionRepository) Transition(ctx context.Context, id primitive.ObjectID, from, to string, withdrawalID *primitive.ObjectID) error {
	return utils.WithRetry(ctx, r.retry, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()

		set := bson.M{"status": to, "updatedAt": time.Now()}
		if withdrawalID != nil {
			set["withdrawalId"] = *withdrawalID
		}
		update := bson.M{"$set": set, "$inc": bson.M{"version": 1}}
		if to == models.CommissionEarned {
			// Releasing back to earned detaches the record from the withdrawal
			update["$unset"] = bson.M{"withdrawalId": ""}
		}

		result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "status": from}, update)
		if err != nil {
			return err
		}
		if result.MatchedCount == 0 {
			var current models.CommissionRecord
			err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&current)
			if errors.Is(err, mongo.ErrNoDocuments) {
				return utils.NewAppErrorf(utils.ErrKindNotFound, "commission %s not found", id.Hex())
			}
			if err != nil {
				return err
			}
			return utils.NewAppErrorf(utils.ErrKindInvalidTransition,
				"commission %s is %s, expected %s", id.Hex(), current.Status, from)
		}
		return nil
	})
}
