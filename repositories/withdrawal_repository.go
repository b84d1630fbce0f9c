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

// WithdrawalRepository owns the withdrawals collection.
type WithdrawalRepository struct {
	collection *mongo.Collection
	retry      utils.RetryConfig
}

func NewWithdrawalRepository(db *mongo.Database) *WithdrawalRepository {
	return &WithdrawalRepository{
		collection: db.Collection("withdrawals"),
		retry:      utils.DefaultRetryConfig(),
	}
}

func (r *WithdrawalRepository) Insert(ctx context.Context, w *models.WithdrawalRequest) error {
	if w.ID.IsZero() {
		w.ID = primitive.NewObjectID()
	}
	w.CreatedAt = time.Now()
	w.Version = 1

	return utils.WithRetry(ctx, r.retry, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()

		_, err := r.collection.InsertOne(ctx, w)
		return err
	})
}

func (r *WithdrawalRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.WithdrawalRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	var w models.WithdrawalRequest
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&w)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.NewAppErrorf(utils.ErrKindNotFound, "withdrawal %s not found", id.Hex())
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WithdrawalRepository) FindByAgent(ctx context.Context, agentID primitive.ObjectID) ([]models.WithdrawalRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"agentId": agentID}, opts)
	if err != nil {
		return nil, err
	}
	var withdrawals []models.WithdrawalRequest
	if err := cursor.All(ctx, &withdrawals); err != nil {
		return nil, err
	}
	return withdrawals, nil
}

func (r *WithdrawalRepository) FindByStatus(ctx context.Context, statuses ...string) ([]models.WithdrawalRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"status": bson.M{"$in": statuses}}, opts)
	if err != nil {
		return nil, err
	}
	var withdrawals []models.WithdrawalRequest
	if err := cursor.All(ctx, &withdrawals); err != nil {
		return nil, err
	}
	return withdrawals, nil
}

// Transition moves a withdrawal from one of the expected statuses to the
// target status. The status filter makes processing a request twice
// impossible: the second caller sees invalid_transition.
func (r *WithdrawalRepository) Transition(ctx context.Context, id primitive.ObjectID, from []string, to string, adminID *primitive.ObjectID, payoutRef, rejectionReason string) error {
	return utils.WithRetry(ctx, r.retry, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()

		now := time.Now()
		set := bson.M{"status": to, "processedAt": now}
		if adminID != nil {
			set["adminId"] = *adminID
		}
		if payoutRef != "" {
			set["payoutReference"] = payoutRef
		}
		if rejectionReason != "" {
			set["rejectionReason"] = rejectionReason
		}

		result, err := r.collection.UpdateOne(ctx,
			bson.M{"_id": id, "status": bson.M{"$in": from}},
			bson.M{"$set": set, "$inc": bson.M{"version": 1}})
		if err != nil {
			return err
		}
		if result.MatchedCount == 0 {
			var current models.WithdrawalRequest
			err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&current)
			if errors.Is(err, mongo.ErrNoDocuments) {
				return utils.NewAppErrorf(utils.ErrKindNotFound, "withdrawal %s not found", id.Hex())
			}
			if err != nil {
				return err
			}
			return utils.NewAppErrorf(utils.ErrKindInvalidTransition,
				"withdrawal %s is %s, expected one of %v", id.Hex(), current.Status, from)
		}
		return nil
	})
}

// SetPayoutReference records the provider's transfer reference on an already
// paid withdrawal, replacing the local placeholder.
func (r *WithdrawalRepository) SetPayoutReference(ctx context.Context, id primitive.ObjectID, payoutRef string) error {
	return utils.WithRetry(ctx, r.retry, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()

		result, err := r.collection.UpdateOne(ctx,
			bson.M{"_id": id, "status": models.WithdrawalPaid},
			bson.M{"$set": bson.M{"payoutReference": payoutRef}, "$inc": bson.M{"version": 1}})
		if err != nil {
			return err
		}
		if result.MatchedCount == 0 {
			return utils.NewAppErrorf(utils.ErrKindNotFound, "no paid withdrawal %s", id.Hex())
		}
		return nil
	})
}
