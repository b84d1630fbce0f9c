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

// WalletRepository owns the walletTransactions collection, the append-only
// log the spendable balance is replayed from.
type WalletRepository struct {
	collection *mongo.Collection
	retry      utils.RetryConfig
}

func NewWalletRepository(db *mongo.Database) *WalletRepository {
	return &WalletRepository{
		collection: db.Collection("walletTransactions"),
		retry:      utils.DefaultRetryConfig(),
	}
}

func (r *WalletRepository) Insert(ctx context.Context, txn *models.WalletTransaction) error {
	if txn.ID.IsZero() {
		txn.ID = primitive.NewObjectID()
	}
	now := time.Now()
	txn.CreatedAt = now
	txn.UpdatedAt = now

	return utils.WithRetry(ctx, r.retry, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()

		_, err := r.collection.InsertOne(ctx, txn)
		return err
	})
}

// FindApprovedByAgent returns every approved transaction for an agent. The
// balance calculator replays these; order does not matter for a sum.
func (r *WalletRepository) FindApprovedByAgent(ctx context.Context, agentID primitive.ObjectID) ([]models.WalletTransaction, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{"agentId": agentID, "status": models.WalletTxnApproved})
	if err != nil {
		return nil, err
	}
	var txns []models.WalletTransaction
	if err := cursor.All(ctx, &txns); err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *WalletRepository) FindByAgent(ctx context.Context, agentID primitive.ObjectID) ([]models.WalletTransaction, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"agentId": agentID}, opts)
	if err != nil {
		return nil, err
	}
	var txns []models.WalletTransaction
	if err := cursor.All(ctx, &txns); err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *WalletRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.WalletTransaction, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	var txn models.WalletTransaction
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&txn)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.NewAppErrorf(utils.ErrKindNotFound, "wallet transaction %s not found", id.Hex())
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// Process moves a pending transaction to approved or rejected. The pending
// status is part of the filter so a transaction can only be processed once.
func (r *WalletRepository) Process(ctx context.Context, id primitive.ObjectID, to string, adminID *primitive.ObjectID) error {
	return utils.WithRetry(ctx, r.retry, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()

		set := bson.M{"status": to, "updatedAt": time.Now()}
		if adminID != nil {
			set["adminId"] = *adminID
		}
		result, err := r.collection.UpdateOne(ctx,
			bson.M{"_id": id, "status": models.WalletTxnPending},
			bson.M{"$set": set})
		if err != nil {
			return err
		}
		if result.MatchedCount == 0 {
			var current models.WalletTransaction
			err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&current)
			if errors.Is(err, mongo.ErrNoDocuments) {
				return utils.NewAppErrorf(utils.ErrKindNotFound, "wallet transaction %s not found", id.Hex())
			}
			if err != nil {
				return err
			}
			return utils.NewAppErrorf(utils.ErrKindInvalidTransition,
				"wallet transaction %s is %s, expected pending", id.Hex(), current.Status)
		}
		return nil
	})
}
