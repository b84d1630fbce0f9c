package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/datamartgh/datamart_backend/models"
	"github.com/datamartgh/datamart_backend/utils"
)

type AgentRepository struct {
	collection *mongo.Collection
	retry      utils.RetryConfig
}

func NewAgentRepository(db *mongo.Database) *AgentRepository {
	return &AgentRepository{
		collection: db.Collection("agents"),
		retry:      utils.DefaultRetryConfig(),
	}
}

func (r *AgentRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Agent, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	var agent models.Agent
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&agent)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.NewAppErrorf(utils.ErrKindNotFound, "agent %s not found", id.Hex())
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *AgentRepository) FindByEmail(ctx context.Context, email string) (*models.Agent, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	var agent models.Agent
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&agent)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.NewAppErrorf(utils.ErrKindNotFound, "no agent with email %s", email)
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

// ListIDs returns the ids of all agents, for batch jobs that fan out per
// agent.
func (r *AgentRepository) ListIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{"userType": models.UserTypeAgent})
	if err != nil {
		return nil, err
	}
	var agents []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &agents); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(agents))
	for _, a := range agents {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

// UpdateCommissionTotals refreshes the denormalized commission caches.
func (r *AgentRepository) UpdateCommissionTotals(ctx context.Context, id primitive.ObjectID, totalCommissions, totalPaidOut float64) error {
	return utils.WithRetry(ctx, r.retry, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()

		_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
			"totalCommissions": totalCommissions,
			"totalPaidOut":     totalPaidOut,
			"updatedAt":        time.Now(),
		}})
		return err
	})
}

// UpdateWalletBalance refreshes the denormalized wallet balance cache.
func (r *AgentRepository) UpdateWalletBalance(ctx context.Context, id primitive.ObjectID, balance float64) error {
	return utils.WithRetry(ctx, r.retry, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()

		_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
			"walletBalance": balance,
			"updatedAt":     time.Now(),
		}})
		return err
	})
}
