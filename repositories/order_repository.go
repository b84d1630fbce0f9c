package repositories

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/datamartgh/datamart_backend/models"
	"github.com/datamartgh/datamart_backend/utils"
)

// OrderRepository reads the commission-bearing collections owned by the
// ordering subsystem (data orders, wholesale orders, referrals). This
// service never writes to them.
type OrderRepository struct {
	dataOrders      *mongo.Collection
	wholesaleOrders *mongo.Collection
	referrals       *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{
		dataOrders:      db.Collection("dataOrders"),
		wholesaleOrders: db.Collection("wholesaleOrders"),
		referrals:       db.Collection("referrals"),
	}
}

// FindSource returns the normalized view of one commission source.
func (r *OrderRepository) FindSource(ctx context.Context, sourceType string, sourceID primitive.ObjectID) (*models.CommissionSource, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	filter := bson.M{"_id": sourceID}
	switch sourceType {
	case models.SourceDataOrder:
		var order models.DataOrder
		if err := r.dataOrders.FindOne(ctx, filter).Decode(&order); err != nil {
			return nil, r.notFound(err, sourceType, sourceID)
		}
		return dataOrderSource(&order), nil
	case models.SourceWholesaleOrder:
		var order models.WholesaleOrder
		if err := r.wholesaleOrders.FindOne(ctx, filter).Decode(&order); err != nil {
			return nil, r.notFound(err, sourceType, sourceID)
		}
		return wholesaleOrderSource(&order), nil
	case models.SourceReferral:
		var ref models.Referral
		if err := r.referrals.FindOne(ctx, filter).Decode(&ref); err != nil {
			return nil, r.notFound(err, sourceType, sourceID)
		}
		return referralSource(&ref), nil
	default:
		return nil, utils.NewAppErrorf(utils.ErrKindInvalidInput, "unknown source type %q", sourceType)
	}
}

// ListByAgent returns every source of one type belonging to an agent.
func (r *OrderRepository) ListByAgent(ctx context.Context, sourceType string, agentID primitive.ObjectID) ([]models.CommissionSource, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	filter := bson.M{"agentId": agentID}
	var sources []models.CommissionSource

	switch sourceType {
	case models.SourceDataOrder:
		cursor, err := r.dataOrders.Find(ctx, filter)
		if err != nil {
			return nil, err
		}
		var orders []models.DataOrder
		if err := cursor.All(ctx, &orders); err != nil {
			return nil, err
		}
		for i := range orders {
			sources = append(sources, *dataOrderSource(&orders[i]))
		}
	case models.SourceWholesaleOrder:
		cursor, err := r.wholesaleOrders.Find(ctx, filter)
		if err != nil {
			return nil, err
		}
		var orders []models.WholesaleOrder
		if err := cursor.All(ctx, &orders); err != nil {
			return nil, err
		}
		for i := range orders {
			sources = append(sources, *wholesaleOrderSource(&orders[i]))
		}
	case models.SourceReferral:
		cursor, err := r.referrals.Find(ctx, filter)
		if err != nil {
			return nil, err
		}
		var refs []models.Referral
		if err := cursor.All(ctx, &refs); err != nil {
			return nil, err
		}
		for i := range refs {
			sources = append(sources, *referralSource(&refs[i]))
		}
	default:
		return nil, utils.NewAppErrorf(utils.ErrKindInvalidInput, "unknown source type %q", sourceType)
	}
	return sources, nil
}

func (r *OrderRepository) notFound(err error, sourceType string, sourceID primitive.ObjectID) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return utils.NewAppErrorf(utils.ErrKindNotFound, "%s %s not found", sourceType, sourceID.Hex())
	}
	return err
}

func dataOrderSource(o *models.DataOrder) *models.CommissionSource {
	return &models.CommissionSource{
		ID:             o.ID,
		AgentID:        o.AgentID,
		SourceType:     models.SourceDataOrder,
		Status:         o.Status,
		Price:          o.Price,
		CommissionRate: o.CommissionRate,
	}
}

func wholesaleOrderSource(o *models.WholesaleOrder) *models.CommissionSource {
	return &models.CommissionSource{
		ID:             o.ID,
		AgentID:        o.AgentID,
		SourceType:     models.SourceWholesaleOrder,
		Status:         o.Status,
		Price:          o.Price,
		CommissionRate: o.CommissionRate,
	}
}

func referralSource(ref *models.Referral) *models.CommissionSource {
	return &models.CommissionSource{
		ID:               ref.ID,
		AgentID:          ref.AgentID,
		SourceType:       models.SourceReferral,
		Status:           ref.Status,
		CommissionAmount: ref.CommissionAmount,
	}
}
