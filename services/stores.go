// services/stores.go
package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/datamartgh/datamart_backend/models"
)

// Store interfaces consumed by the service layer. The repositories package
// provides the MongoDB implementations; tests substitute in-memory ones.
// Handles are injected through the service constructors, there is no
// process-wide store client.

type CommissionStore interface {
	Insert(ctx context.Context, rec *models.CommissionRecord) error
	FindActiveBySource(ctx context.Context, sourceType string, sourceID primitive.ObjectID) (*models.CommissionRecord, error)
	FindEarnedOldestFirst(ctx context.Context, agentID primitive.ObjectID) ([]models.CommissionRecord, error)
	FindByAgent(ctx context.Context, agentID primitive.ObjectID, statuses ...string) ([]models.CommissionRecord, error)
	FindByWithdrawal(ctx context.Context, withdrawalID primitive.ObjectID, status string) ([]models.CommissionRecord, error)
	SumByStatus(ctx context.Context, agentID primitive.ObjectID, status string) (float64, error)
	Transition(ctx context.Context, id primitive.ObjectID, from, to string, withdrawalID *primitive.ObjectID) error
}

type WalletStore interface {
	Insert(ctx context.Context, txn *models.WalletTransaction) error
	FindApprovedByAgent(ctx context.Context, agentID primitive.ObjectID) ([]models.WalletTransaction, error)
	FindByAgent(ctx context.Context, agentID primitive.ObjectID) ([]models.WalletTransaction, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.WalletTransaction, error)
	Process(ctx context.Context, id primitive.ObjectID, to string, adminID *primitive.ObjectID) error
}

type WithdrawalStore interface {
	Insert(ctx context.Context, w *models.WithdrawalRequest) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.WithdrawalRequest, error)
	FindByAgent(ctx context.Context, agentID primitive.ObjectID) ([]models.WithdrawalRequest, error)
	FindByStatus(ctx context.Context, statuses ...string) ([]models.WithdrawalRequest, error)
	Transition(ctx context.Context, id primitive.ObjectID, from []string, to string, adminID *primitive.ObjectID, payoutRef, rejectionReason string) error
	SetPayoutReference(ctx context.Context, id primitive.ObjectID, payoutRef string) error
}

type AgentStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Agent, error)
	ListIDs(ctx context.Context) ([]primitive.ObjectID, error)
	UpdateCommissionTotals(ctx context.Context, id primitive.ObjectID, totalCommissions, totalPaidOut float64) error
	UpdateWalletBalance(ctx context.Context, id primitive.ObjectID, balance float64) error
}

type OrderStore interface {
	FindSource(ctx context.Context, sourceType string, sourceID primitive.ObjectID) (*models.CommissionSource, error)
	ListByAgent(ctx context.Context, sourceType string, agentID primitive.ObjectID) ([]models.CommissionSource, error)
}
