package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Withdrawal request statuses
const (
	WithdrawalRequested  = "requested"
	WithdrawalProcessing = "processing"
	WithdrawalPaid       = "paid"
	WithdrawalRejected   = "rejected"
)

// WithdrawalRequest is a request by an agent to pay out earned commissions to
// their mobile money number. The commissions listed in CommissionIDs are
// locked (pending_withdrawal) for the lifetime of the request and either
// become withdrawn (paid) or revert to earned (rejected).
type WithdrawalRequest struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	AgentID         primitive.ObjectID   `bson:"agentId" json:"agentId"`
	Amount          float64              `bson:"amount" json:"amount"`
	Status          string               `bson:"status" json:"status"` // "requested", "processing", "paid", "rejected"
	MomoNumber      string               `bson:"momoNumber,omitempty" json:"momoNumber,omitempty"`
	PayoutReference string               `bson:"payoutReference,omitempty" json:"payoutReference,omitempty"`
	CommissionIDs   []primitive.ObjectID `bson:"commissionIds" json:"commissionIds"`
	AdminID         *primitive.ObjectID  `bson:"adminId,omitempty" json:"adminId,omitempty"`
	RejectionReason string               `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
	Version         int64                `bson:"version" json:"-"`
	CreatedAt       time.Time            `bson:"createdAt" json:"createdAt"`
	ProcessedAt     *time.Time           `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
}
