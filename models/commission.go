package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Commission source types
const (
	SourceReferral       = "referral"
	SourceDataOrder      = "data_order"
	SourceWholesaleOrder = "wholesale_order"
)

// Commission statuses
const (
	CommissionEarned            = "earned"
	CommissionPendingWithdrawal = "pending_withdrawal"
	CommissionWithdrawn         = "withdrawn"
	CommissionReversed          = "reversed"
)

// CommissionRecord is a single commission earned by an agent from one source
// order or referral. Records are never deleted, only status-transitioned, so
// the collection doubles as the audit trail. At most one non-reversed record
// may exist per (sourceType, sourceId), enforced by a partial unique index.
type CommissionRecord struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	AgentID      primitive.ObjectID  `bson:"agentId" json:"agentId"`
	SourceType   string              `bson:"sourceType" json:"sourceType"` // "referral", "data_order", "wholesale_order"
	SourceID     primitive.ObjectID  `bson:"sourceId" json:"sourceId"`
	Amount       float64             `bson:"amount" json:"amount"`
	Status       string              `bson:"status" json:"status"` // "earned", "pending_withdrawal", "withdrawn", "reversed"
	WithdrawalID *primitive.ObjectID `bson:"withdrawalId,omitempty" json:"withdrawalId,omitempty"`
	Version      int64               `bson:"version" json:"-"`
	CreatedAt    time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// IsValidSourceType reports whether s is one of the known commission sources.
func IsValidSourceType(s string) bool {
	switch s {
	case SourceReferral, SourceDataOrder, SourceWholesaleOrder:
		return true
	}
	return false
}
