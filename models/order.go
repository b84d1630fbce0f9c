package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DataOrder is a data bundle sale placed by an agent. Owned by the ordering
// subsystem; this service only reads status, price and commissionRate.
type DataOrder struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AgentID        primitive.ObjectID `bson:"agentId" json:"agentId"`
	Recipient      string             `bson:"recipient" json:"recipient"`
	Network        string             `bson:"network" json:"network"`
	BundleMB       int                `bson:"bundleMB" json:"bundleMB"`
	Price          float64            `bson:"price" json:"price"`
	CommissionRate float64            `bson:"commissionRate" json:"commissionRate"`
	Status         string             `bson:"status" json:"status"` // "pending", "processing", "completed", "failed", "refunded"
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// WholesaleOrder is a bulk order placed by an agent for resale. "completed"
// and "delivered" are both terminal fulfilled states.
type WholesaleOrder struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AgentID        primitive.ObjectID `bson:"agentId" json:"agentId"`
	Items          int                `bson:"items" json:"items"`
	Price          float64            `bson:"price" json:"price"`
	CommissionRate float64            `bson:"commissionRate" json:"commissionRate"`
	Status         string             `bson:"status" json:"status"` // "pending", "processing", "completed", "delivered", "cancelled"
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Referral is a signup attributed to an agent's referral code. It carries a
// fixed commission amount rather than a price and rate.
type Referral struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AgentID          primitive.ObjectID `bson:"agentId" json:"agentId"`
	ReferredUserID   primitive.ObjectID `bson:"referredUserId" json:"referredUserId"`
	ReferralCode     string             `bson:"referralCode" json:"referralCode"`
	CommissionAmount float64            `bson:"commissionAmount" json:"commissionAmount"`
	Status           string             `bson:"status" json:"status"` // "pending", "completed", "cancelled"
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// CommissionSource is the normalized view of any commission-bearing row
// (data order, wholesale order or referral) that the orchestrator and
// auditor work against.
type CommissionSource struct {
	ID               primitive.ObjectID
	AgentID          primitive.ObjectID
	SourceType       string
	Status           string
	Price            float64
	CommissionRate   float64
	CommissionAmount float64 // referrals only; fixed amount instead of price*rate
}

// IsSourceCompleted reports whether the given status is a terminal completed
// state for the source type. Wholesale orders treat "delivered" as completed.
func IsSourceCompleted(sourceType, status string) bool {
	switch sourceType {
	case SourceWholesaleOrder:
		return status == "completed" || status == "delivered"
	default:
		return status == "completed"
	}
}
