package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Wallet transaction types. Amounts are always positive magnitudes; the type
// decides the sign when the balance is replayed.
const (
	WalletTopup               = "topup"
	WalletDeduction           = "deduction"
	WalletRefund              = "refund"
	WalletWithdrawalDeduction = "withdrawal_deduction"
	WalletAdminReversal       = "admin_reversal"
	WalletAdminAdjustment     = "admin_adjustment"
	WalletCommissionDeposit   = "commission_deposit"
)

// Wallet transaction statuses
const (
	WalletTxnPending  = "pending"
	WalletTxnApproved = "approved"
	WalletTxnRejected = "rejected"
)

// WalletTransaction is one entry in an agent's append-only wallet log. Only
// approved rows participate in the balance; commission_deposit rows are kept
// for the audit trail but never count towards the spendable wallet balance.
type WalletTransaction struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	AgentID   primitive.ObjectID  `bson:"agentId" json:"agentId"`
	Type      string              `bson:"type" json:"type"`
	Amount    float64             `bson:"amount" json:"amount"`
	Status    string              `bson:"status" json:"status"` // "pending", "approved", "rejected"
	Reference string              `bson:"reference,omitempty" json:"reference,omitempty"`
	AdminID   *primitive.ObjectID `bson:"adminId,omitempty" json:"adminId,omitempty"`
	CreatedAt time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time           `bson:"updatedAt" json:"updatedAt"`
}
