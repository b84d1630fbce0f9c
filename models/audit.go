package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Audit violation kinds
const (
	ViolationNegativeWallet   = "negative_wallet_balance"
	ViolationPaidOutExceeds   = "paid_out_exceeds_earned"
	ViolationStaleCache       = "stale_balance_cache"
	ViolationOrphanCommission = "orphaned_commission"
	ViolationStuckPending     = "stuck_pending_withdrawal"
	ViolationAuditError       = "audit_error"
)

// AuditViolation is one invariant breach found by the integrity auditor,
// together with the corrective action an operator should take.
type AuditViolation struct {
	AgentID        primitive.ObjectID `json:"agentId"`
	Violation      string             `json:"violation"`
	Detail         string             `json:"detail"`
	Recommendation string             `json:"recommendation"`
}

// AuditReport is the outcome of one read-only integrity sweep.
type AuditReport struct {
	RanAt         time.Time        `json:"ranAt"`
	Duration      time.Duration    `json:"durationNs"`
	AgentsChecked int              `json:"agentsChecked"`
	Violations    []AuditViolation `json:"violations"`
	HealthScore   float64          `json:"healthScore"` // 1.0 = no agent in violation
}
