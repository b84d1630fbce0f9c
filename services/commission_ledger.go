// services/commission_ledger.go
package services

import (
	"context"
	"log"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/datamartgh/datamart_backend/models"
	"github.com/datamartgh/datamart_backend/utils"
)

// CommissionLedger owns commission records and their state machine:
//
//	earned -> pending_withdrawal -> withdrawn
//	earned -> reversed
//	pending_withdrawal -> earned (withdrawal rejected)
//
// Records are append-only; every mutation is a status transition.
type CommissionLedger struct {
	commissions CommissionStore
	wallets     WalletStore
	agents      AgentStore
}

func NewCommissionLedger(commissions CommissionStore, wallets WalletStore, agents AgentStore) *CommissionLedger {
	return &CommissionLedger{commissions: commissions, wallets: wallets, agents: agents}
}

// Create inserts a new earned commission. A second create for the same
// source fails with duplicate_source, which callers handling repeated
// status-change events treat as success. A commission_deposit row is
// appended to the wallet log for the audit trail; it never affects the
// spendable balance.
func (l *CommissionLedger) Create(ctx context.Context, agentID primitive.ObjectID, sourceType string, sourceID primitive.ObjectID, amount float64) (*models.CommissionRecord, error) {
	if !models.IsValidSourceType(sourceType) {
		return nil, utils.NewAppErrorf(utils.ErrKindInvalidInput, "unknown source type %q", sourceType)
	}
	if amount <= 0 {
		return nil, utils.NewAppErrorf(utils.ErrKindInvalidInput, "commission amount must be > 0, got %v", amount)
	}

	rec := &models.CommissionRecord{
		AgentID:    agentID,
		SourceType: sourceType,
		SourceID:   sourceID,
		Amount:     amount,
		Status:     models.CommissionEarned,
	}
	if err := l.commissions.Insert(ctx, rec); err != nil {
		return nil, err
	}

	deposit := &models.WalletTransaction{
		AgentID:   agentID,
		Type:      models.WalletCommissionDeposit,
		Amount:    amount,
		Status:    models.WalletTxnApproved,
		Reference: rec.ID.Hex(),
	}
	if err := l.wallets.Insert(ctx, deposit); err != nil {
		// Audit-trail row only; the commission record is the ledger entry.
		log.Printf("Warning: failed to record commission deposit for %s: %v", rec.ID.Hex(), err)
	}

	l.refreshCommissionTotals(ctx, agentID)
	return rec, nil
}

// Lock reserves the given earned commissions against a withdrawal. The
// transitions are all-or-nothing: if any record is not currently earned,
// records locked so far are released again and the call fails with
// invalid_transition.
func (l *CommissionLedger) Lock(ctx context.Context, ids []primitive.ObjectID, withdrawalID primitive.ObjectID) error {
	if len(ids) == 0 {
		return utils.NewAppError(utils.ErrKindInvalidInput, "no commissions to lock")
	}

	locked := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		err := l.commissions.Transition(ctx, id, models.CommissionEarned, models.CommissionPendingWithdrawal, &withdrawalID)
		if err != nil {
			for _, lockedID := range locked {
				if rbErr := l.commissions.Transition(ctx, lockedID, models.CommissionPendingWithdrawal, models.CommissionEarned, nil); rbErr != nil {
					log.Printf("Warning: failed to roll back commission lock %s: %v", lockedID.Hex(), rbErr)
				}
			}
			return err
		}
		locked = append(locked, id)
	}
	return nil
}

// Release returns all commissions locked under a withdrawal to earned.
// Used on the cancellation path.
func (l *CommissionLedger) Release(ctx context.Context, withdrawalID primitive.ObjectID) error {
	records, err := l.commissions.FindByWithdrawal(ctx, withdrawalID, models.CommissionPendingWithdrawal)
	if err != nil {
		return err
	}
	var agentID primitive.ObjectID
	for _, rec := range records {
		if err := l.commissions.Transition(ctx, rec.ID, models.CommissionPendingWithdrawal, models.CommissionEarned, nil); err != nil {
			return err
		}
		agentID = rec.AgentID
	}
	if !agentID.IsZero() {
		l.refreshCommissionTotals(ctx, agentID)
	}
	return nil
}

// Finalize marks all commissions locked under a withdrawal as withdrawn.
// Calling it again after completion finds nothing pending and is a no-op,
// so a retried finalize never double-applies.
func (l *CommissionLedger) Finalize(ctx context.Context, withdrawalID primitive.ObjectID) error {
	records, err := l.commissions.FindByWithdrawal(ctx, withdrawalID, models.CommissionPendingWithdrawal)
	if err != nil {
		return err
	}
	var agentID primitive.ObjectID
	for _, rec := range records {
		if err := l.commissions.Transition(ctx, rec.ID, models.CommissionPendingWithdrawal, models.CommissionWithdrawn, nil); err != nil {
			return err
		}
		agentID = rec.AgentID
	}
	if !agentID.IsZero() {
		l.refreshCommissionTotals(ctx, agentID)
	}
	return nil
}

// Reverse removes the unpaid commission for a source whose order left the
// completed state. Withdrawn commissions are immutable: money already paid
// out is not reclaimed, the reversal is logged and skipped. Commissions
// reserved by an in-flight withdrawal are likewise left alone; the
// integrity auditor reports them if the order stays un-completed. Reversing
// a source with no active commission is a no-op.
func (l *CommissionLedger) Reverse(ctx context.Context, sourceType string, sourceID primitive.ObjectID) error {
	rec, err := l.commissions.FindActiveBySource(ctx, sourceType, sourceID)
	if err != nil {
		if utils.IsKind(err, utils.ErrKindNotFound) {
			log.Printf("Reverse: no active commission for %s %s, nothing to do", sourceType, sourceID.Hex())
			return nil
		}
		return err
	}

	switch rec.Status {
	case models.CommissionEarned:
		if err := l.commissions.Transition(ctx, rec.ID, models.CommissionEarned, models.CommissionReversed, nil); err != nil {
			return err
		}
		l.refreshCommissionTotals(ctx, rec.AgentID)
		return nil
	case models.CommissionWithdrawn:
		log.Printf("Reverse: commission %s for %s %s already withdrawn, leaving as-is", rec.ID.Hex(), sourceType, sourceID.Hex())
		return nil
	case models.CommissionPendingWithdrawal:
		log.Printf("Reverse: commission %s for %s %s is reserved by withdrawal %s, leaving as-is", rec.ID.Hex(), sourceType, sourceID.Hex(), rec.WithdrawalID.Hex())
		return nil
	default:
		return nil
	}
}

// AvailableBalance is the sum of an agent's earned commissions.
func (l *CommissionLedger) AvailableBalance(ctx context.Context, agentID primitive.ObjectID) (float64, error) {
	return l.commissions.SumByStatus(ctx, agentID, models.CommissionEarned)
}

// Totals returns the cache inputs: total commissions ever credited
// (everything not reversed) and total paid out (withdrawn).
func (l *CommissionLedger) Totals(ctx context.Context, agentID primitive.ObjectID) (totalCommissions, totalPaidOut float64, err error) {
	earned, err := l.commissions.SumByStatus(ctx, agentID, models.CommissionEarned)
	if err != nil {
		return 0, 0, err
	}
	pending, err := l.commissions.SumByStatus(ctx, agentID, models.CommissionPendingWithdrawal)
	if err != nil {
		return 0, 0, err
	}
	withdrawn, err := l.commissions.SumByStatus(ctx, agentID, models.CommissionWithdrawn)
	if err != nil {
		return 0, 0, err
	}
	return earned + pending + withdrawn, withdrawn, nil
}

// History returns the agent's commission records, optionally filtered.
func (l *CommissionLedger) History(ctx context.Context, agentID primitive.ObjectID, statuses ...string) ([]models.CommissionRecord, error) {
	return l.commissions.FindByAgent(ctx, agentID, statuses...)
}

// refreshCommissionTotals recomputes the denormalized caches from the log.
// Cache writes are best-effort; the auditor flags divergence.
func (l *CommissionLedger) refreshCommissionTotals(ctx context.Context, agentID primitive.ObjectID) {
	totalCommissions, totalPaidOut, err := l.Totals(ctx, agentID)
	if err != nil {
		log.Printf("Warning: could not recompute commission totals for agent %s: %v", agentID.Hex(), err)
		return
	}
	if err := l.agents.UpdateCommissionTotals(ctx, agentID, totalCommissions, totalPaidOut); err != nil {
		log.Printf("Warning: could not update commission totals cache for agent %s: %v", agentID.Hex(), err)
	}
}
