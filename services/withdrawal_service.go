// services/withdrawal_service.go
package services

import (
	"context"
	"log"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/datamartgh/datamart_backend/models"
	"github.com/datamartgh/datamart_backend/utils"
)

// PayoutClient initiates the mobile money transfer for a finalized
// withdrawal and returns the provider reference.
type PayoutClient interface {
	Enabled() bool
	Payout(ctx context.Context, momoNumber string, amount float64, reference string) (string, error)
}

// WithdrawalProcessor selects and locks ledger entries against withdrawal
// requests and drives the request lifecycle:
//
//	requested -> processing -> paid
//	requested/processing -> rejected
//
// paid and rejected are terminal.
type WithdrawalProcessor struct {
	withdrawals WithdrawalStore
	ledger      *CommissionLedger
	agents      AgentStore
	locker      AgentLocker
	payouts     PayoutClient
}

func NewWithdrawalProcessor(withdrawals WithdrawalStore, ledger *CommissionLedger, agents AgentStore, locker AgentLocker, payouts PayoutClient) *WithdrawalProcessor {
	return &WithdrawalProcessor{
		withdrawals: withdrawals,
		ledger:      ledger,
		agents:      agents,
		locker:      locker,
		payouts:     payouts,
	}
}

// Request creates a withdrawal request for the agent, locking earned
// commissions oldest-first until the requested amount is covered. The whole
// selection runs under the agent lock so two concurrent requests can never
// pick overlapping records. Fails with insufficient_balance (carrying the
// shortfall) when earned commissions do not cover the amount; nothing is
// locked in that case.
func (p *WithdrawalProcessor) Request(ctx context.Context, agentID primitive.ObjectID, amount float64) (*models.WithdrawalRequest, error) {
	if amount <= 0 {
		return nil, utils.NewAppErrorf(utils.ErrKindInvalidInput, "withdrawal amount must be > 0, got %v", amount)
	}

	agent, err := p.agents.FindByID(ctx, agentID)
	if err != nil {
		return nil, err
	}

	release, err := p.locker.Acquire(ctx, agentID.Hex())
	if err != nil {
		return nil, err
	}
	defer release()

	earned, err := p.ledger.commissions.FindEarnedOldestFirst(ctx, agentID)
	if err != nil {
		return nil, err
	}

	available := 0.0
	for _, rec := range earned {
		available += rec.Amount
	}
	if available < amount {
		return nil, utils.NewAppErrorf(utils.ErrKindInsufficientBalance,
			"available balance %.2f is short %.2f of requested %.2f", available, amount-available, amount)
	}

	// Oldest-first until the requested amount is covered
	var selected []primitive.ObjectID
	covered := 0.0
	for _, rec := range earned {
		selected = append(selected, rec.ID)
		covered += rec.Amount
		if covered >= amount {
			break
		}
	}

	withdrawalID := primitive.NewObjectID()
	if err := p.ledger.Lock(ctx, selected, withdrawalID); err != nil {
		return nil, err
	}

	withdrawal := &models.WithdrawalRequest{
		ID:            withdrawalID,
		AgentID:       agentID,
		Amount:        amount,
		Status:        models.WithdrawalRequested,
		MomoNumber:    agent.MomoNumber,
		CommissionIDs: selected,
	}
	if err := p.withdrawals.Insert(ctx, withdrawal); err != nil {
		if rbErr := p.ledger.Release(ctx, withdrawalID); rbErr != nil {
			log.Printf("Warning: failed to release commissions after withdrawal insert failure %s: %v", withdrawalID.Hex(), rbErr)
		}
		return nil, err
	}

	return withdrawal, nil
}

// Finalize marks a withdrawal paid, settles the locked commissions and
// initiates the mobile money payout. Irreversible; the spendable wallet
// balance is never touched, withdrawals move money out of the system
// entirely. The paid transition is the claim: whoever wins the
// compare-and-set pays the provider, everyone else heals and returns the
// settled request, so a retried or concurrent approve can neither
// double-apply nor double-pay.
func (p *WithdrawalProcessor) Finalize(ctx context.Context, withdrawalID, adminID primitive.ObjectID) (*models.WithdrawalRequest, error) {
	withdrawal, err := p.withdrawals.FindByID(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if withdrawal.Status == models.WithdrawalPaid {
		// A prior finalize may have stopped between the paid transition and
		// settling the commissions; settle whatever is still pending.
		if err := p.ledger.Finalize(ctx, withdrawalID); err != nil {
			return nil, err
		}
		return withdrawal, nil
	}
	if withdrawal.Status != models.WithdrawalRequested && withdrawal.Status != models.WithdrawalProcessing {
		return nil, utils.NewAppErrorf(utils.ErrKindInvalidTransition,
			"withdrawal %s is %s and cannot be finalized", withdrawalID.Hex(), withdrawal.Status)
	}

	err = p.withdrawals.Transition(ctx, withdrawalID,
		[]string{models.WithdrawalRequested, models.WithdrawalProcessing},
		models.WithdrawalPaid, &adminID, "LOCAL-"+uuid.New().String(), "")
	if err != nil {
		if utils.IsKind(err, utils.ErrKindInvalidTransition) {
			// Lost the claim to another finalize. If it ended paid the end
			// state is the one we wanted; settle any leftover commissions
			// without touching the provider.
			current, findErr := p.withdrawals.FindByID(ctx, withdrawalID)
			if findErr == nil && current.Status == models.WithdrawalPaid {
				if err := p.ledger.Finalize(ctx, withdrawalID); err != nil {
					return nil, err
				}
				return current, nil
			}
		}
		return nil, err
	}

	if p.payouts != nil && p.payouts.Enabled() {
		ref, err := p.payouts.Payout(ctx, withdrawal.MomoNumber, withdrawal.Amount, withdrawalID.Hex())
		if err != nil {
			// The request stays paid with its local reference; operations
			// reconcile against the provider statement.
			log.Printf("Warning: momo payout for withdrawal %s failed, keeping local reference: %v", withdrawalID.Hex(), err)
		} else if err := p.withdrawals.SetPayoutReference(ctx, withdrawalID, ref); err != nil {
			log.Printf("Warning: could not record provider reference %s on withdrawal %s: %v", ref, withdrawalID.Hex(), err)
		}
	}

	if err := p.ledger.Finalize(ctx, withdrawalID); err != nil {
		// The request is paid; a retried approve settles the commissions and
		// the auditor flags the window until then.
		log.Printf("Warning: withdrawal %s paid but commission finalize failed: %v", withdrawalID.Hex(), err)
	}

	return p.withdrawals.FindByID(ctx, withdrawalID)
}

// Cancel rejects a withdrawal and returns its locked commissions to earned.
// Cancelling an already-rejected withdrawal re-runs the release, so a cancel
// that stopped between the rejection and the release is healed on retry;
// a paid withdrawal cannot be cancelled.
func (p *WithdrawalProcessor) Cancel(ctx context.Context, withdrawalID, adminID primitive.ObjectID, reason string) (*models.WithdrawalRequest, error) {
	withdrawal, err := p.withdrawals.FindByID(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if withdrawal.Status == models.WithdrawalRejected {
		// Release is a no-op when nothing is pending, so the retry is safe.
		if err := p.ledger.Release(ctx, withdrawalID); err != nil {
			return nil, err
		}
		return withdrawal, nil
	}
	if withdrawal.Status == models.WithdrawalPaid {
		return nil, utils.NewAppErrorf(utils.ErrKindInvalidTransition,
			"withdrawal %s is already paid and cannot be cancelled", withdrawalID.Hex())
	}

	err = p.withdrawals.Transition(ctx, withdrawalID,
		[]string{models.WithdrawalRequested, models.WithdrawalProcessing},
		models.WithdrawalRejected, &adminID, "", reason)
	if err != nil {
		if utils.IsKind(err, utils.ErrKindInvalidTransition) {
			current, findErr := p.withdrawals.FindByID(ctx, withdrawalID)
			if findErr == nil && current.Status == models.WithdrawalRejected {
				if err := p.ledger.Release(ctx, withdrawalID); err != nil {
					return nil, err
				}
				return current, nil
			}
		}
		return nil, err
	}

	if err := p.ledger.Release(ctx, withdrawalID); err != nil {
		return nil, err
	}

	return p.withdrawals.FindByID(ctx, withdrawalID)
}

// ListPending returns withdrawals awaiting an admin decision.
func (p *WithdrawalProcessor) ListPending(ctx context.Context) ([]models.WithdrawalRequest, error) {
	return p.withdrawals.FindByStatus(ctx, models.WithdrawalRequested, models.WithdrawalProcessing)
}

// History returns the agent's withdrawal requests, newest first.
func (p *WithdrawalProcessor) History(ctx context.Context, agentID primitive.ObjectID) ([]models.WithdrawalRequest, error) {
	return p.withdrawals.FindByAgent(ctx, agentID)
}
