// services/wallet_service.go
package services

import (
	"context"
	"log"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/datamartgh/datamart_backend/models"
	"github.com/datamartgh/datamart_backend/utils"
)

// SumWalletTransactions replays approved wallet transactions into a signed
// running total. topup, refund and admin_adjustment add; deduction,
// withdrawal_deduction and admin_reversal subtract. commission_deposit rows
// never contribute: commission money only becomes spendable through an
// explicit topup, keeping the wallet strictly disjoint from commission
// balances. Unknown types are a configuration problem and are logged and
// skipped rather than aborting the replay.
func SumWalletTransactions(txns []models.WalletTransaction) float64 {
	total := 0.0
	for _, txn := range txns {
		if txn.Status != models.WalletTxnApproved {
			continue
		}
		switch txn.Type {
		case models.WalletTopup, models.WalletRefund, models.WalletAdminAdjustment:
			total += txn.Amount
		case models.WalletDeduction, models.WalletWithdrawalDeduction, models.WalletAdminReversal:
			total -= txn.Amount
		case models.WalletCommissionDeposit:
			// Never contributes to the spendable balance.
		default:
			log.Printf("Warning: unknown wallet transaction type %q (id %s), skipping", txn.Type, txn.ID.Hex())
		}
	}
	return total
}

// ComputeWalletBalance is the spendable balance: the replayed sum clamped
// to zero.
func ComputeWalletBalance(txns []models.WalletTransaction) float64 {
	total := SumWalletTransactions(txns)
	if total < 0 {
		return 0
	}
	return total
}

// WalletService owns the wallet transaction log and the derived spendable
// balance.
type WalletService struct {
	wallets WalletStore
	agents  AgentStore
}

func NewWalletService(wallets WalletStore, agents AgentStore) *WalletService {
	return &WalletService{wallets: wallets, agents: agents}
}

// GetBalance recomputes the spendable balance from the approved log.
func (s *WalletService) GetBalance(ctx context.Context, agentID primitive.ObjectID) (float64, error) {
	txns, err := s.wallets.FindApprovedByAgent(ctx, agentID)
	if err != nil {
		return 0, err
	}
	return ComputeWalletBalance(txns), nil
}

// History returns the agent's full wallet log, newest first.
func (s *WalletService) History(ctx context.Context, agentID primitive.ObjectID) ([]models.WalletTransaction, error) {
	return s.wallets.FindByAgent(ctx, agentID)
}

// RequestTopup records a pending topup awaiting admin approval.
func (s *WalletService) RequestTopup(ctx context.Context, agentID primitive.ObjectID, amount float64, reference string) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, utils.NewAppErrorf(utils.ErrKindInvalidInput, "topup amount must be > 0, got %v", amount)
	}
	if _, err := s.agents.FindByID(ctx, agentID); err != nil {
		return nil, err
	}

	txn := &models.WalletTransaction{
		AgentID:   agentID,
		Type:      models.WalletTopup,
		Amount:    utils.RoundMoney(amount),
		Status:    models.WalletTxnPending,
		Reference: reference,
	}
	if err := s.wallets.Insert(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// ProcessTransaction approves or rejects a pending transaction and, on
// approval, refreshes the agent's cached balance.
func (s *WalletService) ProcessTransaction(ctx context.Context, txnID, adminID primitive.ObjectID, approve bool) error {
	txn, err := s.wallets.FindByID(ctx, txnID)
	if err != nil {
		return err
	}

	to := models.WalletTxnRejected
	if approve {
		to = models.WalletTxnApproved
	}
	if err := s.wallets.Process(ctx, txnID, to, &adminID); err != nil {
		return err
	}

	if approve {
		s.refreshBalanceCache(ctx, txn.AgentID)
	}
	return nil
}

// RecordAdjustment inserts an immediately-approved admin adjustment or
// reversal. Positive corrections use admin_adjustment, negative ones
// admin_reversal; the amount is always a positive magnitude.
func (s *WalletService) RecordAdjustment(ctx context.Context, agentID, adminID primitive.ObjectID, txnType string, amount float64, reference string) (*models.WalletTransaction, error) {
	if txnType != models.WalletAdminAdjustment && txnType != models.WalletAdminReversal {
		return nil, utils.NewAppErrorf(utils.ErrKindInvalidInput, "unsupported adjustment type %q", txnType)
	}
	if amount <= 0 {
		return nil, utils.NewAppErrorf(utils.ErrKindInvalidInput, "adjustment amount must be > 0, got %v", amount)
	}
	if _, err := s.agents.FindByID(ctx, agentID); err != nil {
		return nil, err
	}

	txn := &models.WalletTransaction{
		AgentID:   agentID,
		Type:      txnType,
		Amount:    utils.RoundMoney(amount),
		Status:    models.WalletTxnApproved,
		Reference: reference,
		AdminID:   &adminID,
	}
	if err := s.wallets.Insert(ctx, txn); err != nil {
		return nil, err
	}
	s.refreshBalanceCache(ctx, agentID)
	return txn, nil
}

// refreshBalanceCache recomputes the denormalized wallet balance. The log
// stays the source of truth, so a failed cache write is only logged.
func (s *WalletService) refreshBalanceCache(ctx context.Context, agentID primitive.ObjectID) {
	txns, err := s.wallets.FindApprovedByAgent(ctx, agentID)
	if err != nil {
		log.Printf("Warning: could not recompute wallet balance for agent %s: %v", agentID.Hex(), err)
		return
	}
	if err := s.agents.UpdateWalletBalance(ctx, agentID, ComputeWalletBalance(txns)); err != nil {
		log.Printf("Warning: could not update wallet balance cache for agent %s: %v", agentID.Hex(), err)
	}
}
