// services/integrity_audit.go
package services

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/datamartgh/datamart_backend/models"
	"github.com/datamartgh/datamart_backend/utils"
)

// balanceEpsilon absorbs float accumulation noise when comparing recomputed
// sums against cached ones.
const balanceEpsilon = 0.01

// IntegrityAuditor sweeps every agent's records and reports invariant
// violations. It is strictly read-only; fixing anything it finds is an
// operator decision.
type IntegrityAuditor struct {
	agents      AgentStore
	commissions CommissionStore
	wallets     WalletStore
	withdrawals WithdrawalStore
	orders      OrderStore

	workers int
}

func NewIntegrityAuditor(agents AgentStore, commissions CommissionStore, wallets WalletStore, withdrawals WithdrawalStore, orders OrderStore) *IntegrityAuditor {
	return &IntegrityAuditor{
		agents:      agents,
		commissions: commissions,
		wallets:     wallets,
		withdrawals: withdrawals,
		orders:      orders,
		workers:     4,
	}
}

// Run audits all agents and returns the report. Store errors while checking
// an agent become audit_error violations for that agent; the sweep itself
// only fails when the agent list cannot be loaded or ctx expires, in which
// case the partial report is returned alongside the abort error.
func (a *IntegrityAuditor) Run(ctx context.Context) (*models.AuditReport, error) {
	started := time.Now()

	agentIDs, err := a.agents.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	ids := make(chan primitive.ObjectID)
	var mu sync.Mutex
	var violations []models.AuditViolation
	violating := make(map[primitive.ObjectID]bool)
	checked := 0
	var wg sync.WaitGroup

	for i := 0; i < a.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range ids {
				found := a.auditAgent(ctx, id)
				mu.Lock()
				checked++
				if len(found) > 0 {
					violations = append(violations, found...)
					violating[id] = true
				}
				mu.Unlock()
			}
		}()
	}

	var aborted error
	for _, id := range agentIDs {
		select {
		case <-ctx.Done():
			aborted = utils.WrapError(utils.ErrKindTransientStore, "audit aborted", ctx.Err())
		case ids <- id:
		}
		if aborted != nil {
			break
		}
	}
	close(ids)
	wg.Wait()

	report := &models.AuditReport{
		RanAt:         started,
		Duration:      time.Since(started),
		AgentsChecked: checked,
		Violations:    violations,
		HealthScore:   1,
	}
	if checked > 0 {
		report.HealthScore = 1 - float64(len(violating))/float64(checked)
	}
	return report, aborted
}

func (a *IntegrityAuditor) auditAgent(ctx context.Context, agentID primitive.ObjectID) []models.AuditViolation {
	var found []models.AuditViolation
	fail := func(err error) []models.AuditViolation {
		return append(found, models.AuditViolation{
			AgentID:        agentID,
			Violation:      models.ViolationAuditError,
			Detail:         err.Error(),
			Recommendation: "re-run the audit; investigate store availability if it persists",
		})
	}

	agent, err := a.agents.FindByID(ctx, agentID)
	if err != nil {
		return fail(err)
	}

	txns, err := a.wallets.FindApprovedByAgent(ctx, agentID)
	if err != nil {
		return fail(err)
	}
	rawSum := SumWalletTransactions(txns)
	if rawSum < -balanceEpsilon {
		found = append(found, models.AuditViolation{
			AgentID:        agentID,
			Violation:      models.ViolationNegativeWallet,
			Detail:         fmt.Sprintf("approved wallet transactions sum to %.2f", rawSum),
			Recommendation: "record an admin_adjustment covering the deficit, then review the deduction history",
		})
	}

	totalCommissions, totalPaidOut, err := a.commissionTotals(ctx, agentID)
	if err != nil {
		return fail(err)
	}

	paidWithdrawals, err := a.sumPaidWithdrawals(ctx, agentID)
	if err != nil {
		return fail(err)
	}
	if paidWithdrawals > totalCommissions+balanceEpsilon {
		found = append(found, models.AuditViolation{
			AgentID:        agentID,
			Violation:      models.ViolationPaidOutExceeds,
			Detail:         fmt.Sprintf("paid withdrawals total %.2f but commissions total %.2f", paidWithdrawals, totalCommissions),
			Recommendation: "cross-check withdrawal payout references against the momo provider statement",
		})
	}

	walletBalance := ComputeWalletBalance(txns)
	if diverged(agent.WalletBalance, walletBalance) {
		found = append(found, models.AuditViolation{
			AgentID:        agentID,
			Violation:      models.ViolationStaleCache,
			Detail:         fmt.Sprintf("cached wallet balance %.2f, recomputed %.2f", agent.WalletBalance, walletBalance),
			Recommendation: "refresh the cache from the transaction log",
		})
	}
	if diverged(agent.TotalCommissions, totalCommissions) || diverged(agent.TotalPaidOut, totalPaidOut) {
		found = append(found, models.AuditViolation{
			AgentID:   agentID,
			Violation: models.ViolationStaleCache,
			Detail: fmt.Sprintf("cached commission totals %.2f/%.2f, recomputed %.2f/%.2f",
				agent.TotalCommissions, agent.TotalPaidOut, totalCommissions, totalPaidOut),
			Recommendation: "refresh the cache from the commission records",
		})
	}

	orphans, err := a.findOrphanCommissions(ctx, agentID)
	if err != nil {
		return fail(err)
	}
	found = append(found, orphans...)

	stuck, err := a.findStuckReservations(ctx, agentID)
	if err != nil {
		return fail(err)
	}
	found = append(found, stuck...)

	return found
}

// commissionTotals mirrors the ledger's Totals but reads the stores
// directly, so the audit does not depend on the code paths it is checking.
func (a *IntegrityAuditor) commissionTotals(ctx context.Context, agentID primitive.ObjectID) (totalCommissions, totalPaidOut float64, err error) {
	for _, status := range []string{models.CommissionEarned, models.CommissionPendingWithdrawal, models.CommissionWithdrawn} {
		sum, err := a.commissions.SumByStatus(ctx, agentID, status)
		if err != nil {
			return 0, 0, err
		}
		totalCommissions += sum
		if status == models.CommissionWithdrawn {
			totalPaidOut = sum
		}
	}
	return totalCommissions, totalPaidOut, nil
}

func (a *IntegrityAuditor) sumPaidWithdrawals(ctx context.Context, agentID primitive.ObjectID) (float64, error) {
	withdrawals, err := a.withdrawals.FindByAgent(ctx, agentID)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, w := range withdrawals {
		if w.Status == models.WithdrawalPaid {
			total += w.Amount
		}
	}
	return total, nil
}

// findOrphanCommissions flags earned commissions whose source row is missing
// or no longer in a completed state.
func (a *IntegrityAuditor) findOrphanCommissions(ctx context.Context, agentID primitive.ObjectID) ([]models.AuditViolation, error) {
	earned, err := a.commissions.FindByAgent(ctx, agentID, models.CommissionEarned)
	if err != nil {
		return nil, err
	}

	var found []models.AuditViolation
	for _, rec := range earned {
		src, err := a.orders.FindSource(ctx, rec.SourceType, rec.SourceID)
		if err != nil {
			if utils.IsKind(err, utils.ErrKindNotFound) {
				found = append(found, models.AuditViolation{
					AgentID:        agentID,
					Violation:      models.ViolationOrphanCommission,
					Detail:         fmt.Sprintf("commission %s references missing %s %s", rec.ID.Hex(), rec.SourceType, rec.SourceID.Hex()),
					Recommendation: "reverse the commission or restore the source row",
				})
				continue
			}
			return nil, err
		}
		if !models.IsSourceCompleted(src.SourceType, src.Status) {
			found = append(found, models.AuditViolation{
				AgentID:        agentID,
				Violation:      models.ViolationOrphanCommission,
				Detail:         fmt.Sprintf("commission %s references %s %s in status %q", rec.ID.Hex(), rec.SourceType, rec.SourceID.Hex(), src.Status),
				Recommendation: "run a sync for this agent to reverse it",
			})
		}
	}
	return found, nil
}

// findStuckReservations flags pending_withdrawal commissions whose
// withdrawal has already reached a terminal state. This is the window left
// by a finalize or cancel that stopped between the request transition and
// settling the commissions; a retried approve or reject clears it.
func (a *IntegrityAuditor) findStuckReservations(ctx context.Context, agentID primitive.ObjectID) ([]models.AuditViolation, error) {
	pending, err := a.commissions.FindByAgent(ctx, agentID, models.CommissionPendingWithdrawal)
	if err != nil {
		return nil, err
	}

	var found []models.AuditViolation
	for _, rec := range pending {
		if rec.WithdrawalID == nil {
			found = append(found, models.AuditViolation{
				AgentID:        agentID,
				Violation:      models.ViolationStuckPending,
				Detail:         fmt.Sprintf("commission %s is pending_withdrawal but references no withdrawal", rec.ID.Hex()),
				Recommendation: "inspect the record and release it to earned",
			})
			continue
		}
		w, err := a.withdrawals.FindByID(ctx, *rec.WithdrawalID)
		if err != nil {
			if utils.IsKind(err, utils.ErrKindNotFound) {
				found = append(found, models.AuditViolation{
					AgentID:        agentID,
					Violation:      models.ViolationStuckPending,
					Detail:         fmt.Sprintf("commission %s references missing withdrawal %s", rec.ID.Hex(), rec.WithdrawalID.Hex()),
					Recommendation: "inspect the record and release it to earned",
				})
				continue
			}
			return nil, err
		}
		switch w.Status {
		case models.WithdrawalPaid:
			found = append(found, models.AuditViolation{
				AgentID:        agentID,
				Violation:      models.ViolationStuckPending,
				Detail:         fmt.Sprintf("commission %s is still pending under paid withdrawal %s", rec.ID.Hex(), w.ID.Hex()),
				Recommendation: "re-run the withdrawal approval to settle the commission",
			})
		case models.WithdrawalRejected:
			found = append(found, models.AuditViolation{
				AgentID:        agentID,
				Violation:      models.ViolationStuckPending,
				Detail:         fmt.Sprintf("commission %s is still pending under rejected withdrawal %s", rec.ID.Hex(), w.ID.Hex()),
				Recommendation: "re-run the withdrawal rejection to release the commission",
			})
		}
	}
	return found, nil
}

func diverged(cached, recomputed float64) bool {
	return math.Abs(cached-recomputed) > balanceEpsilon
}
