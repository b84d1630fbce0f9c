package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/datamartgh/datamart_backend/models"
	"github.com/datamartgh/datamart_backend/utils"
)

type withdrawalFixture struct {
	processor   *WithdrawalProcessor
	ledger      *CommissionLedger
	commissions *memCommissionStore
	withdrawals *memWithdrawalStore
	agents      *memAgentStore
	payout      *fakePayout
	agentID     primitive.ObjectID
	adminID     primitive.ObjectID
}

func newWithdrawalFixture() *withdrawalFixture {
	commissions := newMemCommissionStore()
	wallets := newMemWalletStore()
	withdrawals := newMemWithdrawalStore()
	agents := newMemAgentStore()
	payout := &fakePayout{}

	ledger := NewCommissionLedger(commissions, wallets, agents)
	processor := NewWithdrawalProcessor(withdrawals, ledger, agents, NewLocalAgentLocker(), payout)

	return &withdrawalFixture{
		processor:   processor,
		ledger:      ledger,
		commissions: commissions,
		withdrawals: withdrawals,
		agents:      agents,
		payout:      payout,
		agentID:     agents.add(&models.Agent{MomoNumber: "0244123456"}),
		adminID:     primitive.NewObjectID(),
	}
}

func (f *withdrawalFixture) earn(t *testing.T, amounts ...float64) []primitive.ObjectID {
	t.Helper()
	var ids []primitive.ObjectID
	for _, amount := range amounts {
		rec, err := f.ledger.Create(context.Background(), f.agentID, models.SourceDataOrder, primitive.NewObjectID(), amount)
		if err != nil {
			t.Fatalf("Create commission: %v", err)
		}
		ids = append(ids, rec.ID)
	}
	return ids
}

func TestWithdrawalRequestSelectsOldestFirst(t *testing.T) {
	ctx := context.Background()
	f := newWithdrawalFixture()
	ids := f.earn(t, 1.00, 2.00, 3.00)

	w, err := f.processor.Request(ctx, f.agentID, 2.50)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	// Oldest two cover 2.50; the third stays earned
	if len(w.CommissionIDs) != 2 || w.CommissionIDs[0] != ids[0] || w.CommissionIDs[1] != ids[1] {
		t.Fatalf("selected %v, want oldest two %v", w.CommissionIDs, ids[:2])
	}
	if rec := f.commissions.get(ids[2]); rec.Status != models.CommissionEarned {
		t.Errorf("third record status = %q, want earned", rec.Status)
	}
	available, _ := f.ledger.AvailableBalance(ctx, f.agentID)
	if available != 3 {
		t.Errorf("available after request = %v, want 3", available)
	}
	if w.MomoNumber != "0244123456" {
		t.Errorf("momo number = %q, want agent's number", w.MomoNumber)
	}
}

func TestWithdrawalRequestInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	f := newWithdrawalFixture()
	ids := f.earn(t, 1.00, 0.50)

	_, err := f.processor.Request(ctx, f.agentID, 5.00)
	if !utils.IsKind(err, utils.ErrKindInsufficientBalance) {
		t.Fatalf("error kind = %v, want insufficient_balance", utils.KindOf(err))
	}
	if !strings.Contains(err.Error(), "3.50") {
		t.Errorf("error %q does not carry the shortfall 3.50", err.Error())
	}

	// Nothing was locked
	for _, id := range ids {
		if rec := f.commissions.get(id); rec.Status != models.CommissionEarned {
			t.Errorf("record %s status = %q, want earned", id.Hex(), rec.Status)
		}
	}
}

func TestWithdrawalRequestValidation(t *testing.T) {
	ctx := context.Background()
	f := newWithdrawalFixture()

	if _, err := f.processor.Request(ctx, f.agentID, 0); !utils.IsKind(err, utils.ErrKindInvalidInput) {
		t.Errorf("zero amount error kind = %v, want invalid_input", utils.KindOf(err))
	}
	if _, err := f.processor.Request(ctx, primitive.NewObjectID(), 10); !utils.IsKind(err, utils.ErrKindNotFound) {
		t.Errorf("unknown agent error kind = %v, want not_found", utils.KindOf(err))
	}
}

func TestWithdrawalRequestReleasesLocksOnInsertFailure(t *testing.T) {
	ctx := context.Background()
	f := newWithdrawalFixture()
	ids := f.earn(t, 1.00, 2.00)
	f.withdrawals.failInsert = errors.New("write concern failure")

	if _, err := f.processor.Request(ctx, f.agentID, 3.00); err == nil {
		t.Fatal("Request expected error")
	}
	for _, id := range ids {
		if rec := f.commissions.get(id); rec.Status != models.CommissionEarned {
			t.Errorf("record %s status = %q, want earned after rollback", id.Hex(), rec.Status)
		}
	}
}

func TestWithdrawalFinalize(t *testing.T) {
	ctx := context.Background()
	f := newWithdrawalFixture()
	f.earn(t, 2.00, 3.00)
	f.payout.enabled = true

	w, err := f.processor.Request(ctx, f.agentID, 5.00)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	paid, err := f.processor.Finalize(ctx, w.ID, f.adminID)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if paid.Status != models.WithdrawalPaid {
		t.Errorf("status = %q, want paid", paid.Status)
	}
	if paid.PayoutReference != "MOMO-"+w.ID.Hex() {
		t.Errorf("payout reference = %q, want provider reference", paid.PayoutReference)
	}

	totalCommissions, totalPaidOut, _ := f.ledger.Totals(ctx, f.agentID)
	if totalCommissions != 5 || totalPaidOut != 5 {
		t.Errorf("totals = %v/%v, want 5/5", totalCommissions, totalPaidOut)
	}

	// Retried approval is a no-op
	again, err := f.processor.Finalize(ctx, w.ID, f.adminID)
	if err != nil {
		t.Fatalf("repeat Finalize: %v", err)
	}
	if again.Status != models.WithdrawalPaid {
		t.Errorf("repeat status = %q, want paid", again.Status)
	}
	if len(f.payout.calls) != 1 {
		t.Errorf("payout called %d times, want 1", len(f.payout.calls))
	}
}

func TestWithdrawalFinalizeRetrySettlesPendingCommissions(t *testing.T) {
	ctx := context.Background()
	f := newWithdrawalFixture()
	ids := f.earn(t, 5.00)

	w, err := f.processor.Request(ctx, f.agentID, 5.00)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	// The request reached paid but the commission settlement never ran
	err = f.withdrawals.Transition(ctx, w.ID,
		[]string{models.WithdrawalRequested}, models.WithdrawalPaid, &f.adminID, "LOCAL-abc", "")
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}

	paid, err := f.processor.Finalize(ctx, w.ID, f.adminID)
	if err != nil {
		t.Fatalf("retried Finalize: %v", err)
	}
	if paid.Status != models.WithdrawalPaid {
		t.Errorf("status = %q, want paid", paid.Status)
	}
	if rec := f.commissions.get(ids[0]); rec.Status != models.CommissionWithdrawn {
		t.Errorf("commission status after retry = %q, want withdrawn", rec.Status)
	}
	totalCommissions, totalPaidOut, _ := f.ledger.Totals(ctx, f.agentID)
	if totalCommissions != 5 || totalPaidOut != 5 {
		t.Errorf("totals = %v/%v, want 5/5", totalCommissions, totalPaidOut)
	}
}

func TestWithdrawalFinalizeConcurrentSinglePayout(t *testing.T) {
	ctx := context.Background()
	f := newWithdrawalFixture()
	f.earn(t, 5.00)
	f.payout.enabled = true

	w, err := f.processor.Request(ctx, f.agentID, 5.00)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.processor.Finalize(ctx, w.ID, f.adminID)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Finalize %d: %v", i, err)
		}
	}
	if len(f.payout.calls) != 1 {
		t.Errorf("provider payout initiated %d times, want 1", len(f.payout.calls))
	}
	paid, err := f.withdrawals.FindByID(ctx, w.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if paid.Status != models.WithdrawalPaid {
		t.Errorf("status = %q, want paid", paid.Status)
	}
}

func TestWithdrawalFinalizeWithoutProvider(t *testing.T) {
	ctx := context.Background()
	f := newWithdrawalFixture()
	f.earn(t, 5.00)

	w, err := f.processor.Request(ctx, f.agentID, 5.00)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	paid, err := f.processor.Finalize(ctx, w.ID, f.adminID)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !strings.HasPrefix(paid.PayoutReference, "LOCAL-") {
		t.Errorf("payout reference = %q, want LOCAL- prefix", paid.PayoutReference)
	}
}

func TestWithdrawalCancel(t *testing.T) {
	ctx := context.Background()
	f := newWithdrawalFixture()
	ids := f.earn(t, 2.00, 3.00)

	w, err := f.processor.Request(ctx, f.agentID, 5.00)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	rejected, err := f.processor.Cancel(ctx, w.ID, f.adminID, "momo number mismatch")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if rejected.Status != models.WithdrawalRejected {
		t.Errorf("status = %q, want rejected", rejected.Status)
	}
	if rejected.RejectionReason != "momo number mismatch" {
		t.Errorf("reason = %q", rejected.RejectionReason)
	}

	// Commissions returned to earned, spendable again
	for _, id := range ids {
		if rec := f.commissions.get(id); rec.Status != models.CommissionEarned {
			t.Errorf("record %s status = %q, want earned", id.Hex(), rec.Status)
		}
	}

	// Repeat cancel is a no-op
	if _, err := f.processor.Cancel(ctx, w.ID, f.adminID, ""); err != nil {
		t.Fatalf("repeat Cancel: %v", err)
	}
}

func TestWithdrawalCancelRetryReleasesCommissions(t *testing.T) {
	ctx := context.Background()
	f := newWithdrawalFixture()
	ids := f.earn(t, 2.00, 3.00)

	w, err := f.processor.Request(ctx, f.agentID, 5.00)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	// The request reached rejected but the commission release never ran
	err = f.withdrawals.Transition(ctx, w.ID,
		[]string{models.WithdrawalRequested}, models.WithdrawalRejected, &f.adminID, "", "momo number mismatch")
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}

	rejected, err := f.processor.Cancel(ctx, w.ID, f.adminID, "momo number mismatch")
	if err != nil {
		t.Fatalf("retried Cancel: %v", err)
	}
	if rejected.Status != models.WithdrawalRejected {
		t.Errorf("status = %q, want rejected", rejected.Status)
	}
	for _, id := range ids {
		if rec := f.commissions.get(id); rec.Status != models.CommissionEarned {
			t.Errorf("record %s status after retry = %q, want earned", id.Hex(), rec.Status)
		}
	}
	available, _ := f.ledger.AvailableBalance(ctx, f.agentID)
	if available != 5 {
		t.Errorf("available after retry = %v, want 5", available)
	}
}

func TestWithdrawalCancelPaidFails(t *testing.T) {
	ctx := context.Background()
	f := newWithdrawalFixture()
	f.earn(t, 5.00)

	w, err := f.processor.Request(ctx, f.agentID, 5.00)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if _, err := f.processor.Finalize(ctx, w.ID, f.adminID); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	_, err = f.processor.Cancel(ctx, w.ID, f.adminID, "")
	if !utils.IsKind(err, utils.ErrKindInvalidTransition) {
		t.Errorf("cancel of paid error kind = %v, want invalid_transition", utils.KindOf(err))
	}
}

func TestWithdrawalListPending(t *testing.T) {
	ctx := context.Background()
	f := newWithdrawalFixture()
	f.earn(t, 2.00, 3.00)

	w1, err := f.processor.Request(ctx, f.agentID, 2.00)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	w2, err := f.processor.Request(ctx, f.agentID, 3.00)
	if err != nil {
		t.Fatalf("second Request: %v", err)
	}
	if _, err := f.processor.Finalize(ctx, w1.ID, f.adminID); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	pending, err := f.processor.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != w2.ID {
		t.Errorf("pending = %v, want only the second request", pending)
	}
}
