// services/order_sync.go
package services

import (
	"context"
	"log"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/datamartgh/datamart_backend/models"
	"github.com/datamartgh/datamart_backend/utils"
)

// OrderSyncService keeps the commission ledger consistent with order and
// referral status changes. It never writes to the order collections; those
// belong to the ordering subsystem.
type OrderSyncService struct {
	orders OrderStore
	ledger *CommissionLedger
	agents AgentStore
	locker AgentLocker
	policy utils.CommissionPolicy

	// SyncAll fan-out width
	workers int
}

func NewOrderSyncService(orders OrderStore, ledger *CommissionLedger, agents AgentStore, locker AgentLocker, policy utils.CommissionPolicy) *OrderSyncService {
	return &OrderSyncService{
		orders:  orders,
		ledger:  ledger,
		agents:  agents,
		locker:  locker,
		policy:  policy,
		workers: 4,
	}
}

// HandleStatusChange reacts to one source status transition. Entering a
// completed state credits the commission; leaving one reverses it.
// Transitions that do not cross the completed boundary are ignored, and a
// repeated delivery of the same event is absorbed by the duplicate-source
// guard, so the hook is safe to call at-least-once.
func (s *OrderSyncService) HandleStatusChange(ctx context.Context, sourceType string, sourceID primitive.ObjectID, oldStatus, newStatus string) error {
	if !models.IsValidSourceType(sourceType) {
		return utils.NewAppErrorf(utils.ErrKindInvalidInput, "unknown source type %q", sourceType)
	}

	wasCompleted := models.IsSourceCompleted(sourceType, oldStatus)
	isCompleted := models.IsSourceCompleted(sourceType, newStatus)
	if wasCompleted == isCompleted {
		return nil
	}

	src, err := s.orders.FindSource(ctx, sourceType, sourceID)
	if err != nil {
		return err
	}

	release, err := s.locker.Acquire(ctx, src.AgentID.Hex())
	if err != nil {
		return err
	}
	defer release()

	if isCompleted {
		return s.credit(ctx, src)
	}
	return s.ledger.Reverse(ctx, sourceType, sourceID)
}

// credit computes and persists the commission for a completed source. A zero
// commission (tiny rate on a tiny price, rounded away) records nothing.
func (s *OrderSyncService) credit(ctx context.Context, src *models.CommissionSource) error {
	amount, err := s.commissionFor(src)
	if err != nil {
		return err
	}
	if amount == 0 {
		log.Printf("Sync: %s %s rounds to zero commission, nothing recorded", src.SourceType, src.ID.Hex())
		return nil
	}

	_, err = s.ledger.Create(ctx, src.AgentID, src.SourceType, src.ID, amount)
	if err != nil {
		if utils.IsKind(err, utils.ErrKindDuplicateSource) {
			log.Printf("Sync: commission for %s %s already recorded", src.SourceType, src.ID.Hex())
			return nil
		}
		return err
	}
	return nil
}

// commissionFor applies the source's own terms: referrals carry a fixed
// amount, orders a price and rate.
func (s *OrderSyncService) commissionFor(src *models.CommissionSource) (float64, error) {
	if src.SourceType == models.SourceReferral {
		return utils.CalculateCommission(src.CommissionAmount, 1, s.policy)
	}
	return utils.CalculateCommission(src.Price, src.CommissionRate, s.policy)
}

// SyncAgent reconciles one agent's ledger against the current state of their
// sources: completed sources missing a commission get one, and earned
// commissions whose source is no longer completed (or no longer exists) are
// reversed. Runs under the agent lock.
func (s *OrderSyncService) SyncAgent(ctx context.Context, agentID primitive.ObjectID) (created, reversed int, err error) {
	release, err := s.locker.Acquire(ctx, agentID.Hex())
	if err != nil {
		return 0, 0, err
	}
	defer release()

	for _, sourceType := range []string{models.SourceReferral, models.SourceDataOrder, models.SourceWholesaleOrder} {
		sources, err := s.orders.ListByAgent(ctx, sourceType, agentID)
		if err != nil {
			return created, reversed, err
		}
		for _, src := range sources {
			if !models.IsSourceCompleted(src.SourceType, src.Status) {
				continue
			}
			amount, err := s.commissionFor(&src)
			if err != nil || amount == 0 {
				continue
			}
			_, err = s.ledger.Create(ctx, src.AgentID, src.SourceType, src.ID, amount)
			if err != nil {
				if utils.IsKind(err, utils.ErrKindDuplicateSource) {
					continue
				}
				return created, reversed, err
			}
			created++
		}
	}

	earned, err := s.ledger.History(ctx, agentID, models.CommissionEarned)
	if err != nil {
		return created, reversed, err
	}
	for _, rec := range earned {
		src, err := s.orders.FindSource(ctx, rec.SourceType, rec.SourceID)
		if err != nil && !utils.IsKind(err, utils.ErrKindNotFound) {
			return created, reversed, err
		}
		if err == nil && models.IsSourceCompleted(src.SourceType, src.Status) {
			continue
		}
		if err := s.ledger.Reverse(ctx, rec.SourceType, rec.SourceID); err != nil {
			return created, reversed, err
		}
		reversed++
	}

	return created, reversed, nil
}

// SyncSummary aggregates a SyncAll run.
type SyncSummary struct {
	AgentsSynced int `json:"agentsSynced"`
	Created      int `json:"commissionsCreated"`
	Reversed     int `json:"commissionsReversed"`
	Failed       int `json:"agentsFailed"`
}

// SyncAll reconciles every agent, fanning out across a small worker pool.
// Per-agent failures are logged and counted; the sweep continues. Stops
// early when ctx is cancelled.
func (s *OrderSyncService) SyncAll(ctx context.Context) (*SyncSummary, error) {
	agentIDs, err := s.agents.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	ids := make(chan primitive.ObjectID)
	summary := &SyncSummary{}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range ids {
				created, reversed, err := s.SyncAgent(ctx, id)
				mu.Lock()
				if err != nil {
					log.Printf("SyncAll: agent %s failed: %v", id.Hex(), err)
					summary.Failed++
				} else {
					summary.AgentsSynced++
				}
				summary.Created += created
				summary.Reversed += reversed
				mu.Unlock()
			}
		}()
	}

	for _, id := range agentIDs {
		select {
		case <-ctx.Done():
			close(ids)
			wg.Wait()
			return summary, utils.WrapError(utils.ErrKindTransientStore, "full sync aborted", ctx.Err())
		case ids <- id:
		}
	}
	close(ids)
	wg.Wait()

	return summary, nil
}
