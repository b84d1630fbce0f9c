package services

// In-memory store implementations used across the service tests. They mirror
// the repository semantics: compare-and-set transitions, the partial unique
// guard on (sourceType, sourceId) and not-found errors with the same kinds.

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/datamartgh/datamart_backend/models"
	"github.com/datamartgh/datamart_backend/utils"
)

type memCommissionStore struct {
	mu      sync.Mutex
	records map[primitive.ObjectID]*models.CommissionRecord
	seq     int
}

func newMemCommissionStore() *memCommissionStore {
	return &memCommissionStore{records: make(map[primitive.ObjectID]*models.CommissionRecord)}
}

func (s *memCommissionStore) Insert(ctx context.Context, rec *models.CommissionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.records {
		if existing.SourceType == rec.SourceType && existing.SourceID == rec.SourceID &&
			existing.Status != models.CommissionReversed {
			return utils.NewAppErrorf(utils.ErrKindDuplicateSource,
				"commission for %s %s already exists", rec.SourceType, rec.SourceID.Hex())
		}
	}

	s.seq++
	rec.ID = primitive.NewObjectID()
	rec.Version = 1
	rec.CreatedAt = time.Now().Add(time.Duration(s.seq) * time.Millisecond)
	rec.UpdatedAt = rec.CreatedAt
	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

func (s *memCommissionStore) FindActiveBySource(ctx context.Context, sourceType string, sourceID primitive.ObjectID) (*models.CommissionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		if rec.SourceType == sourceType && rec.SourceID == sourceID && rec.Status != models.CommissionReversed {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, utils.NewAppErrorf(utils.ErrKindNotFound, "no active commission for %s %s", sourceType, sourceID.Hex())
}

func (s *memCommissionStore) FindEarnedOldestFirst(ctx context.Context, agentID primitive.ObjectID) ([]models.CommissionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.CommissionRecord
	for _, rec := range s.records {
		if rec.AgentID == agentID && rec.Status == models.CommissionEarned {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memCommissionStore) FindByAgent(ctx context.Context, agentID primitive.ObjectID, statuses ...string) ([]models.CommissionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.CommissionRecord
	for _, rec := range s.records {
		if rec.AgentID != agentID {
			continue
		}
		if len(statuses) > 0 && !contains(statuses, rec.Status) {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memCommissionStore) FindByWithdrawal(ctx context.Context, withdrawalID primitive.ObjectID, status string) ([]models.CommissionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.CommissionRecord
	for _, rec := range s.records {
		if rec.WithdrawalID != nil && *rec.WithdrawalID == withdrawalID && rec.Status == status {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *memCommissionStore) SumByStatus(ctx context.Context, agentID primitive.ObjectID, status string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0.0
	for _, rec := range s.records {
		if rec.AgentID == agentID && rec.Status == status {
			total += rec.Amount
		}
	}
	return total, nil
}

func (s *memCommissionStore) Transition(ctx context.Context, id primitive.ObjectID, from, to string, withdrawalID *primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return utils.NewAppErrorf(utils.ErrKindNotFound, "commission %s not found", id.Hex())
	}
	if rec.Status != from {
		return utils.NewAppErrorf(utils.ErrKindInvalidTransition,
			"commission %s is %s, expected %s", id.Hex(), rec.Status, from)
	}
	rec.Status = to
	rec.Version++
	rec.UpdatedAt = time.Now()
	if withdrawalID != nil {
		rec.WithdrawalID = withdrawalID
	}
	if to == models.CommissionEarned {
		rec.WithdrawalID = nil
	}
	return nil
}

func (s *memCommissionStore) get(id primitive.ObjectID) *models.CommissionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[id]; ok {
		cp := *rec
		return &cp
	}
	return nil
}

type memWalletStore struct {
	mu   sync.Mutex
	txns map[primitive.ObjectID]*models.WalletTransaction
	seq  int

	failInsert error
	failFind   error
}

func newMemWalletStore() *memWalletStore {
	return &memWalletStore{txns: make(map[primitive.ObjectID]*models.WalletTransaction)}
}

func (s *memWalletStore) Insert(ctx context.Context, txn *models.WalletTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failInsert != nil {
		return s.failInsert
	}
	s.seq++
	txn.ID = primitive.NewObjectID()
	txn.CreatedAt = time.Now().Add(time.Duration(s.seq) * time.Millisecond)
	txn.UpdatedAt = txn.CreatedAt
	cp := *txn
	s.txns[txn.ID] = &cp
	return nil
}

func (s *memWalletStore) FindApprovedByAgent(ctx context.Context, agentID primitive.ObjectID) ([]models.WalletTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failFind != nil {
		return nil, s.failFind
	}
	var out []models.WalletTransaction
	for _, txn := range s.txns {
		if txn.AgentID == agentID && txn.Status == models.WalletTxnApproved {
			out = append(out, *txn)
		}
	}
	return out, nil
}

func (s *memWalletStore) FindByAgent(ctx context.Context, agentID primitive.ObjectID) ([]models.WalletTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.WalletTransaction
	for _, txn := range s.txns {
		if txn.AgentID == agentID {
			out = append(out, *txn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memWalletStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.WalletTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if txn, ok := s.txns[id]; ok {
		cp := *txn
		return &cp, nil
	}
	return nil, utils.NewAppErrorf(utils.ErrKindNotFound, "wallet transaction %s not found", id.Hex())
}

func (s *memWalletStore) Process(ctx context.Context, id primitive.ObjectID, to string, adminID *primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, ok := s.txns[id]
	if !ok {
		return utils.NewAppErrorf(utils.ErrKindNotFound, "wallet transaction %s not found", id.Hex())
	}
	if txn.Status != models.WalletTxnPending {
		return utils.NewAppErrorf(utils.ErrKindInvalidTransition,
			"wallet transaction %s is %s, expected pending", id.Hex(), txn.Status)
	}
	txn.Status = to
	txn.AdminID = adminID
	txn.UpdatedAt = time.Now()
	return nil
}

// seed inserts an approved transaction directly, bypassing the pending flow.
func (s *memWalletStore) seed(agentID primitive.ObjectID, txnType string, amount float64) {
	_ = s.Insert(context.Background(), &models.WalletTransaction{
		AgentID: agentID,
		Type:    txnType,
		Amount:  amount,
		Status:  models.WalletTxnApproved,
	})
}

type memWithdrawalStore struct {
	mu          sync.Mutex
	withdrawals map[primitive.ObjectID]*models.WithdrawalRequest

	failInsert error
}

func newMemWithdrawalStore() *memWithdrawalStore {
	return &memWithdrawalStore{withdrawals: make(map[primitive.ObjectID]*models.WithdrawalRequest)}
}

func (s *memWithdrawalStore) Insert(ctx context.Context, w *models.WithdrawalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failInsert != nil {
		return s.failInsert
	}
	if w.ID.IsZero() {
		w.ID = primitive.NewObjectID()
	}
	w.Version = 1
	w.CreatedAt = time.Now()
	cp := *w
	s.withdrawals[w.ID] = &cp
	return nil
}

func (s *memWithdrawalStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.withdrawals[id]; ok {
		cp := *w
		return &cp, nil
	}
	return nil, utils.NewAppErrorf(utils.ErrKindNotFound, "withdrawal %s not found", id.Hex())
}

func (s *memWithdrawalStore) FindByAgent(ctx context.Context, agentID primitive.ObjectID) ([]models.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.WithdrawalRequest
	for _, w := range s.withdrawals {
		if w.AgentID == agentID {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memWithdrawalStore) FindByStatus(ctx context.Context, statuses ...string) ([]models.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.WithdrawalRequest
	for _, w := range s.withdrawals {
		if contains(statuses, w.Status) {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memWithdrawalStore) Transition(ctx context.Context, id primitive.ObjectID, from []string, to string, adminID *primitive.ObjectID, payoutRef, rejectionReason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.withdrawals[id]
	if !ok {
		return utils.NewAppErrorf(utils.ErrKindNotFound, "withdrawal %s not found", id.Hex())
	}
	if !contains(from, w.Status) {
		return utils.NewAppErrorf(utils.ErrKindInvalidTransition,
			"withdrawal %s is %s", id.Hex(), w.Status)
	}
	w.Status = to
	w.AdminID = adminID
	w.Version++
	if payoutRef != "" {
		w.PayoutReference = payoutRef
	}
	if rejectionReason != "" {
		w.RejectionReason = rejectionReason
	}
	now := time.Now()
	w.ProcessedAt = &now
	return nil
}

func (s *memWithdrawalStore) SetPayoutReference(ctx context.Context, id primitive.ObjectID, payoutRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.withdrawals[id]
	if !ok || w.Status != models.WithdrawalPaid {
		return utils.NewAppErrorf(utils.ErrKindNotFound, "no paid withdrawal %s", id.Hex())
	}
	w.PayoutReference = payoutRef
	w.Version++
	return nil
}

type memAgentStore struct {
	mu     sync.Mutex
	agents map[primitive.ObjectID]*models.Agent
}

func newMemAgentStore() *memAgentStore {
	return &memAgentStore{agents: make(map[primitive.ObjectID]*models.Agent)}
}

func (s *memAgentStore) add(agent *models.Agent) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if agent.ID.IsZero() {
		agent.ID = primitive.NewObjectID()
	}
	if agent.UserType == "" {
		agent.UserType = models.UserTypeAgent
	}
	cp := *agent
	s.agents[agent.ID] = &cp
	return agent.ID
}

func (s *memAgentStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if agent, ok := s.agents[id]; ok {
		cp := *agent
		return &cp, nil
	}
	return nil, utils.NewAppErrorf(utils.ErrKindNotFound, "agent %s not found", id.Hex())
}

func (s *memAgentStore) ListIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []primitive.ObjectID
	for id, agent := range s.agents {
		if agent.UserType == models.UserTypeAgent {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memAgentStore) UpdateCommissionTotals(ctx context.Context, id primitive.ObjectID, totalCommissions, totalPaidOut float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if agent, ok := s.agents[id]; ok {
		agent.TotalCommissions = totalCommissions
		agent.TotalPaidOut = totalPaidOut
	}
	return nil
}

func (s *memAgentStore) UpdateWalletBalance(ctx context.Context, id primitive.ObjectID, balance float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if agent, ok := s.agents[id]; ok {
		agent.WalletBalance = balance
	}
	return nil
}

type memOrderStore struct {
	mu      sync.Mutex
	sources map[primitive.ObjectID]*models.CommissionSource
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{sources: make(map[primitive.ObjectID]*models.CommissionSource)}
}

func (s *memOrderStore) add(src models.CommissionSource) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if src.ID.IsZero() {
		src.ID = primitive.NewObjectID()
	}
	s.sources[src.ID] = &src
	return src.ID
}

func (s *memOrderStore) setStatus(id primitive.ObjectID, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src, ok := s.sources[id]; ok {
		src.Status = status
	}
}

func (s *memOrderStore) remove(id primitive.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sources, id)
}

func (s *memOrderStore) FindSource(ctx context.Context, sourceType string, sourceID primitive.ObjectID) (*models.CommissionSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if src, ok := s.sources[sourceID]; ok && src.SourceType == sourceType {
		cp := *src
		return &cp, nil
	}
	return nil, utils.NewAppErrorf(utils.ErrKindNotFound, "%s %s not found", sourceType, sourceID.Hex())
}

func (s *memOrderStore) ListByAgent(ctx context.Context, sourceType string, agentID primitive.ObjectID) ([]models.CommissionSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.CommissionSource
	for _, src := range s.sources {
		if src.SourceType == sourceType && src.AgentID == agentID {
			out = append(out, *src)
		}
	}
	return out, nil
}

// fakePayout records payouts instead of calling the aggregator.
type fakePayout struct {
	mu      sync.Mutex
	enabled bool
	fail    error
	calls   []string
}

func (p *fakePayout) Enabled() bool { return p.enabled }

func (p *fakePayout) Payout(ctx context.Context, momoNumber string, amount float64, reference string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return "", p.fail
	}
	p.calls = append(p.calls, reference)
	return "MOMO-" + reference, nil
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
