// Package store provides in-process budget.Store implementations.
package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/warp/envelope-ledger/budget"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	entries    []budget.LedgerEntry
	wallet     []budget.WalletLogEntry
	entryKeys  map[string]bool
	walletKeys map[string]bool

	periods     []budget.Period
	settlements []budget.SettlementRecord

	categories []budget.Category
	subTags    []budget.SubTag
	goals      []budget.SavingGoal
	banks      []budget.BankAccount

	session *budget.RolloverSession
}

func NewMemory() *Memory {
	return &Memory{
		entryKeys:  make(map[string]bool),
		walletKeys: make(map[string]bool),
	}
}

// =============================================================================
// LOGS - Append-only
// =============================================================================

func (m *Memory) AppendEntry(_ context.Context, e budget.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.IdempotencyKey != "" {
		if m.entryKeys[e.IdempotencyKey] {
			return budget.ErrDuplicateIdempotencyKey
		}
		m.entryKeys[e.IdempotencyKey] = true
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *Memory) AppendWallet(_ context.Context, e budget.WalletLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.IdempotencyKey != "" {
		if m.walletKeys[e.IdempotencyKey] {
			return budget.ErrDuplicateIdempotencyKey
		}
		m.walletKeys[e.IdempotencyKey] = true
	}
	m.wallet = append(m.wallet, e)
	return nil
}

func (m *Memory) Entries(_ context.Context) ([]budget.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.entries), nil
}

func (m *Memory) WalletEntries(_ context.Context) ([]budget.WalletLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.wallet), nil
}

// =============================================================================
// PERIODS + SETTLEMENTS
// =============================================================================

func (m *Memory) InsertPeriod(_ context.Context, p budget.Period) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.periods {
		if existing.ID == p.ID {
			return budget.ErrDuplicateIdempotencyKey
		}
	}
	if p.Status == budget.PeriodActive {
		for _, existing := range m.periods {
			if existing.Status == budget.PeriodActive {
				return fmt.Errorf("%s is active: %w", existing.ID, budget.ErrActivePeriodExists)
			}
		}
	}
	m.periods = append(m.periods, p)
	return nil
}

func (m *Memory) Periods(_ context.Context) ([]budget.Period, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.periods), nil
}

func (m *Memory) MarkPeriodSettled(_ context.Context, id string, settledAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.periods {
		if m.periods[i].ID != id {
			continue
		}
		if m.periods[i].Status == budget.PeriodSettled {
			return fmt.Errorf("%s: %w", id, budget.ErrAlreadySettled)
		}
		m.periods[i].Status = budget.PeriodSettled
		m.periods[i].SettledAt = &settledAt
		return nil
	}
	return fmt.Errorf("%s: %w", id, budget.ErrPeriodNotFound)
}

func (m *Memory) InsertSettlement(_ context.Context, r budget.SettlementRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.settlements {
		if existing.PeriodID == r.PeriodID || existing.ID == r.ID {
			return budget.ErrDuplicateIdempotencyKey
		}
	}
	m.settlements = append(m.settlements, r)
	return nil
}

func (m *Memory) Settlements(_ context.Context) ([]budget.SettlementRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.settlements), nil
}

// =============================================================================
// CATALOG
// =============================================================================

func (m *Memory) InsertCategory(_ context.Context, c budget.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.ContainsFunc(m.categories, func(x budget.Category) bool { return x.ID == c.ID }) {
		return budget.ErrDuplicateIdempotencyKey
	}
	m.categories = append(m.categories, c)
	return nil
}

func (m *Memory) Categories(_ context.Context) ([]budget.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.categories), nil
}

func (m *Memory) SetCategoryBudget(_ context.Context, id string, amount budget.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.categories {
		if m.categories[i].ID == id {
			m.categories[i].Budget = amount
			return nil
		}
	}
	return fmt.Errorf("%s: %w", id, budget.ErrCategoryNotFound)
}

func (m *Memory) InsertSubTag(_ context.Context, t budget.SubTag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.ContainsFunc(m.subTags, func(x budget.SubTag) bool { return x.ID == t.ID }) {
		return budget.ErrDuplicateIdempotencyKey
	}
	m.subTags = append(m.subTags, t)
	return nil
}

func (m *Memory) SubTags(_ context.Context) ([]budget.SubTag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.subTags), nil
}

func (m *Memory) InsertGoal(_ context.Context, g budget.SavingGoal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.ContainsFunc(m.goals, func(x budget.SavingGoal) bool { return x.ID == g.ID }) {
		return budget.ErrDuplicateIdempotencyKey
	}
	m.goals = append(m.goals, g)
	return nil
}

func (m *Memory) Goals(_ context.Context) ([]budget.SavingGoal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.goals), nil
}

func (m *Memory) SetGoalStatus(_ context.Context, id string, status budget.GoalStatus, completedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.goals {
		if m.goals[i].ID == id {
			m.goals[i].Status = status
			m.goals[i].CompletedAt = completedAt
			return nil
		}
	}
	return fmt.Errorf("%s: %w", id, budget.ErrGoalNotFound)
}

func (m *Memory) InsertBank(_ context.Context, b budget.BankAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.ContainsFunc(m.banks, func(x budget.BankAccount) bool { return x.ID == b.ID }) {
		return budget.ErrDuplicateIdempotencyKey
	}
	m.banks = append(m.banks, b)
	return nil
}

func (m *Memory) Banks(_ context.Context) ([]budget.BankAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.banks), nil
}

func (m *Memory) SetBankStatus(_ context.Context, id string, status budget.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.banks {
		if m.banks[i].ID == id {
			m.banks[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("%s: %w", id, budget.ErrBankNotFound)
}

// =============================================================================
// SESSION
// =============================================================================

func (m *Memory) LoadSession(_ context.Context) (budget.RolloverSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return budget.RolloverSession{}, budget.ErrSessionNotFound
	}
	return cloneSession(*m.session), nil
}

func (m *Memory) SaveSession(_ context.Context, s budget.RolloverSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s = cloneSession(s)
	m.session = &s
	return nil
}

func (m *Memory) DeleteSession(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

func cloneSession(s budget.RolloverSession) budget.RolloverSession {
	s.CategoryBudgets = slices.Clone(s.CategoryBudgets)
	s.GoalAllocations = slices.Clone(s.GoalAllocations)
	return s
}

var _ budget.Store = (*Memory)(nil)

// Reset drops every record. Used by demo scenarios.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries, m.wallet = nil, nil
	m.entryKeys = make(map[string]bool)
	m.walletKeys = make(map[string]bool)
	m.periods, m.settlements = nil, nil
	m.categories, m.subTags, m.goals, m.banks = nil, nil, nil, nil
	m.session = nil
	return nil
}
