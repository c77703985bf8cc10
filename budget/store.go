/*
store.go - Persistence contracts for the budget engine

PURPOSE:
  The engine consumes a generic ordered-event store. It needs only three
  things from it:

    append(stream, record)   AppendEntry / AppendWallet / Insert*
    queryAll(stream)         Entries / WalletEntries / Periods / ...
    updateField(id, field)   Set* (mutable entities only)

APPEND-ONLY CONTRACT:
  LogStore has no Update and no Delete. Corrections are new entries.
  An append either writes the whole record or nothing.

IDEMPOTENCY:
  A record with a non-empty IdempotencyKey that was already appended is
  rejected with ErrDuplicateIdempotencyKey. Settlement and rollover rely
  on this to resume after a partial failure.

ACTIVE PERIOD UNIQUENESS:
  InsertPeriod rejects a second Active period with ErrActivePeriodExists.

IMPLEMENTATIONS:
  - budget/store/memory.go: in-memory
  - store/sqlite/sqlite.go: SQLite
  - cache.go: CachedStore, a bounded-staleness read cache over either
*/
package budget

import (
	"context"
	"time"
)

// =============================================================================
// LOG STORE - Ledger Log + Wallet Log (append-only)
// =============================================================================

type LogStore interface {
	AppendEntry(ctx context.Context, e LedgerEntry) error
	AppendWallet(ctx context.Context, e WalletLogEntry) error

	// Entries returns the full Ledger Log in creation order.
	Entries(ctx context.Context) ([]LedgerEntry, error)

	// WalletEntries returns the full Wallet Log in creation order.
	WalletEntries(ctx context.Context) ([]WalletLogEntry, error)
}

// =============================================================================
// PERIOD + SETTLEMENT STORES
// =============================================================================

type PeriodStore interface {
	// InsertPeriod fails with ErrActivePeriodExists when p is Active and
	// another Active period exists, and with ErrDuplicateIdempotencyKey
	// when p.ID already exists.
	InsertPeriod(ctx context.Context, p Period) error

	// Periods returns all periods in creation order.
	Periods(ctx context.Context) ([]Period, error)

	// MarkPeriodSettled is the only mutation of a period.
	MarkPeriodSettled(ctx context.Context, id string, settledAt time.Time) error
}

type SettlementStore interface {
	// InsertSettlement fails with ErrDuplicateIdempotencyKey when a record
	// for the same period exists.
	InsertSettlement(ctx context.Context, r SettlementRecord) error
	Settlements(ctx context.Context) ([]SettlementRecord, error)
}

// =============================================================================
// CATALOG STORE - Mutable entities, one mutable field each
// =============================================================================

type CatalogStore interface {
	InsertCategory(ctx context.Context, c Category) error
	Categories(ctx context.Context) ([]Category, error)
	SetCategoryBudget(ctx context.Context, id string, budget Money) error

	InsertSubTag(ctx context.Context, t SubTag) error
	SubTags(ctx context.Context) ([]SubTag, error)

	InsertGoal(ctx context.Context, g SavingGoal) error
	Goals(ctx context.Context) ([]SavingGoal, error)
	SetGoalStatus(ctx context.Context, id string, status GoalStatus, completedAt *time.Time) error

	InsertBank(ctx context.Context, b BankAccount) error
	Banks(ctx context.Context) ([]BankAccount, error)
	SetBankStatus(ctx context.Context, id string, status Status) error
}

// =============================================================================
// SESSION STORE - Rollover wizard state between interaction turns
// =============================================================================

type SessionStore interface {
	// LoadSession returns ErrSessionNotFound when no session is stored.
	LoadSession(ctx context.Context) (RolloverSession, error)
	SaveSession(ctx context.Context, s RolloverSession) error
	DeleteSession(ctx context.Context) error
}

// Store is everything the engine persists.
type Store interface {
	LogStore
	PeriodStore
	SettlementStore
	CatalogStore
	SessionStore
}
