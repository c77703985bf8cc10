package budget

import (
	"context"
	"slices"
	"sync"
	"time"
)

// =============================================================================
// CACHED STORE - Bounded-staleness reads, invalidated on every write
// =============================================================================

// DefaultCacheTTL is the staleness window of a CachedStore.
const DefaultCacheTTL = 60 * time.Second

// CachedStore serves every queryAll from memory for up to TTL. Any write
// through the CachedStore drops all cached reads, so the next read
// observes it. Writes that bypass the CachedStore are visible after TTL.
type CachedStore struct {
	Store
	TTL   time.Duration
	Clock Clock

	mu          sync.Mutex
	entries     slot[LedgerEntry]
	wallet      slot[WalletLogEntry]
	periods     slot[Period]
	settlements slot[SettlementRecord]
	categories  slot[Category]
	subTags     slot[SubTag]
	goals       slot[SavingGoal]
	banks       slot[BankAccount]
}

type slot[T any] struct {
	rows     []T
	loadedAt time.Time
	valid    bool
}

// NewCachedStore wraps s. A non-positive ttl means DefaultCacheTTL.
func NewCachedStore(s Store, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedStore{Store: s, TTL: ttl}
}

// Invalidate drops every cached read.
func (c *CachedStore) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
}

func (c *CachedStore) invalidateLocked() {
	c.entries.valid = false
	c.wallet.valid = false
	c.periods.valid = false
	c.settlements.valid = false
	c.categories.valid = false
	c.subTags.valid = false
	c.goals.valid = false
	c.banks.valid = false
}

// read returns a copy of the cached rows, refreshing them when stale.
func read[T any](c *CachedStore, s *slot[T], fetch func() ([]T, error)) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.Clock.now()
	if s.valid && now.Sub(s.loadedAt) < c.TTL {
		return slices.Clone(s.rows), nil
	}
	rows, err := fetch()
	if err != nil {
		return nil, err
	}
	s.rows, s.loadedAt, s.valid = rows, now, true
	return slices.Clone(rows), nil
}

// write runs op and invalidates, whether or not op failed: a failed write
// may still have reached the store.
func (c *CachedStore) write(op func() error) error {
	err := op()
	c.Invalidate()
	return err
}

// =============================================================================
// READS
// =============================================================================

func (c *CachedStore) Entries(ctx context.Context) ([]LedgerEntry, error) {
	return read(c, &c.entries, func() ([]LedgerEntry, error) { return c.Store.Entries(ctx) })
}

func (c *CachedStore) WalletEntries(ctx context.Context) ([]WalletLogEntry, error) {
	return read(c, &c.wallet, func() ([]WalletLogEntry, error) { return c.Store.WalletEntries(ctx) })
}

func (c *CachedStore) Periods(ctx context.Context) ([]Period, error) {
	return read(c, &c.periods, func() ([]Period, error) { return c.Store.Periods(ctx) })
}

func (c *CachedStore) Settlements(ctx context.Context) ([]SettlementRecord, error) {
	return read(c, &c.settlements, func() ([]SettlementRecord, error) { return c.Store.Settlements(ctx) })
}

func (c *CachedStore) Categories(ctx context.Context) ([]Category, error) {
	return read(c, &c.categories, func() ([]Category, error) { return c.Store.Categories(ctx) })
}

func (c *CachedStore) SubTags(ctx context.Context) ([]SubTag, error) {
	return read(c, &c.subTags, func() ([]SubTag, error) { return c.Store.SubTags(ctx) })
}

func (c *CachedStore) Goals(ctx context.Context) ([]SavingGoal, error) {
	return read(c, &c.goals, func() ([]SavingGoal, error) { return c.Store.Goals(ctx) })
}

func (c *CachedStore) Banks(ctx context.Context) ([]BankAccount, error) {
	return read(c, &c.banks, func() ([]BankAccount, error) { return c.Store.Banks(ctx) })
}

// =============================================================================
// WRITES
// =============================================================================

func (c *CachedStore) AppendEntry(ctx context.Context, e LedgerEntry) error {
	return c.write(func() error { return c.Store.AppendEntry(ctx, e) })
}

func (c *CachedStore) AppendWallet(ctx context.Context, e WalletLogEntry) error {
	return c.write(func() error { return c.Store.AppendWallet(ctx, e) })
}

func (c *CachedStore) InsertPeriod(ctx context.Context, p Period) error {
	return c.write(func() error { return c.Store.InsertPeriod(ctx, p) })
}

func (c *CachedStore) MarkPeriodSettled(ctx context.Context, id string, settledAt time.Time) error {
	return c.write(func() error { return c.Store.MarkPeriodSettled(ctx, id, settledAt) })
}

func (c *CachedStore) InsertSettlement(ctx context.Context, r SettlementRecord) error {
	return c.write(func() error { return c.Store.InsertSettlement(ctx, r) })
}

func (c *CachedStore) InsertCategory(ctx context.Context, cat Category) error {
	return c.write(func() error { return c.Store.InsertCategory(ctx, cat) })
}

func (c *CachedStore) SetCategoryBudget(ctx context.Context, id string, budget Money) error {
	return c.write(func() error { return c.Store.SetCategoryBudget(ctx, id, budget) })
}

func (c *CachedStore) InsertSubTag(ctx context.Context, t SubTag) error {
	return c.write(func() error { return c.Store.InsertSubTag(ctx, t) })
}

func (c *CachedStore) InsertGoal(ctx context.Context, g SavingGoal) error {
	return c.write(func() error { return c.Store.InsertGoal(ctx, g) })
}

func (c *CachedStore) SetGoalStatus(ctx context.Context, id string, status GoalStatus, completedAt *time.Time) error {
	return c.write(func() error { return c.Store.SetGoalStatus(ctx, id, status, completedAt) })
}

func (c *CachedStore) InsertBank(ctx context.Context, b BankAccount) error {
	return c.write(func() error { return c.Store.InsertBank(ctx, b) })
}

func (c *CachedStore) SetBankStatus(ctx context.Context, id string, status Status) error {
	return c.write(func() error { return c.Store.SetBankStatus(ctx, id, status) })
}

var _ Store = (*CachedStore)(nil)
