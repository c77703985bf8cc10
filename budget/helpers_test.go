package budget_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warp/envelope-ledger/budget"
	"github.com/warp/envelope-ledger/budget/store"
	"github.com/warp/envelope-ledger/logging"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func day(s string) budget.Date { return budget.MustParseDate(s) }

func amt(s string) budget.Money { return budget.MustParseMoney(s) }

// noon keeps the fixed clock well inside the calendar day.
func noon(d budget.Date) time.Time { return d.Time.Add(12 * time.Hour) }

// testClock is a movable clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(today string) *testClock {
	return &testClock{now: noon(day(today))}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(today string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = noon(day(today))
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	engine *budget.Engine
	mem    *store.Memory
	faults *faultStore
	clock  *testClock
}

func newTestEnv(t *testing.T, today string) *testEnv {
	t.Helper()
	mem := store.NewMemory()
	faults := &faultStore{Store: mem}
	clock := newTestClock(today)
	engine := budget.NewEngine(faults, budget.EngineConfig{
		Balances: budget.BalanceConfig{
			BackUpInitial:   amt("10000"),
			FreeFundInitial: budget.Zero,
		},
		PayDay: 5,
		Clock:  clock.Now,
		Logger: logging.Discard(),
	})
	return &testEnv{engine: engine, mem: mem, faults: faults, clock: clock}
}

func (env *testEnv) category(t *testing.T, name string, budgetAmount string) budget.Category {
	t.Helper()
	c, err := env.engine.Catalog.AddCategory(context.Background(), budget.NewCategory{
		Name:   name,
		Budget: amt(budgetAmount),
	})
	require.NoError(t, err)
	return c
}

func (env *testEnv) goal(t *testing.T, name string, target string) budget.SavingGoal {
	t.Helper()
	in := budget.NewGoal{Name: name}
	if target != "" {
		in.HasTarget = true
		in.TargetAmount = amt(target)
	}
	g, err := env.engine.Catalog.AddGoal(context.Background(), in)
	require.NoError(t, err)
	return g
}

func (env *testEnv) period(t *testing.T, start, end, living string) budget.Period {
	t.Helper()
	p, err := env.engine.Periods.CreatePeriod(context.Background(), budget.CreatePeriodInput{
		StartDate:    day(start),
		EndDate:      day(end),
		LivingBudget: amt(living),
	})
	require.NoError(t, err)
	return p
}

func (env *testEnv) expense(t *testing.T, categoryID, amount string) budget.LedgerEntry {
	t.Helper()
	e, err := env.engine.Recorder.RecordExpense(context.Background(), budget.ExpenseInput{
		CategoryID: categoryID,
		Item:       "item " + amount,
		Amount:     amt(amount),
	})
	require.NoError(t, err)
	return e
}

func (env *testEnv) income(t *testing.T, amount string) {
	t.Helper()
	_, err := env.engine.Recorder.RecordIncome(context.Background(), budget.IncomeInput{Amount: amt(amount)})
	require.NoError(t, err)
}

func (env *testEnv) wallet(t *testing.T) budget.Money {
	t.Helper()
	w, err := env.engine.Balances.Wallet(context.Background())
	require.NoError(t, err)
	return w
}

func requireMoney(t *testing.T, want string, got budget.Money) {
	t.Helper()
	require.Truef(t, amt(want).Equal(got), "want %s, got %s", want, got)
}

// =============================================================================
// FAULT INJECTION
// =============================================================================

var errConnReset = errors.New("connection reset by peer")

// faultStore fails a chosen write once with a StoreError. Faults are keyed
// by "<Op>" or "<Op> <idempotency key>".
type faultStore struct {
	budget.Store

	mu     sync.Mutex
	faults map[string]bool
}

func (f *faultStore) FailOnce(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.faults == nil {
		f.faults = make(map[string]bool)
	}
	f.faults[op] = true
}

func (f *faultStore) trip(op, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range []string{op + " " + key, op} {
		if f.faults[k] {
			delete(f.faults, k)
			return budget.Unavailable(op, errConnReset)
		}
	}
	return nil
}

func (f *faultStore) AppendEntry(ctx context.Context, e budget.LedgerEntry) error {
	if err := f.trip("AppendEntry", e.IdempotencyKey); err != nil {
		return err
	}
	return f.Store.AppendEntry(ctx, e)
}

func (f *faultStore) AppendWallet(ctx context.Context, e budget.WalletLogEntry) error {
	if err := f.trip("AppendWallet", e.IdempotencyKey); err != nil {
		return err
	}
	return f.Store.AppendWallet(ctx, e)
}

func (f *faultStore) InsertPeriod(ctx context.Context, p budget.Period) error {
	if err := f.trip("InsertPeriod", ""); err != nil {
		return err
	}
	return f.Store.InsertPeriod(ctx, p)
}

func (f *faultStore) InsertSettlement(ctx context.Context, r budget.SettlementRecord) error {
	if err := f.trip("InsertSettlement", ""); err != nil {
		return err
	}
	return f.Store.InsertSettlement(ctx, r)
}

func (f *faultStore) MarkPeriodSettled(ctx context.Context, id string, settledAt time.Time) error {
	if err := f.trip("MarkPeriodSettled", ""); err != nil {
		return err
	}
	return f.Store.MarkPeriodSettled(ctx, id, settledAt)
}

func (f *faultStore) SetCategoryBudget(ctx context.Context, id string, amount budget.Money) error {
	if err := f.trip("SetCategoryBudget", ""); err != nil {
		return err
	}
	return f.Store.SetCategoryBudget(ctx, id, amount)
}

func (f *faultStore) DeleteSession(ctx context.Context) error {
	if err := f.trip("DeleteSession", ""); err != nil {
		return err
	}
	return f.Store.DeleteSession(ctx)
}
