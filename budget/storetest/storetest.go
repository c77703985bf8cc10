// Package storetest checks a budget.Store implementation against the
// contract the engine relies on: append-only logs with idempotency keys,
// a single Active period, write-once settlements and one rollover session.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/envelope-ledger/budget"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) budget.Store

// Resetter is implemented by stores that support demo scenarios.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Run exercises every part of the contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("Logs", func(t *testing.T) { testLogs(t, newStore(t)) })
	t.Run("Periods", func(t *testing.T) { testPeriods(t, newStore(t)) })
	t.Run("Settlements", func(t *testing.T) { testSettlements(t, newStore(t)) })
	t.Run("Catalog", func(t *testing.T) { testCatalog(t, newStore(t)) })
	t.Run("Session", func(t *testing.T) { testSession(t, newStore(t)) })
	t.Run("Reset", func(t *testing.T) {
		s := newStore(t)
		if _, ok := s.(Resetter); !ok {
			t.Skip("store has no Reset")
		}
		testReset(t, s)
	})
}

var t0 = time.Date(2024, 1, 20, 9, 30, 0, 123000000, time.UTC)

func money(s string) budget.Money { return budget.MustParseMoney(s) }

func day(s string) budget.Date { return budget.MustParseDate(s) }

func moneyEqual(t *testing.T, want string, got budget.Money) {
	t.Helper()
	assert.Truef(t, money(want).Equal(got), "want %s, got %s", want, got)
}

func period(id string, status budget.PeriodStatus) budget.Period {
	return budget.Period{
		ID:           id,
		StartDate:    day("2024-01-05"),
		EndDate:      day("2024-02-04"),
		Status:       status,
		LivingBudget: money("30000"),
		CreatedAt:    t0,
	}
}

// =============================================================================
// LOGS
// =============================================================================

func testLogs(t *testing.T, s budget.Store) {
	ctx := context.Background()

	// GIVEN: Two ledger entries and one wallet entry sharing a key
	first := budget.LedgerEntry{
		ID:             "e1",
		CreatedAt:      t0,
		EffectiveDate:  day("2024-01-20"),
		Type:           budget.EntryExpense,
		Amount:         money("1250.75"),
		Account:        budget.AccountLiving,
		CategoryID:     "food",
		SubTagID:       "groceries",
		PeriodID:       "p1",
		Item:           "weekly shop",
		Note:           "market",
		BankID:         "cash",
		PaymentMethod:  "cash",
		IdempotencyKey: "k1",
	}
	second := budget.LedgerEntry{
		ID:            "e2",
		CreatedAt:     t0.Add(time.Second),
		EffectiveDate: day("2024-01-20"),
		Type:          budget.EntryTransfer,
		Amount:        money("10"),
		Account:       budget.AccountSaving,
		TargetAccount: budget.AccountSaving,
		GoalID:        "trip",
		TargetGoalID:  "pool",
	}
	require.NoError(t, s.AppendEntry(ctx, first))
	require.NoError(t, s.AppendEntry(ctx, second))
	require.NoError(t, s.AppendWallet(ctx, budget.WalletLogEntry{
		ID: "w1", CreatedAt: t0, Type: budget.WalletIncome, Amount: money("50000"), IdempotencyKey: "k1",
	}))
	require.NoError(t, s.AppendWallet(ctx, budget.WalletLogEntry{
		ID: "w2", CreatedAt: t0, Type: budget.WalletAdjustment, Amount: money("-0.5"),
	}))

	// WHEN: Replaying a key on the same log
	dup := first
	dup.ID = "e3"
	err := s.AppendEntry(ctx, dup)

	// THEN: It is rejected and nothing is appended
	assert.ErrorIs(t, err, budget.ErrDuplicateIdempotencyKey)
	err = s.AppendWallet(ctx, budget.WalletLogEntry{ID: "w3", CreatedAt: t0, Type: budget.WalletIncome, Amount: money("1"), IdempotencyKey: "k1"})
	assert.ErrorIs(t, err, budget.ErrDuplicateIdempotencyKey)

	entries, err := s.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "e1", entries[0].ID, "creation order")

	got := entries[0]
	assert.Equal(t, first.Type, got.Type)
	moneyEqual(t, "1250.75", got.Amount)
	assert.Equal(t, "2024-01-20", got.EffectiveDate.String())
	assert.True(t, t0.Equal(got.CreatedAt))
	assert.Equal(t, first.CategoryID, got.CategoryID)
	assert.Equal(t, first.SubTagID, got.SubTagID)
	assert.Equal(t, first.PeriodID, got.PeriodID)
	assert.Equal(t, first.Item, got.Item)
	assert.Equal(t, first.BankID, got.BankID)
	assert.Equal(t, first.IdempotencyKey, got.IdempotencyKey)
	assert.Equal(t, budget.AccountSaving, entries[1].TargetAccount)
	assert.Equal(t, "pool", entries[1].TargetGoalID)

	wallet, err := s.WalletEntries(ctx)
	require.NoError(t, err)
	require.Len(t, wallet, 2)
	moneyEqual(t, "-0.5", wallet[1].Amount)
}

// =============================================================================
// PERIODS
// =============================================================================

func testPeriods(t *testing.T, s budget.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertPeriod(ctx, period("p1", budget.PeriodActive)))

	// A second Active period is refused.
	err := s.InsertPeriod(ctx, period("p2", budget.PeriodActive))
	assert.ErrorIs(t, err, budget.ErrActivePeriodExists)

	// A replayed id is reported as a duplicate, not as a conflict.
	err = s.InsertPeriod(ctx, period("p1", budget.PeriodActive))
	assert.ErrorIs(t, err, budget.ErrDuplicateIdempotencyKey)

	settledAt := t0.Add(24 * time.Hour)
	require.NoError(t, s.MarkPeriodSettled(ctx, "p1", settledAt))
	assert.ErrorIs(t, s.MarkPeriodSettled(ctx, "p1", settledAt), budget.ErrAlreadySettled)
	assert.ErrorIs(t, s.MarkPeriodSettled(ctx, "ghost", settledAt), budget.ErrPeriodNotFound)

	require.NoError(t, s.InsertPeriod(ctx, period("p2", budget.PeriodActive)))

	periods, err := s.Periods(ctx)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, budget.PeriodSettled, periods[0].Status)
	require.NotNil(t, periods[0].SettledAt)
	assert.True(t, settledAt.Equal(*periods[0].SettledAt))
	assert.Equal(t, "2024-02-04", periods[0].EndDate.String())
	moneyEqual(t, "30000", periods[0].LivingBudget)
	assert.Equal(t, budget.PeriodActive, periods[1].Status)
	assert.Nil(t, periods[1].SettledAt)
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

func testSettlements(t *testing.T, s budget.Store) {
	ctx := context.Background()
	r := budget.SettlementRecord{
		ID:            "s1",
		PeriodID:      "p1",
		PlannedBudget: money("30000"),
		ActualExpense: money("31250.75"),
		NetResult:     money("-1250.75"),
		ImpactAccount: budget.AccountBackUp,
		SettledAt:     t0,
	}
	require.NoError(t, s.InsertSettlement(ctx, r))

	again := r
	again.ID = "s2"
	assert.ErrorIs(t, s.InsertSettlement(ctx, again), budget.ErrDuplicateIdempotencyKey)

	zero := budget.SettlementRecord{ID: "s3", PeriodID: "p2", PlannedBudget: money("1"), ActualExpense: money("1"), NetResult: budget.Zero, ImpactAccount: budget.AccountNone, SettledAt: t0}
	require.NoError(t, s.InsertSettlement(ctx, zero))

	records, err := s.Settlements(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	moneyEqual(t, "-1250.75", records[0].NetResult)
	assert.Equal(t, budget.AccountBackUp, records[0].ImpactAccount)
	assert.Equal(t, budget.AccountNone, records[1].ImpactAccount)
}

// =============================================================================
// CATALOG
// =============================================================================

func testCatalog(t *testing.T, s budget.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertBank(ctx, budget.BankAccount{ID: "cash", Name: "Cash", Status: budget.StatusActive}))
	require.NoError(t, s.InsertCategory(ctx, budget.Category{
		ID: "food", Name: "Food", Budget: money("12000"), Status: budget.StatusActive, IsQuickAccess: true,
		Defaults: budget.PaymentDefaults{BankID: "cash", PaymentMethod: "cash"},
	}))
	require.NoError(t, s.InsertSubTag(ctx, budget.SubTag{ID: "dining", CategoryID: "food", Name: "Dining"}))
	deadline := day("2024-07-01")
	require.NoError(t, s.InsertGoal(ctx, budget.SavingGoal{
		ID: "trip", Name: "Trip", HasTarget: true, TargetAmount: money("60000"), Deadline: &deadline,
		Status: budget.GoalActive, CreatedAt: t0,
	}))

	require.NoError(t, s.SetCategoryBudget(ctx, "food", money("15000")))
	assert.ErrorIs(t, s.SetCategoryBudget(ctx, "ghost", money("1")), budget.ErrCategoryNotFound)

	completedAt := t0.Add(time.Hour)
	require.NoError(t, s.SetGoalStatus(ctx, "trip", budget.GoalCompleted, &completedAt))
	assert.ErrorIs(t, s.SetGoalStatus(ctx, "ghost", budget.GoalCompleted, nil), budget.ErrGoalNotFound)

	require.NoError(t, s.SetBankStatus(ctx, "cash", budget.StatusInactive))
	assert.ErrorIs(t, s.SetBankStatus(ctx, "ghost", budget.StatusInactive), budget.ErrBankNotFound)

	categories, err := s.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	moneyEqual(t, "15000", categories[0].Budget)
	assert.True(t, categories[0].IsQuickAccess)
	assert.Equal(t, "cash", categories[0].Defaults.BankID)

	tags, err := s.SubTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "food", tags[0].CategoryID)

	goals, err := s.Goals(ctx)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, budget.GoalCompleted, goals[0].Status)
	require.NotNil(t, goals[0].CompletedAt)
	assert.True(t, completedAt.Equal(*goals[0].CompletedAt))
	require.NotNil(t, goals[0].Deadline)
	assert.Equal(t, "2024-07-01", goals[0].Deadline.String())
	moneyEqual(t, "60000", goals[0].TargetAmount)

	banks, err := s.Banks(ctx)
	require.NoError(t, err)
	require.Len(t, banks, 1)
	assert.Equal(t, budget.StatusInactive, banks[0].Status)
}

// =============================================================================
// SESSION
// =============================================================================

func testSession(t *testing.T, s budget.Store) {
	ctx := context.Background()

	_, err := s.LoadSession(ctx)
	assert.ErrorIs(t, err, budget.ErrSessionNotFound)

	session := budget.RolloverSession{
		ID:               "r1",
		Stage:            budget.StageAllocateFunds,
		StartedAt:        t0,
		UpdatedAt:        t0,
		PreviousPeriodID: "p1",
		StartDate:        day("2024-02-05"),
		EndDate:          day("2024-03-04"),
		CategoryBudgets:  []budget.CategoryBudget{{CategoryID: "food", Budget: money("18000")}},
		LivingBudget:     money("18000"),
		GoalAllocations:  []budget.GoalAllocation{{GoalID: "trip", Amount: money("2500.5")}},
		BackUpAllocation: money("1000"),
	}
	require.NoError(t, s.SaveSession(ctx, session))

	got, err := s.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, budget.StageAllocateFunds, got.Stage)
	assert.Equal(t, "2024-02-05", got.StartDate.String())
	require.Len(t, got.GoalAllocations, 1)
	moneyEqual(t, "2500.5", got.GoalAllocations[0].Amount)
	moneyEqual(t, "1000", got.BackUpAllocation)

	// Saving again replaces the single session.
	session.Stage = budget.StageCommitting
	session.PendingPeriodID = "p2"
	require.NoError(t, s.SaveSession(ctx, session))
	got, err = s.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, budget.StageCommitting, got.Stage)
	assert.Equal(t, "p2", got.PendingPeriodID)

	require.NoError(t, s.DeleteSession(ctx))
	require.NoError(t, s.DeleteSession(ctx), "deleting nothing is fine")
	_, err = s.LoadSession(ctx)
	assert.ErrorIs(t, err, budget.ErrSessionNotFound)
}

// =============================================================================
// RESET
// =============================================================================

func testReset(t *testing.T, s budget.Store) {
	ctx := context.Background()
	require.NoError(t, s.AppendEntry(ctx, budget.LedgerEntry{
		ID: "e1", CreatedAt: t0, EffectiveDate: day("2024-01-20"), Type: budget.EntrySettlementIn,
		Amount: money("1"), Account: budget.AccountFreeFund, IdempotencyKey: "k",
	}))
	require.NoError(t, s.InsertPeriod(ctx, period("p1", budget.PeriodActive)))
	require.NoError(t, s.SaveSession(ctx, budget.RolloverSession{ID: "r1", Stage: budget.StageDefinePeriod}))

	require.NoError(t, s.(Resetter).Reset(ctx))

	entries, err := s.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
	periods, err := s.Periods(ctx)
	require.NoError(t, err)
	assert.Empty(t, periods)
	_, err = s.LoadSession(ctx)
	assert.ErrorIs(t, err, budget.ErrSessionNotFound)

	// Keys are forgotten with their entries.
	require.NoError(t, s.AppendEntry(ctx, budget.LedgerEntry{
		ID: "e1", CreatedAt: t0, EffectiveDate: day("2024-01-20"), Type: budget.EntrySettlementIn,
		Amount: money("1"), Account: budget.AccountFreeFund, IdempotencyKey: "k",
	}))
}
