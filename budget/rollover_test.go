package budget_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/envelope-ledger/budget"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type rolloverFixture struct {
	*testEnv
	food, home budget.Category
	trip       budget.SavingGoal
	previous   budget.Period
}

// newRolloverFixture: the January period (30000, 15000 spent) is over,
// 50000 sits in the wallet and today is pay day.
func newRolloverFixture(t *testing.T) *rolloverFixture {
	t.Helper()
	env := newTestEnv(t, "2024-01-20")
	f := &rolloverFixture{testEnv: env}
	f.food = env.category(t, "Food", "20000")
	f.home = env.category(t, "Home", "10000")
	f.trip = env.goal(t, "Trip", "60000")
	f.previous = env.period(t, "2024-01-05", "2024-02-04", "30000")
	env.expense(t, f.food.ID, "5000")
	env.expense(t, f.home.ID, "8000")
	env.expense(t, f.food.ID, "2000")
	env.income(t, "50000")
	env.clock.Set("2024-02-05")
	return f
}

// toAllocate walks the wizard to Stage 4 with a 25000 living budget.
func (f *rolloverFixture) toAllocate(t *testing.T) budget.RolloverSession {
	t.Helper()
	ctx := context.Background()
	w := f.engine.Rollover

	_, err := w.Begin(ctx)
	require.NoError(t, err)
	_, _, err = w.SettlePrevious(ctx, false)
	require.NoError(t, err)
	_, err = w.DefinePeriod(ctx, day("2024-02-05"), day("2024-03-04"))
	require.NoError(t, err)
	s, err := w.SetBudgets(ctx, []budget.CategoryBudget{
		{CategoryID: f.food.ID, Budget: amt("18000")},
		{CategoryID: f.home.ID, Budget: amt("7000")},
	})
	require.NoError(t, err)
	return s
}

func (f *rolloverFixture) allocate(t *testing.T) budget.AllocationPlan {
	t.Helper()
	_, plan, err := f.engine.Rollover.Allocate(context.Background(),
		[]budget.GoalAllocation{{GoalID: f.trip.ID, Amount: amt("10000")}},
		amt("5000"))
	require.NoError(t, err)
	return plan
}

// =============================================================================
// HAPPY PATH
// =============================================================================

func TestRollover_FullCycle(t *testing.T) {
	// GIVEN: An overdue period and 50000 in the wallet
	f := newRolloverFixture(t)
	ctx := context.Background()
	w := f.engine.Rollover

	// WHEN: Walking through all four stages
	s, err := w.Begin(ctx)
	require.NoError(t, err)
	assert.Equal(t, budget.StageSettlePrevious, s.Stage)
	assert.Equal(t, f.previous.ID, s.PreviousPeriodID)
	assert.Equal(t, "2024-02-05", s.StartDate.String(), "stage 2 is prefilled from the pay day")
	assert.Equal(t, "2024-03-04", s.EndDate.String())

	s, res, err := w.SettlePrevious(ctx, false)
	require.NoError(t, err)
	require.NotNil(t, res)
	requireMoney(t, "15000", res.Record.NetResult)
	assert.Equal(t, budget.StageDefinePeriod, s.Stage)

	s, err = w.DefinePeriod(ctx, day("2024-02-05"), day("2024-03-04"))
	require.NoError(t, err)
	assert.Equal(t, budget.StageCategoryBudgets, s.Stage)
	assert.Len(t, s.CategoryBudgets, 2, "stage 3 is prefilled from current budgets")

	s, err = w.SetBudgets(ctx, []budget.CategoryBudget{
		{CategoryID: f.food.ID, Budget: amt("18000")},
		{CategoryID: f.home.ID, Budget: amt("7000")},
	})
	require.NoError(t, err)
	requireMoney(t, "25000", s.LivingBudget)

	plan := f.allocate(t)
	requireMoney(t, "50000", plan.Wallet)
	requireMoney(t, "10000", plan.Remainder)
	assert.True(t, plan.CanCommit())

	out, err := w.Commit(ctx)
	require.NoError(t, err)

	// THEN: The new period is Active and every unit of the wallet is placed
	assert.False(t, out.Resumed)
	requireMoney(t, "10000", out.Swept)
	assert.Equal(t, budget.PeriodActive, out.Period.Status)
	requireMoney(t, "25000", out.Period.LivingBudget)

	current, err := f.engine.Periods.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, out.Period.ID, current.ID)

	requireMoney(t, "0", f.wallet(t))
	trip, err := f.engine.Balances.Saving(ctx, f.trip.ID)
	require.NoError(t, err)
	requireMoney(t, "10000", trip)
	backUp, err := f.engine.Balances.BackUp(ctx)
	require.NoError(t, err)
	requireMoney(t, "15000", backUp)
	freeFund, err := f.engine.Balances.FreeFund(ctx)
	require.NoError(t, err)
	requireMoney(t, "25000", freeFund)

	food, err := f.engine.Catalog.Category(ctx, f.food.ID)
	require.NoError(t, err)
	requireMoney(t, "18000", food.Budget)

	_, err = w.Session(ctx)
	assert.ErrorIs(t, err, budget.ErrSessionNotFound)
}

func TestRollover_Conservation(t *testing.T) {
	// GIVEN: Stage 4 with some allocation
	f := newRolloverFixture(t)
	f.toAllocate(t)
	plan := f.allocate(t)
	before := f.wallet(t)

	// WHEN: Committing
	_, err := f.engine.Rollover.Commit(context.Background())
	require.NoError(t, err)

	// THEN: wallet_before = living + saving + back_up + remainder, wallet_after = 0
	requireMoney(t, before.String(), budget.Sum(plan.Living, plan.Saving, plan.BackUp, plan.Remainder))
	requireMoney(t, "0", f.wallet(t))
}

func TestRollover_Begin_SkipsSettlementWithoutActivePeriod(t *testing.T) {
	env := newTestEnv(t, "2024-02-05")
	ctx := context.Background()

	s, err := env.engine.Rollover.Begin(ctx)
	require.NoError(t, err)
	assert.Equal(t, budget.StageDefinePeriod, s.Stage)
	assert.True(t, s.SettleSkipped)

	// Begin again resumes the same session.
	again, err := env.engine.Rollover.Begin(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.ID, again.ID)
}

// =============================================================================
// VALIDATION + STAGE RULES
// =============================================================================

func TestRollover_EarlySettlementNeedsConfirmation(t *testing.T) {
	f := newRolloverFixture(t)
	f.clock.Set("2024-02-01")
	ctx := context.Background()
	_, err := f.engine.Rollover.Begin(ctx)
	require.NoError(t, err)

	_, _, err = f.engine.Rollover.SettlePrevious(ctx, false)
	assert.ErrorIs(t, err, budget.ErrEarlySettlement)

	s, res, err := f.engine.Rollover.SettlePrevious(ctx, true)
	require.NoError(t, err)
	assert.True(t, res.Early)
	assert.Equal(t, budget.StageDefinePeriod, s.Stage)
}

func TestRollover_DefinePeriod_Validation(t *testing.T) {
	f := newRolloverFixture(t)
	ctx := context.Background()
	_, err := f.engine.Rollover.Begin(ctx)
	require.NoError(t, err)
	_, _, err = f.engine.Rollover.SettlePrevious(ctx, false)
	require.NoError(t, err)

	_, err = f.engine.Rollover.DefinePeriod(ctx, day("2024-02-06"), day("2024-03-06"))
	assert.ErrorIs(t, err, budget.ErrValidation, "start after today")

	_, err = f.engine.Rollover.DefinePeriod(ctx, day("2024-02-05"), day("2024-02-05"))
	assert.ErrorIs(t, err, budget.ErrValidation, "end must be after start")

	s, err := f.engine.Rollover.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, budget.StageDefinePeriod, s.Stage, "a rejected stage does not advance")
}

func TestRollover_SetBudgets_Validation(t *testing.T) {
	f := newRolloverFixture(t)
	ctx := context.Background()
	w := f.engine.Rollover
	_, err := w.Begin(ctx)
	require.NoError(t, err)
	_, _, err = w.SettlePrevious(ctx, false)
	require.NoError(t, err)
	_, err = w.DefinePeriod(ctx, day("2024-02-05"), day("2024-03-04"))
	require.NoError(t, err)

	_, err = w.SetBudgets(ctx, []budget.CategoryBudget{{CategoryID: f.food.ID, Budget: amt("0")}, {CategoryID: f.home.ID, Budget: amt("0")}})
	assert.ErrorIs(t, err, budget.ErrValidation, "living budget must be positive")

	_, err = w.SetBudgets(ctx, []budget.CategoryBudget{{CategoryID: f.food.ID, Budget: amt("20000")}})
	var verr *budget.ValidationError
	require.ErrorAs(t, err, &verr, "every active category needs a row")
	assert.Equal(t, "category_budgets", verr.Field)
	assert.Contains(t, verr.Reason, "Home")

	_, err = w.SetBudgets(ctx, []budget.CategoryBudget{{CategoryID: f.food.ID, Budget: amt("-5")}, {CategoryID: f.home.ID, Budget: amt("10")}})
	assert.ErrorIs(t, err, budget.ErrValidation)

	_, err = w.SetBudgets(ctx, []budget.CategoryBudget{{CategoryID: "ghost", Budget: amt("10")}})
	assert.ErrorIs(t, err, budget.ErrCategoryNotFound)

	_, err = w.SetBudgets(ctx, []budget.CategoryBudget{{CategoryID: f.food.ID, Budget: amt("1")}, {CategoryID: f.food.ID, Budget: amt("2")}})
	assert.ErrorIs(t, err, budget.ErrValidation)
}

func TestRollover_InsufficientWallet(t *testing.T) {
	// GIVEN: Stage 4 with 50000 in the wallet and 25000 living
	f := newRolloverFixture(t)
	f.toAllocate(t)
	ctx := context.Background()

	// WHEN: Allocating 30000 on top
	_, plan, err := f.engine.Rollover.Allocate(ctx,
		[]budget.GoalAllocation{{GoalID: f.trip.ID, Amount: amt("20000")}},
		amt("10000"))

	// THEN: The plan shows the shortfall and commit is blocked
	var ierr *budget.InsufficientWalletError
	require.ErrorAs(t, err, &ierr)
	assert.ErrorIs(t, err, budget.ErrInsufficientWallet)
	requireMoney(t, "5000", ierr.Shortfall)
	requireMoney(t, "-5000", plan.Remainder)
	assert.False(t, plan.CanCommit())

	s, err := f.engine.Rollover.Session(ctx)
	require.NoError(t, err)
	assert.Empty(t, s.GoalAllocations, "rejected allocation is not saved")
}

func TestRollover_CommitRevalidatesAgainstCurrentWallet(t *testing.T) {
	f := newRolloverFixture(t)
	f.toAllocate(t)
	f.allocate(t)
	ctx := context.Background()

	// The wallet shrinks between Stage 4 and Commit.
	_, err := f.engine.Recorder.AdjustWallet(ctx, amt("-20000"), "bank fee", "")
	require.NoError(t, err)

	_, err = f.engine.Rollover.Commit(ctx)
	assert.ErrorIs(t, err, budget.ErrInsufficientWallet)

	current, err := f.engine.Periods.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, current, "nothing was written")
}

func TestRollover_CommitRefusedWhileAnotherPeriodIsActive(t *testing.T) {
	// GIVEN: Stage 4 reached, then a period created outside the wizard
	f := newRolloverFixture(t)
	f.toAllocate(t)
	f.allocate(t)
	ctx := context.Background()
	w := f.engine.Rollover
	other := f.period(t, "2024-02-05", "2024-03-04", "1000")

	// WHEN: Committing
	_, err := w.Commit(ctx)

	// THEN: The commit is rejected without side effects
	assert.ErrorIs(t, err, budget.ErrActivePeriodExists)
	assert.ErrorIs(t, err, budget.ErrStateConflict)
	requireMoney(t, "50000", f.wallet(t))

	s, err := w.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, budget.StageAllocateFunds, s.Stage, "session is not stuck in committing")
	assert.Empty(t, s.PendingPeriodID)

	// AND: Once the other period is settled, the same session commits
	_, err = f.engine.Settlement.Settle(ctx, other.ID)
	require.NoError(t, err)
	out, err := w.Commit(ctx)
	require.NoError(t, err)
	assert.False(t, out.Resumed)
	requireMoney(t, "25000", out.Period.LivingBudget)
}

func TestRollover_CommitZeroesCategoriesAddedAfterBudgets(t *testing.T) {
	// GIVEN: A category added once Stage 3 is done
	f := newRolloverFixture(t)
	f.toAllocate(t)
	f.allocate(t)
	ctx := context.Background()
	late := f.category(t, "Gifts", "4000")

	// WHEN: Committing
	out, err := f.engine.Rollover.Commit(ctx)
	require.NoError(t, err)

	// THEN: Active category budgets add up to the new Living budget
	categories, err := f.engine.Catalog.Categories(ctx)
	require.NoError(t, err)
	total := budget.Zero
	for _, c := range categories {
		if c.Status == budget.StatusActive {
			total = total.Add(c.Budget)
		}
	}
	requireMoney(t, out.Period.LivingBudget.String(), total)

	gifts, err := f.engine.Catalog.Category(ctx, late.ID)
	require.NoError(t, err)
	assert.True(t, gifts.Budget.IsZero())

	summary, err := f.engine.Balances.Summary(ctx, f.engine.Store)
	require.NoError(t, err)
	assert.Len(t, summary.Categories, 2, "zero-budget categories have no progress bar")
}

func TestRollover_StageGuards(t *testing.T) {
	f := newRolloverFixture(t)
	ctx := context.Background()
	w := f.engine.Rollover

	_, err := w.Commit(ctx)
	assert.ErrorIs(t, err, budget.ErrSessionNotFound)

	_, err = w.Begin(ctx)
	require.NoError(t, err)

	_, err = w.DefinePeriod(ctx, day("2024-02-05"), day("2024-03-04"))
	assert.ErrorIs(t, err, budget.ErrSessionStage)
	_, err = w.Commit(ctx)
	assert.ErrorIs(t, err, budget.ErrSessionStage)
	_, err = w.Back(ctx)
	assert.ErrorIs(t, err, budget.ErrSessionStage, "stage 1 has no previous stage")
}

func TestRollover_BackAndCancel(t *testing.T) {
	// GIVEN: A session at Stage 4
	f := newRolloverFixture(t)
	f.toAllocate(t)
	ctx := context.Background()
	w := f.engine.Rollover

	// WHEN: Going back twice
	s, err := w.Back(ctx)
	require.NoError(t, err)
	assert.Equal(t, budget.StageCategoryBudgets, s.Stage)
	s, err = w.Back(ctx)
	require.NoError(t, err)
	assert.Equal(t, budget.StageDefinePeriod, s.Stage)

	// THEN: The settlement is never revisited
	_, err = w.Back(ctx)
	assert.ErrorIs(t, err, budget.ErrSessionStage)

	// WHEN: Cancelling
	require.NoError(t, w.Cancel(ctx))

	// THEN: The session is gone but the settlement stays
	_, err = w.Session(ctx)
	assert.ErrorIs(t, err, budget.ErrSessionNotFound)
	prev, err := f.engine.Periods.Get(ctx, f.previous.ID)
	require.NoError(t, err)
	assert.Equal(t, budget.PeriodSettled, prev.Status)
	requireMoney(t, "50000", f.wallet(t))
}

// =============================================================================
// PARTIAL FAILURE + RESUME
// =============================================================================

func TestRollover_CommitResumesAfterFailure(t *testing.T) {
	for _, op := range []string{
		"InsertPeriod",
		"AppendWallet",
		"AppendEntry",
		"SetCategoryBudget",
		"DeleteSession",
	} {
		t.Run(op, func(t *testing.T) {
			// GIVEN: The store fails once during Commit
			f := newRolloverFixture(t)
			f.toAllocate(t)
			f.allocate(t)
			ctx := context.Background()
			w := f.engine.Rollover
			f.faults.FailOnce(op)

			// WHEN: The first Commit fails
			_, err := w.Commit(ctx)
			require.Error(t, err)
			assert.True(t, budget.IsRetryable(err))

			s, err := w.Session(ctx)
			require.NoError(t, err)
			assert.Equal(t, budget.StageCommitting, s.Stage)
			assert.NotEmpty(t, s.PendingPeriodID)
			assert.ErrorIs(t, w.Cancel(ctx), budget.ErrSessionStage, "a commit in progress cannot be cancelled")

			// AND: Commit is retried
			out, err := w.Commit(ctx)
			require.NoError(t, err)

			// THEN: The result is the same as an uninterrupted commit
			assert.True(t, out.Resumed)
			assert.Equal(t, s.PendingPeriodID, out.Period.ID)
			requireMoney(t, "0", f.wallet(t))

			backUp, err := f.engine.Balances.BackUp(ctx)
			require.NoError(t, err)
			requireMoney(t, "15000", backUp)
			freeFund, err := f.engine.Balances.FreeFund(ctx)
			require.NoError(t, err)
			requireMoney(t, "25000", freeFund)
			trip, err := f.engine.Balances.Saving(ctx, f.trip.ID)
			require.NoError(t, err)
			requireMoney(t, "10000", trip)

			periods, err := f.engine.Periods.List(ctx)
			require.NoError(t, err)
			assert.Len(t, periods, 2)

			wallet, err := f.mem.WalletEntries(ctx)
			require.NoError(t, err)
			keys := make(map[string]int)
			for _, e := range wallet {
				if e.IdempotencyKey != "" {
					keys[e.IdempotencyKey]++
				}
			}
			for key, n := range keys {
				assert.Equal(t, 1, n, "wallet key %s", key)
			}
			assert.Equal(t, 1, keys[budget.RolloverKey(out.Period.ID, "living")])
			assert.Equal(t, 1, keys[budget.RolloverKey(out.Period.ID, "sweep")])
		})
	}
}
