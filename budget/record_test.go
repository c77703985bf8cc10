package budget_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/envelope-ledger/budget"
)

func TestRecordExpense(t *testing.T) {
	env := newTestEnv(t, "2024-01-20")
	ctx := context.Background()
	food := env.category(t, "Food", "10000")

	t.Run("no active period", func(t *testing.T) {
		_, err := env.engine.Recorder.RecordExpense(ctx, budget.ExpenseInput{
			CategoryID: food.ID, Item: "bread", Amount: amt("100"),
		})
		assert.ErrorIs(t, err, budget.ErrNoActivePeriod)
	})

	p := env.period(t, "2024-01-05", "2024-02-04", "30000")

	t.Run("books into the current period on today", func(t *testing.T) {
		e, err := env.engine.Recorder.RecordExpense(ctx, budget.ExpenseInput{
			CategoryID: food.ID, Item: " bread ", Amount: amt("120.5"),
		})
		require.NoError(t, err)
		assert.Equal(t, p.ID, e.PeriodID)
		assert.Equal(t, budget.AccountLiving, e.Account)
		assert.Equal(t, "bread", e.Item)
		assert.Equal(t, "2024-01-20", e.EffectiveDate.String())
	})

	t.Run("validation", func(t *testing.T) {
		_, err := env.engine.Recorder.RecordExpense(ctx, budget.ExpenseInput{CategoryID: food.ID, Amount: amt("1")})
		assert.ErrorIs(t, err, budget.ErrValidation)

		_, err = env.engine.Recorder.RecordExpense(ctx, budget.ExpenseInput{CategoryID: food.ID, Item: "x", Amount: amt("0")})
		assert.ErrorIs(t, err, budget.ErrValidation)

		_, err = env.engine.Recorder.RecordExpense(ctx, budget.ExpenseInput{CategoryID: "ghost", Item: "x", Amount: amt("1")})
		assert.ErrorIs(t, err, budget.ErrCategoryNotFound)
	})

	t.Run("duplicate idempotency key", func(t *testing.T) {
		in := budget.ExpenseInput{CategoryID: food.ID, Item: "coffee", Amount: amt("4"), IdempotencyKey: "tap-1"}
		_, err := env.engine.Recorder.RecordExpense(ctx, in)
		require.NoError(t, err)

		_, err = env.engine.Recorder.RecordExpense(ctx, in)
		assert.ErrorIs(t, err, budget.ErrDuplicateIdempotencyKey)

		spent, err := env.engine.Balances.CategorySpent(ctx, food.ID, p.ID)
		require.NoError(t, err)
		requireMoney(t, "124.5", spent)
	})
}

func TestRecordExpense_PaymentDefaults(t *testing.T) {
	// GIVEN: A category with defaults and a sub-tag overriding them
	env := newTestEnv(t, "2024-01-20")
	ctx := context.Background()
	cash, err := env.engine.Catalog.AddBank(ctx, "Cash", "")
	require.NoError(t, err)
	card, err := env.engine.Catalog.AddBank(ctx, "Card", "")
	require.NoError(t, err)
	food, err := env.engine.Catalog.AddCategory(ctx, budget.NewCategory{
		Name:     "Food",
		Budget:   amt("10000"),
		Defaults: budget.PaymentDefaults{BankID: cash.ID, PaymentMethod: "cash"},
	})
	require.NoError(t, err)
	dining, err := env.engine.Catalog.AddSubTag(ctx, food.ID, "Dining", budget.PaymentDefaults{BankID: card.ID, PaymentMethod: "card"})
	require.NoError(t, err)
	snacks, err := env.engine.Catalog.AddSubTag(ctx, food.ID, "Snacks", budget.PaymentDefaults{})
	require.NoError(t, err)
	env.period(t, "2024-01-05", "2024-02-04", "30000")

	tests := []struct {
		name       string
		in         budget.ExpenseInput
		wantBank   string
		wantMethod string
	}{
		{"category defaults", budget.ExpenseInput{}, cash.ID, "cash"},
		{"sub-tag defaults win", budget.ExpenseInput{SubTagID: dining.ID}, card.ID, "card"},
		{"empty sub-tag falls back", budget.ExpenseInput{SubTagID: snacks.ID}, cash.ID, "cash"},
		{"explicit values win", budget.ExpenseInput{SubTagID: dining.ID, BankID: cash.ID, PaymentMethod: "voucher"}, cash.ID, "voucher"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// WHEN: Recording without payment details
			in := tt.in
			in.CategoryID, in.Item, in.Amount = food.ID, "lunch", amt("10")
			e, err := env.engine.Recorder.RecordExpense(ctx, in)
			require.NoError(t, err)

			// THEN: The resolved defaults are stamped on the entry
			assert.Equal(t, tt.wantBank, e.BankID)
			assert.Equal(t, tt.wantMethod, e.PaymentMethod)
		})
	}
}

func TestRecordExpense_SubTagFromAnotherCategory(t *testing.T) {
	env := newTestEnv(t, "2024-01-20")
	ctx := context.Background()
	food := env.category(t, "Food", "1")
	home := env.category(t, "Home", "1")
	tag, err := env.engine.Catalog.AddSubTag(ctx, home.ID, "Repairs", budget.PaymentDefaults{})
	require.NoError(t, err)
	env.period(t, "2024-01-05", "2024-02-04", "2")

	_, err = env.engine.Recorder.RecordExpense(ctx, budget.ExpenseInput{
		CategoryID: food.ID, SubTagID: tag.ID, Item: "x", Amount: amt("1"),
	})
	var verr *budget.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "sub_tag_id", verr.Field)
}

func TestWallet_IncomeAndAdjustment(t *testing.T) {
	env := newTestEnv(t, "2024-01-20")
	ctx := context.Background()

	env.income(t, "50000")
	_, err := env.engine.Recorder.AdjustWallet(ctx, amt("-120.25"), "bank fee", "")
	require.NoError(t, err)
	requireMoney(t, "49879.75", env.wallet(t))

	_, err = env.engine.Recorder.AdjustWallet(ctx, amt("10"), "  ", "")
	assert.ErrorIs(t, err, budget.ErrValidation, "an adjustment needs a note")

	_, err = env.engine.Recorder.RecordIncome(ctx, budget.IncomeInput{Amount: amt("-1")})
	assert.ErrorIs(t, err, budget.ErrValidation)

	list, err := env.engine.Recorder.ListWallet(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, budget.WalletAdjustment, list[0].Type, "newest first")
}

func TestTransfer(t *testing.T) {
	// GIVEN: 5000 in the wallet and two goals
	env := newTestEnv(t, "2024-01-20")
	ctx := context.Background()
	trip := env.goal(t, "Trip", "20000")
	pool := env.goal(t, "Pool", "")
	env.income(t, "5000")
	rec := env.engine.Recorder

	// WHEN: Moving money Wallet -> Trip -> Pool -> Back_Up and Free_Fund -> Wallet
	_, err := rec.Transfer(ctx, budget.TransferInput{From: budget.AccountWallet, To: budget.AccountSaving, ToGoalID: trip.ID, Amount: amt("3000")})
	require.NoError(t, err)
	_, err = rec.Transfer(ctx, budget.TransferInput{From: budget.AccountSaving, FromGoalID: trip.ID, To: budget.AccountSaving, ToGoalID: pool.ID, Amount: amt("1000")})
	require.NoError(t, err)
	_, err = rec.Transfer(ctx, budget.TransferInput{From: budget.AccountSaving, FromGoalID: pool.ID, To: budget.AccountBackUp, Amount: amt("400")})
	require.NoError(t, err)
	_, err = rec.Transfer(ctx, budget.TransferInput{From: budget.AccountBackUp, To: budget.AccountWallet, Amount: amt("250")})
	require.NoError(t, err)

	// THEN: Every balance reflects the moves and the wallet legs are mirrored
	requireMoney(t, "2250", env.wallet(t))
	tripBal, err := env.engine.Balances.Saving(ctx, trip.ID)
	require.NoError(t, err)
	requireMoney(t, "2000", tripBal)
	poolBal, err := env.engine.Balances.Saving(ctx, pool.ID)
	require.NoError(t, err)
	requireMoney(t, "600", poolBal)
	backUp, err := env.engine.Balances.BackUp(ctx)
	require.NoError(t, err)
	requireMoney(t, "10150", backUp)
}

func TestTransfer_Rules(t *testing.T) {
	env := newTestEnv(t, "2024-01-20")
	ctx := context.Background()
	trip := env.goal(t, "Trip", "20000")

	tests := []struct {
		name string
		in   budget.TransferInput
		want error
	}{
		{"living is not an endpoint", budget.TransferInput{From: budget.AccountLiving, To: budget.AccountBackUp, Amount: amt("1")}, budget.ErrValidation},
		{"saving needs a goal", budget.TransferInput{From: budget.AccountWallet, To: budget.AccountSaving, Amount: amt("1")}, budget.ErrValidation},
		{"unknown goal", budget.TransferInput{From: budget.AccountWallet, To: budget.AccountSaving, ToGoalID: "ghost", Amount: amt("1")}, budget.ErrGoalNotFound},
		{"same account", budget.TransferInput{From: budget.AccountBackUp, To: budget.AccountBackUp, Amount: amt("1")}, budget.ErrValidation},
		{"same goal", budget.TransferInput{From: budget.AccountSaving, FromGoalID: trip.ID, To: budget.AccountSaving, ToGoalID: trip.ID, Amount: amt("1")}, budget.ErrValidation},
		{"zero amount", budget.TransferInput{From: budget.AccountBackUp, To: budget.AccountFreeFund, Amount: amt("0")}, budget.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engine.Recorder.Transfer(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	entries, err := env.mem.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTransfer_RetryCompletesWalletLeg(t *testing.T) {
	// GIVEN: The ledger side landed but the wallet leg failed
	env := newTestEnv(t, "2024-01-20")
	ctx := context.Background()
	env.income(t, "1000")
	in := budget.TransferInput{From: budget.AccountWallet, To: budget.AccountBackUp, Amount: amt("600"), IdempotencyKey: "move-1"}
	env.faults.FailOnce("AppendWallet move-1")

	_, err := env.engine.Recorder.Transfer(ctx, in)
	require.Error(t, err)
	assert.True(t, budget.IsRetryable(err))
	requireMoney(t, "1000", env.wallet(t))

	// WHEN: Retrying with the same key
	_, err = env.engine.Recorder.Transfer(ctx, in)
	require.NoError(t, err)

	// THEN: Each side is written once
	requireMoney(t, "400", env.wallet(t))
	backUp, err := env.engine.Balances.BackUp(ctx)
	require.NoError(t, err)
	requireMoney(t, "10600", backUp)

	// AND: A third call changes nothing
	_, err = env.engine.Recorder.Transfer(ctx, in)
	require.NoError(t, err)
	requireMoney(t, "400", env.wallet(t))
}

func TestWithdrawSaving(t *testing.T) {
	env := newTestEnv(t, "2024-01-20")
	ctx := context.Background()
	trip := env.goal(t, "Trip", "20000")
	env.income(t, "5000")
	_, err := env.engine.Recorder.Transfer(ctx, budget.TransferInput{From: budget.AccountWallet, To: budget.AccountSaving, ToGoalID: trip.ID, Amount: amt("5000")})
	require.NoError(t, err)

	e, err := env.engine.Recorder.WithdrawSaving(ctx, budget.WithdrawalInput{GoalID: trip.ID, Amount: amt("1200"), Item: "flights"})
	require.NoError(t, err)
	assert.Equal(t, budget.EntrySavingOut, e.Type)

	bal, err := env.engine.Balances.Saving(ctx, trip.ID)
	require.NoError(t, err)
	requireMoney(t, "3800", bal)

	_, err = env.engine.Recorder.WithdrawSaving(ctx, budget.WithdrawalInput{GoalID: "ghost", Amount: amt("1")})
	assert.ErrorIs(t, err, budget.ErrGoalNotFound)
}

func TestListEntries_Filter(t *testing.T) {
	env := newTestEnv(t, "2024-01-20")
	ctx := context.Background()
	food := env.category(t, "Food", "100")
	home := env.category(t, "Home", "100")
	trip := env.goal(t, "Trip", "")
	env.period(t, "2024-01-05", "2024-02-04", "200")
	env.expense(t, food.ID, "1")
	env.expense(t, home.ID, "2")
	env.expense(t, food.ID, "3")
	env.income(t, "10")
	_, err := env.engine.Recorder.Transfer(ctx, budget.TransferInput{From: budget.AccountWallet, To: budget.AccountSaving, ToGoalID: trip.ID, Amount: amt("5")})
	require.NoError(t, err)

	got, err := env.engine.Recorder.ListEntries(ctx, budget.EntryFilter{CategoryID: food.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	requireMoney(t, "3", got[0].Amount)

	got, err = env.engine.Recorder.ListEntries(ctx, budget.EntryFilter{Account: budget.AccountSaving})
	require.NoError(t, err)
	require.Len(t, got, 1, "target account matches too")

	got, err = env.engine.Recorder.ListEntries(ctx, budget.EntryFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 4)
}
