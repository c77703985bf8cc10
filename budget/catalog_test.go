package budget_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/envelope-ledger/budget"
)

func TestCatalog_AddCategory(t *testing.T) {
	env := newTestEnv(t, "2024-01-20")
	ctx := context.Background()

	c, err := env.engine.Catalog.AddCategory(ctx, budget.NewCategory{Name: "  Food ", Budget: amt("100"), IsQuickAccess: true})
	require.NoError(t, err)
	assert.Equal(t, "Food", c.Name)
	assert.Equal(t, budget.StatusActive, c.Status)

	_, err = env.engine.Catalog.AddCategory(ctx, budget.NewCategory{Name: ""})
	assert.ErrorIs(t, err, budget.ErrValidation)
	_, err = env.engine.Catalog.AddCategory(ctx, budget.NewCategory{Name: "Debt", Budget: amt("-1")})
	assert.ErrorIs(t, err, budget.ErrValidation)

	updated, err := env.engine.Catalog.SetCategoryBudget(ctx, c.ID, amt("250"))
	require.NoError(t, err)
	requireMoney(t, "250", updated.Budget)

	_, err = env.engine.Catalog.SetCategoryBudget(ctx, "ghost", amt("1"))
	assert.ErrorIs(t, err, budget.ErrCategoryNotFound)
}

func TestCatalog_SubTags(t *testing.T) {
	env := newTestEnv(t, "2024-01-20")
	ctx := context.Background()
	food := env.category(t, "Food", "1")
	home := env.category(t, "Home", "1")

	_, err := env.engine.Catalog.AddSubTag(ctx, food.ID, "Groceries", budget.PaymentDefaults{})
	require.NoError(t, err)
	_, err = env.engine.Catalog.AddSubTag(ctx, home.ID, "Repairs", budget.PaymentDefaults{})
	require.NoError(t, err)
	_, err = env.engine.Catalog.AddSubTag(ctx, "ghost", "Orphan", budget.PaymentDefaults{})
	assert.ErrorIs(t, err, budget.ErrCategoryNotFound)

	tags, err := env.engine.Catalog.SubTags(ctx, food.ID)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "Groceries", tags[0].Name)

	all, err := env.engine.Catalog.SubTags(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCatalog_Goals(t *testing.T) {
	env := newTestEnv(t, "2024-01-20")
	ctx := context.Background()

	t.Run("a goal needs a positive target", func(t *testing.T) {
		_, err := env.engine.Catalog.AddGoal(ctx, budget.NewGoal{Name: "Trip", HasTarget: true})
		assert.ErrorIs(t, err, budget.ErrValidation)
	})

	t.Run("a pool has no target", func(t *testing.T) {
		g := env.goal(t, "Rainy Day", "")
		assert.True(t, g.IsPool())
		assert.True(t, g.TargetAmount.IsZero())
	})

	t.Run("complete keeps the balance", func(t *testing.T) {
		// GIVEN: A funded goal
		g := env.goal(t, "Bike", "500")
		env.income(t, "500")
		_, err := env.engine.Recorder.Transfer(ctx, budget.TransferInput{
			From: budget.AccountWallet, To: budget.AccountSaving, ToGoalID: g.ID, Amount: amt("500"),
		})
		require.NoError(t, err)

		// WHEN: Completing it
		done, err := env.engine.Catalog.CompleteGoal(ctx, g.ID)
		require.NoError(t, err)

		// THEN: Status moves, the money stays
		assert.Equal(t, budget.GoalCompleted, done.Status)
		require.NotNil(t, done.CompletedAt)
		bal, err := env.engine.Balances.Saving(ctx, g.ID)
		require.NoError(t, err)
		requireMoney(t, "500", bal)

		_, err = env.engine.Catalog.CompleteGoal(ctx, g.ID)
		assert.ErrorIs(t, err, budget.ErrInactiveRecord)
	})
}

func TestCatalog_Banks(t *testing.T) {
	env := newTestEnv(t, "2024-01-20")
	ctx := context.Background()

	b, err := env.engine.Catalog.AddBank(ctx, "Cash", "wallet in pocket")
	require.NoError(t, err)
	assert.Equal(t, budget.StatusActive, b.Status)

	b, err = env.engine.Catalog.SetBankStatus(ctx, b.ID, budget.StatusInactive)
	require.NoError(t, err)
	assert.Equal(t, budget.StatusInactive, b.Status)

	_, err = env.engine.Catalog.SetBankStatus(ctx, b.ID, budget.Status("Closed"))
	assert.ErrorIs(t, err, budget.ErrValidation)
	_, err = env.engine.Catalog.Bank(ctx, "ghost")
	assert.ErrorIs(t, err, budget.ErrBankNotFound)
	assert.True(t, budget.IsNotFound(err))
}
