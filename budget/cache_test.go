package budget_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/envelope-ledger/budget"
	"github.com/warp/envelope-ledger/budget/store"
)

func income(amount string) budget.WalletLogEntry {
	return budget.WalletLogEntry{ID: amount, Type: budget.WalletIncome, Amount: amt(amount)}
}

func TestCachedStore_ServesStaleReadsWithinTTL(t *testing.T) {
	// GIVEN: A warm cache over a store that is written to directly
	ctx := context.Background()
	mem := store.NewMemory()
	clock := newTestClock("2024-01-20")
	cached := budget.NewCachedStore(mem, time.Minute)
	cached.Clock = clock.Now

	require.NoError(t, mem.AppendWallet(ctx, income("100")))
	rows, err := cached.WalletEntries(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, mem.AppendWallet(ctx, income("50")))

	// WHEN: Reading again before the TTL
	rows, err = cached.WalletEntries(ctx)
	require.NoError(t, err)

	// THEN: The bypassing write is not visible yet
	assert.Len(t, rows, 1)

	// WHEN: The TTL passes
	clock.Advance(time.Minute)

	// THEN: The read refreshes
	rows, err = cached.WalletEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestCachedStore_WriteInvalidates(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	cached := budget.NewCachedStore(mem, time.Hour)

	_, err := cached.WalletEntries(ctx)
	require.NoError(t, err)
	_, err = cached.Periods(ctx)
	require.NoError(t, err)

	// A write through the cache is read back at once, on every stream.
	require.NoError(t, cached.AppendWallet(ctx, income("100")))
	require.NoError(t, cached.InsertPeriod(ctx, examplePeriod()))

	rows, err := cached.WalletEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	periods, err := cached.Periods(ctx)
	require.NoError(t, err)
	assert.Len(t, periods, 1)
}

func TestCachedStore_FailedWriteStillInvalidates(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	cached := budget.NewCachedStore(mem, time.Hour)
	require.NoError(t, cached.AppendWallet(ctx, budget.WalletLogEntry{ID: "a", Type: budget.WalletIncome, Amount: amt("1"), IdempotencyKey: "k"}))

	_, err := cached.WalletEntries(ctx)
	require.NoError(t, err)
	require.NoError(t, mem.AppendWallet(ctx, income("2")))

	err = cached.AppendWallet(ctx, budget.WalletLogEntry{ID: "b", Type: budget.WalletIncome, Amount: amt("1"), IdempotencyKey: "k"})
	assert.ErrorIs(t, err, budget.ErrDuplicateIdempotencyKey)

	rows, err := cached.WalletEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestCachedStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	cached := budget.NewCachedStore(store.NewMemory(), 0)
	assert.Equal(t, budget.DefaultCacheTTL, cached.TTL)
	require.NoError(t, cached.AppendWallet(ctx, income("100")))

	rows, err := cached.WalletEntries(ctx)
	require.NoError(t, err)
	rows[0].Amount = amt("999")

	again, err := cached.WalletEntries(ctx)
	require.NoError(t, err)
	requireMoney(t, "100", again[0].Amount)
}

func TestEngine_WithCacheSeesOwnWrites(t *testing.T) {
	// GIVEN: An engine with the read cache enabled
	ctx := context.Background()
	clock := newTestClock("2024-01-20")
	engine := budget.NewEngine(store.NewMemory(), budget.EngineConfig{
		Balances: budget.BalanceConfig{BackUpInitial: amt("10000")},
		PayDay:   5,
		CacheTTL: time.Hour,
		Clock:    clock.Now,
	})
	_, ok := engine.Store.(*budget.CachedStore)
	require.True(t, ok)

	// WHEN: Writing and reading through the engine
	_, err := engine.Recorder.RecordIncome(ctx, budget.IncomeInput{Amount: amt("300")})
	require.NoError(t, err)

	// THEN: Balances reflect the write immediately
	w, err := engine.Balances.Wallet(ctx)
	require.NoError(t, err)
	requireMoney(t, "300", w)
	engine.Invalidate()
}
