package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/envelope-ledger/budget"
	"github.com/warp/envelope-ledger/budget/storetest"
	"github.com/warp/envelope-ledger/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) budget.Store {
		return newStore(t)
	})
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	// GIVEN: A file-backed store with one income entry
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, s.AppendWallet(ctx, budget.WalletLogEntry{
		ID: "w1", Type: budget.WalletIncome, Amount: budget.MustParseMoney("42.42"), IdempotencyKey: "pay-jan",
	}))
	require.NoError(t, s.Close())

	// WHEN: Reopening it
	s, err = sqlite.New(path)
	require.NoError(t, err)
	defer s.Close()

	// THEN: The entry and its key survived the migration re-run
	wallet, err := s.WalletEntries(ctx)
	require.NoError(t, err)
	require.Len(t, wallet, 1)
	assert.Equal(t, "42.42", wallet[0].Amount.String())
	err = s.AppendWallet(ctx, budget.WalletLogEntry{
		ID: "w2", Type: budget.WalletIncome, Amount: budget.MustParseMoney("1"), IdempotencyKey: "pay-jan",
	})
	assert.ErrorIs(t, err, budget.ErrDuplicateIdempotencyKey)
}

func TestStore_SubTagNeedsCategory(t *testing.T) {
	s := newStore(t)

	err := s.InsertSubTag(context.Background(), budget.SubTag{ID: "t1", CategoryID: "ghost", Name: "Orphan"})
	assert.ErrorIs(t, err, budget.ErrCategoryNotFound)
}

func TestStore_PingAndClosedStore(t *testing.T) {
	ctx := context.Background()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())

	// A closed database surfaces as a retryable store error.
	assert.ErrorIs(t, s.Ping(ctx), budget.ErrStoreUnavailable)
	_, err = s.Entries(ctx)
	assert.True(t, budget.IsRetryable(err))
}
