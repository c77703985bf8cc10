package store_test

import (
	"testing"

	"github.com/warp/envelope-ledger/budget"
	"github.com/warp/envelope-ledger/budget/store"
	"github.com/warp/envelope-ledger/budget/storetest"
)

func TestMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) budget.Store {
		return store.NewMemory()
	})
}
