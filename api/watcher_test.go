package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/envelope-ledger/budget"
	"github.com/warp/envelope-ledger/logging"
)

func TestOverdueWatcher_CheckOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("no active period", func(t *testing.T) {
		s := newTestServer(t, "2024-03-10")
		w := NewOverdueWatcher(s.handler.Engine, time.Minute, true, logging.Discard())

		res, err := w.CheckOnce(ctx)

		require.NoError(t, err)
		assert.Equal(t, WatchResult{}, res)
	})

	t.Run("period still running", func(t *testing.T) {
		s := newTestServer(t, "2024-01-20")
		s.load(t, "mid-period")
		w := NewOverdueWatcher(s.handler.Engine, time.Minute, true, logging.Discard())

		res, err := w.CheckOnce(ctx)

		require.NoError(t, err)
		assert.NotEmpty(t, res.PeriodID)
		assert.False(t, res.Overdue)
		assert.False(t, res.Settled)
	})

	t.Run("overdue without auto-settle only reports", func(t *testing.T) {
		// GIVEN: A period that ended yesterday
		s := newTestServer(t, "2024-03-10")
		s.load(t, "overdue")
		w := NewOverdueWatcher(s.handler.Engine, time.Minute, false, logging.Discard())

		// WHEN: Checking
		res, err := w.CheckOnce(ctx)

		// THEN: Overdue is reported and nothing is written
		require.NoError(t, err)
		assert.True(t, res.Overdue)
		assert.False(t, res.Settled)
		settlements, err := s.handler.Engine.Store.Settlements(ctx)
		require.NoError(t, err)
		assert.Empty(t, settlements)
	})

	t.Run("overdue with auto-settle settles", func(t *testing.T) {
		// GIVEN: A period that ended yesterday
		s := newTestServer(t, "2024-03-10")
		s.load(t, "overdue")
		w := NewOverdueWatcher(s.handler.Engine, time.Minute, true, logging.Discard())

		// WHEN: Checking
		res, err := w.CheckOnce(ctx)

		// THEN: The period is settled into Free_Fund
		require.NoError(t, err)
		assert.True(t, res.Settled)
		period, err := s.handler.Engine.Periods.Get(ctx, res.PeriodID)
		require.NoError(t, err)
		assert.Equal(t, budget.PeriodSettled, period.Status)
		freeFund, err := s.handler.Engine.Balances.FreeFund(ctx)
		require.NoError(t, err)
		assert.Equal(t, "8000", freeFund.String())

		// A second check finds no Active period.
		res, err = w.CheckOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, WatchResult{}, res)
	})
}

func TestOverdueWatcher_StartStop(t *testing.T) {
	s := newTestServer(t, "2024-03-10")
	w := NewOverdueWatcher(s.handler.Engine, time.Hour, false, logging.Discard())

	w.Start()
	w.Start()
	w.Stop()
	w.Stop()
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenarios(t *testing.T) {
	t.Run("list and current", func(t *testing.T) {
		s := newTestServer(t, "2024-01-20")

		rec := s.do(t, http.MethodGet, "/api/scenarios", nil)
		requireStatus(t, rec, http.StatusOK)
		assert.Len(t, decodeBody[[]ScenarioDTO](t, rec), 3)

		rec = s.do(t, http.MethodGet, "/api/scenarios/current", nil)
		requireStatus(t, rec, http.StatusOK)
		assert.Equal(t, "null\n", rec.Body.String())

		rec = s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "fresh-start"})
		requireStatus(t, rec, http.StatusOK)

		rec = s.do(t, http.MethodGet, "/api/scenarios/current", nil)
		assert.Equal(t, "fresh-start", decodeBody[ScenarioDTO](t, rec).ID)
	})

	t.Run("loading replaces earlier data", func(t *testing.T) {
		s := newTestServer(t, "2024-01-20")
		s.load(t, "mid-period")
		s.load(t, "fresh-start")

		cats := decodeBody[[]CategoryDTO](t, s.do(t, http.MethodGet, "/api/categories", nil))
		assert.Len(t, cats, 4)
		rec := s.do(t, http.MethodGet, "/api/periods/current", nil)
		requireErrorCode(t, rec, http.StatusConflict, CodeNoActivePeriod)
	})

	t.Run("unknown scenario", func(t *testing.T) {
		s := newTestServer(t, "2024-01-20")
		rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "bankrupt"})
		requireStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("disabled without a resetter", func(t *testing.T) {
		s := newTestServer(t, "2024-01-20")
		s.handler.Resetter = nil
		rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "fresh-start"})
		requireStatus(t, rec, http.StatusForbidden)
	})
}
