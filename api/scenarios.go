/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for demos. Each scenario creates categories, sub-tags, goals,
	banks, income and (usually) an Active period with some expenses.
	Dates are relative to the engine clock's today.

AVAILABLE SCENARIOS:

	fresh-start:   Catalog + income, no period yet (rollover skips Stage 1)
	mid-period:    30000 Living budget, 15000 spent, 16 days left
	               (daily available 937.5)
	overdue:       Period ended yesterday, ready to settle and roll over

HOW SCENARIOS WORK:
 1. Reset the store (clear all data) and drop cached reads
 2. Create catalog entries via budget.Catalog
 3. Record income via budget.Recorder
 4. Create the Active period via budget.PeriodManager
 5. Record expenses against it

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "mid-period"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler.Resetter
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/warp/envelope-ledger/budget"
)

// Resetter wipes every table or stream of a store.
type Resetter interface {
	Reset(ctx context.Context) error
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "fresh-start",
		Name:        "Fresh Start",
		Description: "Categories, goals and a salary in the wallet; no period yet",
	},
	{
		ID:          "mid-period",
		Name:        "Mid-Period",
		Description: "30000 living budget, 15000 spent, 16 days left",
	},
	{
		ID:          "overdue",
		Name:        "Overdue Period",
		Description: "The period ended yesterday and is waiting to be settled",
	},
}

var scenarioLoaders = map[string]func(ctx context.Context, s *seeder) error{
	"fresh-start": loadFreshStartScenario,
	"mid-period":  loadMidPeriodScenario,
	"overdue":     loadOverdueScenario,
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decode(w, r, &req) {
		return
	}
	if h.Resetter == nil {
		writeError(w, http.StatusForbidden, "Scenario loading is disabled", nil)
		return
	}
	if _, ok := scenarioLoaders[req.ScenarioID]; !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err := h.LoadScenarioByID(r.Context(), req.ScenarioID); err != nil {
		writeDomainError(w, r, fmt.Sprintf("Failed to load scenario %s", req.ScenarioID), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// LoadScenarioByID resets the store and seeds scenario id.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) error {
	load, ok := scenarioLoaders[id]
	if !ok {
		return fmt.Errorf("unknown scenario %q", id)
	}
	if h.Resetter == nil {
		return fmt.Errorf("scenario %s: no resetter configured", id)
	}

	// Reset first
	if err := h.Resetter.Reset(ctx); err != nil {
		return budget.Unavailable("reset", err)
	}
	h.Engine.Invalidate()
	h.currentScenario = ""

	if err := load(ctx, &seeder{engine: h.Engine, today: h.Engine.Today()}); err != nil {
		return err
	}
	h.currentScenario = id
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// seeder keeps the ids of the demo catalog between steps.
type seeder struct {
	engine *budget.Engine
	today  budget.Date

	categories map[string]budget.Category
	goals      map[string]budget.SavingGoal
}

func (s *seeder) catalog(ctx context.Context) error {
	cat := s.engine.Catalog

	cash, err := cat.AddBank(ctx, "Cash", "")
	if err != nil {
		return err
	}
	card, err := cat.AddBank(ctx, "Credit Card", "cashback card")
	if err != nil {
		return err
	}

	s.categories = make(map[string]budget.Category)
	for _, c := range []budget.NewCategory{
		{Name: "Food", Budget: budget.NewMoney(12000), IsQuickAccess: true,
			Defaults: budget.PaymentDefaults{BankID: cash.ID, PaymentMethod: "cash"}},
		{Name: "Transport", Budget: budget.NewMoney(3000), IsQuickAccess: true,
			Defaults: budget.PaymentDefaults{BankID: card.ID, PaymentMethod: "card"}},
		{Name: "Household", Budget: budget.NewMoney(10000),
			Defaults: budget.PaymentDefaults{BankID: card.ID, PaymentMethod: "card"}},
		{Name: "Fun", Budget: budget.NewMoney(5000)},
	} {
		created, err := cat.AddCategory(ctx, c)
		if err != nil {
			return err
		}
		s.categories[created.Name] = created
	}
	if _, err := cat.AddSubTag(ctx, s.categories["Food"].ID, "Groceries", budget.PaymentDefaults{PaymentMethod: "card", BankID: card.ID}); err != nil {
		return err
	}
	if _, err := cat.AddSubTag(ctx, s.categories["Food"].ID, "Eating out", budget.PaymentDefaults{}); err != nil {
		return err
	}

	deadline := s.today.AddMonths(6)
	s.goals = make(map[string]budget.SavingGoal)
	for _, g := range []budget.NewGoal{
		{Name: "Japan Trip", HasTarget: true, TargetAmount: budget.NewMoney(60000), Deadline: &deadline},
		{Name: "Rainy Day Pool"},
	} {
		created, err := cat.AddGoal(ctx, g)
		if err != nil {
			return err
		}
		s.goals[created.Name] = created
	}
	return nil
}

func (s *seeder) income(ctx context.Context, amount int64, note string) error {
	_, err := s.engine.Recorder.RecordIncome(ctx, budget.IncomeInput{
		Amount: budget.NewMoney(amount),
		Note:   note,
	})
	return err
}

func (s *seeder) period(ctx context.Context, start, end budget.Date, living int64) (budget.Period, error) {
	return s.engine.Periods.CreatePeriod(ctx, budget.CreatePeriodInput{
		StartDate:    start,
		EndDate:      end,
		LivingBudget: budget.NewMoney(living),
	})
}

func (s *seeder) expense(ctx context.Context, category, item string, amount int64, on budget.Date) error {
	_, err := s.engine.Recorder.RecordExpense(ctx, budget.ExpenseInput{
		Date:       on,
		CategoryID: s.categories[category].ID,
		Item:       item,
		Amount:     budget.NewMoney(amount),
	})
	return err
}

func loadFreshStartScenario(ctx context.Context, s *seeder) error {
	if err := s.catalog(ctx); err != nil {
		return err
	}
	return s.income(ctx, 50000, "salary")
}

// loadMidPeriodScenario leaves 16 days (today included) in a 31-day period
// with half of the 30000 Living budget spent.
func loadMidPeriodScenario(ctx context.Context, s *seeder) error {
	if err := s.catalog(ctx); err != nil {
		return err
	}
	if err := s.income(ctx, 50000, "salary"); err != nil {
		return err
	}
	start := s.today.AddDays(-15)
	if _, err := s.period(ctx, start, s.today.AddDays(15), 30000); err != nil {
		return err
	}
	for _, e := range []struct {
		category, item string
		amount         int64
		day            int
	}{
		{"Food", "Groceries for the week", 5000, 1},
		{"Household", "Vacuum cleaner", 8000, 4},
		{"Transport", "Monthly pass", 2000, 9},
	} {
		if err := s.expense(ctx, e.category, e.item, e.amount, start.AddDays(e.day)); err != nil {
			return err
		}
	}
	return nil
}

func loadOverdueScenario(ctx context.Context, s *seeder) error {
	if err := s.catalog(ctx); err != nil {
		return err
	}
	if err := s.income(ctx, 45000, "salary"); err != nil {
		return err
	}
	end := s.today.AddDays(-1)
	start := end.AddDays(-30)
	if _, err := s.period(ctx, start, end, 20000); err != nil {
		return err
	}
	if err := s.expense(ctx, "Food", "Weekly groceries", 7000, start.AddDays(3)); err != nil {
		return err
	}
	if err := s.expense(ctx, "Fun", "Concert tickets", 5000, start.AddDays(12)); err != nil {
		return err
	}
	_, err := s.engine.Recorder.Transfer(ctx, budget.TransferInput{
		From:     budget.AccountWallet,
		To:       budget.AccountSaving,
		ToGoalID: s.goals["Japan Trip"].ID,
		Amount:   budget.NewMoney(10000),
		Note:     "first deposit",
	})
	return err
}
