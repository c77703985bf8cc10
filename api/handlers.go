/*
handlers.go - HTTP API handlers for the envelope ledger

PURPOSE:
  Exposes the budget engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the budget services.

ENDPOINTS:
  Overview:
    GET    /api/health                     Liveness + store ping
    GET    /api/summary                    Dashboard: all balances + progress
    GET    /api/balances/{account}         One balance (?period_id, ?goal_id, ?category_id)

  Periods:
    GET    /api/periods                    List periods, newest first
    POST   /api/periods                    Create the first period
    GET    /api/periods/current            Current active period
    GET    /api/periods/default-bounds     Pay-day based start/end + quick picks
    GET    /api/periods/{id}               Period details
    GET    /api/periods/{id}/settlement    Settlement preview
    POST   /api/periods/{id}/settlement    Settle (idempotent, resumable)
    GET    /api/settlements                Settlement records

  Ledger + Wallet:
    GET    /api/entries                    Ledger Log (?period_id, ?account, ?type, ...)
    POST   /api/entries/expenses           Record a Living expense
    POST   /api/entries/transfers          Move money between accounts
    POST   /api/entries/withdrawals        Spend from a saving goal
    GET    /api/wallet                     Wallet Log
    POST   /api/wallet/income              Record income
    POST   /api/wallet/adjustments         Signed wallet correction

  Catalog:
    GET/POST /api/categories               List / create categories
    PUT    /api/categories/{id}/budget     Change a category budget
    GET/POST /api/categories/{id}/sub-tags List / create sub-tags
    GET/POST /api/goals                    List / create saving goals
    POST   /api/goals/{id}/complete        Mark a goal completed
    GET/POST /api/banks                    List / create bank accounts
    PUT    /api/banks/{id}/status          Activate / deactivate

  Rollover (four-stage wizard, one session at a time):
    GET    /api/rollover                   Current session
    POST   /api/rollover/begin             Start or resume
    GET    /api/rollover/settlement        Stage 1 preview
    POST   /api/rollover/settle            Stage 1: settle previous period
    POST   /api/rollover/period            Stage 2: define new period
    POST   /api/rollover/budgets           Stage 3: category budgets
    POST   /api/rollover/allocations       Stage 4: goal + Back_Up allocation
    GET    /api/rollover/plan              Stage 4 preview
    POST   /api/rollover/commit            Atomic commit (resumable)
    POST   /api/rollover/back              Previous stage
    DELETE /api/rollover                   Cancel

  Scenarios:
    GET    /api/scenarios                  List demo scenarios
    POST   /api/scenarios/load             Load a demo scenario

IDEMPOTENCY:
  Write endpoints that append to a log accept an Idempotency-Key header.
  A replayed key answers 409 with code "duplicate" and writes nothing.
  Transfers are the exception: a replay answers 201 and completes the
  wallet leg if the earlier attempt stopped between the two logs.

ERROR HANDLING:
  Errors are returned as JSON ErrorResponse with a stable code:
  - 400: Validation errors, invalid input (validation, invalid_json)
  - 404: Resource not found
  - 409: State conflicts (already_settled, active_period_exists,
         early_settlement, session_stage, insufficient_wallet, duplicate)
  - 503: Store unavailable, retry
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - errors.go: Error classification
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/warp/envelope-ledger/budget"
)

// IdempotencyHeader carries a client-chosen idempotency key.
const IdempotencyHeader = "Idempotency-Key"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pinger is implemented by stores that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine   *budget.Engine
	Currency string

	// Pinger backs /api/health; nil reports healthy.
	Pinger Pinger
	// Resetter wipes the store before a scenario loads; nil disables
	// scenario loading.
	Resetter Resetter

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler over engine.
func NewHandler(engine *budget.Engine, currency string) *Handler {
	return &Handler{Engine: engine, Currency: currency}
}

func (h *Handler) present() presenter { return presenter{currency: h.Currency} }

func idempotencyKey(r *http.Request) string { return r.Header.Get(IdempotencyHeader) }

// =============================================================================
// OVERVIEW
// =============================================================================

// Health reports liveness and store reachability.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Pinger != nil {
		if err := h.Pinger.Ping(r.Context()); err != nil {
			writeDomainError(w, r, "Store unreachable", budget.Unavailable("ping", err))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetSummary returns every balance plus category and goal progress.
// GET /api/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Engine.Balances.Summary(r.Context(), h.Engine.Store)
	if err != nil {
		writeDomainError(w, r, "Failed to build summary", err)
		return
	}
	writeJSON(w, http.StatusOK, h.present().summary(s))
}

// GetBalance returns one named balance.
// GET /api/balances/{account}?period_id=&goal_id=&category_id=
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account := budget.Account(chi.URLParam(r, "account"))
	if !account.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown account", nil)
		return
	}
	q := r.URL.Query()
	f := budget.Filter{
		PeriodID:   q.Get("period_id"),
		GoalID:     q.Get("goal_id"),
		CategoryID: q.Get("category_id"),
	}
	bal, err := h.Engine.Balances.Balance(r.Context(), account, f)
	if err != nil {
		writeDomainError(w, r, "Failed to compute balance", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{Account: account, Balance: h.present().amount(bal)})
}

// =============================================================================
// PERIOD HANDLERS
// =============================================================================

// ListPeriods returns all periods, newest first.
// GET /api/periods
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.Engine.Periods.List(r.Context())
	if err != nil {
		writeDomainError(w, r, "Failed to list periods", err)
		return
	}
	today := h.Engine.Today()
	dtos := make([]PeriodDTO, len(periods))
	for i, p := range periods {
		dtos[i] = h.present().period(p, today)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePeriod creates a period outside the rollover workflow. Only
// allowed while no period is active.
// POST /api/periods
func (h *Handler) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	var req CreatePeriodRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.Engine.Periods.CreatePeriod(r.Context(), budget.CreatePeriodInput{
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		LivingBudget: req.LivingBudget,
	})
	if err != nil {
		writeDomainError(w, r, "Failed to create period", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.present().period(p, h.Engine.Today()))
}

// GetCurrentPeriod returns the active period.
// GET /api/periods/current
func (h *Handler) GetCurrentPeriod(w http.ResponseWriter, r *http.Request) {
	p, err := h.Engine.Periods.Current(r.Context())
	if err != nil {
		writeDomainError(w, r, "Failed to get current period", err)
		return
	}
	if p == nil {
		writeDomainError(w, r, "No active period", budget.ErrNoActivePeriod)
		return
	}
	writeJSON(w, http.StatusOK, h.present().period(*p, h.Engine.Today()))
}

// GetDefaultBounds suggests the next period's dates.
// GET /api/periods/default-bounds
func (h *Handler) GetDefaultBounds(w http.ResponseWriter, r *http.Request) {
	today := h.Engine.Today()
	start, end := budget.DefaultPeriodBounds(h.Engine.Config.PayDay, today)
	picks := make(map[string]string, len(budget.QuickPickDays))
	for _, days := range budget.QuickPickDays {
		picks[strconv.Itoa(days)] = budget.QuickPickEnd(start, days).String()
	}
	writeJSON(w, http.StatusOK, PeriodBoundsDTO{
		StartDate:  start.String(),
		EndDate:    end.String(),
		QuickPicks: picks,
	})
}

// GetPeriod returns one period.
// GET /api/periods/{id}
func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	p, err := h.Engine.Periods.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "Failed to get period", err)
		return
	}
	writeJSON(w, http.StatusOK, h.present().period(p, h.Engine.Today()))
}

// PreviewSettlement shows what settling the period would write.
// GET /api/periods/{id}/settlement
func (h *Handler) PreviewSettlement(w http.ResponseWriter, r *http.Request) {
	preview, err := h.Engine.Settlement.Preview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "Failed to preview settlement", err)
		return
	}
	writeJSON(w, http.StatusOK, h.present().settlementPreview(preview, h.Engine.Today()))
}

// SettlePeriod settles the period. Re-running after a partial failure
// completes the remaining steps.
// POST /api/periods/{id}/settlement
func (h *Handler) SettlePeriod(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.Settlement.Settle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "Failed to settle period", err)
		return
	}
	writeJSON(w, http.StatusOK, h.present().settlementResult(res))
}

// ListSettlements returns every settlement record.
// GET /api/settlements
func (h *Handler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	records, err := h.Engine.Store.Settlements(r.Context())
	if err != nil {
		writeDomainError(w, r, "Failed to list settlements", err)
		return
	}
	dtos := make([]SettlementRecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = h.present().settlementRecord(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// LEDGER + WALLET HANDLERS
// =============================================================================

// ListEntries returns Ledger Log entries, newest first.
// GET /api/entries?period_id=&account=&type=&category_id=&goal_id=
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries, err := h.Engine.Recorder.ListEntries(r.Context(), budget.EntryFilter{
		PeriodID:   q.Get("period_id"),
		Account:    budget.Account(q.Get("account")),
		Type:       budget.EntryType(q.Get("type")),
		CategoryID: q.Get("category_id"),
		GoalID:     q.Get("goal_id"),
	})
	if err != nil {
		writeDomainError(w, r, "Failed to list entries", err)
		return
	}
	dtos := make([]LedgerEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = h.present().entry(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RecordExpense books an expense against the current period.
// POST /api/entries/expenses
func (h *Handler) RecordExpense(w http.ResponseWriter, r *http.Request) {
	var req ExpenseRequest
	if !decode(w, r, &req) {
		return
	}
	e, err := h.Engine.Recorder.RecordExpense(r.Context(), budget.ExpenseInput{
		Date:           req.Date,
		CategoryID:     req.CategoryID,
		SubTagID:       req.SubTagID,
		Item:           req.Item,
		Amount:         req.Amount,
		Note:           req.Note,
		BankID:         req.BankID,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, r, "Failed to record expense", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.present().entry(e))
}

// Transfer moves money between two non-Living accounts.
// POST /api/entries/transfers
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !decode(w, r, &req) {
		return
	}
	e, err := h.Engine.Recorder.Transfer(r.Context(), budget.TransferInput{
		From:           req.From,
		To:             req.To,
		FromGoalID:     req.FromGoalID,
		ToGoalID:       req.ToGoalID,
		Amount:         req.Amount,
		Note:           req.Note,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, r, "Failed to transfer", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.present().entry(e))
}

// WithdrawSaving spends from a saving goal.
// POST /api/entries/withdrawals
func (h *Handler) WithdrawSaving(w http.ResponseWriter, r *http.Request) {
	var req WithdrawalRequest
	if !decode(w, r, &req) {
		return
	}
	e, err := h.Engine.Recorder.WithdrawSaving(r.Context(), budget.WithdrawalInput{
		GoalID:         req.GoalID,
		Amount:         req.Amount,
		Item:           req.Item,
		Note:           req.Note,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, r, "Failed to withdraw", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.present().entry(e))
}

// ListWallet returns the Wallet Log, newest first.
// GET /api/wallet
func (h *Handler) ListWallet(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Engine.Recorder.ListWallet(r.Context())
	if err != nil {
		writeDomainError(w, r, "Failed to list wallet", err)
		return
	}
	dtos := make([]WalletEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = h.present().walletEntry(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RecordIncome adds cash to the Wallet.
// POST /api/wallet/income
func (h *Handler) RecordIncome(w http.ResponseWriter, r *http.Request) {
	var req IncomeRequest
	if !decode(w, r, &req) {
		return
	}
	e, err := h.Engine.Recorder.RecordIncome(r.Context(), budget.IncomeInput{
		Amount:         req.Amount,
		BankID:         req.BankID,
		Note:           req.Note,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, r, "Failed to record income", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.present().walletEntry(e))
}

// AdjustWallet books a signed correction.
// POST /api/wallet/adjustments
func (h *Handler) AdjustWallet(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if !decode(w, r, &req) {
		return
	}
	e, err := h.Engine.Recorder.AdjustWallet(r.Context(), req.Amount, req.Note, idempotencyKey(r))
	if err != nil {
		writeDomainError(w, r, "Failed to adjust wallet", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.present().walletEntry(e))
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// GET /api/categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Engine.Catalog.Categories(r.Context())
	if err != nil {
		writeDomainError(w, r, "Failed to list categories", err)
		return
	}
	dtos := make([]CategoryDTO, len(cats))
	for i, c := range cats {
		dtos[i] = h.present().category(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// POST /api/categories
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.Engine.Catalog.AddCategory(r.Context(), budget.NewCategory{
		Name:          req.Name,
		Budget:        req.Budget,
		IsQuickAccess: req.IsQuickAccess,
		Defaults:      req.Defaults.domain(),
	})
	if err != nil {
		writeDomainError(w, r, "Failed to create category", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.present().category(c))
}

// PUT /api/categories/{id}/budget
func (h *Handler) SetCategoryBudget(w http.ResponseWriter, r *http.Request) {
	var req SetBudgetRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.Engine.Catalog.SetCategoryBudget(r.Context(), chi.URLParam(r, "id"), req.Budget)
	if err != nil {
		writeDomainError(w, r, "Failed to set budget", err)
		return
	}
	writeJSON(w, http.StatusOK, h.present().category(c))
}

// GET /api/categories/{id}/sub-tags
func (h *Handler) ListSubTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.Engine.Catalog.SubTags(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "Failed to list sub-tags", err)
		return
	}
	dtos := make([]SubTagDTO, len(tags))
	for i, t := range tags {
		dtos[i] = subTagDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// POST /api/categories/{id}/sub-tags
func (h *Handler) CreateSubTag(w http.ResponseWriter, r *http.Request) {
	var req CreateSubTagRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := h.Engine.Catalog.AddSubTag(r.Context(), chi.URLParam(r, "id"), req.Name, req.Defaults.domain())
	if err != nil {
		writeDomainError(w, r, "Failed to create sub-tag", err)
		return
	}
	writeJSON(w, http.StatusCreated, subTagDTO(t))
}

// GET /api/goals
func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.Engine.Catalog.Goals(r.Context())
	if err != nil {
		writeDomainError(w, r, "Failed to list goals", err)
		return
	}
	dtos := make([]GoalDTO, len(goals))
	for i, g := range goals {
		dtos[i] = h.present().goal(g)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// POST /api/goals
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var req CreateGoalRequest
	if !decode(w, r, &req) {
		return
	}
	g, err := h.Engine.Catalog.AddGoal(r.Context(), budget.NewGoal{
		Name:         req.Name,
		HasTarget:    req.HasTarget,
		TargetAmount: req.TargetAmount,
		Deadline:     req.Deadline,
		Defaults:     req.Defaults.domain(),
	})
	if err != nil {
		writeDomainError(w, r, "Failed to create goal", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.present().goal(g))
}

// POST /api/goals/{id}/complete
func (h *Handler) CompleteGoal(w http.ResponseWriter, r *http.Request) {
	g, err := h.Engine.Catalog.CompleteGoal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "Failed to complete goal", err)
		return
	}
	writeJSON(w, http.StatusOK, h.present().goal(g))
}

// GET /api/banks
func (h *Handler) ListBanks(w http.ResponseWriter, r *http.Request) {
	banks, err := h.Engine.Catalog.Banks(r.Context())
	if err != nil {
		writeDomainError(w, r, "Failed to list banks", err)
		return
	}
	dtos := make([]BankDTO, len(banks))
	for i, b := range banks {
		dtos[i] = bankDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// POST /api/banks
func (h *Handler) CreateBank(w http.ResponseWriter, r *http.Request) {
	var req CreateBankRequest
	if !decode(w, r, &req) {
		return
	}
	b, err := h.Engine.Catalog.AddBank(r.Context(), req.Name, req.Note)
	if err != nil {
		writeDomainError(w, r, "Failed to create bank", err)
		return
	}
	writeJSON(w, http.StatusCreated, bankDTO(b))
}

// PUT /api/banks/{id}/status
func (h *Handler) SetBankStatus(w http.ResponseWriter, r *http.Request) {
	var req SetStatusRequest
	if !decode(w, r, &req) {
		return
	}
	b, err := h.Engine.Catalog.SetBankStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeDomainError(w, r, "Failed to set bank status", err)
		return
	}
	writeJSON(w, http.StatusOK, bankDTO(b))
}

// =============================================================================
// ROLLOVER HANDLERS
// =============================================================================

// GetRollover returns the in-progress session.
// GET /api/rollover
func (h *Handler) GetRollover(w http.ResponseWriter, r *http.Request) {
	s, err := h.Engine.Rollover.Session(r.Context())
	if err != nil {
		writeDomainError(w, r, "No rollover in progress", err)
		return
	}
	writeJSON(w, http.StatusOK, h.present().session(s))
}

// BeginRollover starts a session, or returns the one in progress.
// POST /api/rollover/begin
func (h *Handler) BeginRollover(w http.ResponseWriter, r *http.Request) {
	s, err := h.Engine.Rollover.Begin(r.Context())
	if err != nil {
		writeDomainError(w, r, "Failed to begin rollover", err)
		return
	}
	writeJSON(w, http.StatusOK, h.present().session(s))
}

// GET /api/rollover/settlement
func (h *Handler) PreviewRolloverSettlement(w http.ResponseWriter, r *http.Request) {
	preview, err := h.Engine.Rollover.PreviewSettlement(r.Context())
	if err != nil {
		writeDomainError(w, r, "Failed to preview settlement", err)
		return
	}
	writeJSON(w, http.StatusOK, h.present().settlementPreview(preview, h.Engine.Today()))
}

// SettlePrevious runs Stage 1. Settling before the period's end date
// requires allow_early.
// POST /api/rollover/settle
func (h *Handler) SettlePrevious(w http.ResponseWriter, r *http.Request) {
	var req SettlePreviousRequest
	if !decode(w, r, &req) {
		return
	}
	s, res, err := h.Engine.Rollover.SettlePrevious(r.Context(), req.AllowEarly)
	if err != nil {
		writeDomainError(w, r, "Failed to settle previous period", err)
		return
	}
	writeJSON(w, http.StatusOK, SettlePreviousResponse{
		Session:    h.present().session(s),
		Settlement: h.present().settlementResult(res),
	})
}

// POST /api/rollover/period
func (h *Handler) DefineRolloverPeriod(w http.ResponseWriter, r *http.Request) {
	var req DefinePeriodRequest
	if !decode(w, r, &req) {
		return
	}
	end := req.EndDate
	if req.QuickPickDays > 0 {
		end = budget.QuickPickEnd(req.StartDate, req.QuickPickDays)
	}
	s, err := h.Engine.Rollover.DefinePeriod(r.Context(), req.StartDate, end)
	if err != nil {
		writeDomainError(w, r, "Failed to define period", err)
		return
	}
	writeJSON(w, http.StatusOK, h.present().session(s))
}

// POST /api/rollover/budgets
func (h *Handler) SetRolloverBudgets(w http.ResponseWriter, r *http.Request) {
	var req SetBudgetsRequest
	if !decode(w, r, &req) {
		return
	}
	s, err := h.Engine.Rollover.SetBudgets(r.Context(), req.Budgets)
	if err != nil {
		writeDomainError(w, r, "Failed to set budgets", err)
		return
	}
	writeJSON(w, http.StatusOK, h.present().session(s))
}

// AllocateRollover stores goal and Back_Up allocations. A negative
// remainder answers 409 insufficient_wallet with the shortfall in details,
// and the session keeps its previous allocation.
// POST /api/rollover/allocations
func (h *Handler) AllocateRollover(w http.ResponseWriter, r *http.Request) {
	var req AllocateRequest
	if !decode(w, r, &req) {
		return
	}
	s, plan, err := h.Engine.Rollover.Allocate(r.Context(), req.Goals, req.BackUp)
	if err != nil {
		writeDomainError(w, r, "Failed to allocate", err)
		return
	}
	writeJSON(w, http.StatusOK, AllocateResponse{
		Session: h.present().session(s),
		Plan:    h.present().plan(plan),
	})
}

// GET /api/rollover/plan
func (h *Handler) GetRolloverPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.Engine.Rollover.Plan(r.Context())
	if err != nil {
		writeDomainError(w, r, "Failed to compute plan", err)
		return
	}
	writeJSON(w, http.StatusOK, h.present().plan(plan))
}

// CommitRollover writes the new period and every allocation. Retrying
// after a 503 resumes where the previous attempt stopped.
// POST /api/rollover/commit
func (h *Handler) CommitRollover(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.Rollover.Commit(r.Context())
	if err != nil {
		writeDomainError(w, r, "Failed to commit rollover", err)
		return
	}
	writeJSON(w, http.StatusOK, CommitResponse{
		Period:  h.present().period(res.Period, h.Engine.Today()),
		Swept:   h.present().amount(res.Swept),
		Resumed: res.Resumed,
	})
}

// POST /api/rollover/back
func (h *Handler) RolloverBack(w http.ResponseWriter, r *http.Request) {
	s, err := h.Engine.Rollover.Back(r.Context())
	if err != nil {
		writeDomainError(w, r, "Failed to go back", err)
		return
	}
	writeJSON(w, http.StatusOK, h.present().session(s))
}

// DELETE /api/rollover
func (h *Handler) CancelRollover(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Rollover.Cancel(r.Context()); err != nil {
		writeDomainError(w, r, "Failed to cancel rollover", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
