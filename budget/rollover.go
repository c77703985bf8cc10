/*
rollover.go - Four-stage period rollover

PURPOSE:
  Guides the user from one period to the next. State lives in a single
  RolloverSession that is saved after every stage, so the wizard survives
  between interaction turns and across restarts.

STAGES:
  1. settle_previous   settle the Active period (skipped when there is none)
  2. define_period     start <= today, end > start (7/14/30 day quick picks)
  3. category_budgets  one row per Active category,
                       living budget = Σ category budgets, must be > 0
  4. allocate_funds    wallet -> goals, wallet -> Back_Up, remainder >= 0

  Stages 2-4 only collect input. Stage 1's settlement is never undone by
  Cancel.

COMMIT SEQUENCE (best effort, not atomic):
  1. create period                               (id fixed in the session)
  2. Allocate_Out(living)                        rollover/<pid>/living
  3. per goal: Allocate_Out + Saving_In          rollover/<pid>/goal/<gid>
  4. Allocate_Out + Transfer(Wallet->Back_Up)    rollover/<pid>/backup
  5. remainder: Allocate_Out + Settlement_In     rollover/<pid>/sweep
  6. persist category budgets (unlisted Active categories -> 0)
  7. delete the session

  Before step 1 the session moves to stage "committing" with the pending
  period id and the remainder frozen. A failed Commit leaves the session
  there; calling Commit again re-runs every step and skips the ones the
  store reports as duplicates. Validation (wallet remainder, no Active
  period) runs only on the first attempt, before the stage changes, so a
  rejected Commit leaves the session at allocate_funds.

SEE ALSO:
  - settlement.go: Stage 1
  - period.go: DefaultPeriodBounds, QuickPickEnd
*/
package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SESSION
// =============================================================================

type RolloverStage string

const (
	StageSettlePrevious  RolloverStage = "settle_previous"
	StageDefinePeriod    RolloverStage = "define_period"
	StageCategoryBudgets RolloverStage = "category_budgets"
	StageAllocateFunds   RolloverStage = "allocate_funds"
	StageCommitting      RolloverStage = "committing"
)

// CategoryBudget is one Stage 3 input row.
type CategoryBudget struct {
	CategoryID string `json:"category_id"`
	Budget     Money  `json:"budget"`
}

// GoalAllocation is one Stage 4 input row.
type GoalAllocation struct {
	GoalID string `json:"goal_id"`
	Amount Money  `json:"amount"`
}

// RolloverSession is the serializable wizard state. There is at most one.
type RolloverSession struct {
	ID        string        `json:"id"`
	Stage     RolloverStage `json:"stage"`
	StartedAt time.Time     `json:"started_at"`
	UpdatedAt time.Time     `json:"updated_at"`

	// Stage 1
	PreviousPeriodID string `json:"previous_period_id,omitempty"`
	SettleSkipped    bool   `json:"settle_skipped"`

	// Stage 2
	StartDate Date `json:"start_date"`
	EndDate   Date `json:"end_date"`

	// Stage 3
	CategoryBudgets []CategoryBudget `json:"category_budgets"`
	LivingBudget    Money            `json:"living_budget"`

	// Stage 4
	GoalAllocations  []GoalAllocation `json:"goal_allocations"`
	BackUpAllocation Money            `json:"back_up_allocation"`

	// Set when Commit starts.
	PendingPeriodID string `json:"pending_period_id,omitempty"`
	Remainder       Money  `json:"remainder"`
}

// SavingAllocation sums the goal allocations.
func (s RolloverSession) SavingAllocation() Money {
	total := Zero
	for _, a := range s.GoalAllocations {
		total = total.Add(a.Amount)
	}
	return total
}

// AllocationPlan is the Stage 4 arithmetic.
type AllocationPlan struct {
	Wallet    Money
	Living    Money
	Saving    Money
	BackUp    Money
	Remainder Money // swept into Free_Fund on commit
}

// CanCommit reports remainder >= 0.
func (p AllocationPlan) CanCommit() bool { return !p.Remainder.IsNegative() }

func newAllocationPlan(wallet Money, s RolloverSession) AllocationPlan {
	plan := AllocationPlan{
		Wallet: wallet,
		Living: s.LivingBudget,
		Saving: s.SavingAllocation(),
		BackUp: s.BackUpAllocation,
	}
	plan.Remainder = wallet.Sub(plan.Living).Sub(plan.Saving).Sub(plan.BackUp)
	return plan
}

// CommitResult is what a successful Commit produced.
type CommitResult struct {
	Period  Period
	Swept   Money
	Resumed bool
}

// =============================================================================
// WORKFLOW
// =============================================================================

type RolloverWorkflow struct {
	Store      Store
	Periods    *PeriodManager
	Settlement *SettlementEngine
	Clock      Clock
	PayDay     int
	Logger     *slog.Logger
}

// Session returns the in-progress session or ErrSessionNotFound.
func (w *RolloverWorkflow) Session(ctx context.Context) (RolloverSession, error) {
	return w.Store.LoadSession(ctx)
}

// Begin resumes the existing session or starts a new one. With no Active
// period, Stage 1 is skipped. Stage 2 is prefilled with the pay cycle
// containing today.
func (w *RolloverWorkflow) Begin(ctx context.Context) (RolloverSession, error) {
	s, err := w.Store.LoadSession(ctx)
	if err == nil {
		w.log().Debug("rollover session resumed", "session_id", s.ID, "stage", s.Stage)
		return s, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return RolloverSession{}, err
	}

	current, err := w.Periods.Current(ctx)
	if err != nil {
		return RolloverSession{}, err
	}

	now := w.Clock.now()
	s = RolloverSession{
		ID:        uuid.NewString(),
		StartedAt: now,
		Stage:     StageDefinePeriod,
	}
	s.StartDate, s.EndDate = DefaultPeriodBounds(w.PayDay, DateOf(now))
	if current != nil {
		s.Stage = StageSettlePrevious
		s.PreviousPeriodID = current.ID
	} else {
		s.SettleSkipped = true
	}

	if err := w.save(ctx, &s); err != nil {
		return RolloverSession{}, err
	}
	w.log().Info("rollover started", "session_id", s.ID, "stage", s.Stage, "previous_period_id", s.PreviousPeriodID)
	return s, nil
}

// PreviewSettlement shows Stage 1's per-category spend and projected net.
func (w *RolloverWorkflow) PreviewSettlement(ctx context.Context) (SettlementPreview, error) {
	s, err := w.at(ctx, StageSettlePrevious)
	if err != nil {
		return SettlementPreview{}, err
	}
	return w.Settlement.Preview(ctx, s.PreviousPeriodID)
}

// SettlePrevious runs Stage 1. Settling before the period's end date needs
// allowEarly. A period that is already Settled counts as done.
func (w *RolloverWorkflow) SettlePrevious(ctx context.Context, allowEarly bool) (RolloverSession, *SettlementResult, error) {
	s, err := w.at(ctx, StageSettlePrevious)
	if err != nil {
		return RolloverSession{}, nil, err
	}

	prev, err := w.Periods.Get(ctx, s.PreviousPeriodID)
	if err != nil {
		return RolloverSession{}, nil, err
	}
	if prev.Status == PeriodActive && !prev.IsOverdue(w.Clock.today()) && !allowEarly {
		return RolloverSession{}, nil, fmt.Errorf("%s ends %s: %w", prev.ID, prev.EndDate, ErrEarlySettlement)
	}

	result, err := w.Settlement.Settle(ctx, prev.ID)
	if err != nil && !errors.Is(err, ErrAlreadySettled) {
		return RolloverSession{}, nil, err
	}

	s.Stage = StageDefinePeriod
	if err := w.save(ctx, &s); err != nil {
		return RolloverSession{}, nil, err
	}
	return s, result, nil
}

// DefinePeriod runs Stage 2.
func (w *RolloverWorkflow) DefinePeriod(ctx context.Context, start, end Date) (RolloverSession, error) {
	s, err := w.at(ctx, StageDefinePeriod)
	if err != nil {
		return RolloverSession{}, err
	}

	today := w.Clock.today()
	if start.IsZero() {
		return RolloverSession{}, &ValidationError{Field: "start_date", Reason: "is required"}
	}
	if start.After(today) {
		return RolloverSession{}, &ValidationError{Field: "start_date", Reason: "must not be after today"}
	}
	if !end.After(start) {
		return RolloverSession{}, &ValidationError{Field: "end_date", Reason: "must be after start_date"}
	}

	s.StartDate, s.EndDate = start, end
	if len(s.CategoryBudgets) == 0 {
		if s.CategoryBudgets, err = w.currentBudgets(ctx); err != nil {
			return RolloverSession{}, err
		}
	}
	s.Stage = StageCategoryBudgets
	if err := w.save(ctx, &s); err != nil {
		return RolloverSession{}, err
	}
	return s, nil
}

// SetBudgets runs Stage 3. There must be exactly one row per Active
// category; a zero budget is allowed as long as the sum is positive.
func (w *RolloverWorkflow) SetBudgets(ctx context.Context, budgets []CategoryBudget) (RolloverSession, error) {
	s, err := w.at(ctx, StageCategoryBudgets)
	if err != nil {
		return RolloverSession{}, err
	}

	categories, err := w.Store.Categories(ctx)
	if err != nil {
		return RolloverSession{}, err
	}
	byID := make(map[string]Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	total := Zero
	seen := make(map[string]bool, len(budgets))
	for _, b := range budgets {
		c, ok := byID[b.CategoryID]
		if !ok {
			return RolloverSession{}, fmt.Errorf("%s: %w", b.CategoryID, ErrCategoryNotFound)
		}
		if c.Status != StatusActive {
			return RolloverSession{}, fmt.Errorf("category %s: %w", c.Name, ErrInactiveRecord)
		}
		if seen[b.CategoryID] {
			return RolloverSession{}, &ValidationError{Field: "category_budgets", Reason: "lists " + c.Name + " twice"}
		}
		seen[b.CategoryID] = true
		if b.Budget.IsNegative() {
			return RolloverSession{}, &ValidationError{Field: "budget", Reason: c.Name + " must not be negative"}
		}
		total = total.Add(b.Budget)
	}
	for _, c := range categories {
		if c.Status == StatusActive && !seen[c.ID] {
			return RolloverSession{}, &ValidationError{Field: "category_budgets", Reason: "missing a budget for " + c.Name}
		}
	}
	if !total.IsPositive() {
		return RolloverSession{}, &ValidationError{Field: "living_budget", Reason: "sum of category budgets must be greater than zero"}
	}

	s.CategoryBudgets = budgets
	s.LivingBudget = total
	s.Stage = StageAllocateFunds
	if err := w.save(ctx, &s); err != nil {
		return RolloverSession{}, err
	}
	return s, nil
}

// Allocate runs Stage 4. The plan is returned even when the remainder is
// negative, together with an InsufficientWalletError.
func (w *RolloverWorkflow) Allocate(ctx context.Context, goals []GoalAllocation, backUp Money) (RolloverSession, AllocationPlan, error) {
	s, err := w.at(ctx, StageAllocateFunds)
	if err != nil {
		return RolloverSession{}, AllocationPlan{}, err
	}

	if backUp.IsNegative() {
		return RolloverSession{}, AllocationPlan{}, &ValidationError{Field: "back_up_allocation", Reason: "must not be negative"}
	}
	kept, err := w.checkGoals(ctx, goals)
	if err != nil {
		return RolloverSession{}, AllocationPlan{}, err
	}

	s.GoalAllocations = kept
	s.BackUpAllocation = backUp
	plan, err := w.plan(ctx, s)
	if err != nil {
		return RolloverSession{}, AllocationPlan{}, err
	}
	if !plan.CanCommit() {
		return s, plan, insufficient(plan)
	}

	if err := w.save(ctx, &s); err != nil {
		return RolloverSession{}, AllocationPlan{}, err
	}
	return s, plan, nil
}

// Plan recomputes Stage 4 against the current wallet.
func (w *RolloverWorkflow) Plan(ctx context.Context) (AllocationPlan, error) {
	s, err := w.Store.LoadSession(ctx)
	if err != nil {
		return AllocationPlan{}, err
	}
	return w.plan(ctx, s)
}

// Commit writes the new period and its allocations. See the file header.
func (w *RolloverWorkflow) Commit(ctx context.Context) (*CommitResult, error) {
	s, err := w.Store.LoadSession(ctx)
	if err != nil {
		return nil, err
	}

	log := w.log().With("session_id", s.ID)
	result := &CommitResult{}

	switch s.Stage {
	case StageAllocateFunds:
		plan, err := w.plan(ctx, s)
		if err != nil {
			return nil, err
		}
		if !s.LivingBudget.IsPositive() {
			return nil, &ValidationError{Field: "living_budget", Reason: "sum of category budgets must be greater than zero"}
		}
		if !plan.CanCommit() {
			return nil, insufficient(plan)
		}
		current, err := w.Periods.Current(ctx)
		if err != nil {
			return nil, err
		}
		if current != nil {
			return nil, fmt.Errorf("commit: period %s is still active: %w", current.ID, ErrActivePeriodExists)
		}
		s.PendingPeriodID = uuid.NewString()
		s.Remainder = plan.Remainder
		s.Stage = StageCommitting
		if err := w.save(ctx, &s); err != nil {
			return nil, err
		}
	case StageCommitting:
		result.Resumed = true
		log.Warn("resuming interrupted rollover commit", "period_id", s.PendingPeriodID)
	default:
		return nil, fmt.Errorf("commit at stage %s: %w", s.Stage, ErrSessionStage)
	}

	pid := s.PendingPeriodID
	log = log.With("period_id", pid)
	now := w.Clock.now()
	c := committer{w: w, ctx: ctx, log: log, pid: pid, now: now, resumed: &result.Resumed}

	// 1. Period
	p, err := w.Periods.CreatePeriod(ctx, CreatePeriodInput{
		ID:           pid,
		StartDate:    s.StartDate,
		EndDate:      s.EndDate,
		LivingBudget: s.LivingBudget,
	})
	switch {
	case errors.Is(err, ErrDuplicateIdempotencyKey):
		result.Resumed = true
		if p, err = w.Periods.Get(ctx, pid); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("commit: %w", err)
	}
	result.Period = p

	// 2. Living allowance
	if err := c.wallet(RolloverKey(pid, "living"), s.LivingBudget, "Living budget"); err != nil {
		return nil, err
	}

	// 3. Goals
	for _, a := range s.GoalAllocations {
		if !a.Amount.IsPositive() {
			continue
		}
		key := RolloverKey(pid, "goal/"+a.GoalID)
		if err := c.wallet(key, a.Amount, "Saving allocation"); err != nil {
			return nil, err
		}
		if err := c.ledger(LedgerEntry{
			Type:           EntrySavingIn,
			Amount:         a.Amount,
			Account:        AccountSaving,
			GoalID:         a.GoalID,
			Note:           "Saving allocation",
			IdempotencyKey: key,
		}); err != nil {
			return nil, err
		}
	}

	// 4. Back_Up
	if s.BackUpAllocation.IsPositive() {
		key := RolloverKey(pid, "backup")
		if err := c.wallet(key, s.BackUpAllocation, "Back_Up allocation"); err != nil {
			return nil, err
		}
		if err := c.ledger(LedgerEntry{
			Type:           EntryTransfer,
			Amount:         s.BackUpAllocation,
			Account:        AccountWallet,
			TargetAccount:  AccountBackUp,
			Note:           "Back_Up allocation",
			IdempotencyKey: key,
		}); err != nil {
			return nil, err
		}
	}

	// 5. Sweep the remainder
	if s.Remainder.IsPositive() {
		key := RolloverKey(pid, "sweep")
		if err := c.wallet(key, s.Remainder, "Remainder to Free_Fund"); err != nil {
			return nil, err
		}
		if err := c.ledger(LedgerEntry{
			Type:           EntrySettlementIn,
			Amount:         s.Remainder,
			Account:        AccountFreeFund,
			Note:           "Remainder to Free_Fund",
			IdempotencyKey: key,
		}); err != nil {
			return nil, err
		}
	}
	result.Swept = s.Remainder

	// 6. Category budgets. Categories added after Stage 3 are not part of
	// the Living budget and start at zero.
	listed := make(map[string]bool, len(s.CategoryBudgets))
	for _, b := range s.CategoryBudgets {
		if err := w.Store.SetCategoryBudget(ctx, b.CategoryID, b.Budget); err != nil {
			return nil, fmt.Errorf("commit: category budget %s: %w", b.CategoryID, err)
		}
		listed[b.CategoryID] = true
	}
	categories, err := w.Store.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("commit: category budgets: %w", err)
	}
	for _, cat := range categories {
		if cat.Status != StatusActive || listed[cat.ID] || cat.Budget.IsZero() {
			continue
		}
		if err := w.Store.SetCategoryBudget(ctx, cat.ID, Zero); err != nil {
			return nil, fmt.Errorf("commit: category budget %s: %w", cat.ID, err)
		}
	}

	// 7. Done
	if err := w.Store.DeleteSession(ctx); err != nil {
		return nil, fmt.Errorf("commit: clear session: %w", err)
	}

	log.Info("rollover committed",
		"start", p.StartDate.String(), "end", p.EndDate.String(),
		"living", s.LivingBudget.String(),
		"saving", s.SavingAllocation().String(),
		"back_up", s.BackUpAllocation.String(),
		"swept", s.Remainder.String(),
		"resumed", result.Resumed)
	return result, nil
}

// Back returns to the previous input stage. Stage 1 is never re-entered:
// a settlement cannot be revisited.
func (w *RolloverWorkflow) Back(ctx context.Context) (RolloverSession, error) {
	s, err := w.Store.LoadSession(ctx)
	if err != nil {
		return RolloverSession{}, err
	}
	switch s.Stage {
	case StageCategoryBudgets:
		s.Stage = StageDefinePeriod
	case StageAllocateFunds:
		s.Stage = StageCategoryBudgets
	default:
		return RolloverSession{}, fmt.Errorf("back from %s: %w", s.Stage, ErrSessionStage)
	}
	if err := w.save(ctx, &s); err != nil {
		return RolloverSession{}, err
	}
	return s, nil
}

// Cancel drops the session without touching the logs. A commit in progress
// cannot be cancelled; call Commit again to finish it.
func (w *RolloverWorkflow) Cancel(ctx context.Context) error {
	s, err := w.Store.LoadSession(ctx)
	if err != nil {
		return err
	}
	if s.Stage == StageCommitting {
		return fmt.Errorf("cancel during commit: %w", ErrSessionStage)
	}
	if err := w.Store.DeleteSession(ctx); err != nil {
		return err
	}
	w.log().Info("rollover cancelled", "session_id", s.ID, "stage", s.Stage)
	return nil
}

// RolloverKey is the idempotency key of one commit step.
func RolloverKey(periodID, step string) string {
	return "rollover/" + periodID + "/" + step
}

// =============================================================================
// HELPERS
// =============================================================================

func (w *RolloverWorkflow) log() *slog.Logger { return logger(w.Logger) }

// at loads the session and checks its stage.
func (w *RolloverWorkflow) at(ctx context.Context, stage RolloverStage) (RolloverSession, error) {
	s, err := w.Store.LoadSession(ctx)
	if err != nil {
		return RolloverSession{}, err
	}
	if s.Stage != stage {
		return RolloverSession{}, fmt.Errorf("want %s, session is at %s: %w", stage, s.Stage, ErrSessionStage)
	}
	return s, nil
}

func (w *RolloverWorkflow) save(ctx context.Context, s *RolloverSession) error {
	s.UpdatedAt = w.Clock.now()
	if err := w.Store.SaveSession(ctx, *s); err != nil {
		return fmt.Errorf("save rollover session: %w", err)
	}
	w.log().Debug("rollover session saved", "session_id", s.ID, "stage", s.Stage)
	return nil
}

func (w *RolloverWorkflow) plan(ctx context.Context, s RolloverSession) (AllocationPlan, error) {
	wallet, err := w.Store.WalletEntries(ctx)
	if err != nil {
		return AllocationPlan{}, err
	}
	return newAllocationPlan(WalletBalance(wallet), s), nil
}

// currentBudgets prefills Stage 3 with every Active category's budget.
func (w *RolloverWorkflow) currentBudgets(ctx context.Context) ([]CategoryBudget, error) {
	categories, err := w.Store.Categories(ctx)
	if err != nil {
		return nil, err
	}
	var out []CategoryBudget
	for _, c := range categories {
		if c.Status == StatusActive {
			out = append(out, CategoryBudget{CategoryID: c.ID, Budget: c.Budget})
		}
	}
	return out, nil
}

// checkGoals validates allocations and drops zero rows.
func (w *RolloverWorkflow) checkGoals(ctx context.Context, goals []GoalAllocation) ([]GoalAllocation, error) {
	if len(goals) == 0 {
		return nil, nil
	}
	all, err := w.Store.Goals(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]SavingGoal, len(all))
	for _, g := range all {
		byID[g.ID] = g
	}

	var kept []GoalAllocation
	seen := make(map[string]bool, len(goals))
	for _, a := range goals {
		if a.Amount.IsNegative() {
			return nil, &ValidationError{Field: "goal_allocations", Reason: "amounts must not be negative"}
		}
		if a.Amount.IsZero() {
			continue
		}
		g, ok := byID[a.GoalID]
		if !ok {
			return nil, fmt.Errorf("%s: %w", a.GoalID, ErrGoalNotFound)
		}
		if g.Status != GoalActive {
			return nil, fmt.Errorf("goal %s: %w", g.Name, ErrInactiveRecord)
		}
		if seen[a.GoalID] {
			return nil, &ValidationError{Field: "goal_allocations", Reason: "lists " + g.Name + " twice"}
		}
		seen[a.GoalID] = true
		kept = append(kept, a)
	}
	return kept, nil
}

func insufficient(plan AllocationPlan) error {
	return &InsufficientWalletError{
		Wallet:    plan.Wallet,
		Requested: plan.Living.Add(plan.Saving).Add(plan.BackUp),
		Shortfall: plan.Remainder.Neg(),
	}
}

// committer appends one commit step to a log, treating a duplicate key as
// an already-confirmed step.
type committer struct {
	w       *RolloverWorkflow
	ctx     context.Context
	log     *slog.Logger
	pid     string
	now     time.Time
	resumed *bool
}

func (c committer) wallet(key string, amount Money, note string) error {
	err := c.w.Store.AppendWallet(c.ctx, WalletLogEntry{
		ID:             uuid.NewString(),
		CreatedAt:      c.now,
		Type:           WalletAllocateOut,
		Amount:         amount,
		Note:           note,
		Ref:            c.pid,
		IdempotencyKey: key,
	})
	return c.check(err, "wallet", key)
}

func (c committer) ledger(e LedgerEntry) error {
	e.ID = uuid.NewString()
	e.CreatedAt = c.now
	e.EffectiveDate = DateOf(c.now)
	e.PeriodID = c.pid
	e.Ref = c.pid
	return c.check(c.w.Store.AppendEntry(c.ctx, e), "ledger", e.IdempotencyKey)
}

func (c committer) check(err error, stream, key string) error {
	switch {
	case err == nil:
		c.log.Debug("commit step appended", "stream", stream, "key", key)
		return nil
	case errors.Is(err, ErrDuplicateIdempotencyKey):
		*c.resumed = true
		c.log.Debug("commit step already confirmed", "stream", stream, "key", key)
		return nil
	}
	return fmt.Errorf("commit: %s %s: %w", stream, key, err)
}
