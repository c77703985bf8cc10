/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the budget domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Every amount goes out as AmountDTO: the exact decimal string plus a
  display string formatted for the configured currency ("NT$937.50").
  Requests accept amounts as JSON numbers or decimal strings.

DATES:
  "YYYY-MM-DD" calendar days, timestamps RFC 3339.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/envelope-ledger/budget"
)

// =============================================================================
// SHARED
// =============================================================================

// AmountDTO is an amount in major units.
type AmountDTO struct {
	Value   string `json:"value"`
	Display string `json:"display"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// presenter turns domain values into DTOs for one currency.
type presenter struct {
	currency string
}

func (p presenter) amount(m budget.Money) AmountDTO {
	return AmountDTO{Value: m.String(), Display: m.Display(p.currency)}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// =============================================================================
// BALANCES
// =============================================================================

type BalanceDTO struct {
	Account budget.Account `json:"account"`
	Balance AmountDTO      `json:"balance"`
}

type CategoryProgressDTO struct {
	CategoryID string          `json:"category_id"`
	Name       string          `json:"name"`
	Budget     AmountDTO       `json:"budget"`
	Spent      AmountDTO       `json:"spent"`
	Remaining  AmountDTO       `json:"remaining"`
	Ratio      decimal.Decimal `json:"ratio"`
}

type GoalProgressDTO struct {
	Goal    GoalDTO         `json:"goal"`
	Balance AmountDTO       `json:"balance"`
	Ratio   decimal.Decimal `json:"ratio"`
}

type SummaryDTO struct {
	Today    string     `json:"today"`
	Period   *PeriodDTO `json:"period,omitempty"`
	DaysLeft int        `json:"days_left"`
	Overdue  bool       `json:"overdue"`

	LivingBudget    AmountDTO `json:"living_budget"`
	LivingSpent     AmountDTO `json:"living_spent"`
	LivingRemaining AmountDTO `json:"living_remaining"`
	DailyAvailable  AmountDTO `json:"daily_available"`

	Wallet   AmountDTO `json:"wallet"`
	Saving   AmountDTO `json:"saving"`
	BackUp   AmountDTO `json:"back_up"`
	FreeFund AmountDTO `json:"free_fund"`

	Categories []CategoryProgressDTO `json:"categories"`
	Goals      []GoalProgressDTO     `json:"goals"`
}

func (p presenter) summary(s budget.Summary) SummaryDTO {
	dto := SummaryDTO{
		Today:           s.Today.String(),
		DaysLeft:        s.DaysLeft,
		Overdue:         s.Overdue,
		LivingBudget:    p.amount(s.LivingBudget),
		LivingSpent:     p.amount(s.LivingSpent),
		LivingRemaining: p.amount(s.LivingRemaining),
		DailyAvailable:  p.amount(s.DailyAvailable),
		Wallet:          p.amount(s.Wallet),
		Saving:          p.amount(s.Saving),
		BackUp:          p.amount(s.BackUp),
		FreeFund:        p.amount(s.FreeFund),
		Categories:      []CategoryProgressDTO{},
		Goals:           []GoalProgressDTO{},
	}
	if s.Period != nil {
		period := p.period(*s.Period, s.Today)
		dto.Period = &period
	}
	for _, c := range s.Categories {
		dto.Categories = append(dto.Categories, CategoryProgressDTO{
			CategoryID: c.Category.ID,
			Name:       c.Category.Name,
			Budget:     p.amount(c.Category.Budget),
			Spent:      p.amount(c.Spent),
			Remaining:  p.amount(c.Remaining),
			Ratio:      c.Ratio,
		})
	}
	for _, g := range s.Goals {
		dto.Goals = append(dto.Goals, GoalProgressDTO{
			Goal:    p.goal(g.Goal),
			Balance: p.amount(g.Balance),
			Ratio:   g.Ratio,
		})
	}
	return dto
}

// =============================================================================
// PERIODS + SETTLEMENTS
// =============================================================================

type PeriodDTO struct {
	ID           string              `json:"id"`
	StartDate    string              `json:"start_date"`
	EndDate      string              `json:"end_date"`
	Status       budget.PeriodStatus `json:"status"`
	LivingBudget AmountDTO           `json:"living_budget"`
	DaysLeft     int                 `json:"days_left"`
	Overdue      bool                `json:"overdue"`
	CreatedAt    string              `json:"created_at"`
	SettledAt    string              `json:"settled_at,omitempty"`
}

type CreatePeriodRequest struct {
	StartDate    budget.Date  `json:"start_date"`
	EndDate      budget.Date  `json:"end_date"`
	LivingBudget budget.Money `json:"living_budget"`
}

type PeriodBoundsDTO struct {
	StartDate  string            `json:"start_date"`
	EndDate    string            `json:"end_date"`
	QuickPicks map[string]string `json:"quick_picks"`
}

func (p presenter) period(period budget.Period, today budget.Date) PeriodDTO {
	dto := PeriodDTO{
		ID:           period.ID,
		StartDate:    period.StartDate.String(),
		EndDate:      period.EndDate.String(),
		Status:       period.Status,
		LivingBudget: p.amount(period.LivingBudget),
		CreatedAt:    formatTime(period.CreatedAt),
		SettledAt:    formatTimePtr(period.SettledAt),
	}
	if period.Status == budget.PeriodActive {
		dto.DaysLeft = period.DaysLeftInclusive(today)
		dto.Overdue = period.IsOverdue(today)
	}
	return dto
}

type SettlementRecordDTO struct {
	ID            string         `json:"id"`
	PeriodID      string         `json:"period_id"`
	PlannedBudget AmountDTO      `json:"planned_budget"`
	ActualExpense AmountDTO      `json:"actual_expense"`
	NetResult     AmountDTO      `json:"net_result"`
	ImpactAccount budget.Account `json:"impact_account"`
	SettledAt     string         `json:"settled_at"`
}

type CategorySpendDTO struct {
	CategoryID string    `json:"category_id"`
	Name       string    `json:"name"`
	Budget     AmountDTO `json:"budget"`
	Spent      AmountDTO `json:"spent"`
}

type SettlementPreviewDTO struct {
	Period        PeriodDTO          `json:"period"`
	Categories    []CategorySpendDTO `json:"categories"`
	Actual        AmountDTO          `json:"actual"`
	Net           AmountDTO          `json:"net"`
	ImpactAccount budget.Account     `json:"impact_account"`
	Early         bool               `json:"early"`
}

type SettlementResultDTO struct {
	Record  SettlementRecordDTO `json:"record"`
	Entry   *LedgerEntryDTO     `json:"entry,omitempty"`
	Early   bool                `json:"early"`
	Resumed bool                `json:"resumed"`
}

func (p presenter) settlementRecord(r budget.SettlementRecord) SettlementRecordDTO {
	return SettlementRecordDTO{
		ID:            r.ID,
		PeriodID:      r.PeriodID,
		PlannedBudget: p.amount(r.PlannedBudget),
		ActualExpense: p.amount(r.ActualExpense),
		NetResult:     p.amount(r.NetResult),
		ImpactAccount: r.ImpactAccount,
		SettledAt:     formatTime(r.SettledAt),
	}
}

func (p presenter) settlementPreview(s budget.SettlementPreview, today budget.Date) SettlementPreviewDTO {
	dto := SettlementPreviewDTO{
		Period:        p.period(s.Period, today),
		Categories:    make([]CategorySpendDTO, 0, len(s.Categories)),
		Actual:        p.amount(s.Actual),
		Net:           p.amount(s.Net),
		ImpactAccount: s.ImpactAccount,
		Early:         s.Early,
	}
	for _, c := range s.Categories {
		dto.Categories = append(dto.Categories, CategorySpendDTO{
			CategoryID: c.CategoryID,
			Name:       c.Name,
			Budget:     p.amount(c.Budget),
			Spent:      p.amount(c.Spent),
		})
	}
	return dto
}

func (p presenter) settlementResult(r *budget.SettlementResult) *SettlementResultDTO {
	if r == nil {
		return nil
	}
	dto := &SettlementResultDTO{
		Record:  p.settlementRecord(r.Record),
		Early:   r.Early,
		Resumed: r.Resumed,
	}
	if r.Entry != nil {
		e := p.entry(*r.Entry)
		dto.Entry = &e
	}
	return dto
}

// =============================================================================
// LOG ENTRIES
// =============================================================================

type LedgerEntryDTO struct {
	ID            string           `json:"id"`
	CreatedAt     string           `json:"created_at"`
	EffectiveDate string           `json:"effective_date"`
	Type          budget.EntryType `json:"type"`
	Amount        AmountDTO        `json:"amount"`
	Account       budget.Account   `json:"account"`
	TargetAccount budget.Account   `json:"target_account,omitempty"`
	CategoryID    string           `json:"category_id,omitempty"`
	SubTagID      string           `json:"sub_tag_id,omitempty"`
	GoalID        string           `json:"goal_id,omitempty"`
	TargetGoalID  string           `json:"target_goal_id,omitempty"`
	PeriodID      string           `json:"period_id,omitempty"`
	Item          string           `json:"item,omitempty"`
	Note          string           `json:"note,omitempty"`
	Ref           string           `json:"ref,omitempty"`
	BankID        string           `json:"bank_id,omitempty"`
	PaymentMethod string           `json:"payment_method,omitempty"`
}

func (p presenter) entry(e budget.LedgerEntry) LedgerEntryDTO {
	return LedgerEntryDTO{
		ID:            e.ID,
		CreatedAt:     formatTime(e.CreatedAt),
		EffectiveDate: e.EffectiveDate.String(),
		Type:          e.Type,
		Amount:        p.amount(e.Amount),
		Account:       e.Account,
		TargetAccount: e.TargetAccount,
		CategoryID:    e.CategoryID,
		SubTagID:      e.SubTagID,
		GoalID:        e.GoalID,
		TargetGoalID:  e.TargetGoalID,
		PeriodID:      e.PeriodID,
		Item:          e.Item,
		Note:          e.Note,
		Ref:           e.Ref,
		BankID:        e.BankID,
		PaymentMethod: e.PaymentMethod,
	}
}

type WalletEntryDTO struct {
	ID        string                 `json:"id"`
	CreatedAt string                 `json:"created_at"`
	Type      budget.WalletEntryType `json:"type"`
	Amount    AmountDTO              `json:"amount"`
	BankID    string                 `json:"bank_id,omitempty"`
	Note      string                 `json:"note,omitempty"`
	Ref       string                 `json:"ref,omitempty"`
}

func (p presenter) walletEntry(e budget.WalletLogEntry) WalletEntryDTO {
	return WalletEntryDTO{
		ID:        e.ID,
		CreatedAt: formatTime(e.CreatedAt),
		Type:      e.Type,
		Amount:    p.amount(e.Amount),
		BankID:    e.BankID,
		Note:      e.Note,
		Ref:       e.Ref,
	}
}

type ExpenseRequest struct {
	Date          budget.Date  `json:"date"`
	CategoryID    string       `json:"category_id"`
	SubTagID      string       `json:"sub_tag_id"`
	Item          string       `json:"item"`
	Amount        budget.Money `json:"amount"`
	Note          string       `json:"note"`
	BankID        string       `json:"bank_id"`
	PaymentMethod string       `json:"payment_method"`
}

type TransferRequest struct {
	From       budget.Account `json:"from"`
	To         budget.Account `json:"to"`
	FromGoalID string         `json:"from_goal_id"`
	ToGoalID   string         `json:"to_goal_id"`
	Amount     budget.Money   `json:"amount"`
	Note       string         `json:"note"`
}

type WithdrawalRequest struct {
	GoalID string       `json:"goal_id"`
	Amount budget.Money `json:"amount"`
	Item   string       `json:"item"`
	Note   string       `json:"note"`
}

type IncomeRequest struct {
	Amount budget.Money `json:"amount"`
	BankID string       `json:"bank_id"`
	Note   string       `json:"note"`
}

type AdjustmentRequest struct {
	Amount budget.Money `json:"amount"`
	Note   string       `json:"note"`
}

// =============================================================================
// CATALOG
// =============================================================================

type PaymentDefaultsDTO struct {
	BankID        string `json:"bank_id,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

func (d PaymentDefaultsDTO) domain() budget.PaymentDefaults {
	return budget.PaymentDefaults{BankID: d.BankID, PaymentMethod: d.PaymentMethod}
}

func defaultsDTO(d budget.PaymentDefaults) PaymentDefaultsDTO {
	return PaymentDefaultsDTO{BankID: d.BankID, PaymentMethod: d.PaymentMethod}
}

type CategoryDTO struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Budget        AmountDTO          `json:"budget"`
	Status        budget.Status      `json:"status"`
	IsQuickAccess bool               `json:"is_quick_access"`
	Defaults      PaymentDefaultsDTO `json:"defaults"`
}

type CreateCategoryRequest struct {
	Name          string             `json:"name"`
	Budget        budget.Money       `json:"budget"`
	IsQuickAccess bool               `json:"is_quick_access"`
	Defaults      PaymentDefaultsDTO `json:"defaults"`
}

type SetBudgetRequest struct {
	Budget budget.Money `json:"budget"`
}

func (p presenter) category(c budget.Category) CategoryDTO {
	return CategoryDTO{
		ID:            c.ID,
		Name:          c.Name,
		Budget:        p.amount(c.Budget),
		Status:        c.Status,
		IsQuickAccess: c.IsQuickAccess,
		Defaults:      defaultsDTO(c.Defaults),
	}
}

type SubTagDTO struct {
	ID         string             `json:"id"`
	CategoryID string             `json:"category_id"`
	Name       string             `json:"name"`
	Defaults   PaymentDefaultsDTO `json:"defaults"`
}

type CreateSubTagRequest struct {
	Name     string             `json:"name"`
	Defaults PaymentDefaultsDTO `json:"defaults"`
}

func subTagDTO(t budget.SubTag) SubTagDTO {
	return SubTagDTO{ID: t.ID, CategoryID: t.CategoryID, Name: t.Name, Defaults: defaultsDTO(t.Defaults)}
}

type GoalDTO struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	HasTarget    bool               `json:"has_target"`
	TargetAmount AmountDTO          `json:"target_amount"`
	Deadline     string             `json:"deadline,omitempty"`
	Status       budget.GoalStatus  `json:"status"`
	CreatedAt    string             `json:"created_at"`
	CompletedAt  string             `json:"completed_at,omitempty"`
	Defaults     PaymentDefaultsDTO `json:"defaults"`
}

type CreateGoalRequest struct {
	Name         string             `json:"name"`
	HasTarget    bool               `json:"has_target"`
	TargetAmount budget.Money       `json:"target_amount"`
	Deadline     *budget.Date       `json:"deadline"`
	Defaults     PaymentDefaultsDTO `json:"defaults"`
}

func (p presenter) goal(g budget.SavingGoal) GoalDTO {
	dto := GoalDTO{
		ID:           g.ID,
		Name:         g.Name,
		HasTarget:    g.HasTarget,
		TargetAmount: p.amount(g.TargetAmount),
		Status:       g.Status,
		CreatedAt:    formatTime(g.CreatedAt),
		CompletedAt:  formatTimePtr(g.CompletedAt),
		Defaults:     defaultsDTO(g.Defaults),
	}
	if g.Deadline != nil {
		dto.Deadline = g.Deadline.String()
	}
	return dto
}

type BankDTO struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Note   string        `json:"note,omitempty"`
	Status budget.Status `json:"status"`
}

type CreateBankRequest struct {
	Name string `json:"name"`
	Note string `json:"note"`
}

type SetStatusRequest struct {
	Status budget.Status `json:"status"`
}

func bankDTO(b budget.BankAccount) BankDTO {
	return BankDTO{ID: b.ID, Name: b.Name, Note: b.Note, Status: b.Status}
}

// =============================================================================
// ROLLOVER
// =============================================================================

type RolloverSessionDTO struct {
	ID               string               `json:"id"`
	Stage            budget.RolloverStage `json:"stage"`
	StartedAt        string               `json:"started_at"`
	PreviousPeriodID string               `json:"previous_period_id,omitempty"`
	SettleSkipped    bool                 `json:"settle_skipped"`
	StartDate        string               `json:"start_date,omitempty"`
	EndDate          string               `json:"end_date,omitempty"`
	CategoryBudgets  []CategoryBudgetDTO  `json:"category_budgets"`
	LivingBudget     AmountDTO            `json:"living_budget"`
	GoalAllocations  []GoalAllocationDTO  `json:"goal_allocations"`
	BackUpAllocation AmountDTO            `json:"back_up_allocation"`
	PendingPeriodID  string               `json:"pending_period_id,omitempty"`
}

type CategoryBudgetDTO struct {
	CategoryID string    `json:"category_id"`
	Budget     AmountDTO `json:"budget"`
}

type GoalAllocationDTO struct {
	GoalID string    `json:"goal_id"`
	Amount AmountDTO `json:"amount"`
}

func (p presenter) session(s budget.RolloverSession) RolloverSessionDTO {
	dto := RolloverSessionDTO{
		ID:               s.ID,
		Stage:            s.Stage,
		StartedAt:        formatTime(s.StartedAt),
		PreviousPeriodID: s.PreviousPeriodID,
		SettleSkipped:    s.SettleSkipped,
		LivingBudget:     p.amount(s.LivingBudget),
		BackUpAllocation: p.amount(s.BackUpAllocation),
		PendingPeriodID:  s.PendingPeriodID,
		CategoryBudgets:  make([]CategoryBudgetDTO, 0, len(s.CategoryBudgets)),
		GoalAllocations:  make([]GoalAllocationDTO, 0, len(s.GoalAllocations)),
	}
	if !s.StartDate.IsZero() {
		dto.StartDate = s.StartDate.String()
	}
	if !s.EndDate.IsZero() {
		dto.EndDate = s.EndDate.String()
	}
	for _, b := range s.CategoryBudgets {
		dto.CategoryBudgets = append(dto.CategoryBudgets, CategoryBudgetDTO{CategoryID: b.CategoryID, Budget: p.amount(b.Budget)})
	}
	for _, a := range s.GoalAllocations {
		dto.GoalAllocations = append(dto.GoalAllocations, GoalAllocationDTO{GoalID: a.GoalID, Amount: p.amount(a.Amount)})
	}
	return dto
}

type SettlePreviousRequest struct {
	AllowEarly bool `json:"allow_early"`
}

type SettlePreviousResponse struct {
	Session    RolloverSessionDTO   `json:"session"`
	Settlement *SettlementResultDTO `json:"settlement,omitempty"`
}

type DefinePeriodRequest struct {
	StartDate budget.Date `json:"start_date"`
	EndDate   budget.Date `json:"end_date"`
	// QuickPickDays, when set, derives EndDate from StartDate.
	QuickPickDays int `json:"quick_pick_days"`
}

type SetBudgetsRequest struct {
	Budgets []budget.CategoryBudget `json:"budgets"`
}

type AllocateRequest struct {
	Goals  []budget.GoalAllocation `json:"goals"`
	BackUp budget.Money            `json:"back_up"`
}

type AllocationPlanDTO struct {
	Wallet    AmountDTO `json:"wallet"`
	Living    AmountDTO `json:"living"`
	Saving    AmountDTO `json:"saving"`
	BackUp    AmountDTO `json:"back_up"`
	Remainder AmountDTO `json:"remainder"`
	CanCommit bool      `json:"can_commit"`
}

func (p presenter) plan(a budget.AllocationPlan) AllocationPlanDTO {
	return AllocationPlanDTO{
		Wallet:    p.amount(a.Wallet),
		Living:    p.amount(a.Living),
		Saving:    p.amount(a.Saving),
		BackUp:    p.amount(a.BackUp),
		Remainder: p.amount(a.Remainder),
		CanCommit: a.CanCommit(),
	}
}

type AllocateResponse struct {
	Session RolloverSessionDTO `json:"session"`
	Plan    AllocationPlanDTO  `json:"plan"`
}

type CommitResponse struct {
	Period  PeriodDTO `json:"period"`
	Swept   AmountDTO `json:"swept"`
	Resumed bool      `json:"resumed"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}
