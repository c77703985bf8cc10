package budget

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// =============================================================================
// PERIOD MANAGER - Period lifecycle (Active -> Settled)
// =============================================================================

// PeriodManager owns period creation and lookup. "The current period" is
// always an explicit query over the Period collection, never cached state.
//
// CreatePeriod does not settle anything first. The Rollover Workflow
// settles the previous period before calling it, and the store rejects a
// second Active period with ErrActivePeriodExists.
type PeriodManager struct {
	Store  PeriodStore
	Clock  Clock
	Logger *slog.Logger
}

// CreatePeriodInput holds the fields of a new period.
type CreatePeriodInput struct {
	ID           string // optional; generated when empty
	StartDate    Date
	EndDate      Date
	LivingBudget Money
}

// Validate checks end > start and livingBudget >= 0.
func (in CreatePeriodInput) Validate() error {
	if in.StartDate.IsZero() {
		return &ValidationError{Field: "start_date", Reason: "is required"}
	}
	if in.EndDate.IsZero() {
		return &ValidationError{Field: "end_date", Reason: "is required"}
	}
	if !in.EndDate.After(in.StartDate) {
		return &ValidationError{Field: "end_date", Reason: "must be after start_date"}
	}
	if in.LivingBudget.IsNegative() {
		return &ValidationError{Field: "living_budget", Reason: "must not be negative"}
	}
	return nil
}

// CreatePeriod appends a new Active period.
func (pm *PeriodManager) CreatePeriod(ctx context.Context, in CreatePeriodInput) (Period, error) {
	if err := in.Validate(); err != nil {
		return Period{}, err
	}

	p := Period{
		ID:           in.ID,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		Status:       PeriodActive,
		LivingBudget: in.LivingBudget,
		CreatedAt:    pm.Clock.now(),
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	if err := pm.Store.InsertPeriod(ctx, p); err != nil {
		return Period{}, fmt.Errorf("create period: %w", err)
	}

	logger(pm.Logger).Info("period created",
		"period_id", p.ID, "start", p.StartDate.String(), "end", p.EndDate.String(),
		"living_budget", p.LivingBudget.String())
	return p, nil
}

// Current returns the most recently created Active period, or nil.
func (pm *PeriodManager) Current(ctx context.Context) (*Period, error) {
	periods, err := pm.Store.Periods(ctx)
	if err != nil {
		return nil, err
	}
	return currentPeriod(periods), nil
}

// Get returns one period by id.
func (pm *PeriodManager) Get(ctx context.Context, id string) (Period, error) {
	periods, err := pm.Store.Periods(ctx)
	if err != nil {
		return Period{}, err
	}
	p := findPeriod(periods, id)
	if p == nil {
		return Period{}, fmt.Errorf("%s: %w", id, ErrPeriodNotFound)
	}
	return *p, nil
}

// List returns all periods, newest first.
func (pm *PeriodManager) List(ctx context.Context) ([]Period, error) {
	periods, err := pm.Store.Periods(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Period, 0, len(periods))
	for i := len(periods) - 1; i >= 0; i-- {
		out = append(out, periods[i])
	}
	return out, nil
}

// IsOverdue reports whether p has passed its end date as of today.
func (pm *PeriodManager) IsOverdue(p Period) bool { return p.IsOverdue(pm.Clock.today()) }

// DaysLeftInclusive for p as of today.
func (pm *PeriodManager) DaysLeftInclusive(p Period) int { return p.DaysLeftInclusive(pm.Clock.today()) }

// =============================================================================
// PERIOD BOUNDS - Pay-day cycle and quick picks
// =============================================================================

// QuickPickDays are the offered period lengths.
var QuickPickDays = []int{7, 14, 30}

// QuickPickEnd returns start + days.
func QuickPickEnd(start Date, days int) Date {
	return start.AddDays(days)
}

// DefaultPeriodBounds returns the pay cycle containing today: it starts on
// payDay and ends the day before the next payDay. payDay is clamped to
// 1..28 so every month has it.
//
//	payDay=5, today=2024-01-20  ->  2024-01-05 .. 2024-02-04
//	payDay=5, today=2024-01-03  ->  2023-12-05 .. 2024-01-04
func DefaultPeriodBounds(payDay int, today Date) (start, end Date) {
	if payDay < 1 {
		payDay = 1
	}
	if payDay > 28 {
		payDay = 28
	}
	start = NewDate(today.Year(), today.Month(), payDay)
	if today.Day() < payDay {
		start = start.AddMonths(-1)
	}
	end = start.AddMonths(1).AddDays(-1)
	return start, end
}

// =============================================================================
// HELPERS
// =============================================================================

// currentPeriod picks the most recently created Active period.
func currentPeriod(periods []Period) *Period {
	for i := len(periods) - 1; i >= 0; i-- {
		if periods[i].Status == PeriodActive {
			p := periods[i]
			return &p
		}
	}
	return nil
}

func findPeriod(periods []Period, id string) *Period {
	for i := range periods {
		if periods[i].ID == id {
			p := periods[i]
			return &p
		}
	}
	return nil
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
