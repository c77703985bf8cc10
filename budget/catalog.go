package budget

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// =============================================================================
// CATALOG - Categories, sub-tags, saving goals, bank accounts
// =============================================================================

// Catalog manages the mutable reference entities. Each entity has exactly
// one mutable field: Category.Budget, SavingGoal.Status, BankAccount.Status.
type Catalog struct {
	Store  CatalogStore
	Clock  Clock
	Logger *slog.Logger
}

type NewCategory struct {
	Name          string
	Budget        Money
	IsQuickAccess bool
	Defaults      PaymentDefaults
}

func (c *Catalog) AddCategory(ctx context.Context, in NewCategory) (Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Category{}, &ValidationError{Field: "name", Reason: "is required"}
	}
	if in.Budget.IsNegative() {
		return Category{}, &ValidationError{Field: "budget", Reason: "must not be negative"}
	}
	cat := Category{
		ID:            uuid.NewString(),
		Name:          name,
		Budget:        in.Budget,
		Status:        StatusActive,
		IsQuickAccess: in.IsQuickAccess,
		Defaults:      in.Defaults,
	}
	if err := c.Store.InsertCategory(ctx, cat); err != nil {
		return Category{}, fmt.Errorf("add category: %w", err)
	}
	logger(c.Logger).Debug("category added", "category_id", cat.ID, "name", cat.Name)
	return cat, nil
}

func (c *Catalog) AddSubTag(ctx context.Context, categoryID, name string, defaults PaymentDefaults) (SubTag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return SubTag{}, &ValidationError{Field: "name", Reason: "is required"}
	}
	if _, err := c.Category(ctx, categoryID); err != nil {
		return SubTag{}, err
	}
	tag := SubTag{ID: uuid.NewString(), CategoryID: categoryID, Name: name, Defaults: defaults}
	if err := c.Store.InsertSubTag(ctx, tag); err != nil {
		return SubTag{}, fmt.Errorf("add sub-tag: %w", err)
	}
	return tag, nil
}

type NewGoal struct {
	Name         string
	HasTarget    bool
	TargetAmount Money
	Deadline     *Date
	Defaults     PaymentDefaults
}

// AddGoal creates a goal (HasTarget) or a pool.
func (c *Catalog) AddGoal(ctx context.Context, in NewGoal) (SavingGoal, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return SavingGoal{}, &ValidationError{Field: "name", Reason: "is required"}
	}
	target := Zero
	if in.HasTarget {
		if !in.TargetAmount.IsPositive() {
			return SavingGoal{}, &ValidationError{Field: "target_amount", Reason: "must be greater than zero for a goal"}
		}
		target = in.TargetAmount
	}
	g := SavingGoal{
		ID:           uuid.NewString(),
		Name:         name,
		HasTarget:    in.HasTarget,
		TargetAmount: target,
		Deadline:     in.Deadline,
		Status:       GoalActive,
		CreatedAt:    c.Clock.now(),
		Defaults:     in.Defaults,
	}
	if err := c.Store.InsertGoal(ctx, g); err != nil {
		return SavingGoal{}, fmt.Errorf("add goal: %w", err)
	}
	logger(c.Logger).Debug("saving goal added", "goal_id", g.ID, "name", g.Name, "pool", g.IsPool())
	return g, nil
}

func (c *Catalog) AddBank(ctx context.Context, name, note string) (BankAccount, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return BankAccount{}, &ValidationError{Field: "name", Reason: "is required"}
	}
	b := BankAccount{ID: uuid.NewString(), Name: name, Note: note, Status: StatusActive}
	if err := c.Store.InsertBank(ctx, b); err != nil {
		return BankAccount{}, fmt.Errorf("add bank: %w", err)
	}
	return b, nil
}

// =============================================================================
// SINGLE-FIELD UPDATES
// =============================================================================

func (c *Catalog) SetCategoryBudget(ctx context.Context, id string, budget Money) (Category, error) {
	if budget.IsNegative() {
		return Category{}, &ValidationError{Field: "budget", Reason: "must not be negative"}
	}
	if err := c.Store.SetCategoryBudget(ctx, id, budget); err != nil {
		return Category{}, err
	}
	return c.Category(ctx, id)
}

func (c *Catalog) SetBankStatus(ctx context.Context, id string, status Status) (BankAccount, error) {
	if status != StatusActive && status != StatusInactive {
		return BankAccount{}, &ValidationError{Field: "status", Reason: "must be Active or Inactive"}
	}
	if err := c.Store.SetBankStatus(ctx, id, status); err != nil {
		return BankAccount{}, err
	}
	return c.Bank(ctx, id)
}

// CompleteGoal moves an Active goal to Completed. Its derived balance
// stays where it is.
func (c *Catalog) CompleteGoal(ctx context.Context, id string) (SavingGoal, error) {
	g, err := c.Goal(ctx, id)
	if err != nil {
		return SavingGoal{}, err
	}
	if g.Status == GoalCompleted {
		return SavingGoal{}, fmt.Errorf("goal %s: %w", g.Name, ErrInactiveRecord)
	}
	now := c.Clock.now()
	if err := c.Store.SetGoalStatus(ctx, id, GoalCompleted, &now); err != nil {
		return SavingGoal{}, err
	}
	g.Status, g.CompletedAt = GoalCompleted, &now
	logger(c.Logger).Info("saving goal completed", "goal_id", g.ID, "name", g.Name)
	return g, nil
}

// ResolvePaymentDefaults picks the sub-tag's defaults when it has any,
// else the category's.
func (c *Catalog) ResolvePaymentDefaults(ctx context.Context, categoryID, subTagID string) (PaymentDefaults, error) {
	cat, err := c.Category(ctx, categoryID)
	if err != nil {
		return PaymentDefaults{}, err
	}
	if subTagID == "" {
		return cat.Defaults, nil
	}
	tag, err := c.SubTag(ctx, subTagID)
	if err != nil {
		return PaymentDefaults{}, err
	}
	if tag.CategoryID != categoryID {
		return PaymentDefaults{}, &ValidationError{Field: "sub_tag_id", Reason: "does not belong to category " + cat.Name}
	}
	if tag.Defaults.isZero() {
		return cat.Defaults, nil
	}
	return tag.Defaults, nil
}

// =============================================================================
// LOOKUPS
// =============================================================================

func (c *Catalog) Categories(ctx context.Context) ([]Category, error) {
	return c.Store.Categories(ctx)
}

func (c *Catalog) Category(ctx context.Context, id string) (Category, error) {
	all, err := c.Store.Categories(ctx)
	if err != nil {
		return Category{}, err
	}
	for _, cat := range all {
		if cat.ID == id {
			return cat, nil
		}
	}
	return Category{}, fmt.Errorf("%s: %w", id, ErrCategoryNotFound)
}

// SubTags lists the sub-tags of categoryID, or all of them when empty.
func (c *Catalog) SubTags(ctx context.Context, categoryID string) ([]SubTag, error) {
	all, err := c.Store.SubTags(ctx)
	if err != nil {
		return nil, err
	}
	if categoryID == "" {
		return all, nil
	}
	var out []SubTag
	for _, t := range all {
		if t.CategoryID == categoryID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (c *Catalog) SubTag(ctx context.Context, id string) (SubTag, error) {
	all, err := c.Store.SubTags(ctx)
	if err != nil {
		return SubTag{}, err
	}
	for _, t := range all {
		if t.ID == id {
			return t, nil
		}
	}
	return SubTag{}, fmt.Errorf("%s: %w", id, ErrSubTagNotFound)
}

func (c *Catalog) Goals(ctx context.Context) ([]SavingGoal, error) {
	return c.Store.Goals(ctx)
}

func (c *Catalog) Goal(ctx context.Context, id string) (SavingGoal, error) {
	all, err := c.Store.Goals(ctx)
	if err != nil {
		return SavingGoal{}, err
	}
	for _, g := range all {
		if g.ID == id {
			return g, nil
		}
	}
	return SavingGoal{}, fmt.Errorf("%s: %w", id, ErrGoalNotFound)
}

func (c *Catalog) Banks(ctx context.Context) ([]BankAccount, error) {
	return c.Store.Banks(ctx)
}

func (c *Catalog) Bank(ctx context.Context, id string) (BankAccount, error) {
	all, err := c.Store.Banks(ctx)
	if err != nil {
		return BankAccount{}, err
	}
	for _, b := range all {
		if b.ID == id {
			return b, nil
		}
	}
	return BankAccount{}, fmt.Errorf("%s: %w", id, ErrBankNotFound)
}
