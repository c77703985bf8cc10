/*
record.go - Day-to-day writes outside the rollover

PURPOSE:
  Expenses, income, wallet corrections, transfers between mental accounts
  and saving withdrawals. Every operation validates first and then appends;
  nothing here updates an existing record.

TRANSFERS:
  A transfer is one Ledger Log Transfer entry. When Wallet is one side, the
  cash movement is mirrored into the Wallet Log so the Wallet derivation,
  which reads only the Wallet Log, sees it:

    Wallet -> X   Transfer(Wallet->X)  + Allocate_Out
    X -> Wallet   Transfer(X->Wallet)  + Transfer_In

  Both records carry the same idempotency key, so a retried transfer with
  the caller's key writes each side once.
*/
package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// Recorder appends day-to-day entries.
type Recorder struct {
	Store   Store
	Catalog *Catalog
	Clock   Clock
	Logger  *slog.Logger
}

// =============================================================================
// EXPENSE
// =============================================================================

type ExpenseInput struct {
	Date           Date // defaults to today
	CategoryID     string
	SubTagID       string
	Item           string
	Amount         Money
	Note           string
	BankID         string // defaults from sub-tag, then category
	PaymentMethod  string // defaults from sub-tag, then category
	IdempotencyKey string
}

// RecordExpense books a Living expense into the current period.
func (r *Recorder) RecordExpense(ctx context.Context, in ExpenseInput) (LedgerEntry, error) {
	item := strings.TrimSpace(in.Item)
	if item == "" {
		return LedgerEntry{}, &ValidationError{Field: "item", Reason: "is required"}
	}
	if !in.Amount.IsPositive() {
		return LedgerEntry{}, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}

	periods, err := r.Store.Periods(ctx)
	if err != nil {
		return LedgerEntry{}, err
	}
	p := currentPeriod(periods)
	if p == nil {
		return LedgerEntry{}, ErrNoActivePeriod
	}

	cat, err := r.Catalog.Category(ctx, in.CategoryID)
	if err != nil {
		return LedgerEntry{}, err
	}
	if cat.Status != StatusActive {
		return LedgerEntry{}, fmt.Errorf("category %s: %w", cat.Name, ErrInactiveRecord)
	}
	defaults, err := r.Catalog.ResolvePaymentDefaults(ctx, cat.ID, in.SubTagID)
	if err != nil {
		return LedgerEntry{}, err
	}

	now := r.Clock.now()
	e := LedgerEntry{
		ID:             uuid.NewString(),
		CreatedAt:      now,
		EffectiveDate:  in.Date,
		Type:           EntryExpense,
		Amount:         in.Amount,
		Account:        AccountLiving,
		CategoryID:     cat.ID,
		SubTagID:       in.SubTagID,
		PeriodID:       p.ID,
		Item:           item,
		Note:           in.Note,
		BankID:         firstNonEmpty(in.BankID, defaults.BankID),
		PaymentMethod:  firstNonEmpty(in.PaymentMethod, defaults.PaymentMethod),
		IdempotencyKey: in.IdempotencyKey,
	}
	if e.EffectiveDate.IsZero() {
		e.EffectiveDate = DateOf(now)
	}
	if err := r.appendEntry(ctx, e); err != nil {
		return LedgerEntry{}, err
	}
	logger(r.Logger).Debug("expense recorded", "entry_id", e.ID, "category", cat.Name, "amount", e.Amount.String())
	return e, nil
}

// =============================================================================
// WALLET
// =============================================================================

type IncomeInput struct {
	Amount         Money
	BankID         string
	Note           string
	IdempotencyKey string
}

// RecordIncome adds cash to the Wallet.
func (r *Recorder) RecordIncome(ctx context.Context, in IncomeInput) (WalletLogEntry, error) {
	e := WalletLogEntry{
		ID:             uuid.NewString(),
		CreatedAt:      r.Clock.now(),
		Type:           WalletIncome,
		Amount:         in.Amount,
		BankID:         in.BankID,
		Note:           in.Note,
		IdempotencyKey: in.IdempotencyKey,
	}
	if err := r.appendWallet(ctx, e); err != nil {
		return WalletLogEntry{}, err
	}
	logger(r.Logger).Info("income recorded", "entry_id", e.ID, "amount", e.Amount.String())
	return e, nil
}

// AdjustWallet appends a signed correction. A note is required so the
// correction explains itself in the log.
func (r *Recorder) AdjustWallet(ctx context.Context, amount Money, note, idempotencyKey string) (WalletLogEntry, error) {
	if strings.TrimSpace(note) == "" {
		return WalletLogEntry{}, &ValidationError{Field: "note", Reason: "is required for an adjustment"}
	}
	e := WalletLogEntry{
		ID:             uuid.NewString(),
		CreatedAt:      r.Clock.now(),
		Type:           WalletAdjustment,
		Amount:         amount,
		Note:           note,
		IdempotencyKey: idempotencyKey,
	}
	if err := r.appendWallet(ctx, e); err != nil {
		return WalletLogEntry{}, err
	}
	logger(r.Logger).Warn("wallet adjusted", "entry_id", e.ID, "amount", e.Amount.String(), "note", note)
	return e, nil
}

// =============================================================================
// TRANSFER
// =============================================================================

type TransferInput struct {
	From           Account
	To             Account
	FromGoalID     string // required when From is Saving
	ToGoalID       string // required when To is Saving
	Amount         Money
	Note           string
	IdempotencyKey string
}

// Transfer moves money between two mental accounts. Living is not a
// transfer endpoint: its balance is a period allowance, not a pot.
func (r *Recorder) Transfer(ctx context.Context, in TransferInput) (LedgerEntry, error) {
	for _, side := range []struct {
		field string
		acc   Account
		goal  string
	}{{"from", in.From, in.FromGoalID}, {"to", in.To, in.ToGoalID}} {
		if side.acc == AccountLiving {
			return LedgerEntry{}, &ValidationError{Field: side.field, Reason: "Living cannot be a transfer endpoint"}
		}
		if side.acc == AccountSaving {
			if side.goal == "" {
				return LedgerEntry{}, &ValidationError{Field: side.field + "_goal_id", Reason: "is required for Saving"}
			}
			if _, err := r.Catalog.Goal(ctx, side.goal); err != nil {
				return LedgerEntry{}, err
			}
		}
	}

	key := in.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	now := r.Clock.now()
	e := LedgerEntry{
		ID:             uuid.NewString(),
		CreatedAt:      now,
		EffectiveDate:  DateOf(now),
		Type:           EntryTransfer,
		Amount:         in.Amount,
		Account:        in.From,
		TargetAccount:  in.To,
		Note:           in.Note,
		IdempotencyKey: key,
	}
	if in.From == AccountSaving {
		e.GoalID = in.FromGoalID
	}
	if in.To == AccountSaving {
		e.TargetGoalID = in.ToGoalID
	}
	if err := e.Validate(); err != nil {
		return LedgerEntry{}, err
	}

	switch err := r.Store.AppendEntry(ctx, e); {
	case errors.Is(err, ErrDuplicateIdempotencyKey):
		logger(r.Logger).Warn("transfer already recorded, completing wallet leg", "key", key)
	case err != nil:
		return LedgerEntry{}, fmt.Errorf("transfer: %w", err)
	}

	var mirror WalletEntryType
	switch {
	case in.From == AccountWallet:
		mirror = WalletAllocateOut
	case in.To == AccountWallet:
		mirror = WalletTransferIn
	}
	if mirror != "" {
		w := WalletLogEntry{
			ID:             uuid.NewString(),
			CreatedAt:      now,
			Type:           mirror,
			Amount:         in.Amount,
			Note:           in.Note,
			Ref:            e.ID,
			IdempotencyKey: key,
		}
		if err := r.Store.AppendWallet(ctx, w); err != nil && !errors.Is(err, ErrDuplicateIdempotencyKey) {
			return LedgerEntry{}, fmt.Errorf("transfer: wallet leg: %w", err)
		}
	}

	logger(r.Logger).Info("transfer recorded", "entry_id", e.ID, "from", in.From, "to", in.To, "amount", e.Amount.String())
	return e, nil
}

// =============================================================================
// SAVING WITHDRAWAL
// =============================================================================

type WithdrawalInput struct {
	GoalID         string
	Amount         Money
	Item           string
	Note           string
	IdempotencyKey string
}

// WithdrawSaving spends money out of a goal or pool.
func (r *Recorder) WithdrawSaving(ctx context.Context, in WithdrawalInput) (LedgerEntry, error) {
	g, err := r.Catalog.Goal(ctx, in.GoalID)
	if err != nil {
		return LedgerEntry{}, err
	}
	now := r.Clock.now()
	e := LedgerEntry{
		ID:             uuid.NewString(),
		CreatedAt:      now,
		EffectiveDate:  DateOf(now),
		Type:           EntrySavingOut,
		Amount:         in.Amount,
		Account:        AccountSaving,
		GoalID:         g.ID,
		Item:           in.Item,
		Note:           in.Note,
		BankID:         g.Defaults.BankID,
		PaymentMethod:  g.Defaults.PaymentMethod,
		IdempotencyKey: in.IdempotencyKey,
	}
	if err := r.appendEntry(ctx, e); err != nil {
		return LedgerEntry{}, err
	}
	logger(r.Logger).Info("saving withdrawn", "entry_id", e.ID, "goal", g.Name, "amount", e.Amount.String())
	return e, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// EntryFilter narrows ListEntries. Zero fields match everything.
type EntryFilter struct {
	PeriodID   string
	Account    Account
	Type       EntryType
	CategoryID string
	GoalID     string
}

func (f EntryFilter) match(e LedgerEntry) bool {
	switch {
	case f.PeriodID != "" && e.PeriodID != f.PeriodID:
		return false
	case f.Account != "" && e.Account != f.Account && e.TargetAccount != f.Account:
		return false
	case f.Type != "" && e.Type != f.Type:
		return false
	case f.CategoryID != "" && e.CategoryID != f.CategoryID:
		return false
	case f.GoalID != "" && e.GoalID != f.GoalID && e.TargetGoalID != f.GoalID:
		return false
	}
	return true
}

// ListEntries returns matching Ledger Log entries, newest first.
func (r *Recorder) ListEntries(ctx context.Context, f EntryFilter) ([]LedgerEntry, error) {
	all, err := r.Store.Entries(ctx)
	if err != nil {
		return nil, err
	}
	var out []LedgerEntry
	for i := len(all) - 1; i >= 0; i-- {
		if f.match(all[i]) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// ListWallet returns the Wallet Log, newest first.
func (r *Recorder) ListWallet(ctx context.Context) ([]WalletLogEntry, error) {
	all, err := r.Store.WalletEntries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]WalletLogEntry, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (r *Recorder) appendEntry(ctx context.Context, e LedgerEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if err := r.Store.AppendEntry(ctx, e); err != nil {
		return fmt.Errorf("append %s: %w", e.Type, err)
	}
	return nil
}

func (r *Recorder) appendWallet(ctx context.Context, e WalletLogEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if err := r.Store.AppendWallet(ctx, e); err != nil {
		return fmt.Errorf("append %s: %w", e.Type, err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
