/*
Package budget provides the envelope budgeting engine.

PURPOSE:
  Money is split across mental accounts (Living, Saving, Back_Up,
  Free_Fund, Wallet). No account balance is ever stored. Every balance is
  derived on read from two append-only logs:

    Ledger Log: category/account-facing entries (Expense, Saving_In, ...)
    Wallet Log: cash-in-hand movements (Income, Allocate_Out, ...)

KEY CONCEPTS IN THIS FILE (types.go):
  - LedgerEntry / WalletLogEntry: immutable log records
  - Period: a budget cycle with a Living allowance (Active -> Settled)
  - Category, SubTag, SavingGoal, BankAccount: mutable catalog entities
  - SettlementRecord: write-once result of closing a period

DESIGN PRINCIPLES:
  1. Immutability: log records are never modified; corrections are new
     compensating entries (Adjustment, Transfer)
  2. Precision: Money is decimal.Decimal
  3. Replayable: balances are pure sums over the logs (see balance.go)
  4. Resumable: multi-step writes carry idempotency keys (see settlement.go,
     rollover.go)

SEE ALSO:
  - balance.go: named balance derivations
  - period.go: period lifecycle
  - settlement.go: period close
  - rollover.go: four-stage rollover workflow
  - store.go: persistence contracts
*/
package budget

import "time"

// =============================================================================
// ENUMS
// =============================================================================

// Account is a mental account.
type Account string

const (
	AccountLiving   Account = "Living"
	AccountSaving   Account = "Saving"
	AccountBackUp   Account = "Back_Up"
	AccountFreeFund Account = "Free_Fund"
	AccountWallet   Account = "Wallet"

	// AccountNone marks a settlement with no compensating entry.
	AccountNone Account = ""
)

// Valid reports whether a is one of the five mental accounts.
func (a Account) Valid() bool {
	switch a {
	case AccountLiving, AccountSaving, AccountBackUp, AccountFreeFund, AccountWallet:
		return true
	}
	return false
}

// EntryType classifies a Ledger Log entry.
type EntryType string

const (
	EntryExpense       EntryType = "Expense"
	EntrySavingIn      EntryType = "Saving_In"
	EntrySavingOut     EntryType = "Saving_Out"
	EntrySettlementIn  EntryType = "Settlement_In"
	EntrySettlementOut EntryType = "Settlement_Out"
	EntryTransfer      EntryType = "Transfer"
)

// WalletEntryType classifies a Wallet Log entry.
type WalletEntryType string

const (
	WalletIncome      WalletEntryType = "Income"
	WalletAllocateOut WalletEntryType = "Allocate_Out"
	WalletTransferIn  WalletEntryType = "Transfer_In"
	WalletAdjustment  WalletEntryType = "Adjustment"
)

type PeriodStatus string

const (
	PeriodActive  PeriodStatus = "Active"
	PeriodSettled PeriodStatus = "Settled"
)

// Status is the Active/Inactive flag of categories and bank accounts.
type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

type GoalStatus string

const (
	GoalActive    GoalStatus = "Active"
	GoalCompleted GoalStatus = "Completed"
)

// =============================================================================
// LOG RECORDS - Append-only
// =============================================================================

// LedgerEntry is one immutable Ledger Log record.
//
// Account is the source account. TargetAccount is set only for Transfer.
// IdempotencyKey, when set, must be unique across the Ledger Log.
type LedgerEntry struct {
	ID             string
	CreatedAt      time.Time
	EffectiveDate  Date
	Type           EntryType
	Amount         Money
	Account        Account
	TargetAccount  Account
	CategoryID     string
	SubTagID       string
	GoalID         string
	TargetGoalID   string
	PeriodID       string
	Item           string
	Note           string
	Ref            string
	BankID         string
	PaymentMethod  string
	IdempotencyKey string
}

// Validate checks the record invariants: amount > 0, and a Transfer
// moves between two different accounts (or two different goals).
func (e LedgerEntry) Validate() error {
	if !e.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	if !e.Account.Valid() {
		return &ValidationError{Field: "account", Reason: "unknown account " + string(e.Account)}
	}
	if e.Type == EntryTransfer {
		if !e.TargetAccount.Valid() {
			return &ValidationError{Field: "target_account", Reason: "transfer needs a target account"}
		}
		if e.Account == e.TargetAccount && !(e.Account == AccountSaving && e.GoalID != e.TargetGoalID) {
			return &ValidationError{Field: "target_account", Reason: "cannot transfer to the same account"}
		}
	}
	return nil
}

// WalletLogEntry is one immutable Wallet Log record. Amount is signed
// for Adjustment and non-negative otherwise.
type WalletLogEntry struct {
	ID             string
	CreatedAt      time.Time
	Type           WalletEntryType
	Amount         Money
	BankID         string
	Note           string
	Ref            string
	IdempotencyKey string
}

// Validate checks the record invariants.
func (e WalletLogEntry) Validate() error {
	if e.Type == WalletAdjustment {
		if e.Amount.IsZero() {
			return &ValidationError{Field: "amount", Reason: "adjustment must be non-zero"}
		}
		return nil
	}
	if !e.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	return nil
}

// =============================================================================
// PERIOD
// =============================================================================

// Period is a budget cycle. At most one Period is Active at a time;
// a Settled period never changes again.
type Period struct {
	ID           string
	StartDate    Date
	EndDate      Date
	Status       PeriodStatus
	LivingBudget Money
	CreatedAt    time.Time
	SettledAt    *time.Time
}

// Contains reports whether d falls within [StartDate, EndDate].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.StartDate) && d.BeforeOrEqual(p.EndDate)
}

// IsOverdue reports today > EndDate. Overdue is a readiness flag, not a
// status: an overdue period stays Active until settled.
func (p Period) IsOverdue(today Date) bool {
	return today.After(p.EndDate)
}

// DaysLeftInclusive is max((EndDate - today) + 1, 0). It is 1 on the final
// day and 0 the day after.
func (p Period) DaysLeftInclusive(today Date) int {
	n := DaysBetween(today, p.EndDate) + 1
	if n < 0 {
		return 0
	}
	return n
}

// Length is the number of days in the period, both ends included.
func (p Period) Length() int {
	return DaysBetween(p.StartDate, p.EndDate) + 1
}

// =============================================================================
// CATALOG ENTITIES - Mutable in exactly one field each
// =============================================================================

// PaymentDefaults prefill bank and payment method on new expenses.
type PaymentDefaults struct {
	BankID        string
	PaymentMethod string
}

func (d PaymentDefaults) isZero() bool { return d.BankID == "" && d.PaymentMethod == "" }

type Category struct {
	ID            string
	Name          string
	Budget        Money
	Status        Status
	IsQuickAccess bool
	Defaults      PaymentDefaults
}

// SubTag is a child of a Category. Its defaults override the parent's
// when present.
type SubTag struct {
	ID         string
	CategoryID string
	Name       string
	Defaults   PaymentDefaults
}

// SavingGoal is a goal (HasTarget) or an open-ended pool. Its balance is
// derived from the Ledger Log, never stored.
type SavingGoal struct {
	ID           string
	Name         string
	HasTarget    bool
	TargetAmount Money
	Deadline     *Date
	Status       GoalStatus
	CreatedAt    time.Time
	CompletedAt  *time.Time
	Defaults     PaymentDefaults
}

// IsPool reports whether g has no numeric target.
func (g SavingGoal) IsPool() bool { return !g.HasTarget }

type BankAccount struct {
	ID     string
	Name   string
	Note   string
	Status Status
}

// =============================================================================
// SETTLEMENT RECORD - Write-once, one per settled period
// =============================================================================

type SettlementRecord struct {
	ID            string
	PeriodID      string
	PlannedBudget Money
	ActualExpense Money
	NetResult     Money
	ImpactAccount Account
	SettledAt     time.Time
}
