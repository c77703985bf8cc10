/*
balance.go - Balance derivation

PURPOSE:
  Every account balance is a filter-then-sum over the logs. Nothing in this
  file reads a stored balance; inputs are raw log entries and immutable
  config only.

DERIVATIONS:
  Wallet          = ΣIncome - ΣAllocate_Out + ΣTransfer_In + ΣAdjustment
  Back_Up         = initial - ΣSettlement_Out + ΣTransfer(->Back_Up) - ΣTransfer(Back_Up->)
  Free_Fund       = initial + ΣSettlement_In + ΣTransfer(->Free_Fund) - ΣTransfer(Free_Fund->)
  LivingRemaining = P.living_budget - ΣExpense(Living, P)
  DailyAvailable  = LivingRemaining / daysLeft, or LivingRemaining when daysLeft = 0
  CategorySpent   = ΣExpense(C, P)
  Saving(G)       = ΣSaving_In(G) - ΣSaving_Out(G) - ΣTransfer(Saving G->) + ΣTransfer(->Saving G)

REPLAY INVARIANCE:
  Sums of decimals are commutative and associative, so any permutation of
  the same entries yields the same balance. An empty log yields the initial
  value (or zero).

SEE ALSO:
  - cache.go: where the entries usually come from
  - settlement.go: uses ActualLivingSpend
*/
package budget

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// BalanceConfig holds the immutable opening balances.
type BalanceConfig struct {
	BackUpInitial   Money
	FreeFundInitial Money
}

// =============================================================================
// PURE DERIVATIONS
// =============================================================================

// WalletBalance derives cash in hand from the Wallet Log.
func WalletBalance(wallet []WalletLogEntry) Money {
	total := Zero
	for _, e := range wallet {
		switch e.Type {
		case WalletIncome, WalletTransferIn, WalletAdjustment:
			total = total.Add(e.Amount)
		case WalletAllocateOut:
			total = total.Sub(e.Amount)
		}
	}
	return total
}

// BackUpBalance derives the Back_Up account.
func BackUpBalance(initial Money, entries []LedgerEntry) Money {
	total := initial
	for _, e := range entries {
		switch e.Type {
		case EntrySettlementOut:
			total = total.Sub(e.Amount)
		case EntryTransfer:
			total = total.Add(transferDelta(e, AccountBackUp))
		}
	}
	return total
}

// FreeFundBalance derives the Free_Fund account.
func FreeFundBalance(initial Money, entries []LedgerEntry) Money {
	total := initial
	for _, e := range entries {
		switch e.Type {
		case EntrySettlementIn:
			total = total.Add(e.Amount)
		case EntryTransfer:
			total = total.Add(transferDelta(e, AccountFreeFund))
		}
	}
	return total
}

// transferDelta is +amount when the transfer lands in account, -amount
// when it leaves it, zero otherwise.
func transferDelta(e LedgerEntry, account Account) Money {
	switch {
	case e.TargetAccount == account && e.Account != account:
		return e.Amount
	case e.Account == account && e.TargetAccount != account:
		return e.Amount.Neg()
	}
	return Zero
}

// LivingSpent sums Living expenses booked against a period.
func LivingSpent(periodID string, entries []LedgerEntry) Money {
	total := Zero
	for _, e := range entries {
		if e.Type == EntryExpense && e.Account == AccountLiving && e.PeriodID == periodID {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// LivingRemaining is the period's Living budget minus its Living expenses.
func LivingRemaining(p Period, entries []LedgerEntry) Money {
	return p.LivingBudget.Sub(LivingSpent(p.ID, entries))
}

// DailyAvailable spreads the Living remainder over the days left,
// today included. On or after the day past EndDate the whole remainder
// is available.
func DailyAvailable(p Period, entries []LedgerEntry, today Date) Money {
	remaining := LivingRemaining(p, entries)
	daysLeft := p.DaysLeftInclusive(today)
	if daysLeft <= 0 {
		return remaining
	}
	return remaining.DivInt(daysLeft)
}

// CategorySpent sums expenses for one category in one period.
func CategorySpent(categoryID, periodID string, entries []LedgerEntry) Money {
	total := Zero
	for _, e := range entries {
		if e.Type == EntryExpense && e.CategoryID == categoryID && e.PeriodID == periodID {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// SpentByCategory groups a period's Living expenses by category id.
func SpentByCategory(periodID string, entries []LedgerEntry) map[string]Money {
	spent := make(map[string]Money)
	for _, e := range entries {
		if e.Type != EntryExpense || e.Account != AccountLiving || e.PeriodID != periodID {
			continue
		}
		spent[e.CategoryID] = spent[e.CategoryID].Add(e.Amount)
	}
	return spent
}

// SavingBalance derives one goal's (or pool's) balance.
func SavingBalance(goalID string, entries []LedgerEntry) Money {
	total := Zero
	for _, e := range entries {
		switch e.Type {
		case EntrySavingIn:
			if e.GoalID == goalID {
				total = total.Add(e.Amount)
			}
		case EntrySavingOut:
			if e.GoalID == goalID {
				total = total.Sub(e.Amount)
			}
		case EntryTransfer:
			if e.Account == AccountSaving && e.GoalID == goalID {
				total = total.Sub(e.Amount)
			}
			if e.TargetAccount == AccountSaving && e.destinationGoal() == goalID {
				total = total.Add(e.Amount)
			}
		}
	}
	return total
}

// SavingTotal sums every goal and pool.
func SavingTotal(entries []LedgerEntry) Money {
	total := Zero
	for _, e := range entries {
		switch e.Type {
		case EntrySavingIn:
			total = total.Add(e.Amount)
		case EntrySavingOut:
			total = total.Sub(e.Amount)
		case EntryTransfer:
			total = total.Add(transferDelta(e, AccountSaving))
		}
	}
	return total
}

// destinationGoal is the goal a transfer into Saving credits.
func (e LedgerEntry) destinationGoal() string {
	if e.TargetGoalID != "" {
		return e.TargetGoalID
	}
	return e.GoalID
}

// =============================================================================
// BALANCES - Store-backed reads
// =============================================================================

// Filter narrows Balance() for the accounts that need it.
type Filter struct {
	PeriodID   string // Living
	GoalID     string // Saving; empty means all goals
	CategoryID string // Living; restricts to CategorySpent
}

// Balances answers balance questions by loading the logs and applying the
// pure derivations above. Pair it with CachedStore for bounded-staleness
// reads.
type Balances struct {
	Logs    LogStore
	Periods PeriodStore
	Config  BalanceConfig
	Clock   Clock
}

// Balance is the single entry point over all derivations.
func (b *Balances) Balance(ctx context.Context, account Account, f Filter) (Money, error) {
	switch account {
	case AccountWallet:
		return b.Wallet(ctx)
	case AccountBackUp:
		return b.BackUp(ctx)
	case AccountFreeFund:
		return b.FreeFund(ctx)
	case AccountSaving:
		if f.GoalID == "" {
			entries, err := b.Logs.Entries(ctx)
			if err != nil {
				return Zero, err
			}
			return SavingTotal(entries), nil
		}
		return b.Saving(ctx, f.GoalID)
	case AccountLiving:
		if f.CategoryID != "" {
			return b.CategorySpent(ctx, f.CategoryID, f.PeriodID)
		}
		return b.LivingRemaining(ctx, f.PeriodID)
	}
	return Zero, &ValidationError{Field: "account", Reason: fmt.Sprintf("unknown account %q", account)}
}

func (b *Balances) Wallet(ctx context.Context) (Money, error) {
	wallet, err := b.Logs.WalletEntries(ctx)
	if err != nil {
		return Zero, err
	}
	return WalletBalance(wallet), nil
}

func (b *Balances) BackUp(ctx context.Context) (Money, error) {
	entries, err := b.Logs.Entries(ctx)
	if err != nil {
		return Zero, err
	}
	return BackUpBalance(b.Config.BackUpInitial, entries), nil
}

func (b *Balances) FreeFund(ctx context.Context) (Money, error) {
	entries, err := b.Logs.Entries(ctx)
	if err != nil {
		return Zero, err
	}
	return FreeFundBalance(b.Config.FreeFundInitial, entries), nil
}

func (b *Balances) Saving(ctx context.Context, goalID string) (Money, error) {
	entries, err := b.Logs.Entries(ctx)
	if err != nil {
		return Zero, err
	}
	return SavingBalance(goalID, entries), nil
}

// LivingRemaining for periodID; an empty id means the current period.
func (b *Balances) LivingRemaining(ctx context.Context, periodID string) (Money, error) {
	p, entries, err := b.periodAndEntries(ctx, periodID)
	if err != nil {
		return Zero, err
	}
	return LivingRemaining(p, entries), nil
}

// DailyAvailable for periodID as of today; an empty id means the current period.
func (b *Balances) DailyAvailable(ctx context.Context, periodID string) (Money, error) {
	p, entries, err := b.periodAndEntries(ctx, periodID)
	if err != nil {
		return Zero, err
	}
	return DailyAvailable(p, entries, b.Clock.today()), nil
}

func (b *Balances) CategorySpent(ctx context.Context, categoryID, periodID string) (Money, error) {
	p, entries, err := b.periodAndEntries(ctx, periodID)
	if err != nil {
		return Zero, err
	}
	return CategorySpent(categoryID, p.ID, entries), nil
}

func (b *Balances) periodAndEntries(ctx context.Context, periodID string) (Period, []LedgerEntry, error) {
	periods, err := b.Periods.Periods(ctx)
	if err != nil {
		return Period{}, nil, err
	}
	var p *Period
	if periodID == "" {
		p = currentPeriod(periods)
		if p == nil {
			return Period{}, nil, ErrNoActivePeriod
		}
	} else {
		p = findPeriod(periods, periodID)
		if p == nil {
			return Period{}, nil, fmt.Errorf("%s: %w", periodID, ErrPeriodNotFound)
		}
	}
	entries, err := b.Logs.Entries(ctx)
	if err != nil {
		return Period{}, nil, err
	}
	return *p, entries, nil
}

// =============================================================================
// SUMMARY - What the dashboard shows
// =============================================================================

// CategoryProgress is budget vs spend for one category in the current period.
type CategoryProgress struct {
	Category  Category
	Spent     Money
	Remaining Money
	Ratio     decimal.Decimal // spent/budget, capped at 1
}

// GoalProgress is a goal's derived balance against its target.
type GoalProgress struct {
	Goal    SavingGoal
	Balance Money
	Ratio   decimal.Decimal // balance/target, capped at 1; zero for pools
}

// Summary is a point-in-time view across all mental accounts.
type Summary struct {
	Today    Date
	Period   *Period
	DaysLeft int
	Overdue  bool

	LivingBudget    Money
	LivingSpent     Money
	LivingRemaining Money
	DailyAvailable  Money

	Wallet   Money
	Saving   Money
	BackUp   Money
	FreeFund Money

	Categories []CategoryProgress
	Goals      []GoalProgress
}

// Summary loads everything once and derives the whole dashboard.
func (b *Balances) Summary(ctx context.Context, catalog CatalogStore) (Summary, error) {
	today := b.Clock.today()

	entries, err := b.Logs.Entries(ctx)
	if err != nil {
		return Summary{}, err
	}
	wallet, err := b.Logs.WalletEntries(ctx)
	if err != nil {
		return Summary{}, err
	}
	periods, err := b.Periods.Periods(ctx)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{
		Today:           today,
		LivingBudget:    Zero,
		LivingSpent:     Zero,
		LivingRemaining: Zero,
		DailyAvailable:  Zero,
		Wallet:          WalletBalance(wallet),
		Saving:          SavingTotal(entries),
		BackUp:          BackUpBalance(b.Config.BackUpInitial, entries),
		FreeFund:        FreeFundBalance(b.Config.FreeFundInitial, entries),
	}

	if p := currentPeriod(periods); p != nil {
		s.Period = p
		s.DaysLeft = p.DaysLeftInclusive(today)
		s.Overdue = p.IsOverdue(today)
		s.LivingBudget = p.LivingBudget
		s.LivingSpent = LivingSpent(p.ID, entries)
		s.LivingRemaining = LivingRemaining(*p, entries)
		s.DailyAvailable = DailyAvailable(*p, entries, today)
	}

	if catalog == nil {
		return s, nil
	}

	categories, err := catalog.Categories(ctx)
	if err != nil {
		return Summary{}, err
	}
	for _, c := range categories {
		if c.Status != StatusActive || !c.Budget.IsPositive() {
			continue
		}
		spent := Zero
		if s.Period != nil {
			spent = CategorySpent(c.ID, s.Period.ID, entries)
		}
		s.Categories = append(s.Categories, CategoryProgress{
			Category:  c,
			Spent:     spent,
			Remaining: c.Budget.Sub(spent),
			Ratio:     capOne(spent.Ratio(c.Budget)),
		})
	}

	goals, err := catalog.Goals(ctx)
	if err != nil {
		return Summary{}, err
	}
	for _, g := range goals {
		bal := SavingBalance(g.ID, entries)
		gp := GoalProgress{Goal: g, Balance: bal, Ratio: decimal.Zero}
		if g.HasTarget {
			gp.Ratio = capOne(bal.Ratio(g.TargetAmount))
		}
		s.Goals = append(s.Goals, gp)
	}
	sort.SliceStable(s.Goals, func(i, j int) bool {
		return s.Goals[i].Goal.Status == GoalActive && s.Goals[j].Goal.Status != GoalActive
	})

	return s, nil
}

func capOne(d decimal.Decimal) decimal.Decimal {
	if d.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return d
}
