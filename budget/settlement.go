/*
settlement.go - Closing a period

PURPOSE:
  Reconciles a period's planned Living budget against its actual Living
  spend and moves the difference:

    net > 0  ->  Settlement_In(net)   into Free_Fund
    net < 0  ->  Settlement_Out(|net|) out of Back_Up
    net = 0  ->  no ledger entry, record impact_account = none

SEQUENCE (not atomic):
  1. compensating ledger entry   key settle/<period_id>
  2. SettlementRecord            one per period (store-enforced)
  3. period status -> Settled

  A failure after step 1 or 2 leaves the period Active. Calling Settle
  again replays only the missing tail: an entry already carrying the key
  is reused, an existing SettlementRecord is reused, and the status flip
  runs last. Once Settled, Settle returns ErrAlreadySettled.

SEE ALSO:
  - rollover.go: Stage 1 drives this
  - api/watcher.go: auto-settles overdue periods when enabled
*/
package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// SettlementEngine closes periods.
type SettlementEngine struct {
	Store  Store
	Clock  Clock
	Logger *slog.Logger
}

// CategorySpend is one row of a settlement preview.
type CategorySpend struct {
	CategoryID string
	Name       string
	Budget     Money
	Spent      Money
}

// SettlementPreview is what settling would do right now. Nothing is written.
type SettlementPreview struct {
	Period        Period
	Categories    []CategorySpend
	Actual        Money
	Net           Money
	ImpactAccount Account
	Early         bool // today is on or before EndDate
}

// SettlementResult reports what Settle wrote.
type SettlementResult struct {
	Record  SettlementRecord
	Entry   *LedgerEntry // nil when net is zero
	Early   bool
	Resumed bool // some steps were already confirmed by an earlier attempt
}

// SettlementKey is the idempotency key of a period's compensating entry.
func SettlementKey(periodID string) string { return "settle/" + periodID }

// Preview computes per-category spend and the projected net for periodID.
func (se *SettlementEngine) Preview(ctx context.Context, periodID string) (SettlementPreview, error) {
	p, entries, err := se.load(ctx, periodID)
	if err != nil {
		return SettlementPreview{}, err
	}

	categories, err := se.Store.Categories(ctx)
	if err != nil {
		return SettlementPreview{}, err
	}

	spent := SpentByCategory(p.ID, entries)
	rows := make([]CategorySpend, 0, len(spent))
	for _, c := range categories {
		s, ok := spent[c.ID]
		if !ok && c.Status != StatusActive {
			continue
		}
		delete(spent, c.ID)
		if !ok {
			s = Zero
		}
		rows = append(rows, CategorySpend{CategoryID: c.ID, Name: c.Name, Budget: c.Budget, Spent: s})
	}
	// Expenses whose category has since disappeared from the catalog.
	for id, s := range spent {
		rows = append(rows, CategorySpend{CategoryID: id, Name: id, Budget: Zero, Spent: s})
	}

	actual := LivingSpent(p.ID, entries)
	net := p.LivingBudget.Sub(actual)
	return SettlementPreview{
		Period:        p,
		Categories:    rows,
		Actual:        actual,
		Net:           net,
		ImpactAccount: impactAccount(net),
		Early:         !p.IsOverdue(se.Clock.today()),
	}, nil
}

// Settle closes periodID. See the file header for the step sequence.
func (se *SettlementEngine) Settle(ctx context.Context, periodID string) (*SettlementResult, error) {
	log := logger(se.Logger).With("period_id", periodID)

	p, entries, err := se.load(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if p.Status == PeriodSettled {
		return nil, fmt.Errorf("%s: %w", p.ID, ErrAlreadySettled)
	}

	now := se.Clock.now()
	today := DateOf(now)
	result := &SettlementResult{Early: !p.IsOverdue(today)}
	if result.Early {
		log.Warn("settling period before its end date", "end", p.EndDate.String(), "today", today.String())
	}

	// Step 1: compensating entry. A previous attempt's entry fixes the net.
	key := SettlementKey(p.ID)
	actual := LivingSpent(p.ID, entries)
	net := p.LivingBudget.Sub(actual)

	if prior := findByKey(entries, key); prior != nil {
		result.Entry = prior
		result.Resumed = true
		if prior.Type == EntrySettlementOut {
			net = prior.Amount.Neg()
		} else {
			net = prior.Amount
		}
		actual = p.LivingBudget.Sub(net)
		log.Warn("settlement entry already recorded, resuming", "entry_id", prior.ID)
	} else if !net.IsZero() {
		entry := LedgerEntry{
			ID:             uuid.NewString(),
			CreatedAt:      now,
			EffectiveDate:  today,
			Amount:         net.Abs(),
			PeriodID:       p.ID,
			Ref:            p.ID,
			Note:           "Period settlement",
			IdempotencyKey: key,
		}
		if net.IsPositive() {
			entry.Type, entry.Account = EntrySettlementIn, AccountFreeFund
		} else {
			entry.Type, entry.Account = EntrySettlementOut, AccountBackUp
		}
		switch err := se.Store.AppendEntry(ctx, entry); {
		case errors.Is(err, ErrDuplicateIdempotencyKey):
			result.Resumed = true
			log.Warn("settlement entry already recorded, resuming")
		case err != nil:
			return nil, fmt.Errorf("settle %s: compensating entry: %w", p.ID, err)
		default:
			log.Debug("settlement entry appended", "type", entry.Type, "amount", entry.Amount.String())
		}
		result.Entry = &entry
	}

	// Step 2: settlement record.
	record, err := se.existingRecord(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if record != nil {
		result.Resumed = true
	} else {
		r := SettlementRecord{
			ID:            uuid.NewString(),
			PeriodID:      p.ID,
			PlannedBudget: p.LivingBudget,
			ActualExpense: actual,
			NetResult:     net,
			ImpactAccount: impactAccount(net),
			SettledAt:     now,
		}
		switch err := se.Store.InsertSettlement(ctx, r); {
		case errors.Is(err, ErrDuplicateIdempotencyKey):
			if record, err = se.existingRecord(ctx, p.ID); err != nil {
				return nil, err
			}
		case err != nil:
			return nil, fmt.Errorf("settle %s: settlement record: %w", p.ID, err)
		default:
			record = &r
			log.Debug("settlement record written", "record_id", r.ID)
		}
	}
	if record == nil {
		return nil, fmt.Errorf("settle %s: settlement record vanished: %w", p.ID, ErrStateConflict)
	}
	result.Record = *record

	// Step 3: status flip.
	if err := se.Store.MarkPeriodSettled(ctx, p.ID, now); err != nil {
		return nil, fmt.Errorf("settle %s: mark settled: %w", p.ID, err)
	}

	log.Info("period settled",
		"planned", result.Record.PlannedBudget.String(),
		"actual", result.Record.ActualExpense.String(),
		"net", result.Record.NetResult.String(),
		"impact", string(result.Record.ImpactAccount),
		"resumed", result.Resumed)
	return result, nil
}

func (se *SettlementEngine) load(ctx context.Context, periodID string) (Period, []LedgerEntry, error) {
	periods, err := se.Store.Periods(ctx)
	if err != nil {
		return Period{}, nil, err
	}
	p := findPeriod(periods, periodID)
	if p == nil {
		return Period{}, nil, fmt.Errorf("%s: %w", periodID, ErrPeriodNotFound)
	}
	entries, err := se.Store.Entries(ctx)
	if err != nil {
		return Period{}, nil, err
	}
	return *p, entries, nil
}

func (se *SettlementEngine) existingRecord(ctx context.Context, periodID string) (*SettlementRecord, error) {
	records, err := se.Store.Settlements(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].PeriodID == periodID {
			r := records[i]
			return &r, nil
		}
	}
	return nil, nil
}

func impactAccount(net Money) Account {
	switch {
	case net.IsPositive():
		return AccountFreeFund
	case net.IsNegative():
		return AccountBackUp
	}
	return AccountNone
}

func findByKey(entries []LedgerEntry, key string) *LedgerEntry {
	for i := range entries {
		if entries[i].IdempotencyKey == key {
			e := entries[i]
			return &e
		}
	}
	return nil
}
