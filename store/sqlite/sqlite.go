/*
Package sqlite provides a SQLite-backed implementation of budget.Store.

PURPOSE:
  Durable event store for the envelope ledger. Two append-only log tables,
  one row per period and settlement, the catalog, and a single-row table
  for the rollover session.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on ledger_entries or wallet_entries
  - No DELETE statements on ledger_entries or wallet_entries
  - Corrections are new entries (Adjustment, Transfer)

KEY TABLES:
  ledger_entries:   Ledger Log, creation order = rowid
  wallet_entries:   Wallet Log, creation order = rowid
  periods:          Budget periods (status is the only mutable column)
  settlements:      One row per settled period
  categories, sub_tags, saving_goals, bank_accounts: catalog
  rollover_session: at most one row, JSON body

CONSTRAINTS:
  - idempotency_key UNIQUE on both logs     -> budget.ErrDuplicateIdempotencyKey
  - idx_periods_one_active (partial unique) -> budget.ErrActivePeriodExists
  - settlements.period_id UNIQUE            -> budget.ErrDuplicateIdempotencyKey

  Any other driver failure is wrapped as a budget.StoreError, which
  matches budget.ErrStoreUnavailable.

WAL MODE:
  Opened with WAL so readers don't block the single writer.

USAGE:
  store, err := sqlite.New("./envelope.db")
  if err != nil {
      return err
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - budget/store.go: Interface definitions
  - budget/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/envelope-ledger/budget"
)

// Store implements budget.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection; used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return budget.Unavailable("ping", s.db.PingContext(ctx))
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Ledger Log (append-only)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		effective_date TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		account TEXT NOT NULL,
		target_account TEXT,
		category_id TEXT,
		sub_tag_id TEXT,
		goal_id TEXT,
		target_goal_id TEXT,
		period_id TEXT,
		item TEXT,
		note TEXT,
		ref TEXT,
		bank_id TEXT,
		payment_method TEXT,
		idempotency_key TEXT UNIQUE
	);

	-- Derivations filter by (period, account, type)
	CREATE INDEX IF NOT EXISTS idx_ledger_period_account_type
		ON ledger_entries(period_id, account, entry_type);
	CREATE INDEX IF NOT EXISTS idx_ledger_goal
		ON ledger_entries(goal_id) WHERE goal_id IS NOT NULL;

	-- Wallet Log (append-only)
	CREATE TABLE IF NOT EXISTS wallet_entries (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		bank_id TEXT,
		note TEXT,
		ref TEXT,
		idempotency_key TEXT UNIQUE
	);

	-- Periods
	CREATE TABLE IF NOT EXISTS periods (
		id TEXT PRIMARY KEY,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL,
		living_budget TEXT NOT NULL,
		created_at TEXT NOT NULL,
		settled_at TEXT
	);

	-- CRITICAL: at most one Active period
	CREATE UNIQUE INDEX IF NOT EXISTS idx_periods_one_active
		ON periods(status) WHERE status = 'Active';

	-- Settlement records (write-once, one per period)
	CREATE TABLE IF NOT EXISTS settlements (
		id TEXT PRIMARY KEY,
		period_id TEXT NOT NULL UNIQUE,
		planned_budget TEXT NOT NULL,
		actual_expense TEXT NOT NULL,
		net_result TEXT NOT NULL,
		impact_account TEXT,
		settled_at TEXT NOT NULL
	);

	-- Catalog
	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		budget TEXT NOT NULL,
		status TEXT NOT NULL,
		is_quick_access BOOLEAN DEFAULT FALSE,
		default_bank_id TEXT,
		default_payment_method TEXT
	);

	CREATE TABLE IF NOT EXISTS sub_tags (
		id TEXT PRIMARY KEY,
		category_id TEXT NOT NULL REFERENCES categories(id),
		name TEXT NOT NULL,
		default_bank_id TEXT,
		default_payment_method TEXT
	);

	CREATE TABLE IF NOT EXISTS saving_goals (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		has_target BOOLEAN NOT NULL,
		target_amount TEXT NOT NULL,
		deadline TEXT,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		completed_at TEXT,
		default_bank_id TEXT,
		default_payment_method TEXT
	);

	CREATE TABLE IF NOT EXISTS bank_accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		note TEXT,
		status TEXT NOT NULL
	);

	-- Rollover wizard (single row)
	CREATE TABLE IF NOT EXISTS rollover_session (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		body_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEDGER LOG
// =============================================================================

func (s *Store) AppendEntry(ctx context.Context, e budget.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO ledger_entries
		(id, created_at, effective_date, entry_type, amount, account, target_account,
		 category_id, sub_tag_id, goal_id, target_goal_id, period_id,
		 item, note, ref, bank_id, payment_method, idempotency_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		formatTime(e.CreatedAt),
		e.EffectiveDate.String(),
		e.Type,
		e.Amount.String(),
		e.Account,
		nullString(string(e.TargetAccount)),
		nullString(e.CategoryID),
		nullString(e.SubTagID),
		nullString(e.GoalID),
		nullString(e.TargetGoalID),
		nullString(e.PeriodID),
		nullString(e.Item),
		nullString(e.Note),
		nullString(e.Ref),
		nullString(e.BankID),
		nullString(e.PaymentMethod),
		nullString(e.IdempotencyKey),
	)
	if isUniqueConstraintError(err) {
		return budget.ErrDuplicateIdempotencyKey
	}
	return budget.Unavailable("append ledger entry", err)
}

func (s *Store) Entries(ctx context.Context) ([]budget.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, created_at, effective_date, entry_type, amount, account, target_account,
		       category_id, sub_tag_id, goal_id, target_goal_id, period_id,
		       item, note, ref, bank_id, payment_method, idempotency_key
		FROM ledger_entries
		ORDER BY rowid ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, budget.Unavailable("query ledger entries", err)
	}
	defer rows.Close()

	var entries []budget.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, budget.Unavailable("query ledger entries", rows.Err())
}

func scanEntry(rows *sql.Rows) (budget.LedgerEntry, error) {
	var (
		e                                      budget.LedgerEntry
		createdAt, effectiveDate, amount       string
		targetAccount, categoryID, subTagID    sql.NullString
		goalID, targetGoalID, periodID         sql.NullString
		item, note, ref, bankID, paymentMethod sql.NullString
		idempotencyKey                         sql.NullString
	)

	err := rows.Scan(
		&e.ID, &createdAt, &effectiveDate, &e.Type, &amount, &e.Account, &targetAccount,
		&categoryID, &subTagID, &goalID, &targetGoalID, &periodID,
		&item, &note, &ref, &bankID, &paymentMethod, &idempotencyKey,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan ledger entry: %w", err)
	}

	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return e, err
	}
	if e.EffectiveDate, err = budget.ParseDate(effectiveDate); err != nil {
		return e, err
	}
	if e.Amount, err = budget.ParseMoney(amount); err != nil {
		return e, err
	}
	e.TargetAccount = budget.Account(targetAccount.String)
	e.CategoryID = categoryID.String
	e.SubTagID = subTagID.String
	e.GoalID = goalID.String
	e.TargetGoalID = targetGoalID.String
	e.PeriodID = periodID.String
	e.Item = item.String
	e.Note = note.String
	e.Ref = ref.String
	e.BankID = bankID.String
	e.PaymentMethod = paymentMethod.String
	e.IdempotencyKey = idempotencyKey.String
	return e, nil
}

// =============================================================================
// WALLET LOG
// =============================================================================

func (s *Store) AppendWallet(ctx context.Context, e budget.WalletLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO wallet_entries
		(id, created_at, entry_type, amount, bank_id, note, ref, idempotency_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		formatTime(e.CreatedAt),
		e.Type,
		e.Amount.String(),
		nullString(e.BankID),
		nullString(e.Note),
		nullString(e.Ref),
		nullString(e.IdempotencyKey),
	)
	if isUniqueConstraintError(err) {
		return budget.ErrDuplicateIdempotencyKey
	}
	return budget.Unavailable("append wallet entry", err)
}

func (s *Store) WalletEntries(ctx context.Context) ([]budget.WalletLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, created_at, entry_type, amount, bank_id, note, ref, idempotency_key
		FROM wallet_entries
		ORDER BY rowid ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, budget.Unavailable("query wallet entries", err)
	}
	defer rows.Close()

	var entries []budget.WalletLogEntry
	for rows.Next() {
		var (
			e                             budget.WalletLogEntry
			createdAt, amount             string
			bankID, note, ref, idempotent sql.NullString
		)
		if err := rows.Scan(&e.ID, &createdAt, &e.Type, &amount, &bankID, &note, &ref, &idempotent); err != nil {
			return nil, fmt.Errorf("failed to scan wallet entry: %w", err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if e.Amount, err = budget.ParseMoney(amount); err != nil {
			return nil, err
		}
		e.BankID, e.Note, e.Ref, e.IdempotencyKey = bankID.String, note.String, ref.String, idempotent.String
		entries = append(entries, e)
	}
	return entries, budget.Unavailable("query wallet entries", rows.Err())
}

// =============================================================================
// PERIODS
// =============================================================================

func (s *Store) InsertPeriod(ctx context.Context, p budget.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// An existing id is a replayed insert, reported before the Active check.
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM periods WHERE id = ?`, p.ID).Scan(&exists)
	if err != nil {
		return budget.Unavailable("insert period", err)
	}
	if exists > 0 {
		return budget.ErrDuplicateIdempotencyKey
	}

	query := `
		INSERT INTO periods (id, start_date, end_date, status, living_budget, created_at, settled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		p.ID,
		p.StartDate.String(),
		p.EndDate.String(),
		p.Status,
		p.LivingBudget.String(),
		formatTime(p.CreatedAt),
		nullTime(p.SettledAt),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("insert period %s: %w", p.ID, budget.ErrActivePeriodExists)
	}
	return budget.Unavailable("insert period", err)
}

func (s *Store) Periods(ctx context.Context) ([]budget.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, start_date, end_date, status, living_budget, created_at, settled_at
		FROM periods
		ORDER BY rowid ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, budget.Unavailable("query periods", err)
	}
	defer rows.Close()

	var periods []budget.Period
	for rows.Next() {
		var (
			p                                   budget.Period
			start, end, livingBudget, createdAt string
			settledAt                           sql.NullString
		)
		if err := rows.Scan(&p.ID, &start, &end, &p.Status, &livingBudget, &createdAt, &settledAt); err != nil {
			return nil, fmt.Errorf("failed to scan period: %w", err)
		}
		if p.StartDate, err = budget.ParseDate(start); err != nil {
			return nil, err
		}
		if p.EndDate, err = budget.ParseDate(end); err != nil {
			return nil, err
		}
		if p.LivingBudget, err = budget.ParseMoney(livingBudget); err != nil {
			return nil, err
		}
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if p.SettledAt, err = parseNullTime(settledAt); err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, budget.Unavailable("query periods", rows.Err())
}

func (s *Store) MarkPeriodSettled(ctx context.Context, id string, settledAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE periods SET status = ?, settled_at = ? WHERE id = ? AND status = ?`,
		budget.PeriodSettled, formatTime(settledAt), id, budget.PeriodActive)
	if err != nil {
		return budget.Unavailable("mark period settled", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM periods WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", id, budget.ErrPeriodNotFound)
	}
	if err != nil {
		return budget.Unavailable("mark period settled", err)
	}
	return fmt.Errorf("%s: %w", id, budget.ErrAlreadySettled)
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

func (s *Store) InsertSettlement(ctx context.Context, r budget.SettlementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO settlements
		(id, period_id, planned_budget, actual_expense, net_result, impact_account, settled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		r.PeriodID,
		r.PlannedBudget.String(),
		r.ActualExpense.String(),
		r.NetResult.String(),
		nullString(string(r.ImpactAccount)),
		formatTime(r.SettledAt),
	)
	if isUniqueConstraintError(err) {
		return budget.ErrDuplicateIdempotencyKey
	}
	return budget.Unavailable("insert settlement", err)
}

func (s *Store) Settlements(ctx context.Context) ([]budget.SettlementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, period_id, planned_budget, actual_expense, net_result, impact_account, settled_at
		FROM settlements
		ORDER BY rowid ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, budget.Unavailable("query settlements", err)
	}
	defer rows.Close()

	var records []budget.SettlementRecord
	for rows.Next() {
		var (
			r                               budget.SettlementRecord
			planned, actual, net, settledAt string
			impact                          sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.PeriodID, &planned, &actual, &net, &impact, &settledAt); err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		if r.PlannedBudget, err = budget.ParseMoney(planned); err != nil {
			return nil, err
		}
		if r.ActualExpense, err = budget.ParseMoney(actual); err != nil {
			return nil, err
		}
		if r.NetResult, err = budget.ParseMoney(net); err != nil {
			return nil, err
		}
		if r.SettledAt, err = parseTime(settledAt); err != nil {
			return nil, err
		}
		r.ImpactAccount = budget.Account(impact.String)
		records = append(records, r)
	}
	return records, budget.Unavailable("query settlements", rows.Err())
}

// =============================================================================
// CATALOG
// =============================================================================

func (s *Store) InsertCategory(ctx context.Context, c budget.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO categories
		(id, name, budget, status, is_quick_access, default_bank_id, default_payment_method)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Name, c.Budget.String(), c.Status, c.IsQuickAccess,
		nullString(c.Defaults.BankID), nullString(c.Defaults.PaymentMethod))
	if isUniqueConstraintError(err) {
		return budget.ErrDuplicateIdempotencyKey
	}
	return budget.Unavailable("insert category", err)
}

func (s *Store) Categories(ctx context.Context) ([]budget.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, budget, status, is_quick_access, default_bank_id, default_payment_method
		FROM categories
		ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, budget.Unavailable("query categories", err)
	}
	defer rows.Close()

	var categories []budget.Category
	for rows.Next() {
		var (
			c            budget.Category
			amount       string
			bank, method sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &amount, &c.Status, &c.IsQuickAccess, &bank, &method); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		if c.Budget, err = budget.ParseMoney(amount); err != nil {
			return nil, err
		}
		c.Defaults = budget.PaymentDefaults{BankID: bank.String, PaymentMethod: method.String}
		categories = append(categories, c)
	}
	return categories, budget.Unavailable("query categories", rows.Err())
}

func (s *Store) SetCategoryBudget(ctx context.Context, id string, amount budget.Money) error {
	return s.updateOne(ctx, `UPDATE categories SET budget = ? WHERE id = ?`, budget.ErrCategoryNotFound, amount.String(), id)
}

func (s *Store) InsertSubTag(ctx context.Context, t budget.SubTag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sub_tags (id, category_id, name, default_bank_id, default_payment_method)
		VALUES (?, ?, ?, ?, ?)
	`, t.ID, t.CategoryID, t.Name, nullString(t.Defaults.BankID), nullString(t.Defaults.PaymentMethod))
	if isUniqueConstraintError(err) {
		return budget.ErrDuplicateIdempotencyKey
	}
	if isForeignKeyError(err) {
		return fmt.Errorf("%s: %w", t.CategoryID, budget.ErrCategoryNotFound)
	}
	return budget.Unavailable("insert sub-tag", err)
}

func (s *Store) SubTags(ctx context.Context) ([]budget.SubTag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category_id, name, default_bank_id, default_payment_method
		FROM sub_tags
		ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, budget.Unavailable("query sub-tags", err)
	}
	defer rows.Close()

	var tags []budget.SubTag
	for rows.Next() {
		var (
			t            budget.SubTag
			bank, method sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.CategoryID, &t.Name, &bank, &method); err != nil {
			return nil, fmt.Errorf("failed to scan sub-tag: %w", err)
		}
		t.Defaults = budget.PaymentDefaults{BankID: bank.String, PaymentMethod: method.String}
		tags = append(tags, t)
	}
	return tags, budget.Unavailable("query sub-tags", rows.Err())
}

func (s *Store) InsertGoal(ctx context.Context, g budget.SavingGoal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deadline sql.NullString
	if g.Deadline != nil {
		deadline = nullString(g.Deadline.String())
	}

	query := `
		INSERT INTO saving_goals
		(id, name, has_target, target_amount, deadline, status, created_at, completed_at,
		 default_bank_id, default_payment_method)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		g.ID, g.Name, g.HasTarget, g.TargetAmount.String(), deadline, g.Status,
		formatTime(g.CreatedAt), nullTime(g.CompletedAt),
		nullString(g.Defaults.BankID), nullString(g.Defaults.PaymentMethod))
	if isUniqueConstraintError(err) {
		return budget.ErrDuplicateIdempotencyKey
	}
	return budget.Unavailable("insert goal", err)
}

func (s *Store) Goals(ctx context.Context) ([]budget.SavingGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, has_target, target_amount, deadline, status, created_at, completed_at,
		       default_bank_id, default_payment_method
		FROM saving_goals
		ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, budget.Unavailable("query goals", err)
	}
	defer rows.Close()

	var goals []budget.SavingGoal
	for rows.Next() {
		var (
			g                                   budget.SavingGoal
			target, createdAt                   string
			deadline, completedAt, bank, method sql.NullString
		)
		if err := rows.Scan(&g.ID, &g.Name, &g.HasTarget, &target, &deadline, &g.Status,
			&createdAt, &completedAt, &bank, &method); err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		if g.TargetAmount, err = budget.ParseMoney(target); err != nil {
			return nil, err
		}
		if deadline.Valid {
			d, err := budget.ParseDate(deadline.String)
			if err != nil {
				return nil, err
			}
			g.Deadline = &d
		}
		if g.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if g.CompletedAt, err = parseNullTime(completedAt); err != nil {
			return nil, err
		}
		g.Defaults = budget.PaymentDefaults{BankID: bank.String, PaymentMethod: method.String}
		goals = append(goals, g)
	}
	return goals, budget.Unavailable("query goals", rows.Err())
}

func (s *Store) SetGoalStatus(ctx context.Context, id string, status budget.GoalStatus, completedAt *time.Time) error {
	return s.updateOne(ctx, `UPDATE saving_goals SET status = ?, completed_at = ? WHERE id = ?`,
		budget.ErrGoalNotFound, status, nullTime(completedAt), id)
}

func (s *Store) InsertBank(ctx context.Context, b budget.BankAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bank_accounts (id, name, note, status) VALUES (?, ?, ?, ?)`,
		b.ID, b.Name, nullString(b.Note), b.Status)
	if isUniqueConstraintError(err) {
		return budget.ErrDuplicateIdempotencyKey
	}
	return budget.Unavailable("insert bank account", err)
}

func (s *Store) Banks(ctx context.Context) ([]budget.BankAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, note, status FROM bank_accounts ORDER BY rowid ASC`)
	if err != nil {
		return nil, budget.Unavailable("query bank accounts", err)
	}
	defer rows.Close()

	var banks []budget.BankAccount
	for rows.Next() {
		var (
			b    budget.BankAccount
			note sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.Name, &note, &b.Status); err != nil {
			return nil, fmt.Errorf("failed to scan bank account: %w", err)
		}
		b.Note = note.String
		banks = append(banks, b)
	}
	return banks, budget.Unavailable("query bank accounts", rows.Err())
}

func (s *Store) SetBankStatus(ctx context.Context, id string, status budget.Status) error {
	return s.updateOne(ctx, `UPDATE bank_accounts SET status = ? WHERE id = ?`, budget.ErrBankNotFound, status, id)
}

// updateOne runs a single-row UPDATE and maps "no row" to notFound.
func (s *Store) updateOne(ctx context.Context, query string, notFound error, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return budget.Unavailable("update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return budget.Unavailable("update", err)
	}
	if n == 0 {
		return fmt.Errorf("%v: %w", args[len(args)-1], notFound)
	}
	return nil
}

// =============================================================================
// ROLLOVER SESSION
// =============================================================================

func (s *Store) LoadSession(ctx context.Context) (budget.RolloverSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body_json FROM rollover_session WHERE id = 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return budget.RolloverSession{}, budget.ErrSessionNotFound
	}
	if err != nil {
		return budget.RolloverSession{}, budget.Unavailable("load session", err)
	}

	var session budget.RolloverSession
	if err := json.Unmarshal([]byte(body), &session); err != nil {
		return budget.RolloverSession{}, fmt.Errorf("failed to decode rollover session: %w", err)
	}
	return session, nil
}

func (s *Store) SaveSession(ctx context.Context, session budget.RolloverSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode rollover session: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rollover_session (id, body_json, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET body_json = excluded.body_json, updated_at = excluded.updated_at
	`, string(body), formatTime(time.Now()))
	return budget.Unavailable("save session", err)
}

func (s *Store) DeleteSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM rollover_session WHERE id = 1`)
	return budget.Unavailable("delete session", err)
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset clears all data. Only used by demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"rollover_session", "settlements", "ledger_entries", "wallet_entries",
		"periods", "sub_tags", "categories", "saving_goals", "bank_accounts",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return budget.Unavailable("reset "+table, err)
		}
	}
	return nil
}

var _ budget.Store = (*Store)(nil)

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return nullString(formatTime(*t))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

func isForeignKeyError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
