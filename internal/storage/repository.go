// Package storage is the SQLite ledger backend. One user row plus
// foreign-keyed budget_limits and expenses rows per profile; the expense
// append runs in a single transaction so concurrent logs never lose updates.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"finny/internal/core"
	"finny/internal/ledger"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Single connection: SQLite allows one writer at a time, and a single
	// pooled connection serializes appends without SQLITE_BUSY retries.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// unavailable tags a database failure with the store-level sentinel so the
// HTTP layer can map it to a 503 without leaking driver details.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ledger.ErrUnavailable, err)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ensureUser loads the user row, inserting the documented defaults when the
// user id is seen for the first time.
func ensureUser(ctx context.Context, q querier, userID string) (core.Profile, error) {
	p := core.Profile{UserID: userID}
	err := q.QueryRowContext(ctx,
		`SELECT username, level, xp, net_worth_cents, goal_description FROM users WHERE user_id = ?`,
		userID,
	).Scan(&p.Username, &p.Level, &p.XP, &p.NetWorth.Cents, &p.GoalDescription)
	if err == nil {
		return p, nil
	}
	if err != sql.ErrNoRows {
		return core.Profile{}, fmt.Errorf("select user: %w", err)
	}

	p = core.DefaultProfile(userID)
	if _, err := q.ExecContext(ctx,
		`INSERT INTO users (user_id, username, level, xp, net_worth_cents, goal_description) VALUES (?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Username, p.Level, p.XP, p.NetWorth.Cents, p.GoalDescription,
	); err != nil {
		return core.Profile{}, fmt.Errorf("insert default user: %w", err)
	}
	for i, bl := range p.BudgetLimits {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO budget_limits (user_id, category, limit_cents, position) VALUES (?, ?, ?, ?)`,
			p.UserID, bl.Category, bl.Limit.Cents, i,
		); err != nil {
			return core.Profile{}, fmt.Errorf("insert default budget limit: %w", err)
		}
	}
	slog.InfoContext(ctx, "Created default profile", "user_id", userID)
	return p, nil
}

func loadLimits(ctx context.Context, q querier, userID string) ([]core.CategoryLimit, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT category, limit_cents FROM budget_limits WHERE user_id = ? ORDER BY position`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select budget limits: %w", err)
	}
	defer rows.Close()

	var limits []core.CategoryLimit
	for rows.Next() {
		var bl core.CategoryLimit
		if err := rows.Scan(&bl.Category, &bl.Limit.Cents); err != nil {
			return nil, fmt.Errorf("scan budget limit: %w", err)
		}
		limits = append(limits, bl)
	}
	return limits, rows.Err()
}

func loadExpenses(ctx context.Context, q querier, userID string) ([]core.Expense, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, category, amount_cents, description, spent_at FROM expenses WHERE user_id = ? ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select expenses: %w", err)
	}
	defer rows.Close()

	var log []core.Expense
	for rows.Next() {
		var e core.Expense
		if err := rows.Scan(&e.ID, &e.Category, &e.Amount.Cents, &e.Description, &e.Date); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		log = append(log, e)
	}
	return log, rows.Err()
}

func loadProfile(ctx context.Context, q querier, userID string) (core.Profile, error) {
	p, err := ensureUser(ctx, q, userID)
	if err != nil {
		return core.Profile{}, err
	}
	if p.BudgetLimits == nil {
		if p.BudgetLimits, err = loadLimits(ctx, q, userID); err != nil {
			return core.Profile{}, err
		}
	}
	if p.SpendingLog, err = loadExpenses(ctx, q, userID); err != nil {
		return core.Profile{}, err
	}
	return p, nil
}

// Profile implements ledger.ProfileReader with self-healing defaults.
func (r *SQLiteRepository) Profile(ctx context.Context, userID string) (core.Profile, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Profile{}, unavailable("begin profile tx", err)
	}
	defer tx.Rollback()

	p, err := loadProfile(ctx, tx, userID)
	if err != nil {
		return core.Profile{}, unavailable("load profile", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Profile{}, unavailable("commit profile tx", err)
	}
	return p, nil
}

// UpdateProfile implements ledger.ProfileUpdater. The patch merges inside a
// transaction so concurrent updates for the same user serialize.
func (r *SQLiteRepository) UpdateProfile(ctx context.Context, userID string, patch ledger.Patch) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin update tx", err)
	}
	defer tx.Rollback()

	if _, err := ensureUser(ctx, tx, userID); err != nil {
		return unavailable("ensure user", err)
	}

	if patch.Username != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET username = ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?`,
			*patch.Username, userID,
		); err != nil {
			return unavailable("update username", err)
		}
	}
	if patch.NetWorth != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET net_worth_cents = ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?`,
			patch.NetWorth.Cents, userID,
		); err != nil {
			return unavailable("update net worth", err)
		}
	}
	if patch.GoalDescription != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET goal_description = ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?`,
			*patch.GoalDescription, userID,
		); err != nil {
			return unavailable("update goal description", err)
		}
	}
	if patch.BudgetLimits != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM budget_limits WHERE user_id = ?`, userID); err != nil {
			return unavailable("clear budget limits", err)
		}
		for i, bl := range patch.BudgetLimits {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO budget_limits (user_id, category, limit_cents, position) VALUES (?, ?, ?, ?)`,
				userID, bl.Category, bl.Limit.Cents, i,
			); err != nil {
				return unavailable("insert budget limit", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit update tx", err)
	}
	return nil
}

// AppendExpense implements ledger.ExpenseAppender. Log append, net-worth
// decrement and XP award commit together; two concurrent appends for the
// same user both land because SQLite serializes the transactions.
func (r *SQLiteRepository) AppendExpense(ctx context.Context, userID string, e core.Expense) (ledger.AppendResult, error) {
	if err := e.Validate(); err != nil {
		return ledger.AppendResult{}, err
	}
	if e.Date.IsZero() {
		e.Date = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.AppendResult{}, unavailable("begin append tx", err)
	}
	defer tx.Rollback()

	p, err := ensureUser(ctx, tx, userID)
	if err != nil {
		return ledger.AppendResult{}, unavailable("ensure user", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO expenses (user_id, category, amount_cents, description, spent_at) VALUES (?, ?, ?, ?, ?)`,
		userID, e.Category, e.Amount.Cents, e.Description, e.Date,
	)
	if err != nil {
		return ledger.AppendResult{}, unavailable("insert expense", err)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return ledger.AppendResult{}, unavailable("expense row id", err)
	}

	xpBefore := p.XP
	level, xp, levelUp := core.Award(p.Level, p.XP, core.XPPerExpense)
	netWorth := p.NetWorth.Cents - e.Amount.Cents

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET level = ?, xp = ?, net_worth_cents = ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?`,
		level, xp, netWorth, userID,
	); err != nil {
		return ledger.AppendResult{}, unavailable("update user", err)
	}

	updated, err := loadProfile(ctx, tx, userID)
	if err != nil {
		return ledger.AppendResult{}, unavailable("reload profile", err)
	}

	if err := tx.Commit(); err != nil {
		return ledger.AppendResult{}, unavailable("commit append tx", err)
	}

	xpGained := xp - xpBefore
	if levelUp {
		xpGained = core.XPPerExpense
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", rowID,
		"user_id", userID,
		"category", e.Category,
		"amount_cents", e.Amount.Cents,
		"level_up", levelUp)

	return ledger.AppendResult{
		Profile:  updated,
		RowRef:   strconv.FormatInt(rowID, 10),
		RowID:    rowID,
		XPGained: xpGained,
		LevelUp:  levelUp,
	}, nil
}

// ExpenseRow is the stored form of one expense, used by the audit worker.
type ExpenseRow struct {
	ID          int64
	UserID      string
	Category    string
	AmountCents int64
	Description string
	SpentAt     time.Time
	CreatedAt   time.Time
}

// GetExpense retrieves a single expense by row id.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (*ExpenseRow, error) {
	var row ExpenseRow
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, category, amount_cents, description, spent_at, created_at FROM expenses WHERE id = ?`,
		id,
	).Scan(&row.ID, &row.UserID, &row.Category, &row.AmountCents, &row.Description, &row.SpentAt, &row.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("expense %d: %w", id, ledger.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("get expense", err)
	}
	return &row, nil
}
