// Package storage persists the ledger and precomputed report snapshots in
// SQLite. The repository is the write side fed by the ingestion worker and
// the read side behind the reporting engine.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tally/internal/core"
	"tally/internal/ledger"

	_ "modernc.org/sqlite"
)

// ErrSnapshotNotFound is returned when no snapshot exists for a report kind.
var ErrSnapshotNotFound = errors.New("report snapshot not found")

type SQLiteRepository struct {
	db *sql.DB
}

var _ ledger.Reader = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

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

// QueryTransactions implements ledger.Reader. Splits come back in insert
// order via the left join; transactions without splits still appear.
func (r *SQLiteRepository) QueryTransactions(ctx context.Context, f ledger.Filter) ([]core.Transaction, error) {
	var (
		conds []string
		args  []any
	)
	if !f.Start.IsZero() {
		conds = append(conds, "t.transacted_at >= ?")
		args = append(args, f.Start.UTC())
	}
	if !f.End.IsZero() {
		conds = append(conds, "t.transacted_at <= ?")
		args = append(args, f.End.UTC())
	}
	if !f.IncludeHidden {
		conds = append(conds, "a.hidden = 0")
	}
	if len(f.ExcludeAccountTypes) > 0 {
		placeholders := make([]string, len(f.ExcludeAccountTypes))
		for i, at := range f.ExcludeAccountTypes {
			placeholders[i] = "?"
			args = append(args, string(at))
		}
		conds = append(conds, "a.type NOT IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := `SELECT t.id, t.account_id, t.amount, t.transacted_at, t.payee_id, t.description,
       s.category_id, s.amount
FROM transactions t
JOIN accounts a ON a.id = t.account_id
LEFT JOIN splits s ON s.transaction_id = t.id`
	if len(conds) > 0 {
		query += "\nWHERE " + strings.Join(conds, " AND ")
	}
	query += "\nORDER BY t.transacted_at, t.id, s.position"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var (
		out  []core.Transaction
		last *core.Transaction
	)
	for rows.Next() {
		var (
			t          core.Transaction
			categoryID sql.NullInt64
			amount     sql.NullFloat64
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Amount, &t.TransactedAt, &t.PayeeID, &t.Description,
			&categoryID, &amount); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if last == nil || last.ID != t.ID {
			out = append(out, t)
			last = &out[len(out)-1]
		}
		if amount.Valid {
			last.Splits = append(last.Splits, core.Split{
				CategoryID: int(categoryID.Int64),
				Amount:     amount.Float64,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// RefData implements ledger.Reader.
func (r *SQLiteRepository) RefData(ctx context.Context) (core.RefData, error) {
	categories, err := r.listCategories(ctx)
	if err != nil {
		return core.RefData{}, err
	}
	groups, err := r.listGroups(ctx)
	if err != nil {
		return core.RefData{}, err
	}
	payees, err := r.listPayees(ctx)
	if err != nil {
		return core.RefData{}, err
	}
	accounts, err := r.listAccounts(ctx)
	if err != nil {
		return core.RefData{}, err
	}
	return core.NewRefData(categories, groups, payees, accounts), nil
}

func (r *SQLiteRepository) listCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, group_id, budget FROM categories")
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.GroupID, &c.Budget); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) listGroups(ctx context.Context) ([]core.Group, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name FROM groups")
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var out []core.Group
	for rows.Next() {
		var g core.Group
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) listPayees(ctx context.Context) ([]core.Payee, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, category_id FROM payees")
	if err != nil {
		return nil, fmt.Errorf("list payees: %w", err)
	}
	defer rows.Close()

	var out []core.Payee
	for rows.Next() {
		var p core.Payee
		if err := rows.Scan(&p.ID, &p.Name, &p.CategoryID); err != nil {
			return nil, fmt.Errorf("scan payee: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) listAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, alt_name, currency, type, hidden, balance FROM accounts")
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.AltName, &a.Currency, &a.Type, &a.Hidden, &a.Balance); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpsertReferenceData replaces reference rows by primary key in one
// transaction. Rows absent from the input are left alone; the upstream feed
// is additive.
func (r *SQLiteRepository) UpsertReferenceData(ctx context.Context, categories []core.Category, groups []core.Group, payees []core.Payee, accounts []core.Account) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reference upsert: %w", err)
	}
	defer tx.Rollback()

	for _, g := range groups {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO groups (id, name) VALUES (?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
			g.ID, g.Name); err != nil {
			return fmt.Errorf("upsert group %d: %w", g.ID, err)
		}
	}
	for _, c := range categories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO categories (id, name, group_id, budget) VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name, group_id = excluded.group_id, budget = excluded.budget`,
			c.ID, c.Name, c.GroupID, c.Budget); err != nil {
			return fmt.Errorf("upsert category %d: %w", c.ID, err)
		}
	}
	for _, p := range payees {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO payees (id, name, category_id) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name, category_id = excluded.category_id`,
			p.ID, p.Name, p.CategoryID); err != nil {
			return fmt.Errorf("upsert payee %d: %w", p.ID, err)
		}
	}
	for _, a := range accounts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (id, name, alt_name, currency, type, hidden, balance) VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name, alt_name = excluded.alt_name,
			     currency = excluded.currency, type = excluded.type, hidden = excluded.hidden, balance = excluded.balance`,
			a.ID, a.Name, a.AltName, a.Currency, string(a.Type), a.Hidden, a.Balance); err != nil {
			return fmt.Errorf("upsert account %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reference upsert: %w", err)
	}
	return nil
}

// SaveTransactions validates and upserts transactions with their splits.
// Re-delivered transactions replace their previous splits, so at-least-once
// messaging never duplicates rows.
func (r *SQLiteRepository) SaveTransactions(ctx context.Context, transactions []core.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction upsert: %w", err)
	}
	defer tx.Rollback()

	for _, t := range transactions {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transactions (id, account_id, amount, transacted_at, payee_id, description)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET account_id = excluded.account_id, amount = excluded.amount,
			     transacted_at = excluded.transacted_at, payee_id = excluded.payee_id, description = excluded.description`,
			t.ID, t.AccountID, t.Amount, t.TransactedAt.UTC(), t.PayeeID, t.Description); err != nil {
			return fmt.Errorf("upsert transaction %s: %w", t.ID, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM splits WHERE transaction_id = ?", t.ID); err != nil {
			return fmt.Errorf("clear splits for %s: %w", t.ID, err)
		}
		for i, s := range t.Splits {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO splits (transaction_id, position, category_id, amount) VALUES (?, ?, ?, ?)",
				t.ID, i, s.CategoryID, s.Amount); err != nil {
				return fmt.Errorf("insert split %d for %s: %w", i, t.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction upsert: %w", err)
	}

	slog.InfoContext(ctx, "Transactions saved", "count", len(transactions))
	return nil
}

// SaveReportSnapshot stores the serialized envelope for a report kind,
// replacing the previous snapshot.
func (r *SQLiteRepository) SaveReportSnapshot(ctx context.Context, kind string, payload []byte, generatedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO report_snapshots (kind, payload, generated_at) VALUES (?, ?, ?)
		 ON CONFLICT(kind) DO UPDATE SET payload = excluded.payload, generated_at = excluded.generated_at`,
		kind, string(payload), generatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save report snapshot %s: %w", kind, err)
	}
	return nil
}

// LoadReportSnapshot returns the stored envelope for a report kind.
func (r *SQLiteRepository) LoadReportSnapshot(ctx context.Context, kind string) ([]byte, time.Time, error) {
	var (
		payload     string
		generatedAt time.Time
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT payload, generated_at FROM report_snapshots WHERE kind = ?", kind).
		Scan(&payload, &generatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load report snapshot %s: %w", kind, err)
	}
	return []byte(payload), generatedAt, nil
}
