package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/XSFORM/XMPLUS-info/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

const recordColumns = `id, user_id, username, due_date, dealer, chat_id,
       notified_count, last_notified_at, created_at`

func scanRecord(sc interface{ Scan(...any) error }) (domain.Record, error) {
	var (
		rec       domain.Record
		dueText   string
		chatNS    sql.NullInt64
		lastNS    sql.NullInt64
		createdAt int64
	)
	if err := sc.Scan(
		&rec.ID, &rec.UserID, &rec.Username, &dueText, &rec.Dealer,
		&chatNS, &rec.NotifiedCount, &lastNS, &createdAt,
	); err != nil {
		return rec, err
	}
	due, err := domain.ParseWall(dueText)
	if err != nil {
		return rec, fmt.Errorf("record %d: %w", rec.ID, err)
	}
	rec.Due = due
	rec.ChatID = chatFromNull(chatNS)
	rec.LastNotifiedAt = timeFromNull(lastNS)
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	return rec, nil
}

// filterClause renders a Filter into a WHERE fragment and its arguments.
func filterClause(f Filter) (string, []any) {
	if f.Dealer == "" {
		return "", nil
	}
	return " WHERE dealer = ?", []any{f.Dealer}
}

// Create inserts a record and fills in its assigned id.
func (r *SQLiteRepo) Create(ctx context.Context, rec *domain.Record) error {
	if rec == nil {
		return errors.New("nil record")
	}
	if rec.Dealer == "" {
		rec.Dealer = domain.DefaultDealer
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO records (
			user_id, username, due_date, dealer, chat_id,
			notified_count, last_notified_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.Username, rec.Due.String(), rec.Dealer,
		chatToNull(rec.ChatID), rec.NotifiedCount,
		timeToNull(rec.LastNotifiedAt), rec.CreatedAt.UTC().Unix(),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = id
	return nil
}

// GetByID returns a record by id or ErrNotFound.
func (r *SQLiteRepo) GetByID(ctx context.Context, id int64) (*domain.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns records matching the filter, soonest due first. The canonical
// due_date text ordering is chronological.
func (r *SQLiteRepo) List(ctx context.Context, f Filter) ([]domain.Record, error) {
	where, args := filterClause(f)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records`+where+` ORDER BY due_date ASC, id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// FindByUserID returns records for one end-user, narrowed by the filter.
func (r *SQLiteRepo) FindByUserID(ctx context.Context, userID int64, f Filter) ([]domain.Record, error) {
	q := `SELECT ` + recordColumns + ` FROM records WHERE user_id = ?`
	args := []any{userID}
	if f.Dealer != "" {
		q += ` AND dealer = ?`
		args = append(args, f.Dealer)
	}
	q += ` ORDER BY due_date ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

func collectRecords(rows *sql.Rows) ([]domain.Record, error) {
	var res []domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Count returns the number of records matching the filter.
func (r *SQLiteRepo) Count(ctx context.Context, f Filter) (int, error) {
	where, args := filterClause(f)
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`+where, args...).Scan(&n)
	return n, err
}

// CountByDealer returns record counts grouped by dealer tag.
func (r *SQLiteRepo) CountByDealer(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT dealer, COUNT(*) FROM records GROUP BY dealer`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make(map[string]int)
	for rows.Next() {
		var dealer string
		var n int
		if err := rows.Scan(&dealer, &n); err != nil {
			return nil, err
		}
		res[dealer] = n
	}
	return res, rows.Err()
}

// SetDue replaces the due date and re-arms notifications for the record.
func (r *SQLiteRepo) SetDue(ctx context.Context, id int64, due domain.WallTime) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE records
		SET due_date = ?, notified_count = 0, last_notified_at = NULL
		WHERE id = ?`,
		due.String(), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a single record.
func (r *SQLiteRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByUserID removes every record for one end-user within the filter and
// reports how many were removed.
func (r *SQLiteRepo) DeleteByUserID(ctx context.Context, userID int64, f Filter) (int64, error) {
	q := `DELETE FROM records WHERE user_id = ?`
	args := []any{userID}
	if f.Dealer != "" {
		q += ` AND dealer = ?`
		args = append(args, f.Dealer)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReassignDealer retags all records whose user id is in ids, atomically.
func (r *SQLiteRepo) ReassignDealer(ctx context.Context, ids []int64, dealer string) (ReassignResult, error) {
	var out ReassignResult
	if len(ids) == 0 {
		return out, nil
	}

	ph := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return out, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT dealer FROM records WHERE user_id IN (`+ph+`)`, args...)
	if err != nil {
		return out, err
	}
	for rows.Next() {
		var cur string
		if err := rows.Scan(&cur); err != nil {
			_ = rows.Close()
			return out, err
		}
		out.Found++
		if cur != dealer {
			out.Changed++
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return out, err
	}
	_ = rows.Close()

	if _, err := tx.ExecContext(ctx,
		`UPDATE records SET dealer = ? WHERE user_id IN (`+ph+`)`,
		append([]any{dealer}, args...)...); err != nil {
		return ReassignResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return ReassignResult{}, err
	}
	return out, nil
}

// ApplyNotifications persists one tick's bookkeeping in a single transaction.
func (r *SQLiteRepo) ApplyNotifications(ctx context.Context, ups []NotificationUpdate) error {
	if len(ups) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, up := range ups {
		if _, err := tx.ExecContext(ctx, `
			UPDATE records
			SET notified_count = ?, last_notified_at = ?
			WHERE id = ?`,
			up.NotifiedCount, up.LastNotifiedAt.UTC().Unix(), up.ID,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
