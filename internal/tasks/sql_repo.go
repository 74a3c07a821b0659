package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/s1natex/taskapi/internal/storage"
)

const taskColumns = `id, title, description, completed, created_at, updated_at`

// SQLRepo stores tasks in SQLite or PostgreSQL. Queries are written with
// '?' placeholders and rebound for drivers that number them.
type SQLRepo struct {
	db       *sql.DB
	numbered bool
	lower    string
}

func NewSQLRepo(db *sql.DB, driver string) *SQLRepo {
	return &SQLRepo{
		db:       db,
		numbered: driver == storage.DriverPostgres,
		lower:    storage.LowerFunc(driver),
	}
}

// Ping reports whether the database is reachable.
func (r *SQLRepo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *SQLRepo) Create(ctx context.Context, t Task) (Task, error) {
	now := time.Now().UTC()
	stamp := now.Format(time.RFC3339Nano)
	err := r.db.QueryRowContext(ctx, r.rebind(`
		INSERT INTO tasks (title, description, completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`), t.Title, t.Description, t.Completed, stamp, stamp).Scan(&t.ID)
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	return t, nil
}

func (r *SQLRepo) Get(ctx context.Context, id int64) (Task, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT `+taskColumns+`
		FROM tasks
		WHERE id = ?
	`), id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

func (r *SQLRepo) List(ctx context.Context) ([]Task, error) {
	return r.query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		ORDER BY id ASC
	`)
}

func (r *SQLRepo) ListByCompleted(ctx context.Context, completed bool) ([]Task, error) {
	return r.query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE completed = ?
		ORDER BY id ASC
	`, completed)
}

// SearchByTitle matches a case-insensitive substring of the title.
// LIKE wildcards in q are matched literally.
func (r *SQLRepo) SearchByTitle(ctx context.Context, q string) ([]Task, error) {
	return r.query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE `+r.lower+`(title) LIKE '%' || `+r.lower+`(?) || '%' ESCAPE '\'
		ORDER BY id ASC
	`, escapeLike(q))
}

func (r *SQLRepo) Update(ctx context.Context, t Task) (Task, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, r.rebind(`
		UPDATE tasks
		SET title = ?, description = ?, completed = ?, updated_at = ?
		WHERE id = ?
	`), t.Title, t.Description, t.Completed, now.Format(time.RFC3339Nano), t.ID)
	if err != nil {
		return Task{}, fmt.Errorf("update task %d: %w", t.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return Task{}, fmt.Errorf("update task %d: %w", t.ID, err)
	} else if n == 0 {
		return Task{}, ErrNotFound
	}
	return r.Get(ctx, t.ID)
}

func (r *SQLRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM tasks WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLRepo) query(ctx context.Context, q string, args ...any) ([]Task, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	out := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (Task, error) {
	var t Task
	var created, updated string
	if err := s.Scan(&t.ID, &t.Title, &t.Description, &t.Completed, &created, &updated); err != nil {
		return Task{}, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		t.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		t.UpdatedAt = ts
	}
	return t, nil
}

// rebind turns '?' placeholders into $1..$n for PostgreSQL.
func (r *SQLRepo) rebind(q string) string {
	if !r.numbered {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
