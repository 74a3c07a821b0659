// Package usuarios persists the Usuario entity. It has no HTTP surface and
// no relation to tasks.
package usuarios

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("usuario not found")

type Usuario struct {
	ID int64 `json:"id"`
}

type Repo struct {
	db       *sql.DB
	numbered bool
}

func NewRepo(db *sql.DB, driver string) *Repo {
	return &Repo{db: db, numbered: driver == "postgres"}
}

// Save inserts a new row and returns it with the assigned id.
func (r *Repo) Save(ctx context.Context) (Usuario, error) {
	var u Usuario
	if err := r.db.QueryRowContext(ctx, `INSERT INTO usuarios DEFAULT VALUES RETURNING id`).Scan(&u.ID); err != nil {
		return Usuario{}, fmt.Errorf("insert usuario: %w", err)
	}
	return u, nil
}

func (r *Repo) FindByID(ctx context.Context, id int64) (Usuario, error) {
	var u Usuario
	err := r.db.QueryRowContext(ctx, `SELECT id FROM usuarios WHERE id = `+r.param(), id).Scan(&u.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return Usuario{}, ErrNotFound
	}
	if err != nil {
		return Usuario{}, fmt.Errorf("get usuario %d: %w", id, err)
	}
	return u, nil
}

func (r *Repo) FindAll(ctx context.Context) ([]Usuario, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM usuarios ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query usuarios: %w", err)
	}
	defer rows.Close()

	out := []Usuario{}
	for rows.Next() {
		var u Usuario
		if err := rows.Scan(&u.ID); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repo) DeleteByID(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM usuarios WHERE id = `+r.param(), id)
	if err != nil {
		return fmt.Errorf("delete usuario %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete usuario %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) param() string {
	if r.numbered {
		return "$1"
	}
	return "?"
}
