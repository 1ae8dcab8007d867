package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/purchase-planner/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS plans (
	id         TEXT PRIMARY KEY,
	list_name  TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL,
	total      TEXT NOT NULL DEFAULT '0',
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_plans_status ON plans(status);
CREATE INDEX IF NOT EXISTS idx_plans_list_name ON plans(list_name);
CREATE INDEX IF NOT EXISTS idx_plans_created_at ON plans(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SavePlan(ctx context.Context, p *model.Plan) error {
	prepare(p)
	body, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal plan")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO plans (id, list_name, status, total, body, created_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET list_name = excluded.list_name, status = excluded.status,
			total = excluded.total, body = excluded.body`,
		p.ID, p.ListName, string(p.Status), p.Total().String(), string(body), p.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save plan %s", p.ID)
}

func (s *SQLiteStore) GetPlan(ctx context.Context, id string) (*model.Plan, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM plans WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite: get plan %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get plan %s", id)
	}
	return decodePlan([]byte(body))
}

func (s *SQLiteStore) ListPlans(ctx context.Context, filter PlanFilter) ([]model.Plan, error) {
	query := `SELECT body FROM plans WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.ListName != "" {
		query += ` AND list_name = ?`
		args = append(args, filter.ListName)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.limit(), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list plans")
	}
	defer rows.Close() //nolint:errcheck

	var plans []model.Plan
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan plan")
		}
		p, err := decodePlan([]byte(body))
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}
	return plans, eris.Wrap(rows.Err(), "sqlite: iterate plans")
}

func (s *SQLiteStore) DeletePlan(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete plan %s", id)
	}
	return checkRowsAffected(res, id)
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return fmt.Errorf("sqlite: plan %s: %w", id, ErrNotFound)
	}
	return nil
}

func decodePlan(body []byte) (*model.Plan, error) {
	var p model.Plan
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal plan")
	}
	return &p, nil
}
