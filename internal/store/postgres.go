package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/purchase-planner/internal/db"
	"github.com/sells-group/purchase-planner/internal/model"
	"github.com/sells-group/purchase-planner/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool. Connecting is
// retried while the server reports transient failures.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := resilience.DoVal(ctx, resilience.DatabasePolicy("postgres connect"), func(ctx context.Context) (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
		if err != nil {
			return nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return pool, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS plans (
	id         TEXT PRIMARY KEY,
	list_name  TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL,
	total      NUMERIC(14,2) NOT NULL DEFAULT 0,
	body       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS plan_lines (
	plan_id    TEXT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
	product    TEXT NOT NULL,
	vendor     TEXT NOT NULL,
	quantity   INTEGER NOT NULL,
	unit_price NUMERIC(14,4) NOT NULL,
	line_total NUMERIC(14,4) NOT NULL,
	shipping   NUMERIC(14,4) NOT NULL,
	url        TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (plan_id, product)
);

CREATE INDEX IF NOT EXISTS idx_plans_status ON plans(status);
CREATE INDEX IF NOT EXISTS idx_plans_list_name ON plans(list_name);
CREATE INDEX IF NOT EXISTS idx_plan_lines_vendor ON plan_lines(vendor);
`

var planLineColumns = []string{"plan_id", "product", "vendor", "quantity", "unit_price", "line_total", "shipping", "url"}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	err := resilience.Do(ctx, resilience.DatabasePolicy("postgres migrate"), func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, postgresMigration)
		return err
	})
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SavePlan upserts the plan row and rewrites its lines with COPY, in one
// transaction.
func (s *PostgresStore) SavePlan(ctx context.Context, p *model.Plan) error {
	prepare(p)
	body, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal plan")
	}

	err = db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO plans (id, list_name, status, total, body, created_at) VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET list_name = EXCLUDED.list_name, status = EXCLUDED.status,
				total = EXCLUDED.total, body = EXCLUDED.body`,
			p.ID, p.ListName, string(p.Status), numeric(p.Total()), body, p.CreatedAt,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: upsert plan")
		}
		if _, err := tx.Exec(ctx, `DELETE FROM plan_lines WHERE plan_id = $1`, p.ID); err != nil {
			return eris.Wrap(err, "postgres: clear plan lines")
		}
		_, err = db.CopyFrom(ctx, tx, "plan_lines", planLineColumns, planLineRows(p))
		return err
	})
	return eris.Wrapf(err, "postgres: save plan %s", p.ID)
}

// planLineRows flattens a solved plan into one row per purchased product.
func planLineRows(p *model.Plan) [][]any {
	if p.Solution == nil {
		return nil
	}
	var rows [][]any
	for _, o := range p.Solution.Orders {
		for _, it := range o.Items {
			rows = append(rows, []any{
				p.ID, it.Product(), o.Vendor, it.Quantity(),
				numeric(it.UnitPrice()), numeric(it.LineTotal()), numeric(it.Shipping()), it.URL(),
			})
		}
	}
	return rows
}

func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func (s *PostgresStore) GetPlan(ctx context.Context, id string) (*model.Plan, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM plans WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres: get plan %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get plan %s", id)
	}
	return decodePlan(body)
}

func (s *PostgresStore) ListPlans(ctx context.Context, filter PlanFilter) ([]model.Plan, error) {
	query := `SELECT body FROM plans WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.ListName != "" {
		query += fmt.Sprintf(` AND list_name = $%d`, argIdx)
		args = append(args, filter.ListName)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, argIdx, argIdx+1)
	args = append(args, filter.limit(), filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list plans")
	}
	defer rows.Close()

	var plans []model.Plan
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, eris.Wrap(err, "postgres: scan plan")
		}
		p, err := decodePlan(body)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}
	return plans, eris.Wrap(rows.Err(), "postgres: iterate plans")
}

func (s *PostgresStore) DeletePlan(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM plans WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete plan %s", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: plan %s: %w", id, ErrNotFound)
	}
	return nil
}
