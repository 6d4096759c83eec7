package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mr1hm/go-accident-alerts/internal/apperr"
	"github.com/mr1hm/go-accident-alerts/internal/models"
)

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(ctx context.Context, dsn string) (*PostgresDB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("error parsing postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while pinging postgres: %w", err)
	}

	p := &PostgresDB{pool: pool}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while migrating postgres: %w", err)
	}
	return p, nil
}

func (p *PostgresDB) migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accident_reports (
			id text PRIMARY KEY,
			reporter_ref text,
			latitude double precision,
			longitude double precision,
			severity text NOT NULL,
			description text NOT NULL DEFAULT '',
			source text NOT NULL,
			created_at timestamptz NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_accident_reports_created ON accident_reports (created_at DESC, id DESC);
	`)
	return err
}

func (p *PostgresDB) Insert(ctx context.Context, r *models.AccidentReport) error {
	const op = "postgres.Insert"

	const query = `
		INSERT INTO accident_reports (id, reporter_ref, latitude, longitude, severity, description, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := p.pool.Exec(ctx, query,
		r.ID,
		r.ReporterRef,
		r.Latitude,
		r.Longitude,
		string(r.Severity),
		r.Description,
		string(r.Source),
		r.CreatedAt,
	)
	if err != nil {
		return apperr.Unavailable(op, err)
	}
	return nil
}

func (p *PostgresDB) GetByID(ctx context.Context, id string) (*models.AccidentReport, error) {
	const op = "postgres.GetByID"

	const query = `
		SELECT id, reporter_ref, latitude, longitude, severity, description, source, created_at
		FROM accident_reports
		WHERE id = $1
	`

	r, err := scanPgReport(p.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s %s: %w", op, id, apperr.ErrNotFound)
		}
		return nil, apperr.Unavailable(op, err)
	}
	return r, nil
}

func (p *PostgresDB) ListPage(ctx context.Context, q PageQuery) ([]models.AccidentReport, error) {
	const op = "postgres.ListPage"

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Source != nil {
		where = append(where, "source = "+arg(string(*q.Source)))
	}
	if q.Severity != nil {
		where = append(where, "severity = "+arg(string(*q.Severity)))
	}
	if q.Since != nil {
		where = append(where, "created_at >= "+arg(*q.Since))
	}
	if q.After != nil {
		where = append(where, fmt.Sprintf("(created_at, id) < (%s, %s)", arg(q.After.CreatedAt), arg(q.After.ID)))
	}

	query := `SELECT id, reporter_ref, latitude, longitude, severity, description, source, created_at FROM accident_reports`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if q.Limit > 0 {
		query += " LIMIT " + arg(q.Limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Unavailable(op, err)
	}
	defer rows.Close()

	var reports []models.AccidentReport
	for rows.Next() {
		r, err := scanPgReport(rows)
		if err != nil {
			return nil, apperr.Unavailable(op, err)
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unavailable(op, err)
	}
	return reports, nil
}

func (p *PostgresDB) Close() error {
	p.pool.Close()
	return nil
}

func scanPgReport(row pgx.Row) (*models.AccidentReport, error) {
	var (
		r        models.AccidentReport
		severity string
		source   string
	)
	if err := row.Scan(&r.ID, &r.ReporterRef, &r.Latitude, &r.Longitude, &severity, &r.Description, &source, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Severity = models.Severity(severity)
	r.Source = models.Source(source)
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}
