package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mr1hm/go-accident-alerts/internal/apperr"
	"github.com/mr1hm/go-accident-alerts/internal/models"
	_ "modernc.org/sqlite"
)

type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// Single writer; also keeps :memory: databases on one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS accident_reports (
			id TEXT PRIMARY KEY,
			reporter_ref TEXT,
			latitude REAL,
			longitude REAL,
			severity TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_accident_reports_created ON accident_reports(created_at DESC, id DESC);
		CREATE INDEX IF NOT EXISTS idx_accident_reports_source ON accident_reports(source);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Insert(ctx context.Context, r *models.AccidentReport) error {
	const query = `
		INSERT INTO accident_reports (id, reporter_ref, latitude, longitude, severity, description, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		r.ReporterRef,
		r.Latitude,
		r.Longitude,
		string(r.Severity),
		r.Description,
		string(r.Source),
		r.CreatedAt.UnixNano(),
	)
	if err != nil {
		return apperr.Unavailable("sqlite.Insert", err)
	}
	return nil
}

func (s *SQLiteDB) GetByID(ctx context.Context, id string) (*models.AccidentReport, error) {
	const query = `
		SELECT id, reporter_ref, latitude, longitude, severity, description, source, created_at
		FROM accident_reports
		WHERE id = ?
	`

	r, err := scanReport(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sqlite.GetByID %s: %w", id, apperr.ErrNotFound)
		}
		return nil, apperr.Unavailable("sqlite.GetByID", err)
	}
	return r, nil
}

func (s *SQLiteDB) ListPage(ctx context.Context, q PageQuery) ([]models.AccidentReport, error) {
	var (
		where []string
		args  []any
	)
	if q.Source != nil {
		where = append(where, "source = ?")
		args = append(args, string(*q.Source))
	}
	if q.Severity != nil {
		where = append(where, "severity = ?")
		args = append(args, string(*q.Severity))
	}
	if q.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, q.Since.UnixNano())
	}
	if q.After != nil {
		where = append(where, "(created_at < ? OR (created_at = ? AND id < ?))")
		n := q.After.CreatedAt.UnixNano()
		args = append(args, n, n, q.After.ID)
	}

	query := `SELECT id, reporter_ref, latitude, longitude, severity, description, source, created_at FROM accident_reports`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Unavailable("sqlite.ListPage", err)
	}
	defer rows.Close()

	var reports []models.AccidentReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, apperr.Unavailable("sqlite.ListPage", err)
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unavailable("sqlite.ListPage", err)
	}
	return reports, nil
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.AccidentReport, error) {
	var (
		r         models.AccidentReport
		reporter  sql.NullString
		lat, lon  sql.NullFloat64
		severity  string
		source    string
		createdAt int64
	)
	if err := row.Scan(&r.ID, &reporter, &lat, &lon, &severity, &r.Description, &source, &createdAt); err != nil {
		return nil, err
	}
	if reporter.Valid {
		r.ReporterRef = &reporter.String
	}
	if lat.Valid {
		r.Latitude = &lat.Float64
	}
	if lon.Valid {
		r.Longitude = &lon.Float64
	}
	r.Severity = models.Severity(severity)
	r.Source = models.Source(source)
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	return &r, nil
}
