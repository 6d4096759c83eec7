package repository

import (
	"context"
	"time"

	"github.com/mr1hm/go-accident-alerts/internal/models"
)

type Filter struct {
	Source   *models.Source
	Severity *models.Severity
	Since    *time.Time
}

// Cursor is the (created_at, id) key of the last row of the previous page.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

type PageQuery struct {
	Filter
	After *Cursor
	Limit int
}

// ReportRepository is the persistence collaborator behind the report store.
// Pages are ordered newest first, ties broken by id descending.
type ReportRepository interface {
	// Insert is idempotent on report ID: re-inserting an existing ID is a no-op.
	Insert(ctx context.Context, r *models.AccidentReport) error
	GetByID(ctx context.Context, id string) (*models.AccidentReport, error)
	ListPage(ctx context.Context, q PageQuery) ([]models.AccidentReport, error)
	Close() error
}
