package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mr1hm/go-accident-alerts/internal/apperr"
	"github.com/mr1hm/go-accident-alerts/internal/models"
	"github.com/mr1hm/go-accident-alerts/internal/repository"
)

type Config struct {
	MaxAttempts    int
	RetryBackoff   time.Duration
	PageSize       int
	MaxDescription int
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		RetryBackoff:   100 * time.Millisecond,
		PageSize:       50,
		MaxDescription: 2000,
	}
}

type ListOptions struct {
	repository.Filter
	// Limit bounds the number of records yielded; zero means no bound.
	Limit int
}

// Store owns the persisted representation of accident reports. Reports are
// written once and never updated.
type Store struct {
	repo repository.ReportRepository
	cfg  Config

	mu  sync.Mutex // serializes id and timestamp assignment
	now func() time.Time
}

func New(repo repository.ReportRepository, cfg Config) *Store {
	def := DefaultConfig()
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RetryBackoff < 0 {
		cfg.RetryBackoff = 0
	}
	if cfg.PageSize < 1 {
		cfg.PageSize = def.PageSize
	}
	if cfg.MaxDescription < 1 {
		cfg.MaxDescription = def.MaxDescription
	}
	return &Store{
		repo: repo,
		cfg:  cfg,
		now:  time.Now,
	}
}

func (s *Store) MaxDescription() int {
	return s.cfg.MaxDescription
}

// Save validates the report, assigns any missing id and timestamp, and writes it
// with a bounded number of attempts. The returned record is the stored one.
func (s *Store) Save(ctx context.Context, r models.AccidentReport) (models.AccidentReport, error) {
	if err := s.Validate(&r); err != nil {
		return models.AccidentReport{}, err
	}
	supplied := r.ID != ""
	if err := s.assign(&r); err != nil {
		return models.AccidentReport{}, err
	}

	var err error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if err = s.repo.Insert(ctx, &r); err == nil {
			if supplied {
				return s.stored(ctx, r)
			}
			return r, nil
		}
		if !errors.Is(err, apperr.ErrStoreUnavailable) {
			return models.AccidentReport{}, err
		}

		slog.Warn("report insert failed", "id", r.ID, "attempt", attempt, "error", err)
		if attempt == s.cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return models.AccidentReport{}, fmt.Errorf("store.Save: %w", ctx.Err())
		case <-time.After(time.Duration(attempt) * s.cfg.RetryBackoff):
		}
	}

	slog.Error("report not persisted", "id", r.ID, "attempts", s.cfg.MaxAttempts, "error", err)
	return models.AccidentReport{}, err
}

// Validate checks required fields and the location-pair invariant.
func (s *Store) Validate(r *models.AccidentReport) error {
	if err := ValidateLocation(r.Latitude, r.Longitude); err != nil {
		return err
	}
	if !r.Severity.Valid() {
		return apperr.Validation("severity", fmt.Sprintf("unknown severity %q", r.Severity))
	}
	if !r.Source.Valid() {
		return apperr.Validation("source", fmt.Sprintf("unknown source %q", r.Source))
	}
	if n := utf8.RuneCountInString(r.Description); n > s.cfg.MaxDescription {
		return apperr.Validation("description", fmt.Sprintf("length %d exceeds %d", n, s.cfg.MaxDescription))
	}
	if r.ReporterRef != nil && strings.TrimSpace(*r.ReporterRef) == "" {
		r.ReporterRef = nil
	}
	return nil
}

// ValidateLocation enforces that latitude and longitude are both present or both
// absent, finite, and within range.
func ValidateLocation(lat, lon *float64) error {
	switch {
	case lat == nil && lon == nil:
		return nil
	case lat == nil:
		return apperr.Validation("latitude", "longitude supplied without latitude")
	case lon == nil:
		return apperr.Validation("longitude", "latitude supplied without longitude")
	}
	if math.IsNaN(*lat) || math.IsInf(*lat, 0) || *lat < -90 || *lat > 90 {
		return apperr.Validation("latitude", "must be a finite value in [-90, 90]")
	}
	if math.IsNaN(*lon) || math.IsInf(*lon, 0) || *lon < -180 || *lon > 180 {
		return apperr.Validation("longitude", "must be a finite value in [-180, 180]")
	}
	return nil
}

func (s *Store) assign(r *models.AccidentReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("store.assign: %w", err)
		}
		r.ID = id.String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	// Microsecond precision survives every backend round trip.
	r.CreatedAt = r.CreatedAt.UTC().Truncate(time.Microsecond)
	return nil
}

// stored re-reads r after an insert that may have hit an existing id, which
// the repository ignores.
func (s *Store) stored(ctx context.Context, r models.AccidentReport) (models.AccidentReport, error) {
	existing, err := s.repo.GetByID(ctx, r.ID)
	if err != nil {
		return models.AccidentReport{}, fmt.Errorf("store.Save: %w", err)
	}
	return *existing, nil
}

func (s *Store) Get(ctx context.Context, id string) (models.AccidentReport, error) {
	if strings.TrimSpace(id) == "" {
		return models.AccidentReport{}, apperr.Validation("id", "required")
	}
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return models.AccidentReport{}, err
	}
	return *r, nil
}

// List yields reports newest first, ties broken by id. Pages are fetched lazily;
// ranging over the sequence again restarts from the newest record.
func (s *Store) List(ctx context.Context, opts ListOptions) iter.Seq2[models.AccidentReport, error] {
	return func(yield func(models.AccidentReport, error) bool) {
		remaining := opts.Limit
		var after *repository.Cursor

		for {
			size := s.cfg.PageSize
			if opts.Limit > 0 && remaining < size {
				size = remaining
			}

			page, err := s.repo.ListPage(ctx, repository.PageQuery{
				Filter: opts.Filter,
				After:  after,
				Limit:  size,
			})
			if err != nil {
				yield(models.AccidentReport{}, err)
				return
			}

			for _, r := range page {
				if !yield(r, nil) {
					return
				}
			}

			remaining -= len(page)
			if len(page) < size || (opts.Limit > 0 && remaining <= 0) {
				return
			}
			last := page[len(page)-1]
			after = &repository.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
		}
	}
}

// Collect drains List into a slice.
func (s *Store) Collect(ctx context.Context, opts ListOptions) ([]models.AccidentReport, error) {
	reports := make([]models.AccidentReport, 0)
	for r, err := range s.List(ctx, opts) {
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}
