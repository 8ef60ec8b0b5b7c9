package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/visibility/internal/domain"
)

// runSelectList is the column list for SELECT/RETURNING on visibility_runs
// (single source for schema changes)
const runSelectList = `id, project_id, audit_id, domain, hostname, etld1, sources,
			status, intent_count, score, coverage, error_message,
			created_at, started_at, finished_at`

// RunRepository manages visibility runs in PostgreSQL.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new repository
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run in the queued state.
func (r *RunRepository) Create(ctx context.Context, run *domain.Run) error {
	query := `
		INSERT INTO visibility_runs
			(id, project_id, audit_id, domain, hostname, etld1, sources, status, intent_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'queued', $8)
		RETURNING created_at`

	err := r.db.QueryRowxContext(ctx, query,
		run.ID, run.ProjectID, run.AuditID, run.Domain, run.Hostname,
		run.ETLD1, run.Sources, run.IntentCount,
	).Scan(&run.CreatedAt)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	run.Status = domain.RunStatusQueued
	return nil
}

// ClaimNext atomically claims the oldest queued run, marking it running in a
// single conditional update. Uses FOR UPDATE SKIP LOCKED for concurrent
// worker safety. Returns domain.ErrNotFound when nothing is queued.
func (r *RunRepository) ClaimNext(ctx context.Context) (*domain.Run, error) {
	query := `
		UPDATE visibility_runs
		SET status = 'running', started_at = NOW()
		WHERE id IN (
			SELECT id FROM visibility_runs
			WHERE status = 'queued'
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + runSelectList

	var run domain.Run
	if err := r.db.GetContext(ctx, &run, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("claim next run: %w", err)
	}
	return &run, nil
}

// GetByID fetches a run.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	query := `SELECT ` + runSelectList + ` FROM visibility_runs WHERE id = $1`

	var run domain.Run
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}

// LatestByAudit fetches the most recent run for an audit.
func (r *RunRepository) LatestByAudit(ctx context.Context, auditID string) (*domain.Run, error) {
	query := `SELECT ` + runSelectList + `
		FROM visibility_runs
		WHERE audit_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var run domain.Run
	if err := r.db.GetContext(ctx, &run, query, auditID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("latest run by audit: %w", err)
	}
	return &run, nil
}

// FindRecentCompleted returns the newest successful run for a project+domain
// started within the window, used for run reuse.
func (r *RunRepository) FindRecentCompleted(ctx context.Context, projectID, hostname string, window time.Duration) (*domain.Run, error) {
	query := `SELECT ` + runSelectList + `
		FROM visibility_runs
		WHERE project_id = $1
		  AND hostname = $2
		  AND status = 'success'
		  AND started_at > NOW() - $3::interval
		ORDER BY started_at DESC
		LIMIT 1`

	var run domain.Run
	err := r.db.GetContext(ctx, &run, query, projectID, hostname, window.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find recent completed run: %w", err)
	}
	return &run, nil
}

// MarkSuccess finalizes a running run with its summary numbers.
func (r *RunRepository) MarkSuccess(ctx context.Context, id string, score, coverage float64, intentCount int) error {
	query := `
		UPDATE visibility_runs
		SET status = 'success',
		    score = $2,
		    coverage = $3,
		    intent_count = $4,
		    finished_at = NOW()
		WHERE id = $1 AND status = 'running'`
	if err := r.execExpectOneRow(ctx, query, id, score, coverage, intentCount); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("mark run success: %w", err)
	}
	return nil
}

// MarkError finalizes a run with a failure reason. Works from both queued and
// running so guard failures can finalize unclaimed runs too.
func (r *RunRepository) MarkError(ctx context.Context, id, reason string) error {
	query := `
		UPDATE visibility_runs
		SET status = 'error',
		    error_message = $2,
		    finished_at = NOW()
		WHERE id = $1 AND status IN ('queued', 'running')`
	if err := r.execExpectOneRow(ctx, query, id, reason); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("mark run error: %w", err)
	}
	return nil
}

// EvictTimedOut finalizes running runs whose started_at is older than the
// ceiling. Returns the number of evicted runs.
func (r *RunRepository) EvictTimedOut(ctx context.Context, ceiling time.Duration) (int64, error) {
	query := `
		UPDATE visibility_runs
		SET status = 'error',
		    error_message = $2,
		    finished_at = NOW()
		WHERE status = 'running'
		  AND started_at < NOW() - $1::interval`

	result, err := r.db.ExecContext(ctx, query, ceiling.String(), domain.ErrRunTimeout.Error())
	if err != nil {
		return 0, fmt.Errorf("evict timed out runs: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get affected rows: %w", err)
	}
	return rows, nil
}

// Stats returns run counts over the trailing window.
func (r *RunRepository) Stats(ctx context.Context, window time.Duration) (*domain.RunStats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'queued') AS queued,
			COUNT(*) FILTER (WHERE status = 'running') AS running,
			COUNT(*) FILTER (WHERE status = 'success') AS succeeded,
			COUNT(*) FILTER (WHERE status = 'error') AS failed
		FROM visibility_runs
		WHERE created_at > NOW() - $1::interval`

	var stats domain.RunStats
	if err := r.db.GetContext(ctx, &stats, query, window.String()); err != nil {
		return nil, fmt.Errorf("run stats: %w", err)
	}
	if done := stats.Succeeded + stats.Failed; done > 0 {
		stats.SuccessRate = float64(stats.Succeeded) / float64(done)
	}
	return &stats, nil
}

// execExpectOneRow runs an exec and returns domain.ErrNotFound when no row was affected
func (r *RunRepository) execExpectOneRow(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return fmt.Errorf("get affected rows: %w", rowsErr)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
