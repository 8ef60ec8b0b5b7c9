package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/visibility/internal/domain"
)

const resultSelectList = `id, run_id, intent_id, source, query, answer, raw,
			visibility_score, cached, created_at`

const citationSelectList = `id, result_id, rank, ref_url, ref_domain, title, snippet,
			is_audited_domain, created_at`

// ResultRepository manages per-(intent, source) results and their citations.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository creates a new repository
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Save inserts a result and its citations in one transaction. Citations must
// be safe for concurrent writers, so each (result, citations) batch commits
// atomically and independently.
func (r *ResultRepository) Save(ctx context.Context, result *domain.Result, citations []domain.Citation) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save result: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	resultInsert := `
		INSERT INTO visibility_results
			(id, run_id, intent_id, source, query, answer, raw, visibility_score, cached)
		VALUES (:id, :run_id, :intent_id, :source, :query, :answer, :raw, :visibility_score, :cached)`
	if _, err := tx.NamedExecContext(ctx, resultInsert, result); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	citationInsert := `
		INSERT INTO visibility_citations
			(id, result_id, rank, ref_url, ref_domain, title, snippet, is_audited_domain)
		VALUES (:id, :result_id, :rank, :ref_url, :ref_domain, :title, :snippet, :is_audited_domain)`
	for i := range citations {
		if _, err := tx.NamedExecContext(ctx, citationInsert, &citations[i]); err != nil {
			return fmt.Errorf("insert citation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save result: %w", err)
	}
	return nil
}

// ListByRun returns the results of a run, newest first.
func (r *ResultRepository) ListByRun(ctx context.Context, runID string, limit int) ([]domain.Result, error) {
	query := `SELECT ` + resultSelectList + `
		FROM visibility_results
		WHERE run_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	var results []domain.Result
	if err := r.db.SelectContext(ctx, &results, query, runID, limit); err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return results, nil
}

// ListBySource returns the results of a run for one source.
func (r *ResultRepository) ListBySource(ctx context.Context, runID, source string) ([]domain.Result, error) {
	query := `SELECT ` + resultSelectList + `
		FROM visibility_results
		WHERE run_id = $1 AND source = $2
		ORDER BY created_at ASC`

	var results []domain.Result
	if err := r.db.SelectContext(ctx, &results, query, runID, source); err != nil {
		return nil, fmt.Errorf("list results by source: %w", err)
	}
	return results, nil
}

// CitationsByRun returns all citations of a run ordered by result and rank.
func (r *ResultRepository) CitationsByRun(ctx context.Context, runID string) ([]domain.Citation, error) {
	query := `
		SELECT c.id, c.result_id, c.rank, c.ref_url, c.ref_domain, c.title,
		       c.snippet, c.is_audited_domain, c.created_at
		FROM visibility_citations c
		JOIN visibility_results res ON res.id = c.result_id
		WHERE res.run_id = $1
		ORDER BY c.result_id, c.rank`

	var citations []domain.Citation
	if err := r.db.SelectContext(ctx, &citations, query, runID); err != nil {
		return nil, fmt.Errorf("citations by run: %w", err)
	}
	return citations, nil
}

// DomainCount is a cited-domain frequency row.
type DomainCount struct {
	RefDomain string `db:"ref_domain" json:"ref_domain"`
	Count     int64  `db:"count" json:"count"`
}

// TopCitedDomains returns the most cited domains of a run.
func (r *ResultRepository) TopCitedDomains(ctx context.Context, runID string, limit int) ([]DomainCount, error) {
	query := `
		SELECT c.ref_domain, COUNT(*) AS count
		FROM visibility_citations c
		JOIN visibility_results res ON res.id = c.result_id
		WHERE res.run_id = $1
		GROUP BY c.ref_domain
		ORDER BY count DESC, c.ref_domain ASC
		LIMIT $2`

	var counts []DomainCount
	if err := r.db.SelectContext(ctx, &counts, query, runID, limit); err != nil {
		return nil, fmt.Errorf("top cited domains: %w", err)
	}
	return counts, nil
}

// SourceCount is a per-source citation count row.
type SourceCount struct {
	Source string `db:"source" json:"source"`
	Count  int64  `db:"count" json:"count"`
}

// CitationCountsBySource returns how many citations each source produced.
func (r *ResultRepository) CitationCountsBySource(ctx context.Context, runID string) ([]SourceCount, error) {
	query := `
		SELECT res.source, COUNT(c.id) AS count
		FROM visibility_results res
		LEFT JOIN visibility_citations c ON c.result_id = res.id
		WHERE res.run_id = $1
		GROUP BY res.source
		ORDER BY res.source`

	var counts []SourceCount
	if err := r.db.SelectContext(ctx, &counts, query, runID); err != nil {
		return nil, fmt.Errorf("citation counts by source: %w", err)
	}
	return counts, nil
}

// ExportRow is one CSV line of the citation export.
type ExportRow struct {
	Source          string         `db:"source"`
	Query           string         `db:"query"`
	RefDomain       string         `db:"ref_domain"`
	RefURL          string         `db:"ref_url"`
	Rank            int            `db:"rank"`
	IsAuditedDomain bool           `db:"is_audited_domain"`
	Title           string         `db:"title"`
	Snippet         sql.NullString `db:"snippet"`
	VisibilityScore float64        `db:"visibility_score"`
}

// ExportRows returns every citation of a run joined with its result, in a
// stable order for CSV export.
func (r *ResultRepository) ExportRows(ctx context.Context, runID string) ([]ExportRow, error) {
	query := `
		SELECT res.source, res.query, c.ref_domain, c.ref_url, c.rank,
		       c.is_audited_domain, c.title, c.snippet, res.visibility_score
		FROM visibility_citations c
		JOIN visibility_results res ON res.id = c.result_id
		WHERE res.run_id = $1
		ORDER BY res.source, res.query, c.rank`

	var rows []ExportRow
	if err := r.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, fmt.Errorf("export rows: %w", err)
	}
	return rows, nil
}
