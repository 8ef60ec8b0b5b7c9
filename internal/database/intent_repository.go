package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/visibility/internal/domain"
)

const intentSelectList = `id, project_id, domain, query, intent_type, weight, source_hint, created_at`

// IntentRepository manages generated intents in PostgreSQL.
type IntentRepository struct {
	db *sqlx.DB
}

// NewIntentRepository creates a new repository
func NewIntentRepository(db *sqlx.DB) *IntentRepository {
	return &IntentRepository{db: db}
}

// ReplaceForDomain replaces the intent set for a project+domain in one
// transaction, so regeneration never accumulates duplicates.
func (r *IntentRepository) ReplaceForDomain(ctx context.Context, projectID, hostname string, intents []domain.Intent) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace intents: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM visibility_intents WHERE project_id = $1 AND domain = $2`,
		projectID, hostname); err != nil {
		return fmt.Errorf("delete old intents: %w", err)
	}

	insert := `
		INSERT INTO visibility_intents
			(id, project_id, domain, query, intent_type, weight, source_hint)
		VALUES (:id, :project_id, :domain, :query, :intent_type, :weight, :source_hint)`
	for i := range intents {
		if _, err := tx.NamedExecContext(ctx, insert, &intents[i]); err != nil {
			return fmt.Errorf("insert intent: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace intents: %w", err)
	}
	return nil
}

// ListByDomain returns the intent set for a project+domain, heaviest first.
func (r *IntentRepository) ListByDomain(ctx context.Context, projectID, hostname string, limit int) ([]domain.Intent, error) {
	query := `SELECT ` + intentSelectList + `
		FROM visibility_intents
		WHERE project_id = $1 AND domain = $2
		ORDER BY weight DESC, created_at ASC
		LIMIT $3`

	var intents []domain.Intent
	if err := r.db.SelectContext(ctx, &intents, query, projectID, hostname, limit); err != nil {
		return nil, fmt.Errorf("list intents: %w", err)
	}
	return intents, nil
}

// CountByDomain returns how many intents exist for a project+domain.
func (r *IntentRepository) CountByDomain(ctx context.Context, projectID, hostname string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM visibility_intents WHERE project_id = $1 AND domain = $2`,
		projectID, hostname)
	if err != nil {
		return 0, fmt.Errorf("count intents: %w", err)
	}
	return count, nil
}
