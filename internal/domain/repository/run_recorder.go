package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"mkrew_service/internal/domain/model"
)

// RunRecorder пишет журнал попыток сбора (одна запись на попытку).
type RunRecorder interface {
	RecordRun(ctx context.Context, run *model.IngestionRun) error
	RecentRuns(ctx context.Context, sourceCode string, limit int) ([]model.IngestionRun, error)
}

type PostgresRunRecorder struct {
	db *sqlx.DB
}

func NewPostgresRunRecorder(db *sqlx.DB) *PostgresRunRecorder {
	return &PostgresRunRecorder{db: db}
}

func (r *PostgresRunRecorder) RecordRun(ctx context.Context, run *model.IngestionRun) error {
	const query = `
		INSERT INTO ingestion_run (
			source_code, started_at, outcome,
			records_saved, error_message, duration_ms
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
		RETURNING id`

	err := r.db.QueryRowxContext(ctx, query,
		run.SourceCode, run.StartedAt, run.Outcome,
		run.RecordsSaved, run.ErrorMessage, run.DurationMs,
	).Scan(&run.ID)
	if err != nil {
		return fmt.Errorf("failed to record ingestion run: %w", err)
	}
	return nil
}

// RecentRuns: последние попытки; пустой sourceCode означает все источники.
func (r *PostgresRunRecorder) RecentRuns(ctx context.Context, sourceCode string, limit int) ([]model.IngestionRun, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, source_code, started_at, outcome, records_saved, error_message, duration_ms
		FROM ingestion_run
		WHERE ($1 = '' OR source_code = $1)
		ORDER BY started_at DESC, id DESC
		LIMIT $2`

	var runs []model.IngestionRun
	if err := r.db.SelectContext(ctx, &runs, query, sourceCode, limit); err != nil {
		return nil, fmt.Errorf("failed to list ingestion runs: %w", err)
	}
	return runs, nil
}
