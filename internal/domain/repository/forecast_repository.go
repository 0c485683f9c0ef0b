package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"mkrew_service/internal/domain/model"
)

type ForecastStore interface {
	ActiveModel(ctx context.Context, kind string) (model.ForecastModel, error)
	ListModels(ctx context.Context) ([]model.ForecastModel, error)

	CreateRequest(ctx context.Context, req *model.ForecastRequest) error
	GetRequest(ctx context.Context, id int64) (model.ForecastRequest, error)
	ListRequests(ctx context.Context) ([]model.ForecastRequest, error)
	ListRequestsBySource(ctx context.Context, sourceCode string) ([]model.ForecastRequest, error)
	ListPendingIDs(ctx context.Context) ([]int64, error)
	DeleteRequest(ctx context.Context, id int64) error

	// Claim переводит PENDING → PROCESSING; иначе ErrRequestNotClaimable.
	Claim(ctx context.Context, id int64) error
	// Complete атомарно заменяет точки прогноза и переводит PROCESSING → COMPLETED.
	Complete(ctx context.Context, id int64, points []model.ForecastPoint, at time.Time) error
	// Fail удаляет точки и переводит PROCESSING → FAILED.
	Fail(ctx context.Context, id int64, message string, at time.Time) error
	Points(ctx context.Context, requestID int64) ([]model.ForecastPoint, error)
	// FailProcessing переводит все PROCESSING в FAILED и возвращает их id.
	FailProcessing(ctx context.Context, message string, at time.Time) ([]int64, error)
}

type PostgresForecastRepository struct {
	db *sqlx.DB
}

func NewPostgresForecastRepository(db *sqlx.DB) *PostgresForecastRepository {
	return &PostgresForecastRepository{db: db}
}

const modelColumns = `id, kind, name, description, parameters, active, created_at, updated_at`

func (r *PostgresForecastRepository) ActiveModel(ctx context.Context, kind string) (model.ForecastModel, error) {
	var m model.ForecastModel
	err := r.db.GetContext(ctx, &m, `SELECT `+modelColumns+` FROM forecast_model WHERE kind = $1 AND active`, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ForecastModel{}, fmt.Errorf("%w for type %s", model.ErrNoActiveModel, kind)
	}
	if err != nil {
		return model.ForecastModel{}, fmt.Errorf("failed to load forecast model %s: %w", kind, err)
	}
	return m, nil
}

func (r *PostgresForecastRepository) ListModels(ctx context.Context) ([]model.ForecastModel, error) {
	var models []model.ForecastModel
	if err := r.db.SelectContext(ctx, &models, `SELECT `+modelColumns+` FROM forecast_model ORDER BY kind, id`); err != nil {
		return nil, fmt.Errorf("failed to list forecast models: %w", err)
	}
	return models, nil
}

func (r *PostgresForecastRepository) CreateRequest(ctx context.Context, req *model.ForecastRequest) error {
	const query = `
		INSERT INTO forecast_request (
			source_code, model_id, blood_type, horizon_days,
			window_start, window_end, status, requested_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	err := r.db.QueryRowxContext(ctx, query,
		req.SourceCode, req.ModelID, req.BloodType, req.HorizonDays,
		req.WindowStart, req.WindowEnd, req.Status, req.RequestedBy, req.CreatedAt,
	).Scan(&req.ID)
	if err != nil {
		return fmt.Errorf("failed to create forecast request: %w", err)
	}
	return nil
}

const requestSelect = `
	SELECT r.id, r.source_code, r.model_id, m.kind AS model_kind, r.blood_type, r.horizon_days,
		r.window_start, r.window_end, r.status, r.requested_by, r.created_at,
		r.completed_at, r.error_message
	FROM forecast_request r
	JOIN forecast_model m ON m.id = r.model_id`

func (r *PostgresForecastRepository) GetRequest(ctx context.Context, id int64) (model.ForecastRequest, error) {
	var req model.ForecastRequest
	err := r.db.GetContext(ctx, &req, requestSelect+` WHERE r.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ForecastRequest{}, fmt.Errorf("%w: %d", model.ErrForecastNotFound, id)
	}
	if err != nil {
		return model.ForecastRequest{}, fmt.Errorf("failed to load forecast request %d: %w", id, err)
	}
	return req, nil
}

func (r *PostgresForecastRepository) ListRequests(ctx context.Context) ([]model.ForecastRequest, error) {
	var reqs []model.ForecastRequest
	if err := r.db.SelectContext(ctx, &reqs, requestSelect+` ORDER BY r.created_at DESC, r.id DESC`); err != nil {
		return nil, fmt.Errorf("failed to list forecast requests: %w", err)
	}
	return reqs, nil
}

func (r *PostgresForecastRepository) ListRequestsBySource(ctx context.Context, sourceCode string) ([]model.ForecastRequest, error) {
	var reqs []model.ForecastRequest
	query := requestSelect + ` WHERE r.source_code = $1 ORDER BY r.created_at DESC, r.id DESC`
	if err := r.db.SelectContext(ctx, &reqs, query, sourceCode); err != nil {
		return nil, fmt.Errorf("failed to list forecast requests for %s: %w", sourceCode, err)
	}
	return reqs, nil
}

func (r *PostgresForecastRepository) ListPendingIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	const query = `SELECT id FROM forecast_request WHERE status = 'PENDING' ORDER BY created_at, id`
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("failed to list pending forecast requests: %w", err)
	}
	return ids, nil
}

func (r *PostgresForecastRepository) DeleteRequest(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM forecast_request WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete forecast request %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", model.ErrForecastNotFound, id)
	}
	return nil
}

func (r *PostgresForecastRepository) Claim(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE forecast_request SET status = 'PROCESSING' WHERE id = $1 AND status = 'PENDING'`, id)
	if err != nil {
		return fmt.Errorf("failed to claim forecast request %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", model.ErrRequestNotClaimable, id)
	}
	return nil
}

func (r *PostgresForecastRepository) Complete(ctx context.Context, id int64, points []model.ForecastPoint, at time.Time) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM forecast_point WHERE request_id = $1`, id); err != nil {
			return fmt.Errorf("failed to clear forecast points: %w", err)
		}

		const insert = `
			INSERT INTO forecast_point (
				request_id, forecast_date, predicted_status, predicted_quantity,
				confidence_lower, confidence_upper, confidence_level
			) VALUES ($1, $2, $3, $4, $5, $6, $7)`
		for _, p := range points {
			_, err := tx.ExecContext(ctx, insert,
				id, p.ForecastDate, p.PredictedStatus, p.PredictedQuantity,
				p.ConfidenceLower, p.ConfidenceUpper, p.ConfidenceLevel,
			)
			if err != nil {
				return fmt.Errorf("failed to insert forecast point: %w", err)
			}
		}

		return finish(ctx, tx, id, model.ForecastCompleted, nil, at)
	})
}

func (r *PostgresForecastRepository) Fail(ctx context.Context, id int64, message string, at time.Time) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM forecast_point WHERE request_id = $1`, id); err != nil {
			return fmt.Errorf("failed to clear forecast points: %w", err)
		}
		return finish(ctx, tx, id, model.ForecastFailed, &message, at)
	})
}

func (r *PostgresForecastRepository) FailProcessing(ctx context.Context, message string, at time.Time) ([]int64, error) {
	const query = `
		UPDATE forecast_request
		SET status = 'FAILED', error_message = $1, completed_at = $2
		WHERE status = 'PROCESSING'
		RETURNING id`

	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, message, at); err != nil {
		return nil, fmt.Errorf("failed to fail interrupted forecast requests: %w", err)
	}
	return ids, nil
}

func finish(ctx context.Context, tx *sqlx.Tx, id int64, status model.ForecastStatus, message *string, at time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE forecast_request
		SET status = $1, error_message = $2, completed_at = $3
		WHERE id = $4 AND status = 'PROCESSING'`,
		status, message, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark forecast request %d %s: %w", id, status, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d is not processing", model.ErrRequestNotClaimable, id)
	}
	return nil
}

func (r *PostgresForecastRepository) Points(ctx context.Context, requestID int64) ([]model.ForecastPoint, error) {
	const query = `
		SELECT id, request_id, forecast_date, predicted_status, predicted_quantity,
			confidence_lower, confidence_upper, confidence_level
		FROM forecast_point
		WHERE request_id = $1
		ORDER BY forecast_date ASC, id ASC`

	var points []model.ForecastPoint
	if err := r.db.SelectContext(ctx, &points, query, requestID); err != nil {
		return nil, fmt.Errorf("failed to load forecast points: %w", err)
	}
	return points, nil
}

func (r *PostgresForecastRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
