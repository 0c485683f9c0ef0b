package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"mkrew_service/internal/domain/model"
)

type SourceStore interface {
	GetByCode(ctx context.Context, code string) (model.Source, error)
	ListAll(ctx context.Context) ([]model.Source, error)
	ListEnabled(ctx context.Context) ([]model.Source, error)
	UpdateLocation(ctx context.Context, code string, lat, lon float64) error
}

type PostgresSourceRepository struct {
	db *sqlx.DB
}

func NewPostgresSourceRepository(db *sqlx.DB) *PostgresSourceRepository {
	return &PostgresSourceRepository{db: db}
}

const sourceColumns = `code, name, city, website_url, scraping_enabled, lat, lon`

func (r *PostgresSourceRepository) GetByCode(ctx context.Context, code string) (model.Source, error) {
	var src model.Source
	err := r.db.GetContext(ctx, &src, `SELECT `+sourceColumns+` FROM blood_bank WHERE code = $1`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Source{}, fmt.Errorf("%w: %s", model.ErrSourceNotFound, code)
	}
	if err != nil {
		return model.Source{}, fmt.Errorf("failed to load source %s: %w", code, err)
	}
	return src, nil
}

func (r *PostgresSourceRepository) ListAll(ctx context.Context) ([]model.Source, error) {
	var sources []model.Source
	if err := r.db.SelectContext(ctx, &sources, `SELECT `+sourceColumns+` FROM blood_bank ORDER BY code`); err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	return sources, nil
}

func (r *PostgresSourceRepository) ListEnabled(ctx context.Context) ([]model.Source, error) {
	var sources []model.Source
	const query = `SELECT ` + sourceColumns + ` FROM blood_bank WHERE scraping_enabled ORDER BY code`
	if err := r.db.SelectContext(ctx, &sources, query); err != nil {
		return nil, fmt.Errorf("failed to list enabled sources: %w", err)
	}
	return sources, nil
}

func (r *PostgresSourceRepository) UpdateLocation(ctx context.Context, code string, lat, lon float64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE blood_bank SET lat = $1, lon = $2 WHERE code = $3`, lat, lon, code)
	if err != nil {
		return fmt.Errorf("failed to update location of %s: %w", code, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", model.ErrSourceNotFound, code)
	}
	return nil
}
