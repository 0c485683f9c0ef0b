package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"mkrew_service/internal/domain/model"
)

type SnapshotStore interface {
	Save(ctx context.Context, snap *model.InventorySnapshot) error
	// ListWindow: наблюдения в [from, to), по возрастанию observed_at.
	ListWindow(ctx context.Context, sourceCode string, bloodType *model.BloodType, from, to time.Time) ([]model.InventorySnapshot, error)
	Latest(ctx context.Context, sourceCode string) ([]model.InventorySnapshot, error)
	LatestAll(ctx context.Context) ([]model.InventorySnapshot, error)
}

type PostgresSnapshotRepository struct {
	db *sqlx.DB
}

func NewPostgresSnapshotRepository(db *sqlx.DB) *PostgresSnapshotRepository {
	return &PostgresSnapshotRepository{db: db}
}

const snapshotColumns = `id, source_code, blood_type, status, quantity_level, notes, source_url, observed_at, scraped_at`

func (r *PostgresSnapshotRepository) Save(ctx context.Context, snap *model.InventorySnapshot) error {
	const query = `
		INSERT INTO blood_inventory_snapshot (
			source_code, blood_type, status, quantity_level, notes,
			source_url, observed_at, scraped_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	err := r.db.QueryRowxContext(ctx, query,
		snap.SourceCode, snap.BloodType, snap.Status, snap.QuantityLevel, snap.Notes,
		snap.SourceURL, snap.ObservedAt, snap.ScrapedAt,
	).Scan(&snap.ID)
	if err != nil {
		return fmt.Errorf("failed to save snapshot %s/%s: %w", snap.SourceCode, snap.BloodType, err)
	}
	return nil
}

func (r *PostgresSnapshotRepository) ListWindow(
	ctx context.Context,
	sourceCode string,
	bloodType *model.BloodType,
	from, to time.Time,
) ([]model.InventorySnapshot, error) {
	const query = `
		SELECT ` + snapshotColumns + `
		FROM blood_inventory_snapshot
		WHERE source_code = $1
		AND ($2::text IS NULL OR blood_type = $2)
		AND observed_at >= $3
		AND observed_at < $4
		ORDER BY observed_at ASC, id ASC`

	var snaps []model.InventorySnapshot
	if err := r.db.SelectContext(ctx, &snaps, query, sourceCode, bloodType, from, to); err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	return snaps, nil
}

// Latest возвращает последнее наблюдение по каждой группе крови источника.
func (r *PostgresSnapshotRepository) Latest(ctx context.Context, sourceCode string) ([]model.InventorySnapshot, error) {
	const query = `
		SELECT DISTINCT ON (blood_type) ` + snapshotColumns + `
		FROM blood_inventory_snapshot
		WHERE source_code = $1
		ORDER BY blood_type, observed_at DESC, scraped_at DESC`

	var snaps []model.InventorySnapshot
	if err := r.db.SelectContext(ctx, &snaps, query, sourceCode); err != nil {
		return nil, fmt.Errorf("failed to query latest snapshots: %w", err)
	}
	return snaps, nil
}

func (r *PostgresSnapshotRepository) LatestAll(ctx context.Context) ([]model.InventorySnapshot, error) {
	const query = `
		SELECT DISTINCT ON (source_code, blood_type) ` + snapshotColumns + `
		FROM blood_inventory_snapshot
		ORDER BY source_code, blood_type, observed_at DESC, scraped_at DESC`

	var snaps []model.InventorySnapshot
	if err := r.db.SelectContext(ctx, &snaps, query); err != nil {
		return nil, fmt.Errorf("failed to query latest snapshots: %w", err)
	}
	return snaps, nil
}
