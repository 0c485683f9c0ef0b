package core

import (
	"context"
	"fmt"
	"time"

	"mkrew_service/internal/domain/model"
	"mkrew_service/internal/domain/repository"
)

const (
	defaultHistoryDays = 30
	maxHistoryDays     = 365
)

// InventoryService: чтение текущих остатков и истории.
type InventoryService struct {
	sources   repository.SourceStore
	snapshots repository.SnapshotStore
	now       func() time.Time
}

func NewInventoryService(sources repository.SourceStore, snapshots repository.SnapshotStore) *InventoryService {
	return &InventoryService{sources: sources, snapshots: snapshots, now: time.Now}
}

// CurrentAll: последнее наблюдение по каждой паре источник/группа крови.
func (s *InventoryService) CurrentAll(ctx context.Context) ([]model.InventorySnapshot, error) {
	return s.snapshots.LatestAll(ctx)
}

func (s *InventoryService) CurrentBySource(ctx context.Context, code string) ([]model.InventorySnapshot, error) {
	if _, err := s.sources.GetByCode(ctx, code); err != nil {
		return nil, err
	}
	return s.snapshots.Latest(ctx, code)
}

// History возвращает наблюдения за последние days дней (0 означает 30), по возрастанию времени.
func (s *InventoryService) History(ctx context.Context, code string, bloodType *model.BloodType, days int) ([]model.InventorySnapshot, error) {
	if days == 0 {
		days = defaultHistoryDays
	}
	if days < 0 || days > maxHistoryDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", model.ErrInvalidInput, maxHistoryDays)
	}
	if _, err := s.sources.GetByCode(ctx, code); err != nil {
		return nil, err
	}
	to := s.now()
	return s.snapshots.ListWindow(ctx, code, bloodType, to.AddDate(0, 0, -days), to)
}
