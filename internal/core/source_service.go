package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"mkrew_service/internal/domain/model"
	"mkrew_service/internal/domain/repository"
)

type SourceView struct {
	model.Source
	AdapterRegistered bool `json:"adapterRegistered"`
}

// SourceService: справочник центров крови и их координаты из OpenStreetMap.
type SourceService struct {
	sources  repository.SourceStore
	locator  repository.BloodBankLocator
	registry AdapterRegistry
	logger   zerolog.Logger
}

func NewSourceService(
	sources repository.SourceStore,
	locator repository.BloodBankLocator,
	registry AdapterRegistry,
	logger zerolog.Logger,
) *SourceService {
	return &SourceService{sources: sources, locator: locator, registry: registry, logger: logger}
}

func (s *SourceService) ListSources(ctx context.Context) ([]SourceView, error) {
	sources, err := s.sources.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]SourceView, 0, len(sources))
	for _, src := range sources {
		_, ok := s.registry.Lookup(src.Code)
		views = append(views, SourceView{Source: src, AdapterRegistered: ok})
	}
	return views, nil
}

// Locate ищет центр в OSM по городу источника и сохраняет его координаты.
func (s *SourceService) Locate(ctx context.Context, code string) (model.Source, error) {
	src, err := s.sources.GetByCode(ctx, code)
	if err != nil {
		return model.Source{}, err
	}

	elements, err := s.locator.FindBloodBanks(ctx, src.City)
	if err != nil {
		return model.Source{}, fmt.Errorf("failed to locate %s: %w", code, err)
	}
	best, ok := pickBloodBank(elements)
	if !ok {
		return model.Source{}, fmt.Errorf("%w: %s (%s)", model.ErrLocationNotFound, code, src.City)
	}

	if err := s.sources.UpdateLocation(ctx, code, best.Lat, best.Lon); err != nil {
		return model.Source{}, err
	}
	src.Lat, src.Lon = &best.Lat, &best.Lon
	s.logger.Info().Str("source", code).Int64("osm_id", best.ID).Str("osm_name", best.Name()).
		Float64("lat", best.Lat).Float64("lon", best.Lon).Msg("source located")
	return src, nil
}

// Nearest возвращает источники с известными координатами, ближайшие первыми.
func (s *SourceService) Nearest(ctx context.Context, lat, lon float64) ([]SourceDistance, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("%w: coordinates out of range", model.ErrInvalidInput)
	}
	sources, err := s.sources.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return rankByDistance(sources, lat, lon), nil
}
