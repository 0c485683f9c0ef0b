package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mkrew_service/internal/domain/model"
)

type fakeLocator struct {
	elements []model.OSMElement
	err      error
	city     string
}

func (l *fakeLocator) FindBloodBanks(_ context.Context, city string) ([]model.OSMElement, error) {
	l.city = city
	return l.elements, l.err
}

func TestSourceService_Locate(t *testing.T) {
	sources := newFakeSources(model.Source{Code: "KRAKOW", City: "Kraków", ScrapingEnabled: true})
	locator := &fakeLocator{elements: []model.OSMElement{
		{ID: 1, Type: "node", Lat: 50.01, Lon: 19.90, Tags: map[string]string{"name": "Punkt poboru krwi"}},
		{ID: 2, Type: "way", Lat: 50.0617, Lon: 19.9205, Tags: map[string]string{"name": "Regionalne Centrum Krwiodawstwa i Krwiolecznictwa"}},
	}}
	svc := NewSourceService(sources, locator, fakeRegistry{}, zerolog.Nop())

	src, err := svc.Locate(context.Background(), "KRAKOW")
	require.NoError(t, err)
	assert.Equal(t, "Kraków", locator.city)
	require.NotNil(t, src.Lat)
	assert.InDelta(t, 50.0617, *src.Lat, 1e-9)

	stored, err := sources.GetByCode(context.Background(), "KRAKOW")
	require.NoError(t, err)
	assert.InDelta(t, 19.9205, *stored.Lon, 1e-9)
}

func TestSourceService_LocateFailures(t *testing.T) {
	sources := newFakeSources(model.Source{Code: "WROCLAW", City: "Wrocław"})

	svc := NewSourceService(sources, &fakeLocator{}, fakeRegistry{}, zerolog.Nop())
	_, err := svc.Locate(context.Background(), "WROCLAW")
	assert.ErrorIs(t, err, model.ErrLocationNotFound)

	_, err = svc.Locate(context.Background(), "GDANSK")
	assert.ErrorIs(t, err, model.ErrSourceNotFound)

	svc = NewSourceService(sources, &fakeLocator{err: errors.New("overpass busy")}, fakeRegistry{}, zerolog.Nop())
	_, err = svc.Locate(context.Background(), "WROCLAW")
	assert.ErrorContains(t, err, "overpass busy")
}

func TestSourceService_ListAndNearest(t *testing.T) {
	krkLat, krkLon := 50.0617, 19.9205
	wroLat, wroLon := 51.1079, 17.0385
	sources := newFakeSources(
		model.Source{Code: "KRAKOW", Lat: &krkLat, Lon: &krkLon},
		model.Source{Code: "WROCLAW", Lat: &wroLat, Lon: &wroLon},
		model.Source{Code: "RZESZOW"},
	)
	registry := fakeRegistry{"KRAKOW": &fakeAdapter{code: "KRAKOW"}}
	svc := NewSourceService(sources, &fakeLocator{}, registry, zerolog.Nop())

	views, err := svc.ListSources(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.True(t, views[0].AdapterRegistered)
	assert.False(t, views[2].AdapterRegistered)

	// Katowice
	ranked, err := svc.Nearest(context.Background(), 50.2649, 19.0238)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "KRAKOW", ranked[0].Source.Code)
	assert.InDelta(t, 68, ranked[0].DistanceKm, 5)

	_, err = svc.Nearest(context.Background(), 95, 0)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestPickBloodBankByArea(t *testing.T) {
	small := model.OSMElement{ID: 1, Bounds: model.Bounds{MinLat: 50, MinLon: 19, MaxLat: 50.0001, MaxLon: 19.0001}}
	large := model.OSMElement{ID: 2, Bounds: model.Bounds{MinLat: 50, MinLon: 19, MaxLat: 50.001, MaxLon: 19.001}}

	best, ok := pickBloodBank([]model.OSMElement{small, large})
	require.True(t, ok)
	assert.Equal(t, int64(2), best.ID)

	_, ok = pickBloodBank(nil)
	assert.False(t, ok)
}

func TestHaversine(t *testing.T) {
	// от Кракова до Варшавы ≈ 252 км
	assert.InDelta(t, 252, haversine(50.0647, 19.9450, 52.2297, 21.0122), 5)
	assert.Zero(t, haversine(50, 19, 50, 19))
}

func TestInventoryService(t *testing.T) {
	now := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	snaps := &fakeSnapshots{window: []model.InventorySnapshot{
		{SourceCode: "X", BloodType: model.BloodTypeAPositive, Status: model.StatusLow, ObservedAt: now.AddDate(0, 0, -40)},
		{SourceCode: "X", BloodType: model.BloodTypeAPositive, Status: model.StatusHigh, ObservedAt: now.AddDate(0, 0, -3)},
		{SourceCode: "X", BloodType: model.BloodTypeBPositive, Status: model.StatusMedium, ObservedAt: now.AddDate(0, 0, -2)},
	}}
	svc := NewInventoryService(newFakeSources(source("X", true)), snaps)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	hist, err := svc.History(ctx, "X", bloodType(model.BloodTypeAPositive), 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, model.StatusHigh, hist[0].Status)

	hist, err = svc.History(ctx, "X", nil, 60)
	require.NoError(t, err)
	assert.Len(t, hist, 3)

	_, err = svc.History(ctx, "X", nil, 400)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = svc.CurrentBySource(ctx, "NOPE")
	assert.ErrorIs(t, err, model.ErrSourceNotFound)

	current, err := svc.CurrentAll(ctx)
	require.NoError(t, err)
	assert.Len(t, current, 3)
}

func TestBuildHistoryDoesNotMutateInput(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	in := []model.InventorySnapshot{
		{Status: model.StatusHigh, ObservedAt: t0.Add(time.Hour)},
		{Status: model.StatusLow, ObservedAt: t0},
	}
	out := BuildHistory(in)
	require.Len(t, out, 2)
	assert.Equal(t, model.StatusLow, out[0].Status)
	assert.Equal(t, model.StatusHigh, in[0].Status)
}
