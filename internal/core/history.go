package core

import (
	"sort"

	"mkrew_service/internal/domain/model"
)

// BuildHistory сортирует наблюдения по времени и переводит их в точки для прогноза.
func BuildHistory(snaps []model.InventorySnapshot) []model.HistoricalPoint {
	sorted := make([]model.InventorySnapshot, len(snaps))
	copy(sorted, snaps)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ObservedAt.Before(sorted[j].ObservedAt)
	})

	points := make([]model.HistoricalPoint, 0, len(sorted))
	for _, s := range sorted {
		points = append(points, model.HistoricalPoint{
			Timestamp:     s.ObservedAt,
			Status:        s.Status,
			QuantityLevel: s.QuantityLevel,
		})
	}
	return points
}

// ToForecastPoints проверяет статусы и переносит значения прогноза без изменений.
func ToForecastPoints(requestID int64, predicted []model.PredictedPoint) ([]model.ForecastPoint, error) {
	points := make([]model.ForecastPoint, 0, len(predicted))
	for _, p := range predicted {
		status, err := model.ParseInventoryStatus(p.PredictedStatus)
		if err != nil {
			return nil, err
		}
		points = append(points, model.ForecastPoint{
			RequestID:         requestID,
			ForecastDate:      p.ForecastDate,
			PredictedStatus:   status,
			PredictedQuantity: p.PredictedQuantity,
			ConfidenceLower:   p.ConfidenceLower,
			ConfidenceUpper:   p.ConfidenceUpper,
			ConfidenceLevel:   p.ConfidenceLevel,
		})
	}
	return points, nil
}
