package model

import (
	"context"
	"time"
)

// Predictor определяет интерфейс для взаимодействия с ML сервисом прогнозирования.
// Любой сбой (сеть, таймаут, ответ не 200, битое тело) возвращается как Success=false.
type Predictor interface {
	Predict(ctx context.Context, req PredictionRequest) PredictionResult
}

type HistoricalPoint struct {
	Timestamp     time.Time
	Status        InventoryStatus
	QuantityLevel *int
}

type PredictionRequest struct {
	ModelKind   string
	BloodType   *BloodType
	HorizonDays int
	History     []HistoricalPoint
}

// PredictedPoint хранит статус текстом: проверка выполняется при записи результата.
type PredictedPoint struct {
	ForecastDate      time.Time
	PredictedStatus   string
	PredictedQuantity *int
	ConfidenceLower   *float64
	ConfidenceUpper   *float64
	ConfidenceLevel   *float64
}

type PredictionResult struct {
	Success      bool
	ErrorMessage string
	Predictions  []PredictedPoint
}

// ModelInfo: модель, объявленная сервисом прогнозирования.
type ModelInfo struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}
