package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mkrew_service/internal/domain/model"
)

const (
	DefaultTimeout = 30 * time.Second
	apiKeyHeader   = "X-API-Key"
	// сервис прогнозов работает с локальным временем без зоны
	wireTimeLayout = "2006-01-02T15:04:05"
	maxErrorBody   = 4 << 10
)

// HTTPPredictor: клиент ML сервиса прогнозирования (POST /api/forecast).
type HTTPPredictor struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

type Option func(*HTTPPredictor)

func WithLogger(l zerolog.Logger) Option {
	return func(p *HTTPPredictor) { p.logger = l }
}

func NewHTTPPredictor(baseURL, apiKey string, timeout time.Duration, opts ...Option) *HTTPPredictor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	p := &HTTPPredictor{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// wireTime: локальное время источников (Europe/Warsaw) без смещения, как его ждёт сервис прогнозов.
type wireTime time.Time

func (t wireTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).In(model.SourceZone()).Format(wireTimeLayout))
}

func (t *wireTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		*t = wireTime(parsed)
		return nil
	}
	for _, layout := range []string{wireTimeLayout, time.DateOnly} {
		if parsed, err := time.ParseInLocation(layout, s, model.SourceZone()); err == nil {
			*t = wireTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("unsupported time format %q", s)
}

type forecastRequest struct {
	ModelType           string          `json:"modelType"`
	BloodType           *string         `json:"bloodType,omitempty"`
	ForecastHorizonDays int             `json:"forecastHorizonDays"`
	HistoricalData      []historicalDTO `json:"historicalData"`
}

type historicalDTO struct {
	Timestamp     wireTime `json:"timestamp"`
	Status        string   `json:"status"`
	QuantityLevel *int     `json:"quantityLevel,omitempty"`
}

type forecastResponse struct {
	Success      bool            `json:"success"`
	ErrorMessage string          `json:"errorMessage"`
	Predictions  []predictionDTO `json:"predictions"`
}

type predictionDTO struct {
	ForecastDate      wireTime `json:"forecastDate"`
	PredictedStatus   string   `json:"predictedStatus"`
	PredictedQuantity *int     `json:"predictedQuantity"`
	ConfidenceLower   *float64 `json:"confidenceLower"`
	ConfidenceUpper   *float64 `json:"confidenceUpper"`
	ConfidenceLevel   *float64 `json:"confidenceLevel"`
}

// Predict никогда не возвращает ошибку: все сбои превращаются в Success=false.
func (c *HTTPPredictor) Predict(ctx context.Context, req model.PredictionRequest) model.PredictionResult {
	resp, err := c.call(ctx, req)
	if err != nil {
		c.logger.Error().Err(err).Str("model", req.ModelKind).Msg("forecast call failed")
		return model.PredictionResult{Success: false, ErrorMessage: err.Error()}
	}
	if !resp.Success {
		msg := resp.ErrorMessage
		if msg == "" {
			msg = "forecast service reported failure"
		}
		return model.PredictionResult{Success: false, ErrorMessage: msg}
	}

	out := model.PredictionResult{Success: true, Predictions: make([]model.PredictedPoint, 0, len(resp.Predictions))}
	for _, p := range resp.Predictions {
		out.Predictions = append(out.Predictions, model.PredictedPoint{
			ForecastDate:      time.Time(p.ForecastDate),
			PredictedStatus:   p.PredictedStatus,
			PredictedQuantity: p.PredictedQuantity,
			ConfidenceLower:   p.ConfidenceLower,
			ConfidenceUpper:   p.ConfidenceUpper,
			ConfidenceLevel:   p.ConfidenceLevel,
		})
	}
	return out
}

func (c *HTTPPredictor) call(ctx context.Context, req model.PredictionRequest) (*forecastResponse, error) {
	body, err := json.Marshal(toWire(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal forecast request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/forecast", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create forecast request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("forecast service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var out forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode forecast response: %w", err)
	}
	return &out, nil
}

// statusError использует errorMessage из тела ответа, если он есть.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.ErrorMessage != "" {
		return fmt.Errorf("forecast service returned status %d: %s", resp.StatusCode, body.ErrorMessage)
	}
	return fmt.Errorf("forecast service returned status %d", resp.StatusCode)
}

func toWire(req model.PredictionRequest) forecastRequest {
	out := forecastRequest{
		ModelType:           req.ModelKind,
		ForecastHorizonDays: req.HorizonDays,
		HistoricalData:      make([]historicalDTO, 0, len(req.History)),
	}
	if req.BloodType != nil {
		bt := string(*req.BloodType)
		out.BloodType = &bt
	}
	for _, h := range req.History {
		out.HistoricalData = append(out.HistoricalData, historicalDTO{
			Timestamp:     wireTime(h.Timestamp),
			Status:        h.Status.String(),
			QuantityLevel: h.QuantityLevel,
		})
	}
	return out
}

// Models возвращает список моделей, объявленных сервисом (GET /api/models).
func (c *HTTPPredictor) Models(ctx context.Context) ([]model.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create models request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error getting models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading models response: %w", err)
	}
	// сервис отдаёт либо массив, либо {"models": [...]}
	var models []model.ModelInfo
	if err := json.Unmarshal(raw, &models); err == nil {
		return models, nil
	}
	var wrapped struct {
		Models []model.ModelInfo `json:"models"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, errors.New("error decoding models response")
	}
	return wrapped.Models, nil
}
