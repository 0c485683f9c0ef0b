package mlclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mkrew_service/internal/domain/model"
)

func sampleRequest() model.PredictionRequest {
	bt := model.BloodTypeABNegative
	q := 3
	return model.PredictionRequest{
		ModelKind:   "ARIMA",
		BloodType:   &bt,
		HorizonDays: 7,
		History: []model.HistoricalPoint{
			{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, model.SourceZone()), Status: model.StatusLow, QuantityLevel: &q},
			{Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, model.SourceZone()), Status: model.StatusMedium},
		},
	}
}

func TestPredictSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/forecast", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ARIMA", body["modelType"])
		assert.Equal(t, "AB_NEGATIVE", body["bloodType"])
		assert.Equal(t, float64(7), body["forecastHorizonDays"])
		history := body["historicalData"].([]interface{})
		require.Len(t, history, 2)
		first := history[0].(map[string]interface{})
		assert.Equal(t, "2024-01-01T00:00:00", first["timestamp"])
		assert.Equal(t, "LOW", first["status"])
		assert.Equal(t, float64(3), first["quantityLevel"])
		_, hasQty := history[1].(map[string]interface{})["quantityLevel"]
		assert.False(t, hasQty)

		_, _ = w.Write([]byte(`{"success":true,"predictions":[
			{"forecastDate":"2024-01-08T00:00:00","predictedStatus":"MEDIUM","predictedQuantity":null,
			 "confidenceLower":1.5,"confidenceUpper":2.5,"confidenceLevel":0.95},
			{"forecastDate":"2024-01-09T00:00:00","predictedStatus":"LOW"}]}`))
	}))
	defer srv.Close()

	p := NewHTTPPredictor(srv.URL+"/", "secret", time.Second, WithLogger(zerolog.Nop()))
	res := p.Predict(context.Background(), sampleRequest())

	require.True(t, res.Success, res.ErrorMessage)
	require.Len(t, res.Predictions, 2)
	assert.True(t, time.Date(2024, 1, 8, 0, 0, 0, 0, model.SourceZone()).Equal(res.Predictions[0].ForecastDate))
	assert.Equal(t, "MEDIUM", res.Predictions[0].PredictedStatus)
	require.NotNil(t, res.Predictions[0].ConfidenceLevel)
	assert.InDelta(t, 0.95, *res.Predictions[0].ConfidenceLevel, 1e-9)
	assert.Nil(t, res.Predictions[1].ConfidenceLower)
}

func TestPredictFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantMsg string
	}{
		{
			name: "bad request with message",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"success":false,"errorMessage":"Insufficient historical data"}`))
			},
			wantMsg: "Insufficient historical data",
		},
		{
			name: "server error without body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantMsg: "status 500",
		},
		{
			name: "success false",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"success":false,"errorMessage":"model not trained"}`))
			},
			wantMsg: "model not trained",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"success":tru`))
			},
			wantMsg: "decode",
		},
		{
			name: "bad date",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"success":true,"predictions":[{"forecastDate":"next week","predictedStatus":"LOW"}]}`))
			},
			wantMsg: "decode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			res := NewHTTPPredictor(srv.URL, "", time.Second).Predict(context.Background(), sampleRequest())
			assert.False(t, res.Success)
			assert.Contains(t, res.ErrorMessage, tt.wantMsg)
			assert.Empty(t, res.Predictions)
		})
	}
}

func TestPredictTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	res := NewHTTPPredictor(srv.URL, "", 50*time.Millisecond).Predict(context.Background(), sampleRequest())
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.ErrorMessage)
}

func TestPredictUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := NewHTTPPredictor(url, "", time.Second).Predict(context.Background(), sampleRequest())
	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "request failed")
}

func TestModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"type":"ARIMA","name":"AutoRegressive Integrated Moving Average","status":"active"}]}`))
	}))
	defer srv.Close()

	models, err := NewHTTPPredictor(srv.URL, "k", time.Second).Models(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "ARIMA", models[0].Type)
	assert.Equal(t, "active", models[0].Status)
}

func TestWireTimeUsesSourceZone(t *testing.T) {
	// полночь по Варшаве, прочитанная из TIMESTAMPTZ в UTC-сессии
	observed := time.Date(2024, 1, 8, 0, 0, 0, 0, model.SourceZone()).UTC()
	req := model.PredictionRequest{
		ModelKind:   "ARIMA",
		HorizonDays: 1,
		History:     []model.HistoricalPoint{{Timestamp: observed, Status: model.StatusLow}},
	}

	raw, err := json.Marshal(toWire(req).HistoricalData[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"timestamp":"2024-01-08T00:00:00","status":"LOW"}`, string(raw))
}

func TestWireTimeParse(t *testing.T) {
	cases := map[string]time.Time{
		`"2024-01-15T10:00:03"`:       time.Date(2024, 1, 15, 10, 0, 3, 0, model.SourceZone()),
		`"2024-07-01"`:                time.Date(2024, 7, 1, 0, 0, 0, 0, model.SourceZone()),
		`"2024-01-15T10:00:03Z"`:      time.Date(2024, 1, 15, 10, 0, 3, 0, time.UTC),
		`"2024-01-15T10:00:03+01:00"`: time.Date(2024, 1, 15, 9, 0, 3, 0, time.UTC),
	}
	for in, want := range cases {
		var got wireTime
		require.NoError(t, json.Unmarshal([]byte(in), &got), in)
		assert.True(t, want.Equal(time.Time(got)), "%s parsed as %s", in, time.Time(got))
	}

	// время суток прогноза сохраняется как есть
	var got wireTime
	require.NoError(t, json.Unmarshal([]byte(`"2024-01-15T10:00:03"`), &got))
	raw, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Equal(t, `"2024-01-15T10:00:03"`, string(raw))
}
