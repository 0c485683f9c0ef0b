package model

import "time"

type ForecastStatus string

const (
	ForecastPending    ForecastStatus = "PENDING"
	ForecastProcessing ForecastStatus = "PROCESSING"
	ForecastCompleted  ForecastStatus = "COMPLETED"
	ForecastFailed     ForecastStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed.
func (s ForecastStatus) Terminal() bool {
	return s == ForecastCompleted || s == ForecastFailed
}

// CanTransitionTo: PENDING → PROCESSING → COMPLETED | FAILED.
func (s ForecastStatus) CanTransitionTo(next ForecastStatus) bool {
	switch s {
	case ForecastPending:
		return next == ForecastProcessing
	case ForecastProcessing:
		return next == ForecastCompleted || next == ForecastFailed
	default:
		return false
	}
}

// ForecastModel: запись каталога моделей прогнозирования.
type ForecastModel struct {
	ID          int64     `db:"id" json:"id"`
	Kind        string    `db:"kind" json:"modelType"`
	Name        string    `db:"name" json:"modelName"`
	Description *string   `db:"description" json:"description,omitempty"`
	Parameters  *string   `db:"parameters" json:"modelParameters,omitempty"`
	Active      bool      `db:"active" json:"isActive"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

type ForecastRequest struct {
	ID           int64           `db:"id" json:"id"`
	SourceCode   string          `db:"source_code" json:"sourceCode"`
	ModelID      int64           `db:"model_id" json:"modelId"`
	ModelKind    string          `db:"model_kind" json:"modelType"`
	BloodType    *BloodType      `db:"blood_type" json:"bloodType,omitempty"`
	HorizonDays  int             `db:"horizon_days" json:"forecastHorizonDays"`
	WindowStart  time.Time       `db:"window_start" json:"dataStartDate"`
	WindowEnd    time.Time       `db:"window_end" json:"dataEndDate"`
	Status       ForecastStatus  `db:"status" json:"status"`
	RequestedBy  *string         `db:"requested_by" json:"requestedBy,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	CompletedAt  *time.Time      `db:"completed_at" json:"completedAt,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"errorMessage,omitempty"`
	Points       []ForecastPoint `db:"-" json:"results,omitempty"`
}

type ForecastPoint struct {
	ID                int64           `db:"id" json:"id"`
	RequestID         int64           `db:"request_id" json:"-"`
	ForecastDate      time.Time       `db:"forecast_date" json:"forecastDate"`
	PredictedStatus   InventoryStatus `db:"predicted_status" json:"predictedStatus"`
	PredictedQuantity *int            `db:"predicted_quantity" json:"predictedQuantity,omitempty"`
	ConfidenceLower   *float64        `db:"confidence_lower" json:"confidenceLower,omitempty"`
	ConfidenceUpper   *float64        `db:"confidence_upper" json:"confidenceUpper,omitempty"`
	ConfidenceLevel   *float64        `db:"confidence_level" json:"confidenceLevel,omitempty"`
}
