package model

import "time"

// Source: региональный центр крови (RCKiK), с сайта которого снимаются остатки.
type Source struct {
	Code            string   `db:"code" json:"code"`
	Name            string   `db:"name" json:"name"`
	City            string   `db:"city" json:"city"`
	WebsiteURL      string   `db:"website_url" json:"websiteUrl"`
	ScrapingEnabled bool     `db:"scraping_enabled" json:"scrapingEnabled"`
	Lat             *float64 `db:"lat" json:"lat,omitempty"`
	Lon             *float64 `db:"lon" json:"lon,omitempty"`
}

// InventorySnapshot: одно наблюдение статуса запаса одной группы крови.
type InventorySnapshot struct {
	ID            int64           `db:"id" json:"id"`
	SourceCode    string          `db:"source_code" json:"sourceCode"`
	BloodType     BloodType       `db:"blood_type" json:"bloodType"`
	Status        InventoryStatus `db:"status" json:"status"`
	QuantityLevel *int            `db:"quantity_level" json:"quantityLevel,omitempty"`
	Notes         *string         `db:"notes" json:"notes,omitempty"`
	SourceURL     string          `db:"source_url" json:"sourceUrl"`
	ObservedAt    time.Time       `db:"observed_at" json:"observedAt"`
	ScrapedAt     time.Time       `db:"scraped_at" json:"scrapedAt"`
}

type RunOutcome string

const (
	RunSuccess RunOutcome = "SUCCESS"
	RunPartial RunOutcome = "PARTIAL"
	RunFailed  RunOutcome = "FAILED"
)

// IngestionRun: журнал одной попытки сбора по источнику.
type IngestionRun struct {
	ID           int64      `db:"id" json:"id"`
	SourceCode   string     `db:"source_code" json:"sourceCode"`
	StartedAt    time.Time  `db:"started_at" json:"startedAt"`
	Outcome      RunOutcome `db:"outcome" json:"outcome"`
	RecordsSaved int        `db:"records_saved" json:"recordsSaved"`
	ErrorMessage *string    `db:"error_message" json:"errorMessage,omitempty"`
	DurationMs   int64      `db:"duration_ms" json:"durationMs"`
}
