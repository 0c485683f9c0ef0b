package model

import (
	"errors"
	"fmt"
)

var (
	ErrSourceNotFound      = errors.New("source not found")
	ErrSourceDisabled      = errors.New("source scraping disabled")
	ErrNoActiveModel       = errors.New("no active forecast model")
	ErrForecastNotFound    = errors.New("forecast request not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrRequestNotClaimable = errors.New("forecast request is not pending")
	ErrLocationNotFound    = errors.New("blood bank not found in OpenStreetMap")
)

// SourceUnavailableError означает, что сайт недоступен (сеть, таймаут или ответ не 2xx).
type SourceUnavailableError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *SourceUnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("source %s unavailable: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("source %s unavailable: %v", e.URL, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// ParseError: на странице нет ожидаемой структуры.
type ParseError struct {
	URL    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %s", e.URL, e.Reason)
}
