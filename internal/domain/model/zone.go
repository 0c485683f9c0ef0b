package model

import (
	"sync"
	"time"
	_ "time/tzdata"
)

var (
	sourceZoneOnce sync.Once
	sourceZone     *time.Location
)

// SourceZone is the zone in which blood banks publish dates and the predictor
// expects local date-times (Europe/Warsaw).
func SourceZone() *time.Location {
	sourceZoneOnce.Do(func() {
		loc, err := time.LoadLocation("Europe/Warsaw")
		if err != nil {
			loc = time.UTC
		}
		sourceZone = loc
	})
	return sourceZone
}
