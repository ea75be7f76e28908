package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TimeSlot is the time-of-day bucket of an itinerary activity.
type TimeSlot string

const (
	TimeSlotMorning   TimeSlot = "morning"
	TimeSlotAfternoon TimeSlot = "afternoon"
	TimeSlotEvening   TimeSlot = "evening"
)

// Valid reports whether the slot is one of the known buckets.
func (t TimeSlot) Valid() bool {
	switch t {
	case TimeSlotMorning, TimeSlotAfternoon, TimeSlotEvening:
		return true
	}
	return false
}

// DateRange is an inclusive trip window, start <= end.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days returns the inclusive day count of the range. Both ends are reduced
// to civil dates first so differing zone offsets on the timestamps cannot
// shift the count.
func (d DateRange) Days() int {
	start := time.Date(d.Start.Year(), d.Start.Month(), d.Start.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(d.End.Year(), d.End.Month(), d.End.Day(), 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours()/24) + 1
}

// Validate checks the ordering invariant and that the trip does not start in
// the past. now is injected so guards stay testable.
func (d DateRange) Validate(now time.Time) error {
	if d.Start.IsZero() || d.End.IsZero() {
		return fmt.Errorf("%w: both start and end dates are required", ErrValidation)
	}
	if d.End.Before(d.Start) {
		return fmt.Errorf("%w: end date %s is before start date %s",
			ErrValidation, d.End.Format("2006-01-02"), d.Start.Format("2006-01-02"))
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if d.Start.Before(today) {
		return fmt.Errorf("%w: start date %s is in the past", ErrValidation, d.Start.Format("2006-01-02"))
	}
	return nil
}

// ActivityEntry is one scheduled activity within a day.
type ActivityEntry struct {
	Slot        TimeSlot `json:"time_of_day"`
	Description string   `json:"description"`
	Location    string   `json:"location,omitempty"`
	CostHint    string   `json:"cost_hint,omitempty"`
}

// ItineraryDay is one day of the generated plan, 1-indexed.
type ItineraryDay struct {
	Day        int             `json:"day"`
	Theme      string          `json:"theme,omitempty"`
	Activities []ActivityEntry `json:"activities"`
}

// GenerationMeta records which model and prompt revision produced a plan.
type GenerationMeta struct {
	ModelID       string `json:"model_id"`
	PromptVersion string `json:"prompt_version"`
	Retried       bool   `json:"retried,omitempty"`
}

// Itinerary is the structured day-by-day plan produced by the assembler.
// Its date range is always contained in the owning session's range.
type Itinerary struct {
	ID              uuid.UUID      `json:"id"`
	DestinationID   uuid.UUID      `json:"destination_id"`
	DestinationName string         `json:"destination_name"`
	Dates           DateRange      `json:"dates"`
	Days            []ItineraryDay `json:"days"`
	HotelID         *uuid.UUID     `json:"hotel_id,omitempty"`
	HotelName       string         `json:"hotel_name,omitempty"`
	Meta            GenerationMeta `json:"meta"`
	CreatedAt       time.Time      `json:"created_at"`
}
