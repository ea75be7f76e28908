package types

import (
	"time"

	"github.com/google/uuid"
)

// Stage is the current position of a trip session in the planning flow.
type Stage string

const (
	StagePersonaPending       Stage = "persona_pending"
	StageModeSelection        Stage = "mode_selection"
	StageDestinationSelection Stage = "destination_selection"
	StageDateSelection        Stage = "date_selection"
	StageHotelSelection       Stage = "hotel_selection"
	StageItineraryReview      Stage = "itinerary_review"
	StageSaved                Stage = "saved"
)

// TripSession is the single live aggregate for one user interaction context.
// It is owned by the session store and mutated only by the state machine;
// handlers read it for rendering and never write fields directly.
type TripSession struct {
	ID      uuid.UUID `json:"id"`
	UserID  uuid.UUID `json:"user_id"`
	Stage   Stage     `json:"stage"`
	Persona *Persona  `json:"persona,omitempty"`

	Mode      SearchMode    `json:"mode,omitempty"`
	Query     *QueryContext `json:"query,omitempty"`
	QueryHash string        `json:"-"`

	// ShownCandidates is the last result set presented to the user; a
	// destination may only be selected out of this set.
	ShownCandidates     []CandidateResult `json:"shown_candidates,omitempty"`
	SelectedDestination *CandidateResult  `json:"selected_destination,omitempty"`
	Dates               *DateRange        `json:"dates,omitempty"`
	SelectedHotel       *CandidateResult  `json:"selected_hotel,omitempty"`
	HotelSkipped        bool              `json:"hotel_skipped,omitempty"`

	// Itinerary is owned by the session until saved; after save the durable
	// copy lives in the store and SavedItineraryID references it.
	Itinerary        *Itinerary `json:"itinerary,omitempty"`
	SavedItineraryID *uuid.UUID `json:"saved_itinerary_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a point-in-time copy of the session that stays safe to
// read after the session lock is released. Nested values are replaced
// wholesale by transitions, never mutated in place, so sharing them is fine;
// the candidate slice header is copied because a re-search swaps it out.
func (s *TripSession) Snapshot() *TripSession {
	cp := *s
	if s.ShownCandidates != nil {
		cp.ShownCandidates = append([]CandidateResult(nil), s.ShownCandidates...)
	}
	return &cp
}

// CandidateShown reports whether id was part of the last returned result set.
func (s *TripSession) CandidateShown(id uuid.UUID) (*CandidateResult, bool) {
	for i := range s.ShownCandidates {
		if s.ShownCandidates[i].ID == id {
			return &s.ShownCandidates[i], true
		}
	}
	return nil, false
}
