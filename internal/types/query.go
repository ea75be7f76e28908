package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SearchMode identifies which retrieval strategy produced a result.
type SearchMode string

const (
	SearchModeFilter SearchMode = "filter"
	SearchModeVector SearchMode = "vector"
)

// FilterQuery holds structured search constraints. Climate, Region and
// Country are hard filters: candidates failing them are excluded entirely.
// Budget, ActivityTags, Month and MinRating are soft filters that only
// affect the score.
type FilterQuery struct {
	Budget       BudgetTier `json:"budget,omitempty"`
	Climate      Climate    `json:"climate,omitempty"`
	Region       string     `json:"region,omitempty"`
	Country      string     `json:"country,omitempty"`
	ActivityTags []string   `json:"activity_tags,omitempty"`
	Month        time.Month `json:"month,omitempty"`
	MinRating    float64    `json:"min_rating,omitempty"`
}

// HardFilterCount reports how many hard constraints the query carries.
func (f FilterQuery) HardFilterCount() int {
	n := 0
	if f.Climate != "" {
		n++
	}
	if f.Region != "" {
		n++
	}
	if f.Country != "" {
		n++
	}
	return n
}

// SoftFilterCount reports how many soft constraints the query carries.
func (f FilterQuery) SoftFilterCount() int {
	n := 0
	if f.Budget != "" {
		n++
	}
	if len(f.ActivityTags) > 0 {
		n++
	}
	if f.Month != 0 {
		n++
	}
	return n
}

// VectorQuery holds a free-text intent resolved against precomputed
// destination embeddings, enriched with the persona's preference summary.
type VectorQuery struct {
	FreeTextIntent string    `json:"free_text_intent"`
	PersonaID      uuid.UUID `json:"persona_id"`
}

// QueryContext is the tagged union dispatched once at the retrieval engine
// boundary. Exactly one variant must be set per call.
type QueryContext struct {
	Filter *FilterQuery `json:"filter,omitempty"`
	Vector *VectorQuery `json:"vector,omitempty"`
}

// Mode returns the active variant, or ErrValidation when the union is not in
// exactly one state. The engine never falls back between modes silently.
func (qc QueryContext) Mode() (SearchMode, error) {
	switch {
	case qc.Filter != nil && qc.Vector != nil:
		return "", fmt.Errorf("%w: query context has both filter and vector variants set", ErrValidation)
	case qc.Filter != nil:
		return SearchModeFilter, nil
	case qc.Vector != nil:
		return SearchModeVector, nil
	default:
		return "", fmt.Errorf("%w: query context has no variant set", ErrValidation)
	}
}

// Hash returns a stable key for the query context, used to decide whether
// cached candidates from the session can be reused.
func (qc QueryContext) Hash() string {
	b, err := json.Marshal(qc)
	if err != nil {
		return ""
	}
	return string(b)
}

// CandidateKind distinguishes destination results from hotel results.
type CandidateKind string

const (
	CandidateKindDestination CandidateKind = "destination"
	CandidateKindHotel       CandidateKind = "hotel"
)

// CandidateResult is a single ranked retrieval hit. Score is normalized to
// [0,1]; sequences are ordered by non-increasing score with ties broken by
// ascending ID for determinism.
type CandidateResult struct {
	ID          uuid.UUID     `json:"id"`
	Kind        CandidateKind `json:"kind"`
	Name        string        `json:"name"`
	Country     string        `json:"country,omitempty"`
	Region      string        `json:"region,omitempty"`
	Description string        `json:"description,omitempty"`
	BudgetTier  BudgetTier    `json:"budget_tier,omitempty"`
	Climate     Climate       `json:"climate,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	BestMonths  []time.Month  `json:"best_months,omitempty"`
	Popularity  float64       `json:"popularity"` // normalized 0..1 secondary signal
	Rating      float64       `json:"rating,omitempty"`
	Score       float64       `json:"score"`
	Mode        SearchMode    `json:"mode"`
}
