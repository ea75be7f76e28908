package types

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// --- ENUM Types ---

// BudgetTier represents the DB ENUM 'budget_tier_enum'.
type BudgetTier string

const (
	BudgetTierBudget   BudgetTier = "budget"
	BudgetTierMidRange BudgetTier = "mid_range"
	BudgetTierLuxury   BudgetTier = "luxury"
)

// Scan implements the sql.Scanner interface for BudgetTier.
func (b *BudgetTier) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		bytesVal, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan BudgetTier: expected string or []byte, got %T", value)
		}
		strVal = string(bytesVal)
	}
	switch BudgetTier(strVal) {
	case BudgetTierBudget, BudgetTierMidRange, BudgetTierLuxury:
		*b = BudgetTier(strVal)
		return nil
	default:
		return fmt.Errorf("unknown BudgetTier value: %s", strVal)
	}
}

// Value implements the driver.Valuer interface for BudgetTier.
func (b BudgetTier) Value() (driver.Value, error) {
	switch b {
	case BudgetTierBudget, BudgetTierMidRange, BudgetTierLuxury:
		return string(b), nil
	default:
		return nil, fmt.Errorf("invalid BudgetTier value: %s", b)
	}
}

// TravelPace represents the DB ENUM 'travel_pace_enum'.
type TravelPace string

const (
	TravelPaceRelaxed  TravelPace = "relaxed"  // Fewer, longer activities
	TravelPaceModerate TravelPace = "moderate" // Standard pace
	TravelPaceFast     TravelPace = "fast"     // Pack in many activities
)

// Scan implements the sql.Scanner interface for TravelPace.
func (p *TravelPace) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		bytesVal, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan TravelPace: expected string or []byte, got %T", value)
		}
		strVal = string(bytesVal)
	}
	switch TravelPace(strVal) {
	case TravelPaceRelaxed, TravelPaceModerate, TravelPaceFast:
		*p = TravelPace(strVal)
		return nil
	default:
		return fmt.Errorf("unknown TravelPace value: %s", strVal)
	}
}

// Value implements the driver.Valuer interface for TravelPace.
func (p TravelPace) Value() (driver.Value, error) {
	switch p {
	case TravelPaceRelaxed, TravelPaceModerate, TravelPaceFast:
		return string(p), nil
	default:
		return nil, fmt.Errorf("invalid TravelPace value: %s", p)
	}
}

// Climate represents the DB ENUM 'climate_enum'.
type Climate string

const (
	ClimateWarm      Climate = "warm"
	ClimateCold      Climate = "cold"
	ClimateTemperate Climate = "temperate"
	ClimateTropical  Climate = "tropical"
)

// Scan implements the sql.Scanner interface for Climate.
func (c *Climate) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		bytesVal, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan Climate: expected string or []byte, got %T", value)
		}
		strVal = string(bytesVal)
	}
	switch Climate(strVal) {
	case ClimateWarm, ClimateCold, ClimateTemperate, ClimateTropical:
		*c = Climate(strVal)
		return nil
	default:
		return fmt.Errorf("unknown Climate value: %s", strVal)
	}
}

// Value implements the driver.Valuer interface for Climate.
func (c Climate) Value() (driver.Value, error) {
	switch c {
	case ClimateWarm, ClimateCold, ClimateTemperate, ClimateTropical:
		return string(c), nil
	default:
		return nil, fmt.Errorf("invalid Climate value: %s", c)
	}
}

// --- Persona ---

// Persona is a versioned travel-preference profile. Rows are immutable: a
// revision inserts a new row with version+1 so sessions referencing an older
// version are never affected.
type Persona struct {
	ID                  uuid.UUID  `json:"id"`
	UserID              uuid.UUID  `json:"user_id"`
	Version             int        `json:"version"`
	TravelerTypes       []string   `json:"traveler_types"`
	BudgetTier          BudgetTier `json:"budget_tier"`
	ActivityTags        []string   `json:"activity_tags"`
	Pace                TravelPace `json:"pace"`
	Companions          string     `json:"companions"`
	PreferredClimate    Climate    `json:"preferred_climate,omitempty"`
	StyleSummary        string     `json:"style_summary,omitempty"`
	DietaryRestrictions []string   `json:"dietary_restrictions,omitempty"`
	AccessibilityNeeds  []string   `json:"accessibility_needs,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// HasPreferences reports whether the persona carries at least one preference
// attribute, the guard for leaving the persona stage.
func (p *Persona) HasPreferences() bool {
	return len(p.TravelerTypes) > 0 ||
		len(p.ActivityTags) > 0 ||
		p.BudgetTier != "" ||
		p.Pace != "" ||
		p.PreferredClimate != ""
}

// SummaryText renders the persona for prompt and embedding input.
func (p *Persona) SummaryText() string {
	var parts []string
	if len(p.TravelerTypes) > 0 {
		parts = append(parts, fmt.Sprintf("Travel style: %s", strings.Join(p.TravelerTypes, ", ")))
	}
	if p.BudgetTier != "" {
		parts = append(parts, fmt.Sprintf("Budget: %s", p.BudgetTier))
	}
	if p.Companions != "" {
		parts = append(parts, fmt.Sprintf("Traveling: %s", p.Companions))
	}
	if len(p.ActivityTags) > 0 {
		parts = append(parts, fmt.Sprintf("Interests: %s", strings.Join(p.ActivityTags, ", ")))
	}
	if p.Pace != "" {
		parts = append(parts, fmt.Sprintf("Pace: %s", p.Pace))
	}
	if p.PreferredClimate != "" {
		parts = append(parts, fmt.Sprintf("Preferred climate: %s", p.PreferredClimate))
	}
	if len(p.DietaryRestrictions) > 0 {
		parts = append(parts, fmt.Sprintf("Dietary: %s", strings.Join(p.DietaryRestrictions, ", ")))
	}
	if p.StyleSummary != "" {
		parts = append(parts, p.StyleSummary)
	}
	return strings.Join(parts, "; ")
}

// CreatePersonaParams carries the onboarding form input.
type CreatePersonaParams struct {
	UserID              uuid.UUID  `json:"user_id"`
	TravelerTypes       []string   `json:"traveler_types"`
	BudgetTier          BudgetTier `json:"budget_tier"`
	ActivityTags        []string   `json:"activity_tags"`
	Pace                TravelPace `json:"pace"`
	Companions          string     `json:"companions"`
	PreferredClimate    Climate    `json:"preferred_climate,omitempty"`
	StyleSummary        string     `json:"style_summary,omitempty"`
	DietaryRestrictions []string   `json:"dietary_restrictions,omitempty"`
	AccessibilityNeeds  []string   `json:"accessibility_needs,omitempty"`
}
