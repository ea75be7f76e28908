package itinerary

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wanderplan/wanderplan/internal/types"
)

type generatedPlan struct {
	Days []types.ItineraryDay `json:"days"`
}

// parseGeneratedPlan decodes model output into itinerary days and validates
// the structure against the trip window. Models occasionally wrap JSON in
// markdown fences despite instructions, so fences are stripped before
// decoding.
func parseGeneratedPlan(raw string, expectedDays int) ([]types.ItineraryDay, error) {
	cleaned := stripJSONFences(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("empty response")
	}

	var plan generatedPlan
	if err := json.Unmarshal([]byte(cleaned), &plan); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %s", err)
	}

	if len(plan.Days) != expectedDays {
		return nil, fmt.Errorf("expected %d days, got %d", expectedDays, len(plan.Days))
	}
	for i, day := range plan.Days {
		if day.Day != i+1 {
			return nil, fmt.Errorf("day %d is numbered %d", i+1, day.Day)
		}
		if len(day.Activities) == 0 {
			return nil, fmt.Errorf("day %d has no activities", day.Day)
		}
		for _, a := range day.Activities {
			if !a.Slot.Valid() {
				return nil, fmt.Errorf("day %d has unknown time_of_day %q", day.Day, a.Slot)
			}
			if strings.TrimSpace(a.Description) == "" {
				return nil, fmt.Errorf("day %d has an activity without a description", day.Day)
			}
		}
	}
	return plan.Days, nil
}

func stripJSONFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}
