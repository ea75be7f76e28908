package itinerary

import (
	"fmt"
	"strings"

	"github.com/wanderplan/wanderplan/internal/types"
)

// promptVersion is recorded on every generated plan so saved itineraries can
// be traced back to the prompt revision that produced them.
const promptVersion = "v1"

const outputFormatInstructions = `Respond with ONLY a valid JSON object, no markdown formatting, no explanatory text. Use this exact structure:
{
  "days": [
    {
      "day": 1,
      "theme": "short theme for the day",
      "activities": [
        {"time_of_day": "morning", "description": "...", "location": "...", "cost_hint": "..."},
        {"time_of_day": "afternoon", "description": "...", "location": "...", "cost_hint": "..."},
        {"time_of_day": "evening", "description": "...", "location": "...", "cost_hint": "..."}
      ]
    }
  ]
}
"time_of_day" must be one of "morning", "afternoon" or "evening". Every day needs at least one activity.`

// buildItineraryPrompt renders the generation prompt from the trip context.
func buildItineraryPrompt(persona *types.Persona, dest *types.CandidateResult, hotel *types.CandidateResult, dates types.DateRange) string {
	var b strings.Builder

	days := dates.Days()
	fmt.Fprintf(&b, "Create a detailed %d-day travel itinerary for %s, %s (%s to %s).\n",
		days, dest.Name, dest.Country, dates.Start.Format("2006-01-02"), dates.End.Format("2006-01-02"))

	if dest.Description != "" {
		fmt.Fprintf(&b, "About the destination: %s\n", dest.Description)
	}
	if hotel != nil {
		fmt.Fprintf(&b, "The traveler is staying at %s; start and end each day there.\n", hotel.Name)
	}
	if persona != nil {
		if summary := persona.SummaryText(); summary != "" {
			fmt.Fprintf(&b, "Traveler profile: %s\n", summary)
		}
		switch persona.Pace {
		case types.TravelPaceRelaxed:
			b.WriteString("Keep the pace relaxed: fewer activities with unscheduled time between them.\n")
		case types.TravelPaceFast:
			b.WriteString("Keep the pace busy: fill morning, afternoon and evening every day.\n")
		}
		if len(persona.AccessibilityNeeds) > 0 {
			fmt.Fprintf(&b, "Accessibility requirements: %s. Only suggest activities compatible with them.\n",
				strings.Join(persona.AccessibilityNeeds, ", "))
		}
	}

	fmt.Fprintf(&b, "The itinerary must cover exactly %d days, numbered 1 through %d.\n\n", days, days)
	b.WriteString(outputFormatInstructions)
	return b.String()
}

// buildStrictRetryPrompt wraps the original prompt after a malformed first
// attempt. One retry only; a second malformed response is surfaced as an error.
func buildStrictRetryPrompt(original string, parseErr error) string {
	var b strings.Builder
	b.WriteString("Your previous response could not be parsed: ")
	b.WriteString(parseErr.Error())
	b.WriteString("\nAnswer again. Output NOTHING except the JSON object described below. No prose, no code fences.\n\n")
	b.WriteString(original)
	return b.String()
}
