package itinerary

import (
	"fmt"
	"strings"

	"github.com/FACorreiaa/go-vacation-agent/internal/types"
)

func valueOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

func getItineraryPrompt(prefs types.TripPreferences, days int, weatherSummary string) string {
	interests := "no specific interests"
	if len(prefs.Interests) > 0 {
		interests = strings.Join(prefs.Interests, ", ")
	}
	budget := "unknown"
	if prefs.BudgetEUR != nil {
		budget = fmt.Sprintf("%d EUR", *prefs.BudgetEUR)
	}

	return fmt.Sprintf(`
You are a travel planner. Create a %[2]d-day itinerary.

Trip details:
- Destination: %[1]s
- Days: %[2]d
- Month: %[3]s
- Budget: %[4]s
- Interests: %[5]s
- Departing from: %[6]s

Weather forecast:
%[7]s

Rules:
- Return ONLY valid JSON: a list of exactly %[2]d strings, one per day, each starting with "Day N:".
- On days with high rain, prefer indoor activities (museums, markets, cafes).
- If food is among the interests, include at least one food-related item.
- If culture is among the interests, include at least one culture-related item.
- Keep each day to one or two sentences.
`,
		valueOr(prefs.Destination, "a destination of your choice"),
		days,
		valueOr(prefs.Month, "unknown"),
		budget,
		interests,
		valueOr(prefs.DepartureCity, "unknown"),
		weatherSummary,
	)
}
