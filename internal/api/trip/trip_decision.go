package trip

import "github.com/FACorreiaa/go-vacation-agent/internal/types"

// DecideActions maps preferences to the enrichment steps to run. Rules are
// evaluated in a fixed order; each appends one action and one note.
func DecideActions(prefs types.TripPreferences) types.Decision {
	d := types.Decision{
		Actions: make([]types.ActionTag, 0, 3),
		Notes:   make([]string, 0, 3),
	}
	add := func(tag types.ActionTag, note string) {
		d.Actions = append(d.Actions, tag)
		d.Notes = append(d.Notes, note)
	}

	if !prefs.HasDestination() {
		add(types.ActionNeedDestination, "Destination missing -> later we will suggest options.")
	}
	if prefs.HasMonth() && prefs.HasDestination() {
		add(types.ActionGetWeather, "Month present -> weather helps plan indoor/outdoor days.")
	}
	if len(prefs.Interests) > 0 && prefs.HasDestination() {
		add(types.ActionGetAttractions, "Interests present -> fetch points of interest matching interests.")
	}

	if len(d.Actions) == 0 {
		add(types.ActionBasicPlan, "No tool calls needed -> generate a basic plan.")
	}
	return d
}
