package types

// TripPreferences is the structured extraction of a user's travel request.
// Nil pointers mean the model did not find the value.
type TripPreferences struct {
	Days          *int     `json:"days" validate:"omitempty,min=1,max=30"`
	Month         *string  `json:"month"`
	BudgetEUR     *int     `json:"budget_eur" validate:"omitempty,min=0,max=20000"`
	Interests     []string `json:"interests"`
	DepartureCity *string  `json:"departure_city"`
	Destination   *string  `json:"destination"`
}

// HasDestination reports whether a destination was extracted.
func (t TripPreferences) HasDestination() bool {
	return t.Destination != nil && *t.Destination != ""
}

func (t TripPreferences) HasMonth() bool {
	return t.Month != nil && *t.Month != ""
}

// ActionTag is one of the follow-up steps chosen for a request.
type ActionTag string

const (
	ActionNeedDestination ActionTag = "need_destination"
	ActionGetWeather      ActionTag = "get_weather"
	ActionGetAttractions  ActionTag = "get_attractions"
	ActionBasicPlan       ActionTag = "basic_plan"
)

// Decision is the action plan: actions and notes are positionally paired.
type Decision struct {
	Actions []ActionTag `json:"actions"`
	Notes   []string    `json:"notes"`
}

// Has reports whether the action was selected.
func (d Decision) Has(tag ActionTag) bool {
	for _, a := range d.Actions {
		if a == tag {
			return true
		}
	}
	return false
}

// DailyForecast holds the parallel per-day arrays returned by the forecast
// provider. The provider sends null for values it does not have.
type DailyForecast struct {
	Time             []string   `json:"time"`
	TemperatureMax   []*float64 `json:"temperature_2m_max"`
	TemperatureMin   []*float64 `json:"temperature_2m_min"`
	PrecipitationSum []*float64 `json:"precipitation_sum"`
}

type WeatherInfo struct {
	Place     string        `json:"place"`
	Latitude  float64       `json:"latitude"`
	Longitude float64       `json:"longitude"`
	Daily     DailyForecast `json:"daily"`
}
