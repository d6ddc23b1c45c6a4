package weather

import (
	"fmt"
	"strings"

	"github.com/FACorreiaa/go-vacation-agent/internal/types"
)

const (
	defaultSummaryDays = 4

	// NoForecast is the summary used when no forecast day is available.
	NoForecast   = "No forecast available."
	missingValue = "n/a"

	// Unknown stands in for the summary when weather was never fetched.
	Unknown = "Unknown"
)

// Summarize reduces a forecast to one line per day, covering at most days
// entries (4 when days <= 0) and never more than the shortest daily array.
func Summarize(info *types.WeatherInfo, days int) string {
	if info == nil {
		return NoForecast
	}
	if days <= 0 {
		days = defaultSummaryDays
	}

	d := info.Daily
	n := min(days, len(d.Time), len(d.TemperatureMax), len(d.TemperatureMin), len(d.PrecipitationSum))
	if n <= 0 {
		return NoForecast
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		lines = append(lines, fmt.Sprintf("%s: %s–%s°C, rain %s",
			d.Time[i], formatValue(d.TemperatureMin[i], ""), formatValue(d.TemperatureMax[i], ""),
			formatValue(d.PrecipitationSum[i], "mm")))
	}
	return strings.Join(lines, "\n")
}

func formatValue(v *float64, unit string) string {
	if v == nil {
		return missingValue
	}
	return fmt.Sprintf("%.1f%s", *v, unit)
}
