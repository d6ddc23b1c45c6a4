package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-vacation-agent/config"
	"github.com/FACorreiaa/go-vacation-agent/internal/types"
)

// maxForecastDays is the longest horizon the forecast provider serves.
const maxForecastDays = 16

// Location is the first geocoding candidate for a place name.
type Location struct {
	Name      string  `json:"name"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type geocodingResponse struct {
	Results []Location `json:"results"`
}

type forecastResponse struct {
	Latitude  float64             `json:"latitude"`
	Longitude float64             `json:"longitude"`
	Timezone  string              `json:"timezone"`
	Daily     types.DailyForecast `json:"daily"`
}

// Client resolves a destination and fetches its daily forecast from
// Open-Meteo. Each HTTP call carries its own timeout.
type Client struct {
	geocodingURL string
	forecastURL  string
	timeout      time.Duration
	defaultDays  int
	httpClient   *http.Client
	logger       *slog.Logger
}

func NewClient(cfg config.WeatherConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		geocodingURL: cfg.GeocodingURL,
		forecastURL:  cfg.ForecastURL,
		timeout:      cfg.Timeout,
		defaultDays:  cfg.ForecastDays,
		httpClient:   httpClient,
		logger:       logger,
	}
}

// Fetch geocodes destination and returns the forecast for the first match.
// days is the requested horizon; zero falls back to the configured default.
func (c *Client) Fetch(ctx context.Context, destination string, days int) (*types.WeatherInfo, error) {
	ctx, span := otel.Tracer("WeatherClient").Start(ctx, "Fetch", trace.WithAttributes(
		attribute.String("weather.destination", destination),
	))
	defer span.End()

	loc, err := c.Geocode(ctx, destination)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "geocoding failed")
		return nil, err
	}

	daily, err := c.Forecast(ctx, loc.Latitude, loc.Longitude, c.horizon(days))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "forecast failed")
		return nil, err
	}

	place := loc.Name
	if place == "" {
		place = destination
	}
	span.SetStatus(codes.Ok, "forecast fetched")
	return &types.WeatherInfo{
		Place:     place,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Daily:     *daily,
	}, nil
}

// Geocode asks for exactly one English-language candidate.
func (c *Client) Geocode(ctx context.Context, place string) (*Location, error) {
	params := url.Values{}
	params.Set("name", place)
	params.Set("count", "1")
	params.Set("language", "en")
	params.Set("format", "json")

	var out geocodingResponse
	if err := c.getJSON(ctx, c.geocodingURL, params, &out); err != nil {
		c.logger.WarnContext(ctx, "Geocoding request failed", slog.String("place", place), slog.Any("error", err))
		return nil, types.NewPipelineError(types.ErrKindGeocodingFailed, err, "Geocoding failed: %v", err)
	}
	if len(out.Results) == 0 {
		return nil, types.NewPipelineError(types.ErrKindGeocodingNoResults, nil, "No geocoding results for '%s'.", place)
	}

	loc := out.Results[0]
	c.logger.DebugContext(ctx, "Destination geocoded",
		slog.String("place", place),
		slog.Float64("latitude", loc.Latitude),
		slog.Float64("longitude", loc.Longitude))
	return &loc, nil
}

// Forecast fetches daily max/min temperature and precipitation with the
// provider picking the local timezone.
func (c *Client) Forecast(ctx context.Context, lat, lon float64, days int) (*types.DailyForecast, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum")
	params.Set("timezone", "auto")
	params.Set("forecast_days", strconv.Itoa(days))

	var out forecastResponse
	if err := c.getJSON(ctx, c.forecastURL, params, &out); err != nil {
		c.logger.WarnContext(ctx, "Forecast request failed", slog.Any("error", err))
		return nil, types.NewPipelineError(types.ErrKindWeatherFetchFailed, err, "Weather fetch failed: %v", err)
	}
	return &out.Daily, nil
}

func (c *Client) horizon(days int) int {
	if days <= 0 {
		days = c.defaultDays
	}
	if days <= 0 {
		days = defaultSummaryDays
	}
	if days > maxForecastDays {
		days = maxForecastDays
	}
	return days
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, dst any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
