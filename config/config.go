package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode   string `mapstructure:"mode"`
	Dotenv string `mapstructure:"dotenv"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Repositories struct {
		// Driver selects the plan store: "postgres" or "sqlite".
		Driver   string `mapstructure:"driver"`
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
		SQLite struct {
			Path string `mapstructure:"path"`
		} `mapstructure:"sqlite"`
	} `mapstructure:"repositories"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Weather WeatherConfig `mapstructure:"weather"`
	Audit   struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"audit"`
	Plan struct {
		PersistUpstreamFailures bool          `mapstructure:"persist_upstream_failures"`
		CacheTTL                time.Duration `mapstructure:"cache_ttl"`
	} `mapstructure:"plan"`
	Metrics struct {
		ServiceName string `mapstructure:"service_name"`
	} `mapstructure:"metrics"`
}

// LLMConfig describes the text-completion collaborator.
type LLMConfig struct {
	Provider        string        `mapstructure:"provider"` // "ollama" or "gemini"
	BaseURL         string        `mapstructure:"base_url"`
	Model           string        `mapstructure:"model"`
	ParseTimeout    time.Duration `mapstructure:"parse_timeout"`
	GenerateTimeout time.Duration `mapstructure:"generate_timeout"`
	GeminiAPIKey    string        `mapstructure:"gemini_api_key"`
}

type WeatherConfig struct {
	GeocodingURL string        `mapstructure:"geocoding_url"`
	ForecastURL  string        `mapstructure:"forecast_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	ForecastDays int           `mapstructure:"forecast_days"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// LLM_MODEL overrides llm.model and so on.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&config)
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

// responseMargin is the slack left for persistence, audit and the response
// write after the last upstream call returns.
const responseMargin = 15 * time.Second

// PipelineBudget is the longest a plan request can spend waiting on
// upstreams: one parse, a geocode and a forecast, and one generation.
func (c Config) PipelineBudget() time.Duration {
	return c.LLM.ParseTimeout + 2*c.Weather.Timeout + c.LLM.GenerateTimeout
}

func applyDefaults(c *Config) {
	if c.Server.HTTPPort == "" {
		c.Server.HTTPPort = "8000"
	}
	if c.Repositories.Driver == "" {
		c.Repositories.Driver = "sqlite"
	}
	if c.Repositories.SQLite.Path == "" {
		c.Repositories.SQLite.Path = "data/vacation_agent.db"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "ollama"
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "http://localhost:11434"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "llama3.2"
	}
	if c.LLM.ParseTimeout <= 0 {
		c.LLM.ParseTimeout = 60 * time.Second
	}
	if c.LLM.GenerateTimeout <= 0 {
		c.LLM.GenerateTimeout = 120 * time.Second
	}
	if c.Weather.GeocodingURL == "" {
		c.Weather.GeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	}
	if c.Weather.ForecastURL == "" {
		c.Weather.ForecastURL = "https://api.open-meteo.com/v1/forecast"
	}
	if c.Weather.Timeout <= 0 {
		c.Weather.Timeout = 20 * time.Second
	}
	if c.Weather.ForecastDays <= 0 {
		c.Weather.ForecastDays = 4
	}
	if c.Audit.Path == "" {
		c.Audit.Path = "logs/requests.jsonl"
	}
	if c.Plan.CacheTTL <= 0 {
		c.Plan.CacheTTL = 5 * time.Minute
	}
	if c.Metrics.ServiceName == "" {
		c.Metrics.ServiceName = "vacation-agent"
	}
	// The handler deadline must outlast the pipeline, otherwise a run that is
	// audited "ok" can still lose its response.
	if minTimeout := c.PipelineBudget() + responseMargin; c.Server.Timeout < minTimeout {
		c.Server.Timeout = minTimeout
	}
}
