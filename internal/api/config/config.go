package config

import (
	"strings"

	"portfolio-api/pkg/config"
)

// Auth holds token and credential configuration.
type Auth struct {
	SecretKey          string `mapstructure:"secret_key"`
	AccessTokenExpiry  string `mapstructure:"access_token_expiry"`
	RefreshTokenExpiry string `mapstructure:"refresh_token_expiry"`
}

// Ingestion holds market-data ingestion configuration.
type Ingestion struct {
	Tickers              string `mapstructure:"tickers"`
	BaseURL              string `mapstructure:"base_url"`
	UseSyntheticData     bool   `mapstructure:"use_synthetic_data"`
	HistoryDays          int    `mapstructure:"history_days"`
	StaggerDelay         string `mapstructure:"stagger_delay"`
	RequestTimeout       string `mapstructure:"request_timeout"`
	MaxRequestsPerMinute int    `mapstructure:"max_requests_per_minute"`
	ScheduleEnabled      bool   `mapstructure:"schedule_enabled"`
	ScheduleCron         string `mapstructure:"schedule_cron"`
}

// TickerList splits the comma-separated tickers setting into clean symbols.
func (i Ingestion) TickerList() []string {
	var symbols []string
	for _, s := range strings.Split(i.Tickers, ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

// Config holds the full configuration for the API service.
type Config struct {
	App       config.App      `mapstructure:"app"`
	Logger    config.Logger   `mapstructure:"logger"`
	Database  config.Database `mapstructure:"database"`
	Redis     config.Redis    `mapstructure:"redis"`
	API       config.API      `mapstructure:"api"`
	Auth      Auth            `mapstructure:"auth"`
	Ingestion Ingestion       `mapstructure:"ingestion"`
}

// Load loads the API configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
