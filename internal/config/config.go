package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/imrishuroy/marketplace-ordersync/internal/validation"
)

// Config is the process configuration, read once from the environment.
type Config struct {
	TableName        string `validate:"required"`
	StatusIndexName  string `validate:"required"`
	RunsTable        string
	StatusQueueURL   string `validate:"omitempty,url"`
	MetricsNamespace string

	AWSRegion           string `validate:"required"`
	AWSEndpointOverride string `validate:"omitempty,url"`

	SPAPIEndpoint     string        `validate:"required,url"`
	SPAPIAccessToken  string        `validate:"required"`
	SPAPIMaxRetries   uint          `validate:"max=10"`
	HTTPTimeout       time.Duration `validate:"gt=0"`
	MarketplaceID     string        `validate:"required"`
	OpenOrderStatuses []string      `validate:"min=1,dive,marketplace_status"`
	LookbackDays      int           `validate:"min=1,max=14"`

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json console"`
	RunLocal  bool
}

var defaults = map[string]any{
	"dynamodb_table_name":   "",
	"status_index_name":     "status-index",
	"runs_table":            "",
	"status_queue_url":      "",
	"metrics_namespace":     "",
	"aws_region":            "us-east-1",
	"aws_endpoint_override": "",
	"sp_api_endpoint":       "https://sellingpartnerapi-na.amazon.com",
	"sp_api_access_token":   "",
	"sp_api_max_retries":    3,
	"http_timeout":          "30s",
	"marketplace_id":        "ATVPDKIKX0DER",
	"open_order_statuses":   "Unshipped,PartiallyShipped",
	"lookback_days":         2,
	"log_level":             "info",
	"log_format":            "json",
	"run_local":             false,
}

// Load reads the configuration from environment variables, applying
// defaults, and validates it.
func Load() (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	cfg := &Config{
		TableName:           v.GetString("dynamodb_table_name"),
		StatusIndexName:     v.GetString("status_index_name"),
		RunsTable:           v.GetString("runs_table"),
		StatusQueueURL:      v.GetString("status_queue_url"),
		MetricsNamespace:    v.GetString("metrics_namespace"),
		AWSRegion:           v.GetString("aws_region"),
		AWSEndpointOverride: v.GetString("aws_endpoint_override"),
		SPAPIEndpoint:       strings.TrimRight(v.GetString("sp_api_endpoint"), "/"),
		SPAPIAccessToken:    v.GetString("sp_api_access_token"),
		SPAPIMaxRetries:     v.GetUint("sp_api_max_retries"),
		HTTPTimeout:         v.GetDuration("http_timeout"),
		MarketplaceID:       v.GetString("marketplace_id"),
		OpenOrderStatuses:   splitList(v.GetString("open_order_statuses")),
		LookbackDays:        v.GetInt("lookback_days"),
		LogLevel:            strings.ToLower(v.GetString("log_level")),
		LogFormat:           strings.ToLower(v.GetString("log_format")),
		RunLocal:            v.GetBool("run_local"),
	}

	if err := validation.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %s", validation.Describe(err))
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
