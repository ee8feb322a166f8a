package config

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Extract   ExtractConfig
	Warehouse WarehouseConfig
	Pipeline  PipelineConfig
	Log       LogConfig
	Env       string
}

type ExtractConfig struct {
	Backoff        BackoffConfig
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Yahoo          YahooConfig
}

type BackoffConfig struct {
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max"`
	RetryMax     int           `mapstructure:"retry_max"`
}

type YahooConfig struct {
	ChartURL   string `mapstructure:"chart_url"`
	SummaryURL string `mapstructure:"summary_url"`
	CookieURL  string `mapstructure:"cookie_url"`
	UserAgent  string `mapstructure:"user_agent"`
}

type WarehouseConfig struct {
	Driver            string   `mapstructure:"driver"`
	Path              string   `mapstructure:"path"`
	ConnInitFnQueries []string `mapstructure:"conn_init_fn_queries"`
}

type PipelineConfig struct {
	Tickers             []string `mapstructure:"tickers"`
	SchemaFile          string   `mapstructure:"schema_file"`
	PriceTable          string   `mapstructure:"price_table"`
	ProfileTable        string   `mapstructure:"profile_table"`
	ProfileWorkers      int      `mapstructure:"profile_workers"`
	FailOnProfileErrors bool     `mapstructure:"fail_on_profile_errors"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// NewConfig loads the configuration from the provided base config reader
// and merges it with the environment-specific configuration.
func NewConfig(baseConfigReader io.Reader, envConfigReader io.Reader, env string) (*Config, error) {
	if env == "" {
		env = "dev"
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadConfig(baseConfigReader); err != nil {
		return nil, fmt.Errorf("error reading base config: %w", err)
	}

	// Merge with environment-specific configuration (only if provided)
	if envConfigReader != nil {
		if err := v.MergeConfig(envConfigReader); err != nil {
			log.Printf("Error merging environment-specific config: %s", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	config.Env = env

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("extract.request_timeout", 30*time.Second)
	v.SetDefault("extract.backoff.retry_wait_min", time.Second)
	v.SetDefault("extract.backoff.retry_wait_max", 30*time.Second)
	v.SetDefault("extract.backoff.retry_max", 0)
	v.SetDefault("extract.yahoo.chart_url", "https://query2.finance.yahoo.com")
	v.SetDefault("extract.yahoo.summary_url", "https://query2.finance.yahoo.com")
	v.SetDefault("extract.yahoo.cookie_url", "https://fc.yahoo.com")
	v.SetDefault("extract.yahoo.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("warehouse.driver", "duckdb")
	v.SetDefault("pipeline.schema_file", "schemas.yaml")
	v.SetDefault("pipeline.price_table", "PRICE_DATA")
	v.SetDefault("pipeline.profile_table", "PROFILE_DATA")
	v.SetDefault("log.level", "info")
}
