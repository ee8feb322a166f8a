package config

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	tests := []struct {
		name     string
		baseYAML string  // Base YAML config
		envYAML  string  // Environment-specific YAML (optional)
		env      string  // Environment variable value
		want     *Config // Expected Config
		wantErr  bool    // Expecting an error?
	}{
		{
			name: "Successful Load with Default Env",
			baseYAML: `
extract:
  request_timeout: 10s
  backoff:
    retry_wait_min: 1s
    retry_wait_max: 30s
    retry_max: 2
  yahoo:
    chart_url: "http://chart"
    summary_url: "http://summary"
    cookie_url: "http://cookie"
    user_agent: "test"
warehouse:
  driver: duckdb
  path: "test.db"
pipeline:
  tickers: ["AMZN", "MSFT"]
  schema_file: "schemas.yaml"
  price_table: "PRICE_DATA"
  profile_table: "PROFILE_DATA"
  profile_workers: 4
log:
  level: debug
`,
			env: "",
			want: &Config{
				Env: "dev",
				Extract: ExtractConfig{
					RequestTimeout: 10 * time.Second,
					Backoff: BackoffConfig{
						RetryWaitMin: time.Second,
						RetryWaitMax: 30 * time.Second,
						RetryMax:     2,
					},
					Yahoo: YahooConfig{
						ChartURL:   "http://chart",
						SummaryURL: "http://summary",
						CookieURL:  "http://cookie",
						UserAgent:  "test",
					},
				},
				Warehouse: WarehouseConfig{
					Driver: "duckdb",
					Path:   "test.db",
				},
				Pipeline: PipelineConfig{
					Tickers:        []string{"AMZN", "MSFT"},
					SchemaFile:     "schemas.yaml",
					PriceTable:     "PRICE_DATA",
					ProfileTable:   "PROFILE_DATA",
					ProfileWorkers: 4,
				},
				Log: LogConfig{Level: "debug"},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			baseConfigReader := strings.NewReader(tt.baseYAML)
			var envConfigReader io.Reader
			if tt.envYAML != "" {
				envConfigReader = strings.NewReader(tt.envYAML)
			}

			got, err := NewConfig(baseConfigReader, envConfigReader, tt.env)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewConfig() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			assert.Equal(t, tt.want, got, "Config structs don't match")
		})
	}
}

func TestNewConfig_EnvironmentOverride(t *testing.T) {
	base := `
warehouse:
  conn_init_fn_queries:
    - "sql/db__stage.sql"
pipeline:
  tickers: ["AMZN"]
`
	env := `
warehouse:
  driver: postgres
  conn_init_fn_queries:
    - "sql/db__dev.sql"
pipeline:
  tickers: ["AAPL", "TSLA"]
  fail_on_profile_errors: true
`
	got, err := NewConfig(strings.NewReader(base), strings.NewReader(env), "foo")
	assert.NoError(t, err)
	assert.Equal(t, "foo", got.Env)
	assert.Equal(t, "postgres", got.Warehouse.Driver)
	assert.Equal(t, []string{"sql/db__dev.sql"}, got.Warehouse.ConnInitFnQueries)
	assert.Equal(t, []string{"AAPL", "TSLA"}, got.Pipeline.Tickers)
	assert.True(t, got.Pipeline.FailOnProfileErrors)
}

func TestNewConfig_Defaults(t *testing.T) {
	got, err := NewConfig(strings.NewReader("pipeline:\n  tickers: [\"AMZN\"]\n"), nil, "test")
	assert.NoError(t, err)
	assert.Equal(t, 30*time.Second, got.Extract.RequestTimeout)
	assert.Equal(t, 0, got.Extract.Backoff.RetryMax)
	assert.Equal(t, "duckdb", got.Warehouse.Driver)
	assert.Equal(t, "PRICE_DATA", got.Pipeline.PriceTable)
	assert.Equal(t, "PROFILE_DATA", got.Pipeline.ProfileTable)
	assert.Equal(t, "schemas.yaml", got.Pipeline.SchemaFile)
	assert.Equal(t, "info", got.Log.Level)
	assert.Equal(t, "https://fc.yahoo.com", got.Extract.Yahoo.CookieURL)
}

func TestNewConfig_InvalidYAML(t *testing.T) {
	_, err := NewConfig(strings.NewReader("extract: [unclosed"), nil, "test")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "error reading base config")
}

func TestLoadCredentials(t *testing.T) {
	env := map[string]string{
		"WAREHOUSE_USER":      "etl",
		"WAREHOUSE_PASSWORD":  "secret",
		"WAREHOUSE_ACCOUNT":   "db.example.com:5432",
		"WAREHOUSE_DATABASE":  "stock_data",
		"WAREHOUSE_SCHEMA":    "historical_data",
		"WAREHOUSE_ROLE":      "loader",
		"WAREHOUSE_WAREHOUSE": "compute_wh",
		"MOTHERDUCK_TOKEN":    "md-token",
	}
	creds := LoadCredentials(func(k string) string { return env[k] })
	assert.Equal(t, Credentials{
		User:            "etl",
		Password:        "secret",
		Account:         "db.example.com:5432",
		Warehouse:       "compute_wh",
		Database:        "stock_data",
		Schema:          "historical_data",
		Role:            "loader",
		MotherDuckToken: "md-token",
	}, creds)
}
