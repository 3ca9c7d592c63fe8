package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultSourceURL = "https://raw.githubusercontent.com/CSSEGISandData/COVID-19/master/csse_covid_19_data/csse_covid_19_time_series/time_series_covid19_confirmed_US.csv"

// Config is read from defaults, then an optional YAML file named by
// COVIDASH_CONFIG, then COVIDASH_* environment variables.
type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	FeedAddr string `yaml:"feed_addr"` // TCP push feed; empty disables it
	GrpcAddr string `yaml:"grpc_addr"` // empty disables gRPC in api-server

	SourceURL    string        `yaml:"source_url"`
	SourceFile   string        `yaml:"source_file"` // tried when the URL fails
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	Epoch        string `yaml:"epoch"`       // YYYY-MM-DD
	DateLayout   string `yaml:"date_layout"` // Go layout for date columns
	RegionColumn string `yaml:"region_column"`

	RefreshInterval time.Duration `yaml:"refresh_interval"` // 0 disables
	RateLimit       float64       `yaml:"rate_limit"`       // requests/s per client, 0 disables
	RateBurst       int           `yaml:"rate_burst"`

	LogLevel string `yaml:"log_level"`
	LogDev   bool   `yaml:"log_dev"`
}

func DefaultConfig() Config {
	return Config{
		HTTPAddr:     ":8080",
		FeedAddr:     ":7070",
		GrpcAddr:     ":9090",
		SourceURL:    DefaultSourceURL,
		FetchTimeout: 30 * time.Second,
		Epoch:        "2020-01-22",
		DateLayout:   "1/2/06",
		RegionColumn: "Province_State",
		RateLimit:    20,
		RateBurst:    40,
		LogLevel:     "info",
	}
}

// LoadConfig never fails on a missing COVIDASH_CONFIG; it fails on a file
// that exists but does not parse, or on a malformed override.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if p := os.Getenv("COVIDASH_CONFIG"); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", p, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", p, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if _, err := cfg.EpochTime(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"COVIDASH_HTTP_ADDR":     &cfg.HTTPAddr,
		"COVIDASH_FEED_ADDR":     &cfg.FeedAddr,
		"COVIDASH_GRPC_ADDR":     &cfg.GrpcAddr,
		"COVIDASH_SOURCE_URL":    &cfg.SourceURL,
		"COVIDASH_SOURCE_FILE":   &cfg.SourceFile,
		"COVIDASH_EPOCH":         &cfg.Epoch,
		"COVIDASH_DATE_LAYOUT":   &cfg.DateLayout,
		"COVIDASH_REGION_COLUMN": &cfg.RegionColumn,
		"COVIDASH_LOG_LEVEL":     &cfg.LogLevel,
	}
	for k, dst := range str {
		if v, ok := os.LookupEnv(k); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	durations := map[string]*time.Duration{
		"COVIDASH_FETCH_TIMEOUT":    &cfg.FetchTimeout,
		"COVIDASH_REFRESH_INTERVAL": &cfg.RefreshInterval,
	}
	for k, dst := range durations {
		v := strings.TrimSpace(os.Getenv(k))
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		*dst = d
	}

	if v := strings.TrimSpace(os.Getenv("COVIDASH_RATE_LIMIT")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("COVIDASH_RATE_LIMIT: %w", err)
		}
		cfg.RateLimit = f
	}
	if v := strings.TrimSpace(os.Getenv("COVIDASH_RATE_BURST")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("COVIDASH_RATE_BURST: %w", err)
		}
		cfg.RateBurst = n
	}
	if v := strings.TrimSpace(os.Getenv("COVIDASH_LOG_DEV")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("COVIDASH_LOG_DEV: %w", err)
		}
		cfg.LogDev = b
	}
	return nil
}

// EpochTime parses Epoch as a UTC date.
func (c Config) EpochTime() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.Epoch)
	if err != nil {
		return time.Time{}, fmt.Errorf("epoch %q: %w", c.Epoch, err)
	}
	return t, nil
}
