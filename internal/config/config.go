// Package config holds the run configuration for the ingestion binaries.
//
// Values come from, in increasing precedence: built-in defaults, environment
// variables, an optional YAML file and command-line flags.
package config

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/abelzeko/kenai-ingest/internal/entities"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultUserAgent mimics a browser; the fish count service rejects requests without one
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// FishConfig selects the ADFG fish count series
type FishConfig struct {
	BaseURL    string `env:"BASE_URL,default=https://www.adfg.alaska.gov/sf/FishCounts/index.cfm" yaml:"base_url"`
	LocationID int    `env:"LOCATION_ID,default=40" yaml:"location_id"`
	SpeciesID  int    `env:"SPECIES_ID,default=420" yaml:"species_id"`
	UserAgent  string `env:"USER_AGENT" yaml:"user_agent"`
}

// WaterConfig selects the USGS monitoring site and parameter codes
type WaterConfig struct {
	BaseURL        string `env:"BASE_URL,default=https://waterservices.usgs.gov/nwis/dv/" yaml:"base_url"`
	Site           string `env:"SITE,default=15266300" yaml:"site"`
	TempParam      string `env:"TEMP_PARAM,default=00010" yaml:"temp_param"`
	DischargeParam string `env:"DISCHARGE_PARAM,default=00060" yaml:"discharge_param"`
}

// TideConfig selects the NOAA CO-OPS station and how levels are reported
type TideConfig struct {
	BaseURL  string `env:"BASE_URL,default=https://api.tidesandcurrents.noaa.gov/api/prod/datagetter" yaml:"base_url"`
	Station  string `env:"STATION,default=9455760" yaml:"station"`
	TimeZone string `env:"TIME_ZONE,default=lst" yaml:"time_zone"`
	Datum    string `env:"DATUM,default=MSL" yaml:"datum"`
	Units    string `env:"UNITS,default=english" yaml:"units"`
}

// TelegramConfig is only used by the inspection tool
type TelegramConfig struct {
	Token  string `env:"BOT_TOKEN" yaml:"bot_token"`
	ChatID int64  `env:"CHAT_ID" yaml:"chat_id"`
}

// Config is the full run configuration
type Config struct {
	StartYear   int           `env:"START_YEAR,default=2015" yaml:"start_year"`
	EndYear     int           `env:"END_YEAR,default=2024" yaml:"end_year"`
	OutputDir   string        `env:"OUTPUT_DIR,default=data/raw_data" yaml:"output_dir"`
	LedgerPath  string        `env:"LEDGER_PATH,default=data/ingest.db" yaml:"ledger_path"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT,default=0s" yaml:"http_timeout"`
	// ChartPath is where the inspection tool writes its chart. Empty means
	// next to the ledger, never inside OutputDir.
	ChartPath string `env:"CHART_PATH" yaml:"chart_path"`

	Fish     FishConfig     `env:",prefix=FISH_" yaml:"fish"`
	Water    WaterConfig    `env:",prefix=WATER_" yaml:"water"`
	Tide     TideConfig     `env:",prefix=TIDE_" yaml:"tide"`
	Telegram TelegramConfig `env:",prefix=TELEGRAM_" yaml:"telegram"`

	// Notify asks the inspection tool to deliver its report
	Notify bool `yaml:"-"`
}

// Range returns the configured year range
func (c *Config) Range() entities.DateRange {
	return entities.DateRange{StartYear: c.StartYear, EndYear: c.EndYear}
}

// Validate checks the configuration before any request is made
func (c *Config) Validate() error {
	if err := c.Range().Validate(); err != nil {
		return err
	}
	if c.OutputDir == "" {
		return errors.New("output directory is required")
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("invalid HTTP timeout %s", c.HTTPTimeout)
	}
	return nil
}

// Load reads the configuration from the environment and the given arguments
func Load(ctx context.Context, name string, args []string) (*Config, error) {
	return load(ctx, name, args, envconfig.OsLookuper())
}

func load(ctx context.Context, name string, args []string, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	var (
		configPath string
		flags      Config
	)
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "YAML configuration file")
	fs.IntVar(&flags.StartYear, "start", 0, "First year to fetch")
	fs.IntVar(&flags.EndYear, "end", 0, "Last year to fetch")
	fs.StringVar(&flags.OutputDir, "out", "", "Directory for raw data files")
	fs.StringVar(&flags.LedgerPath, "ledger", "", "SQLite fetch ledger path")
	fs.StringVar(&flags.ChartPath, "chart", "", "Inspection chart PNG path")
	fs.BoolVar(&flags.Notify, "notify", false, "Send the inspection report to Telegram")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if configPath != "" {
		if err := applyFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	// Only flags given on the command line override
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "start":
			cfg.StartYear = flags.StartYear
		case "end":
			cfg.EndYear = flags.EndYear
		case "out":
			cfg.OutputDir = flags.OutputDir
		case "ledger":
			cfg.LedgerPath = flags.LedgerPath
		case "chart":
			cfg.ChartPath = flags.ChartPath
		case "notify":
			cfg.Notify = flags.Notify
		}
	})

	if cfg.Fish.UserAgent == "" {
		cfg.Fish.UserAgent = DefaultUserAgent
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}
