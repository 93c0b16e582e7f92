package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath   string `long:"db-path" env:"DB_PATH" default:"./data/scout.db" description:"Path to the sqlite database file"`
	FeedsDir string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing YAML feed seed files"`

	// HTTP surface
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for the admin API (admin API disabled when empty)"`

	// Fetching
	UserAgent    string `long:"user-agent" env:"USER_AGENT" default:"RSS Scout/1.0" description:"User agent string for HTTP requests"`
	FetchTimeout int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"10" description:"Per feed fetch timeout in seconds"`
	FetchSpacing int    `long:"fetch-spacing" env:"FETCH_SPACING" default:"500" description:"Minimum spacing between outbound requests in milliseconds"`
	MaxItems     int    `long:"max-items" env:"MAX_ITEMS" default:"50" description:"Maximum number of items kept per feed check"`

	// Monitor
	TickInterval   int `long:"tick-interval" env:"TICK_INTERVAL" default:"60" description:"Monitor tick interval in seconds"`
	ScoreThreshold int `long:"score-threshold" env:"SCORE_THRESHOLD" default:"70" description:"Minimum relevance score for forwarding"`
	DailyCap       int `long:"daily-cap" env:"DAILY_CAP" default:"3" description:"Maximum forwarded items per calendar day"`
	MaxItemAge     int `long:"max-item-age" env:"MAX_ITEM_AGE" default:"24" description:"Maximum item age in hours"`

	// Content pipeline
	PipelineURL    string `long:"pipeline-url" env:"PIPELINE_URL" description:"Content pipeline intake URL (dry run when empty)"`
	RedisAddr      string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for durable link dedup (disabled when empty)"`
	DedupTTL       int    `long:"dedup-ttl" env:"DEDUP_TTL" default:"720" description:"Durable link dedup retention in hours"`
	ExtractContent bool   `long:"extract-content" env:"EXTRACT_CONTENT" description:"Fill missing item content from the article page"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for the daily cap and timestamps (e.g., UTC, Europe/London)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load parses command line arguments and environment. It returns nil, nil
// when help was requested.
func Load() (*Cfg, error) {
	return parse(os.Args[1:])
}

func parse(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := validate(raw); err != nil {
		return nil, err
	}

	cfg := &Cfg{
		DBPath:         raw.DBPath,
		FeedsDir:       raw.FeedsDir,
		Port:           raw.Port,
		APIAccessKey:   raw.APIAccessKey,
		UserAgent:      raw.UserAgent,
		FetchTimeout:   time.Duration(raw.FetchTimeout) * time.Second,
		FetchSpacing:   time.Duration(raw.FetchSpacing) * time.Millisecond,
		MaxItems:       raw.MaxItems,
		TickInterval:   time.Duration(raw.TickInterval) * time.Second,
		ScoreThreshold: raw.ScoreThreshold,
		DailyCap:       raw.DailyCap,
		MaxItemAge:     time.Duration(raw.MaxItemAge) * time.Hour,
		PipelineURL:    raw.PipelineURL,
		RedisAddr:      raw.RedisAddr,
		DedupTTL:       time.Duration(raw.DedupTTL) * time.Hour,
		ExtractContent: raw.ExtractContent,
		Timezone:       raw.Timezone,
		Location:       time.UTC,
		Debug:          raw.Debug,
		Version:        GetVersion(),
	}

	loc, err := applyTimezone(cfg.Timezone)
	if err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
		loc = time.Local
	}
	cfg.Location = loc

	return cfg, nil
}

func validate(raw rawCfg) error {
	switch {
	case raw.TickInterval <= 0:
		return fmt.Errorf("tick interval must be positive, got %d", raw.TickInterval)
	case raw.FetchTimeout <= 0:
		return fmt.Errorf("fetch timeout must be positive, got %d", raw.FetchTimeout)
	case raw.FetchSpacing < 0:
		return fmt.Errorf("fetch spacing must not be negative, got %d", raw.FetchSpacing)
	case raw.MaxItems <= 0:
		return fmt.Errorf("max items must be positive, got %d", raw.MaxItems)
	case raw.ScoreThreshold < 1 || raw.ScoreThreshold > 100:
		return fmt.Errorf("score threshold must be between 1 and 100, got %d", raw.ScoreThreshold)
	case raw.DailyCap <= 0:
		return fmt.Errorf("daily cap must be positive, got %d", raw.DailyCap)
	case raw.MaxItemAge <= 0:
		return fmt.Errorf("max item age must be positive, got %d", raw.MaxItemAge)
	}
	return nil
}

func applyTimezone(timezone string) (*time.Location, error) {
	if timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	time.Local = loc
	return loc, nil
}
