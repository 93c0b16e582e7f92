package cfg

import (
	"time"
)

type Cfg struct {
	// Storage
	DBPath   string
	FeedsDir string

	// HTTP surface
	Port         string
	APIAccessKey string

	// Fetching
	UserAgent    string
	FetchTimeout time.Duration
	FetchSpacing time.Duration
	MaxItems     int

	// Monitor
	TickInterval   time.Duration
	ScoreThreshold int
	DailyCap       int
	MaxItemAge     time.Duration

	// Content pipeline
	PipelineURL    string
	RedisAddr      string
	DedupTTL       time.Duration
	ExtractContent bool

	// Application metadata
	Timezone string
	Location *time.Location
	Debug    bool
	Version  string
}
