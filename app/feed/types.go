package feed

import (
	"time"
)

// Feed definition types

type Category string

const (
	CategorySports   Category = "sports"
	CategoryBetting  Category = "betting"
	CategoryFootball Category = "football"
	CategoryGeneral  Category = "general"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

const (
	MinCheckInterval     = 5    // minutes
	MaxCheckInterval     = 1440 // minutes
	DefaultCheckInterval = 30   // minutes
)

type Definition struct {
	ID            string     `json:"id" yaml:"-"`
	Name          string     `json:"name" yaml:"name"`
	URL           string     `json:"url" yaml:"url"`
	Category      Category   `json:"category" yaml:"category"`
	Priority      Priority   `json:"priority" yaml:"priority"`
	Active        bool       `json:"isActive" yaml:"active"`
	CheckInterval int        `json:"checkInterval" yaml:"check_interval"` // minutes
	LastChecked   *time.Time `json:"lastChecked,omitempty" yaml:"-"`
}

// Interval returns the check interval as a duration.
func (d Definition) Interval() time.Duration {
	return time.Duration(d.CheckInterval) * time.Minute
}

// IsDue reports whether the feed should be checked at now.
// A feed that was never checked is always due.
func (d Definition) IsDue(now time.Time) bool {
	if !d.Active {
		return false
	}
	if d.LastChecked == nil {
		return true
	}
	return now.Sub(*d.LastChecked) >= d.Interval()
}

func (d Definition) clone() Definition {
	c := d
	if d.LastChecked != nil {
		t := *d.LastChecked
		c.LastChecked = &t
	}
	return c
}

type Health struct {
	TotalFeeds      int        `json:"totalFeeds"`
	ActiveFeeds     int        `json:"activeFeeds"`
	LastCheck       *time.Time `json:"lastCheck,omitempty"`
	AverageInterval float64    `json:"averageInterval"` // minutes
}

// Item processing types

type Format int

const (
	FormatRSS Format = iota + 1
	FormatAtom
)

func (f Format) String() string {
	switch f {
	case FormatRSS:
		return "rss"
	case FormatAtom:
		return "atom"
	default:
		return "unknown"
	}
}

type Item struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Link        string    `json:"link"` // canonical link, dedup identity
	PublishedAt time.Time `json:"publishedAt"`
	Source      string    `json:"source"`
	Category    Category  `json:"category"`
	Keywords    []string  `json:"keywords"`
	Content     string    `json:"content,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	GUID        string    `json:"guid,omitempty"`
	Author      string    `json:"author,omitempty"`
}

type ParseResult struct {
	Format Format
	Items  []Item
}
