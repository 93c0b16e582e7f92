package api

import (
	"context"
	"time"

	"github.com/lysyi3m/rss-scout/app/feed"
	"github.com/lysyi3m/rss-scout/app/monitor"
)

type FeedRegistry interface {
	GetFeeds() []feed.Definition
	GetFeed(id string) (feed.Definition, error)
	AddFeed(ctx context.Context, def feed.Definition) (feed.Definition, error)
	UpdateFeed(ctx context.Context, def feed.Definition) (feed.Definition, error)
	RemoveFeed(id string) error
	Health() feed.Health
}

type FeedMonitor interface {
	Start()
	Stop()
	State() monitor.State
	Stats() monitor.Stats
	Tick(ctx context.Context, now time.Time) monitor.TickReport
	CheckFeed(ctx context.Context, id string, now time.Time) (monitor.TickReport, error)
	ClearProcessed()
}

var (
	_ FeedRegistry = (*feed.Registry)(nil)
	_ FeedMonitor  = (*monitor.Monitor)(nil)
)

type Handler struct {
	registry FeedRegistry
	monitor  FeedMonitor
	version  string
	now      func() time.Time
}

// feedRequest is the body of create and update calls. Omitted isActive
// means active on create and unchanged on update.
type feedRequest struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	URL           string        `json:"url"`
	Category      feed.Category `json:"category"`
	Priority      feed.Priority `json:"priority"`
	Active        *bool         `json:"isActive"`
	CheckInterval int           `json:"checkInterval"`
}

func (r feedRequest) definition(id string, active bool) feed.Definition {
	if r.Active != nil {
		active = *r.Active
	}
	return feed.Definition{
		ID:            id,
		Name:          r.Name,
		URL:           r.URL,
		Category:      r.Category,
		Priority:      r.Priority,
		Active:        active,
		CheckInterval: r.CheckInterval,
	}
}
