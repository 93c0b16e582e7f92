package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/rss-scout/app/feed"
	"github.com/lysyi3m/rss-scout/app/metrics"
	"github.com/lysyi3m/rss-scout/app/pipeline"
)

const (
	DefaultTickInterval   = 60 * time.Second
	DefaultScoreThreshold = 70
	DefaultMaxItemAge     = 24 * time.Hour
)

var ErrTickInProgress = errors.New("a check cycle is already running")

type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

// Skip reasons reported by the acceptance gate.
const (
	ReasonLowScore  = "low_score"
	ReasonDuplicate = "duplicate"
	ReasonStale     = "stale"
	ReasonQuota     = "quota"
)

type Registry interface {
	DueFeeds(now time.Time) []feed.Definition
	GetFeed(id string) (feed.Definition, error)
	MarkChecked(id string, at time.Time) error
}

type Parser interface {
	Parse(ctx context.Context, src feed.Definition) (*feed.ParseResult, error)
}

type Scorer interface {
	Score(item feed.Item, now time.Time) int
}

type Config struct {
	TickInterval   time.Duration
	ScoreThreshold int
	DailyCap       int
	MaxItemAge     time.Duration
	Location       *time.Location   // calendar used by the daily cap
	Now            func() time.Time // clock used by the ticker loop
}

type TickReport struct {
	Overlapped    bool           `json:"overlapped"`
	FeedsDue      int            `json:"feedsDue"`
	FeedsChecked  int            `json:"feedsChecked"`
	FeedsFailed   int            `json:"feedsFailed"`
	ItemsSeen     int            `json:"itemsSeen"`
	ItemsAccepted int            `json:"itemsAccepted"`
	Created       int            `json:"created"`
	ForwardFailed int            `json:"forwardFailed"`
	Skipped       map[string]int `json:"skipped"`
}

type Stats struct {
	IsActive            bool       `json:"isActive"`
	ProcessedItemsCount int        `json:"processedItemsCount"`
	LastProcessedDate   *time.Time `json:"lastProcessedDate,omitempty"`
	Uptime              int64      `json:"uptime"` // seconds
	ForwardedToday      int        `json:"forwardedToday"`
	DailyCap            int        `json:"dailyCap"`
}

// Monitor runs the periodic check cycle: due feeds are parsed one after
// another, items pass the acceptance gate, accepted items go to the
// content pipeline.
type Monitor struct {
	registry  Registry
	parser    Parser
	scorer    Scorer
	pipeline  pipeline.Pipeline
	cfg       Config
	processed *ProcessedSet
	quota     *DailyQuota
	newTicker func(d time.Duration) (<-chan time.Time, func())

	mu        sync.Mutex
	state     State
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	tickMu sync.Mutex
}

func NewMonitor(registry Registry, parser Parser, scorer Scorer, p pipeline.Pipeline, cfg Config) *Monitor {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = DefaultScoreThreshold
	}
	if cfg.MaxItemAge <= 0 {
		cfg.MaxItemAge = DefaultMaxItemAge
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Monitor{
		registry:  registry,
		parser:    parser,
		scorer:    scorer,
		pipeline:  p,
		cfg:       cfg,
		processed: NewProcessedSet(),
		quota:     NewDailyQuota(cfg.DailyCap, cfg.Location),
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
		state: StateStopped,
	}
}

// Start runs one cycle right away and then one per tick interval.
// Calling Start on a running monitor does nothing.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateRunning {
		slog.Info("Monitor already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	ticks, stopTicker := m.newTicker(m.cfg.TickInterval)

	m.state = StateRunning
	m.startedAt = m.cfg.Now()
	m.cancel = cancel
	m.done = done

	go func() {
		defer close(done)
		defer stopTicker()

		m.runTick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticks:
				m.runTick(ctx)
			}
		}
	}()

	slog.Info("Monitor started", "interval", m.cfg.TickInterval)
}

// Stop prevents further cycles and waits for an in-flight cycle to
// finish. Calling Stop on a stopped monitor does nothing.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.state == StateStopped {
		m.mu.Unlock()
		slog.Info("Monitor already stopped")
		return
	}
	m.cancel()
	done := m.done
	m.state = StateStopped
	m.mu.Unlock()

	<-done
	slog.Info("Monitor stopped")
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) runTick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	// Stop must not abort work already started.
	m.Tick(context.WithoutCancel(ctx), m.cfg.Now())
}

// Tick executes one check cycle at now. A cycle that starts while another
// is still running is skipped and reported as overlapped.
func (m *Monitor) Tick(ctx context.Context, now time.Time) TickReport {
	if !m.tickMu.TryLock() {
		slog.Warn("Previous check cycle still running, skipping tick")
		return TickReport{Overlapped: true}
	}
	defer m.tickMu.Unlock()

	start := time.Now()
	report := TickReport{Skipped: make(map[string]int)}

	due := m.registry.DueFeeds(now)
	report.FeedsDue = len(due)
	if len(due) == 0 {
		slog.Debug("No feeds due")
	}

	for _, def := range due {
		m.checkFeed(ctx, def, now, &report)
	}

	metrics.TicksTotal.Inc()
	metrics.TickDuration.Observe(time.Since(start).Seconds())

	slog.Info("Check cycle completed",
		"duration", time.Since(start),
		"due", report.FeedsDue,
		"checked", report.FeedsChecked,
		"failed", report.FeedsFailed,
		"items", report.ItemsSeen,
		"accepted", report.ItemsAccepted)

	return report
}

// CheckFeed runs the per-feed step for one feed regardless of its
// schedule.
func (m *Monitor) CheckFeed(ctx context.Context, id string, now time.Time) (TickReport, error) {
	def, err := m.registry.GetFeed(id)
	if err != nil {
		return TickReport{}, err
	}

	if !m.tickMu.TryLock() {
		return TickReport{Overlapped: true}, ErrTickInProgress
	}
	defer m.tickMu.Unlock()

	report := TickReport{FeedsDue: 1, Skipped: make(map[string]int)}
	m.checkFeed(ctx, def, now, &report)
	return report, nil
}

// checkFeed never returns an error: a failing feed is logged and left
// due, and the cycle moves on.
func (m *Monitor) checkFeed(ctx context.Context, def feed.Definition, now time.Time, report *TickReport) {
	result, err := m.parser.Parse(ctx, def)
	if err != nil {
		report.FeedsFailed++
		metrics.FeedChecksTotal.WithLabelValues("failed").Inc()
		slog.Error("Feed check failed", "feed", def.ID, "url", def.URL, "error", err)
		return
	}

	if err := m.registry.MarkChecked(def.ID, now); err != nil {
		slog.Warn("Failed to mark feed checked", "feed", def.ID, "error", err)
	}
	report.FeedsChecked++
	metrics.FeedChecksTotal.WithLabelValues("ok").Inc()

	accepted := 0
	for _, item := range result.Items {
		if m.handleItem(ctx, item, now, report) {
			accepted++
		}
	}

	slog.Info("Feed checked",
		"feed", def.ID,
		"format", result.Format,
		"items", len(result.Items),
		"accepted", accepted)
}

func (m *Monitor) handleItem(ctx context.Context, item feed.Item, now time.Time, report *TickReport) bool {
	report.ItemsSeen++

	if reason := m.gate(item, now); reason != "" {
		report.Skipped[reason]++
		metrics.ItemsTotal.WithLabelValues(reason).Inc()
		slog.Debug("Item skipped", "reason", reason, "feed", item.Source, "link", item.Link)
		return false
	}

	// Marked before forwarding so a failing pipeline never causes a
	// second forward of the same link.
	m.processed.Add(item.Link, now)
	m.quota.Record(now)
	report.ItemsAccepted++
	metrics.ItemsTotal.WithLabelValues("accepted").Inc()

	outcome, err := m.pipeline.Process(ctx, item)
	if err != nil {
		report.ForwardFailed++
		metrics.ForwardsTotal.WithLabelValues("error").Inc()
		slog.Error("Content pipeline failed", "feed", item.Source, "link", item.Link, "error", err)
		return true
	}

	if outcome == pipeline.OutcomeCreated {
		report.Created++
	}
	metrics.ForwardsTotal.WithLabelValues(string(outcome)).Inc()
	slog.Info("Item forwarded", "feed", item.Source, "link", item.Link, "outcome", outcome)
	return true
}

// gate returns the first reason item is rejected, or "" when accepted.
func (m *Monitor) gate(item feed.Item, now time.Time) string {
	switch {
	case m.scorer.Score(item, now) < m.cfg.ScoreThreshold:
		return ReasonLowScore
	case m.processed.Has(item.Link):
		return ReasonDuplicate
	case now.Sub(item.PublishedAt) > m.cfg.MaxItemAge:
		return ReasonStale
	case !m.quota.Allow(now):
		return ReasonQuota
	}
	return ""
}

func (m *Monitor) Stats() Stats {
	now := m.cfg.Now()

	m.mu.Lock()
	active := m.state == StateRunning
	var uptime time.Duration
	if active {
		uptime = now.Sub(m.startedAt)
	}
	m.mu.Unlock()

	return Stats{
		IsActive:            active,
		ProcessedItemsCount: m.processed.Len(),
		LastProcessedDate:   m.processed.LastProcessed(),
		Uptime:              int64(uptime.Seconds()),
		ForwardedToday:      m.quota.Count(now),
		DailyCap:            m.quota.Cap(),
	}
}

// ClearProcessed forgets every processed link so items can be accepted
// again. The daily cap is unaffected.
func (m *Monitor) ClearProcessed() {
	count := m.processed.Len()
	m.processed.Clear()
	slog.Info("Processed items cleared", "count", count)
}
