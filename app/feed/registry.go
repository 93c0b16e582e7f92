package feed

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// Prober checks that a feed URL is reachable and serves XML.
type Prober interface {
	Probe(ctx context.Context, url string) error
}

// Store persists feed definitions across restarts.
type Store interface {
	ListFeeds() ([]Definition, error)
	SaveFeed(def Definition) error
	DeleteFeed(id string) error
}

var validCategories = map[Category]bool{
	CategorySports:   true,
	CategoryBetting:  true,
	CategoryFootball: true,
	CategoryGeneral:  true,
}

var priorityRank = map[Priority]int{
	PriorityHigh:   0,
	PriorityMedium: 1,
	PriorityLow:    2,
}

// Registry owns the configured feeds. Reads return copies, so callers can
// never mutate registry state through them.
type Registry struct {
	prober Prober
	store  Store
	feeds  map[string]*Definition
	order  []string
	mu     sync.RWMutex
}

func NewRegistry(prober Prober, store Store) *Registry {
	return &Registry{
		prober: prober,
		store:  store,
		feeds:  make(map[string]*Definition),
	}
}

// Restore loads persisted definitions. It is meant to be called once at
// startup, before any other mutation.
func (r *Registry) Restore() error {
	if r.store == nil {
		return nil
	}

	defs, err := r.store.ListFeeds()
	if err != nil {
		return fmt.Errorf("failed to list stored feeds: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, def := range defs {
		if err := r.checkUniqueLocked(def, ""); err != nil {
			slog.Warn("Skipping stored feed", "feed", def.ID, "error", err)
			continue
		}
		d := def.clone()
		r.feeds[d.ID] = &d
		r.order = append(r.order, d.ID)
	}

	slog.Debug("Registry restored", "count", len(r.order))
	return nil
}

// AddFeed validates def, probes its URL and registers it.
func (r *Registry) AddFeed(ctx context.Context, def Definition) (Definition, error) {
	def, err := normalizeDefinition(def)
	if err != nil {
		return Definition{}, err
	}

	if err := r.checkUnique(def, ""); err != nil {
		return Definition{}, err
	}

	if r.prober != nil {
		if err := r.prober.Probe(ctx, def.URL); err != nil {
			return Definition{}, err
		}
	}

	return r.insert(def)
}

// Seed registers def without probing its URL. A feed whose id is already
// registered is left untouched and reported with added=false.
func (r *Registry) Seed(def Definition) (bool, error) {
	def, err := normalizeDefinition(def)
	if err != nil {
		return false, err
	}

	r.mu.RLock()
	_, exists := r.feeds[def.ID]
	r.mu.RUnlock()
	if exists {
		return false, nil
	}

	if _, err := r.insert(def); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Registry) insert(def Definition) (Definition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// The probe ran without the lock held, so check again.
	if err := r.checkUniqueLocked(def, ""); err != nil {
		return Definition{}, err
	}

	if r.store != nil {
		if err := r.store.SaveFeed(def); err != nil {
			return Definition{}, fmt.Errorf("failed to save feed: %w", err)
		}
	}

	d := def.clone()
	r.feeds[d.ID] = &d
	r.order = append(r.order, d.ID)

	slog.Info("Feed added", "feed", d.ID, "url", d.URL)
	return def.clone(), nil
}

// UpdateFeed replaces the definition with the same id. The URL is probed
// only when it changed, and a nil LastChecked keeps the existing value.
func (r *Registry) UpdateFeed(ctx context.Context, def Definition) (Definition, error) {
	def, err := normalizeDefinition(def)
	if err != nil {
		return Definition{}, err
	}

	existing, err := r.GetFeed(def.ID)
	if err != nil {
		return Definition{}, err
	}

	if err := r.checkUnique(def, def.ID); err != nil {
		return Definition{}, err
	}

	if def.URL != existing.URL && r.prober != nil {
		if err := r.prober.Probe(ctx, def.URL); err != nil {
			return Definition{}, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.feeds[def.ID]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrNotFound, def.ID)
	}
	if err := r.checkUniqueLocked(def, def.ID); err != nil {
		return Definition{}, err
	}

	if def.LastChecked == nil {
		def.LastChecked = current.clone().LastChecked
	}

	if r.store != nil {
		if err := r.store.SaveFeed(def); err != nil {
			return Definition{}, fmt.Errorf("failed to save feed: %w", err)
		}
	}

	d := def.clone()
	r.feeds[d.ID] = &d

	slog.Info("Feed updated", "feed", d.ID, "url", d.URL)
	return def.clone(), nil
}

func (r *Registry) RemoveFeed(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.feeds[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if r.store != nil {
		if err := r.store.DeleteFeed(id); err != nil {
			return fmt.Errorf("failed to delete feed: %w", err)
		}
	}

	delete(r.feeds, id)
	r.order = slices.DeleteFunc(r.order, func(v string) bool { return v == id })

	slog.Info("Feed removed", "feed", id)
	return nil
}

// MarkChecked advances LastChecked after a successful check. A store
// failure is logged; the in-memory state still advances.
func (r *Registry) MarkChecked(id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	def, ok := r.feeds[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	t := at
	def.LastChecked = &t

	if r.store != nil {
		if err := r.store.SaveFeed(def.clone()); err != nil {
			slog.Error("Failed to persist last check time", "feed", id, "error", err)
		}
	}

	return nil
}

func (r *Registry) GetFeed(id string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.feeds[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return def.clone(), nil
}

// GetFeeds returns all feeds in registration order.
func (r *Registry) GetFeeds() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.order))
	for _, id := range r.order {
		defs = append(defs, r.feeds[id].clone())
	}
	return defs
}

// DueFeeds returns every active feed whose interval has elapsed at now,
// high priority first. It depends only on registry state and now.
func (r *Registry) DueFeeds(now time.Time) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var due []Definition
	for _, id := range r.order {
		if def := r.feeds[id]; def.IsDue(now) {
			due = append(due, def.clone())
		}
	}

	slices.SortStableFunc(due, func(a, b Definition) int {
		return cmp.Or(
			cmp.Compare(priorityRank[a.Priority], priorityRank[b.Priority]),
			strings.Compare(a.ID, b.ID),
		)
	})
	return due
}

func (r *Registry) Health() Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := Health{TotalFeeds: len(r.feeds)}
	totalInterval := 0
	for _, def := range r.feeds {
		if def.Active {
			health.ActiveFeeds++
		}
		totalInterval += def.CheckInterval
		if def.LastChecked != nil && (health.LastCheck == nil || def.LastChecked.After(*health.LastCheck)) {
			t := *def.LastChecked
			health.LastCheck = &t
		}
	}
	if len(r.feeds) > 0 {
		health.AverageInterval = float64(totalInterval) / float64(len(r.feeds))
	}
	return health
}

func (r *Registry) checkUnique(def Definition, selfID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.checkUniqueLocked(def, selfID)
}

// checkUniqueLocked rejects id or URL collisions. selfID is the id being
// updated, which may keep its own URL.
func (r *Registry) checkUniqueLocked(def Definition, selfID string) error {
	if selfID == "" {
		if _, ok := r.feeds[def.ID]; ok {
			return fmt.Errorf("%w: feed id '%s' already exists", ErrDuplicate, def.ID)
		}
	}
	for id, existing := range r.feeds {
		if id != selfID && existing.URL == def.URL {
			return fmt.Errorf("%w: feed URL '%s' already registered as '%s'", ErrDuplicate, def.URL, id)
		}
	}
	return nil
}

// normalizeDefinition applies defaults and checks the definition shape.
func normalizeDefinition(def Definition) (Definition, error) {
	def.ID = strings.TrimSpace(def.ID)
	def.Name = strings.TrimSpace(def.Name)
	def.URL = strings.TrimSpace(def.URL)
	def.Category = Category(strings.ToLower(strings.TrimSpace(string(def.Category))))
	def.Priority = Priority(strings.ToLower(strings.TrimSpace(string(def.Priority))))

	if def.Priority == "" {
		def.Priority = PriorityMedium
	}
	if def.CheckInterval == 0 {
		def.CheckInterval = DefaultCheckInterval
	}

	switch {
	case def.ID == "":
		return def, fmt.Errorf("%w: feed id is required", ErrValidation)
	case def.Name == "":
		return def, fmt.Errorf("%w: feed name is required", ErrValidation)
	case !isAbsoluteHTTP(def.URL):
		return def, fmt.Errorf("%w: feed URL must be an absolute http(s) URL", ErrValidation)
	case !validCategories[def.Category]:
		return def, fmt.Errorf("%w: unknown category '%s'", ErrValidation, def.Category)
	}
	if _, ok := priorityRank[def.Priority]; !ok {
		return def, fmt.Errorf("%w: unknown priority '%s'", ErrValidation, def.Priority)
	}
	if def.CheckInterval < MinCheckInterval || def.CheckInterval > MaxCheckInterval {
		return def, fmt.Errorf("%w: check interval must be between %d and %d minutes", ErrValidation, MinCheckInterval, MaxCheckInterval)
	}

	return def, nil
}
