package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type MockProber struct {
	probed []string
	err    error
}

func (m *MockProber) Probe(ctx context.Context, url string) error {
	m.probed = append(m.probed, url)
	return m.err
}

type MockStore struct {
	feeds   map[string]Definition
	saveErr error
}

func NewMockStore(defs ...Definition) *MockStore {
	s := &MockStore{feeds: make(map[string]Definition)}
	for _, d := range defs {
		s.feeds[d.ID] = d
	}
	return s
}

func (m *MockStore) ListFeeds() ([]Definition, error) {
	defs := make([]Definition, 0, len(m.feeds))
	for _, d := range m.feeds {
		defs = append(defs, d)
	}
	return defs, nil
}

func (m *MockStore) SaveFeed(def Definition) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.feeds[def.ID] = def
	return nil
}

func (m *MockStore) DeleteFeed(id string) error {
	delete(m.feeds, id)
	return nil
}

func testDefinition(id string) Definition {
	return Definition{
		ID:            id,
		Name:          "Feed " + id,
		URL:           "https://feeds.example.com/" + id + ".xml",
		Category:      CategorySports,
		Priority:      PriorityMedium,
		Active:        true,
		CheckInterval: 15,
	}
}

func TestRegistry_AddFeed(t *testing.T) {
	prober := &MockProber{}
	store := NewMockStore()
	registry := NewRegistry(prober, store)

	def, err := registry.AddFeed(context.Background(), testDefinition("a"))
	if err != nil {
		t.Fatal(err)
	}
	if def.ID != "a" {
		t.Errorf("Expected id 'a', got '%s'", def.ID)
	}
	if len(prober.probed) != 1 {
		t.Errorf("Expected URL to be probed once, got %d", len(prober.probed))
	}
	if _, ok := store.feeds["a"]; !ok {
		t.Errorf("Expected feed to be persisted")
	}
}

func TestRegistry_AddFeed_Defaults(t *testing.T) {
	registry := NewRegistry(&MockProber{}, nil)

	def := testDefinition("a")
	def.Priority = ""
	def.CheckInterval = 0
	def.Category = " Football "

	got, err := registry.AddFeed(context.Background(), def)
	if err != nil {
		t.Fatal(err)
	}
	if got.Priority != PriorityMedium {
		t.Errorf("Expected default priority medium, got '%s'", got.Priority)
	}
	if got.CheckInterval != DefaultCheckInterval {
		t.Errorf("Expected default interval %d, got %d", DefaultCheckInterval, got.CheckInterval)
	}
	if got.Category != CategoryFootball {
		t.Errorf("Expected normalized category, got '%s'", got.Category)
	}
}

func TestRegistry_AddFeed_Errors(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(*Definition)
		proberEr error
		expected error
	}{
		{"missing id", func(d *Definition) { d.ID = "" }, nil, ErrValidation},
		{"missing name", func(d *Definition) { d.Name = " " }, nil, ErrValidation},
		{"relative url", func(d *Definition) { d.URL = "/feed.xml" }, nil, ErrValidation},
		{"unknown category", func(d *Definition) { d.Category = "tennis" }, nil, ErrValidation},
		{"unknown priority", func(d *Definition) { d.Priority = "urgent" }, nil, ErrValidation},
		{"interval too small", func(d *Definition) { d.CheckInterval = 4 }, nil, ErrValidation},
		{"interval too large", func(d *Definition) { d.CheckInterval = 1441 }, nil, ErrValidation},
		{"unreachable", func(d *Definition) {}, fmt.Errorf("%w: unreachable", ErrValidation), ErrValidation},
		{"duplicate id", func(d *Definition) { d.URL = "https://other.example.com/x.xml" }, nil, ErrDuplicate},
		{"duplicate url", func(d *Definition) { d.ID = "other" }, nil, ErrDuplicate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry(&MockProber{}, nil)
			if _, err := registry.AddFeed(context.Background(), testDefinition("existing")); err != nil {
				t.Fatal(err)
			}
			registry.prober = &MockProber{err: tt.proberEr}

			def := testDefinition("existing")
			if tt.expected != ErrDuplicate {
				def = testDefinition("new")
			}
			tt.modify(&def)

			_, err := registry.AddFeed(context.Background(), def)
			if !errors.Is(err, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, err)
			}
			if len(registry.GetFeeds()) != 1 {
				t.Errorf("Expected registry to be unchanged")
			}
		})
	}
}

func TestRegistry_UpdateFeed(t *testing.T) {
	prober := &MockProber{}
	registry := NewRegistry(prober, nil)
	if _, err := registry.AddFeed(context.Background(), testDefinition("a")); err != nil {
		t.Fatal(err)
	}
	checked := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	if err := registry.MarkChecked("a", checked); err != nil {
		t.Fatal(err)
	}
	prober.probed = nil

	def := testDefinition("a")
	def.Name = "Renamed"
	got, err := registry.UpdateFeed(context.Background(), def)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Renamed" {
		t.Errorf("Expected name 'Renamed', got '%s'", got.Name)
	}
	if len(prober.probed) != 0 {
		t.Errorf("Expected unchanged URL not to be probed, got %v", prober.probed)
	}
	if got.LastChecked == nil || !got.LastChecked.Equal(checked) {
		t.Errorf("Expected last check time to be preserved, got %v", got.LastChecked)
	}

	def.URL = "https://feeds.example.com/moved.xml"
	if _, err := registry.UpdateFeed(context.Background(), def); err != nil {
		t.Fatal(err)
	}
	if len(prober.probed) != 1 || prober.probed[0] != def.URL {
		t.Errorf("Expected changed URL to be probed, got %v", prober.probed)
	}
}

func TestRegistry_UpdateFeed_Errors(t *testing.T) {
	registry := NewRegistry(&MockProber{}, nil)
	registry.AddFeed(context.Background(), testDefinition("a"))
	registry.AddFeed(context.Background(), testDefinition("b"))

	if _, err := registry.UpdateFeed(context.Background(), testDefinition("missing")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	def := testDefinition("a")
	def.URL = testDefinition("b").URL
	if _, err := registry.UpdateFeed(context.Background(), def); !errors.Is(err, ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate, got %v", err)
	}

	registry.prober = &MockProber{err: fmt.Errorf("%w: not xml", ErrValidation)}
	def = testDefinition("a")
	def.URL = "https://feeds.example.com/html"
	if _, err := registry.UpdateFeed(context.Background(), def); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}
}

func TestRegistry_RemoveFeed(t *testing.T) {
	store := NewMockStore()
	registry := NewRegistry(&MockProber{}, store)
	registry.AddFeed(context.Background(), testDefinition("a"))

	if err := registry.RemoveFeed("a"); err != nil {
		t.Fatal(err)
	}
	if len(registry.GetFeeds()) != 0 {
		t.Errorf("Expected no feeds after removal")
	}
	if len(store.feeds) != 0 {
		t.Errorf("Expected feed to be deleted from store")
	}
	if err := registry.RemoveFeed("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_DefensiveCopies(t *testing.T) {
	registry := NewRegistry(&MockProber{}, nil)
	registry.AddFeed(context.Background(), testDefinition("a"))
	checked := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	registry.MarkChecked("a", checked)

	feeds := registry.GetFeeds()
	feeds[0].Name = "mutated"
	*feeds[0].LastChecked = checked.Add(time.Hour)

	got, err := registry.GetFeed("a")
	if err != nil {
		t.Fatal(err)
	}
	got.Active = false

	again, _ := registry.GetFeed("a")
	if again.Name != "Feed a" || !again.Active {
		t.Errorf("Expected registry state to be unaffected, got %+v", again)
	}
	if !again.LastChecked.Equal(checked) {
		t.Errorf("Expected last check time to be unaffected, got %v", again.LastChecked)
	}

	if _, err := registry.GetFeed("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_DueFeeds(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		interval    int
		lastChecked *time.Time
		active      bool
		due         bool
	}{
		{"never checked", 15, nil, true, true},
		{"exactly at interval", 15, ptr(now.Add(-15 * time.Minute)), true, true},
		{"one ms short of interval", 15, ptr(now.Add(-15*time.Minute + time.Millisecond)), true, false},
		{"well past interval", 5, ptr(now.Add(-time.Hour)), true, true},
		{"inactive", 5, nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := testDefinition("a")
			def.CheckInterval = tt.interval
			def.Active = tt.active
			def.LastChecked = tt.lastChecked

			registry := NewRegistry(nil, NewMockStore(def))
			if err := registry.Restore(); err != nil {
				t.Fatal(err)
			}

			due := registry.DueFeeds(now)
			if (len(due) == 1) != tt.due {
				t.Errorf("Expected due=%v, got %d due feeds", tt.due, len(due))
			}
		})
	}
}

func TestRegistry_DueFeeds_PriorityOrder(t *testing.T) {
	registry := NewRegistry(nil, nil)
	for _, tc := range []struct {
		id       string
		priority Priority
	}{{"c", PriorityLow}, {"b", PriorityHigh}, {"a", PriorityMedium}, {"d", PriorityHigh}} {
		def := testDefinition(tc.id)
		def.Priority = tc.priority
		if _, err := registry.Seed(def); err != nil {
			t.Fatal(err)
		}
	}

	due := registry.DueFeeds(time.Now())
	var ids []string
	for _, d := range due {
		ids = append(ids, d.ID)
	}
	expected := []string{"b", "d", "a", "c"}
	if fmt.Sprint(ids) != fmt.Sprint(expected) {
		t.Errorf("Expected order %v, got %v", expected, ids)
	}
}

func TestRegistry_MarkChecked(t *testing.T) {
	store := NewMockStore()
	registry := NewRegistry(nil, store)
	registry.Seed(testDefinition("a"))

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	if err := registry.MarkChecked("a", now); err != nil {
		t.Fatal(err)
	}
	if len(registry.DueFeeds(now)) != 0 {
		t.Errorf("Expected feed not to be due right after a check")
	}
	if stored := store.feeds["a"]; stored.LastChecked == nil || !stored.LastChecked.Equal(now) {
		t.Errorf("Expected last check time to be persisted")
	}

	store.saveErr = errors.New("disk full")
	later := now.Add(time.Hour)
	if err := registry.MarkChecked("a", later); err != nil {
		t.Errorf("Expected store failure to be logged only, got %v", err)
	}
	if got, _ := registry.GetFeed("a"); !got.LastChecked.Equal(later) {
		t.Errorf("Expected in-memory state to advance, got %v", got.LastChecked)
	}

	if err := registry.MarkChecked("missing", now); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_Seed(t *testing.T) {
	registry := NewRegistry(&MockProber{err: errors.New("must not probe")}, nil)

	added, err := registry.Seed(testDefinition("a"))
	if err != nil || !added {
		t.Fatalf("Expected seed to be added, got added=%v err=%v", added, err)
	}

	def := testDefinition("a")
	def.Name = "Changed"
	added, err = registry.Seed(def)
	if err != nil || added {
		t.Errorf("Expected existing id to be left untouched, got added=%v err=%v", added, err)
	}
	if got, _ := registry.GetFeed("a"); got.Name != "Feed a" {
		t.Errorf("Expected original name, got '%s'", got.Name)
	}

	dup := testDefinition("b")
	dup.URL = testDefinition("a").URL
	if _, err := registry.Seed(dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate, got %v", err)
	}
}

func TestRegistry_Health(t *testing.T) {
	registry := NewRegistry(nil, nil)

	health := registry.Health()
	if health.TotalFeeds != 0 || health.LastCheck != nil || health.AverageInterval != 0 {
		t.Errorf("Expected empty health, got %+v", health)
	}

	a := testDefinition("a")
	a.CheckInterval = 10
	b := testDefinition("b")
	b.CheckInterval = 30
	b.Active = false
	registry.Seed(a)
	registry.Seed(b)

	first := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	registry.MarkChecked("a", first)
	registry.MarkChecked("b", first.Add(time.Hour))

	health = registry.Health()
	if health.TotalFeeds != 2 {
		t.Errorf("Expected 2 feeds, got %d", health.TotalFeeds)
	}
	if health.ActiveFeeds != 1 {
		t.Errorf("Expected 1 active feed, got %d", health.ActiveFeeds)
	}
	if health.LastCheck == nil || !health.LastCheck.Equal(first.Add(time.Hour)) {
		t.Errorf("Expected most recent check time, got %v", health.LastCheck)
	}
	if health.AverageInterval != 20 {
		t.Errorf("Expected average interval 20, got %v", health.AverageInterval)
	}
}

func ptr[T any](v T) *T {
	return &v
}
