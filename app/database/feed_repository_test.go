package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/lysyi3m/rss-scout/app/feed"
)

func newTestRepository(t *testing.T) *FeedRepository {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "data", "scout.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	version, dirty, err := RunMigrations(db)
	if err != nil {
		t.Fatal(err)
	}
	if version != 1 || dirty {
		t.Fatalf("Expected clean migration version 1, got %d (dirty=%v)", version, dirty)
	}

	return NewFeedRepository(db)
}

func TestRunMigrationsTwice(t *testing.T) {
	db, err := NewConnection(filepath.Join(t.TempDir(), "scout.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatal(err)
	}
	if _, _, err := RunMigrations(db); err != nil {
		t.Errorf("Expected second run to be a no-op, got %v", err)
	}
}

func TestFeedRepositorySaveAndList(t *testing.T) {
	repo := newTestRepository(t)

	checked := time.Date(2026, 3, 14, 12, 0, 0, 123000000, time.UTC)
	defs := []feed.Definition{
		{
			ID:            "bbc-football",
			Name:          "BBC Football",
			URL:           "https://feeds.example.com/football.xml",
			Category:      feed.CategoryFootball,
			Priority:      feed.PriorityHigh,
			Active:        true,
			CheckInterval: 15,
			LastChecked:   &checked,
		},
		{
			ID:            "odds",
			Name:          "Odds Daily",
			URL:           "https://feeds.example.com/odds.xml",
			Category:      feed.CategoryBetting,
			Priority:      feed.PriorityLow,
			Active:        false,
			CheckInterval: 60,
		},
	}

	for _, def := range defs {
		if err := repo.SaveFeed(def); err != nil {
			t.Fatal(err)
		}
	}

	stored, err := repo.ListFeeds()
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 {
		t.Fatalf("Expected 2 feeds, got %d", len(stored))
	}

	byID := map[string]feed.Definition{}
	for _, def := range stored {
		byID[def.ID] = def
	}

	got := byID["bbc-football"]
	if got.Name != "BBC Football" || got.Category != feed.CategoryFootball || got.Priority != feed.PriorityHigh {
		t.Errorf("Unexpected stored feed: %+v", got)
	}
	if !got.Active || got.CheckInterval != 15 {
		t.Errorf("Expected active feed with interval 15, got %+v", got)
	}
	if got.LastChecked == nil || !got.LastChecked.Equal(checked) {
		t.Errorf("Expected last checked %v, got %v", checked, got.LastChecked)
	}

	if odds := byID["odds"]; odds.Active || odds.LastChecked != nil {
		t.Errorf("Expected inactive unchecked feed, got %+v", odds)
	}
}

func TestFeedRepositoryUpdate(t *testing.T) {
	repo := newTestRepository(t)

	def := feed.Definition{
		ID:            "a",
		Name:          "A",
		URL:           "https://feeds.example.com/a.xml",
		Category:      feed.CategorySports,
		Priority:      feed.PriorityMedium,
		Active:        true,
		CheckInterval: 30,
	}
	if err := repo.SaveFeed(def); err != nil {
		t.Fatal(err)
	}

	def.Name = "A renamed"
	def.URL = "https://feeds.example.com/a2.xml"
	checked := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	def.LastChecked = &checked
	if err := repo.SaveFeed(def); err != nil {
		t.Fatal(err)
	}

	stored, err := repo.ListFeeds()
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 {
		t.Fatalf("Expected update in place, got %d rows", len(stored))
	}
	if stored[0].Name != "A renamed" || stored[0].URL != def.URL {
		t.Errorf("Expected updated fields, got %+v", stored[0])
	}
	if stored[0].LastChecked == nil {
		t.Errorf("Expected last checked to be stored")
	}
}

func TestFeedRepositoryUniqueURL(t *testing.T) {
	repo := newTestRepository(t)

	a := feed.Definition{ID: "a", Name: "A", URL: "https://feeds.example.com/same.xml", Category: feed.CategoryGeneral, Priority: feed.PriorityMedium, CheckInterval: 30}
	b := a
	b.ID = "b"

	if err := repo.SaveFeed(a); err != nil {
		t.Fatal(err)
	}
	if err := repo.SaveFeed(b); err == nil {
		t.Errorf("Expected unique URL constraint to reject second feed")
	}
}

func TestFeedRepositoryDelete(t *testing.T) {
	repo := newTestRepository(t)

	def := feed.Definition{ID: "a", Name: "A", URL: "https://feeds.example.com/a.xml", Category: feed.CategoryGeneral, Priority: feed.PriorityMedium, CheckInterval: 30}
	if err := repo.SaveFeed(def); err != nil {
		t.Fatal(err)
	}

	if err := repo.DeleteFeed("a"); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteFeed("a"); err != nil {
		t.Errorf("Expected deleting a missing feed to succeed, got %v", err)
	}

	stored, err := repo.ListFeeds()
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 0 {
		t.Errorf("Expected no feeds, got %d", len(stored))
	}
}

func TestFeedRepositoryRestoresRegistry(t *testing.T) {
	repo := newTestRepository(t)

	registry := feed.NewRegistry(nil, repo)
	def := feed.Definition{ID: "a", Name: "A", URL: "https://feeds.example.com/a.xml", Category: feed.CategoryGeneral, Active: true}
	if _, err := registry.Seed(def); err != nil {
		t.Fatal(err)
	}
	checked := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	if err := registry.MarkChecked("a", checked); err != nil {
		t.Fatal(err)
	}

	restored := feed.NewRegistry(nil, repo)
	if err := restored.Restore(); err != nil {
		t.Fatal(err)
	}

	got, err := restored.GetFeed("a")
	if err != nil {
		t.Fatal(err)
	}
	if got.CheckInterval != feed.DefaultCheckInterval || got.Priority != feed.PriorityMedium {
		t.Errorf("Expected defaults to be persisted, got %+v", got)
	}
	if got.LastChecked == nil || !got.LastChecked.Equal(checked) {
		t.Errorf("Expected last checked to survive a restart, got %v", got.LastChecked)
	}
}
