package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lysyi3m/rss-scout/app/feed"
)

var _ feed.Store = (*FeedRepository)(nil)

// FeedRepository persists feed definitions for the registry
type FeedRepository struct {
	db *DB
}

// NewFeedRepository creates a new feed repository
func NewFeedRepository(db *DB) *FeedRepository {
	return &FeedRepository{db: db}
}

// ListFeeds returns every stored feed in creation order
func (r *FeedRepository) ListFeeds() ([]feed.Definition, error) {
	rows, err := r.db.Query(`
		SELECT id, name, url, category, priority, active, check_interval, last_checked
		FROM feeds
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}
	defer rows.Close()

	var defs []feed.Definition
	for rows.Next() {
		var (
			def         feed.Definition
			lastChecked sql.NullString
		)
		err := rows.Scan(
			&def.ID, &def.Name, &def.URL, &def.Category, &def.Priority,
			&def.Active, &def.CheckInterval, &lastChecked,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}

		if lastChecked.Valid {
			t, err := time.Parse(time.RFC3339Nano, lastChecked.String)
			if err != nil {
				return nil, fmt.Errorf("invalid last_checked for feed '%s': %w", def.ID, err)
			}
			def.LastChecked = &t
		}

		defs = append(defs, def)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return defs, nil
}

// SaveFeed inserts or updates a feed definition
func (r *FeedRepository) SaveFeed(def feed.Definition) error {
	var lastChecked sql.NullString
	if def.LastChecked != nil {
		lastChecked = sql.NullString{String: def.LastChecked.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	_, err := r.db.Exec(`
		INSERT INTO feeds (id, name, url, category, priority, active, check_interval, last_checked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			url = excluded.url,
			category = excluded.category,
			priority = excluded.priority,
			active = excluded.active,
			check_interval = excluded.check_interval,
			last_checked = excluded.last_checked,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
	`, def.ID, def.Name, def.URL, string(def.Category), string(def.Priority),
		def.Active, def.CheckInterval, lastChecked)

	if err != nil {
		return fmt.Errorf("failed to save feed: %w", err)
	}

	return nil
}

// DeleteFeed removes a feed; deleting an unknown id is not an error
func (r *FeedRepository) DeleteFeed(id string) error {
	_, err := r.db.Exec("DELETE FROM feeds WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete feed: %w", err)
	}
	return nil
}
