package feed

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// seedFile mirrors Definition with pointer fields so omitted values can
// be told apart from explicit zero values.
type seedFile struct {
	Name          string `yaml:"name"`
	URL           string `yaml:"url"`
	Category      string `yaml:"category"`
	Priority      string `yaml:"priority"`
	Active        *bool  `yaml:"active"`
	CheckInterval int    `yaml:"check_interval"` // minutes
}

// SeedLoader reads administrator-maintained feed files. Each *.yml file in
// the directory defines one feed whose id is the file name.
type SeedLoader struct {
	feedsDir string
}

func NewSeedLoader(feedsDir string) *SeedLoader {
	return &SeedLoader{feedsDir: feedsDir}
}

// Load returns the definitions sorted by id. A missing directory yields no
// definitions and no error.
func (sl *SeedLoader) Load() ([]Definition, error) {
	if _, err := os.Stat(sl.feedsDir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(sl.feedsDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	sort.Strings(files)

	defs := make([]Definition, 0, len(files))
	for _, file := range files {
		id := strings.TrimSuffix(filepath.Base(file), ".yml")

		def, err := sl.parseSeed(file, id)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Seed loaded", "feed", id, "active", def.Active, "check_interval", def.CheckInterval)
		defs = append(defs, def)
	}

	return defs, nil
}

func (sl *SeedLoader) parseSeed(file, id string) (Definition, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return Definition{}, fmt.Errorf("failed to read file: %w", err)
	}

	var raw seedFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Definition{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	def := Definition{
		ID:            id,
		Name:          raw.Name,
		URL:           raw.URL,
		Category:      Category(raw.Category),
		Priority:      Priority(raw.Priority),
		Active:        true,
		CheckInterval: raw.CheckInterval,
	}
	if raw.Active != nil {
		def.Active = *raw.Active
	}
	if def.Name == "" {
		def.Name = id
	}
	if def.Category == "" {
		def.Category = CategoryGeneral
	}

	def, err = normalizeDefinition(def)
	if err != nil {
		return Definition{}, fmt.Errorf("invalid seed %s: %w", file, err)
	}

	return def, nil
}

// SeedRegistry loads the seed files into registry, skipping ids that are
// already registered.
func SeedRegistry(loader *SeedLoader, registry *Registry) (int, error) {
	defs, err := loader.Load()
	if err != nil {
		return 0, err
	}

	added := 0
	for _, def := range defs {
		ok, err := registry.Seed(def)
		if err != nil {
			slog.Warn("Failed to seed feed", "feed", def.ID, "error", err)
			continue
		}
		if ok {
			added++
		}
	}

	return added, nil
}
