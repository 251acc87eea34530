package feed

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// PresetCache holds feed entries that pre-populate the import form, one
// <kind>.yml file per feed kind.
type PresetCache struct {
	feedsDir string
	cache    map[Kind][]Entry
	mu       sync.RWMutex
}

type presetFile struct {
	Feeds []presetEntry `yaml:"feeds"`
}

type presetEntry struct {
	Name           string `yaml:"name"`
	URL            string `yaml:"url"`
	DisplaySummary *bool  `yaml:"display_summary"`
}

func NewPresetCache(feedsDir string) *PresetCache {
	return &PresetCache{
		feedsDir: feedsDir,
		cache:    make(map[Kind][]Entry),
	}
}

func (pc *PresetCache) Run() error {
	if _, err := os.Stat(pc.feedsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(pc.feedsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yml")

		kind, err := ParseKind(name)
		if err != nil {
			slog.Warn("Skipping preset file for unknown feed kind", "file", file)
			continue
		}

		entries, err := pc.LoadPreset(kind)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Preset loaded", "kind", kind, "feeds", len(entries))
	}

	return nil
}

func (pc *PresetCache) LoadPreset(kind Kind) ([]Entry, error) {
	presetPath := filepath.Join(pc.feedsDir, string(kind)+".yml")

	data, err := os.ReadFile(presetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	entries := make([]Entry, 0, len(file.Feeds))
	for i, raw := range file.Feeds {
		if strings.TrimSpace(raw.URL) == "" {
			return nil, fmt.Errorf("feed at index %d: url is required", i)
		}

		entry := Entry{
			Name:           strings.TrimSpace(raw.Name),
			URL:            strings.TrimSpace(raw.URL),
			DisplaySummary: true,
		}
		if raw.DisplaySummary != nil {
			entry.DisplaySummary = *raw.DisplaySummary
		}
		entries = append(entries, entry)
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.cache[kind] = entries

	return entries, nil
}

// GetPreset returns a copy of the entries for kind, or nil when no preset
// file was loaded.
func (pc *PresetCache) GetPreset(kind Kind) []Entry {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	entries, ok := pc.cache[kind]
	if !ok {
		return nil
	}
	return append([]Entry(nil), entries...)
}

func (pc *PresetCache) GetPresetCount() int {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return len(pc.cache)
}
