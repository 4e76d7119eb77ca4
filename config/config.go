// Package config loads the storefront client configuration from YAML,
// with first-match discovery: an explicit path, then ./storefront.yaml,
// then ~/.storefront/config.yaml. Absent files yield defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	projectConfigName = "storefront.yaml"
	homeConfigDir     = ".storefront"
	homeConfigName    = "config.yaml"
)

// Config is the storefront client configuration.
type Config struct {
	// BaseURL is the backend root URL.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds each remote call.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// StatePath is the SQLite file for durable client state.
	// Empty means the per-user default.
	StatePath string `yaml:"state_path,omitempty"`

	// Cache holds per-namespace TTL windows.
	Cache CacheConfig `yaml:"cache,omitempty"`

	// RevalidateCron schedules background session revalidation (UTC).
	RevalidateCron string `yaml:"revalidate_cron,omitempty"`

	// PruneCron schedules background cache pruning (UTC).
	PruneCron string `yaml:"prune_cron,omitempty"`

	// OTLPEndpoint enables trace export when non-empty.
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
}

// CacheConfig holds per-namespace TTL windows.
type CacheConfig struct {
	CategoriesTTL time.Duration `yaml:"categories_ttl,omitempty"`
	ProductsTTL   time.Duration `yaml:"products_ttl,omitempty"`
	SearchTTL     time.Duration `yaml:"search_ttl,omitempty"`
	PriceRangeTTL time.Duration `yaml:"price_range_ttl,omitempty"`
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{
		BaseURL:        "http://localhost:8080",
		Timeout:        10 * time.Second,
		RevalidateCron: "*/15 * * * *",
		PruneCron:      "0 * * * *",
		Cache: CacheConfig{
			CategoriesTTL: 10 * time.Minute,
			ProductsTTL:   5 * time.Minute,
			SearchTTL:     2 * time.Minute,
			PriceRangeTTL: 5 * time.Minute,
		},
	}
}

// Discover resolves the config file location with first-match semantics.
// Returns the path and whether a file was found. An explicit path that
// does not exist is an error; fallback candidates are skipped silently.
func Discover(explicitPath string) (string, bool, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("config: resolve working directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("config: resolve user home: %w", err)
	}
	return DiscoverFrom(explicitPath, cwd, homeDir)
}

// DiscoverFrom is a testable variant of Discover.
func DiscoverFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	candidates := make([]string, 0, 2)
	if clean := strings.TrimSpace(explicitPath); clean != "" {
		candidates = append(candidates, filepath.Clean(clean))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		candidates = append(candidates, filepath.Join(homeDir, homeConfigDir, homeConfigName))
	}

	for i, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			if i == 0 && strings.TrimSpace(explicitPath) != "" {
				return "", false, fmt.Errorf("config: file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("config: checking path %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

// Load reads and parses the config at path, layered over defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
	}

	if strings.TrimSpace(cfg.BaseURL) == "" {
		return Config{}, fmt.Errorf("config: base_url is required in %q", path)
	}
	return cfg, nil
}

// LoadOrDefault discovers and loads the configuration, returning defaults
// when no file exists.
func LoadOrDefault(explicitPath string) (Config, error) {
	path, found, err := Discover(explicitPath)
	if err != nil {
		return Config{}, err
	}
	if !found {
		return Default(), nil
	}
	return Load(path)
}
