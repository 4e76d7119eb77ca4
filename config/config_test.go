package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverFrom_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	writeFile(t, path, "base_url: http://example.com\n")

	got, found, err := DiscoverFrom(path, dir, dir)
	if err != nil {
		t.Fatal(err)
	}
	if !found || got != path {
		t.Fatalf("got (%q, %v), want (%q, true)", got, found, path)
	}
}

func TestDiscoverFrom_ExplicitPathMissing(t *testing.T) {
	dir := t.TempDir()

	_, _, err := DiscoverFrom(filepath.Join(dir, "nope.yaml"), dir, dir)
	if err == nil {
		t.Fatal("an explicit path that does not exist must be an error")
	}
}

func TestDiscoverFrom_ProjectBeforeHome(t *testing.T) {
	cwd := t.TempDir()
	home := t.TempDir()
	projectPath := filepath.Join(cwd, projectConfigName)
	homePath := filepath.Join(home, homeConfigDir, homeConfigName)
	writeFile(t, projectPath, "base_url: http://project\n")
	writeFile(t, homePath, "base_url: http://home\n")

	got, found, err := DiscoverFrom("", cwd, home)
	if err != nil {
		t.Fatal(err)
	}
	if !found || got != projectPath {
		t.Fatalf("got %q, want project config %q", got, projectPath)
	}
}

func TestDiscoverFrom_FallsBackToHome(t *testing.T) {
	cwd := t.TempDir()
	home := t.TempDir()
	homePath := filepath.Join(home, homeConfigDir, homeConfigName)
	writeFile(t, homePath, "base_url: http://home\n")

	got, found, err := DiscoverFrom("", cwd, home)
	if err != nil {
		t.Fatal(err)
	}
	if !found || got != homePath {
		t.Fatalf("got (%q, %v), want home config", got, found)
	}
}

func TestDiscoverFrom_NothingFound(t *testing.T) {
	_, found, err := DiscoverFrom("", t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected no config to be found")
	}
}

func TestLoad_LayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.yaml")
	writeFile(t, path, `
base_url: https://shop.example.com
timeout: 3s
cache:
  categories_ttl: 1m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.BaseURL != "https://shop.example.com" {
		t.Errorf("base_url = %q", cfg.BaseURL)
	}
	if cfg.Timeout != 3*time.Second {
		t.Errorf("timeout = %v, want 3s", cfg.Timeout)
	}
	if cfg.Cache.CategoriesTTL != time.Minute {
		t.Errorf("categories_ttl = %v, want 1m", cfg.Cache.CategoriesTTL)
	}
	// Unset fields keep their defaults.
	if cfg.Cache.ProductsTTL != Default().Cache.ProductsTTL {
		t.Errorf("products_ttl = %v, want default", cfg.Cache.ProductsTTL)
	}
	if cfg.PruneCron != Default().PruneCron {
		t.Errorf("prune_cron = %q, want default", cfg.PruneCron)
	}
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.yaml")
	writeFile(t, path, "base_url: http://x\nbase_urll: http://typo\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoad_ExplicitEmptyBaseURLRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.yaml")
	writeFile(t, path, "base_url: \"\"\ntimeout: 5s\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for an explicitly empty base_url")
	}
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.yaml")
	writeFile(t, path, "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BaseURL != Default().BaseURL {
		t.Errorf("base_url = %q, want default", cfg.BaseURL)
	}
}

func TestLoadOrDefault_NoFile(t *testing.T) {
	cfg, err := LoadOrDefault("")
	if err != nil {
		// The host environment may have a real home config; only a
		// parse failure is a test failure.
		t.Skipf("environment config interfered: %v", err)
	}
	if cfg.BaseURL == "" {
		t.Fatal("defaults must include a base URL")
	}
}
