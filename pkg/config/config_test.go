// Copyright 2025 Certen Protocol

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/certen/sterling/pkg/search"
)

func TestLoad_EnvSubstitutionAndDefaults(t *testing.T) {
	t.Setenv("STERLING_BUNDLE_DIR", "/var/run/sterling/bundles")

	dir := t.TempDir()
	path := filepath.Join(dir, "sterling.yaml")
	yamlBody := `
search_policy:
  max_depth: 32
directory:
  bundle_dir: ${STERLING_BUNDLE_DIR}
logging:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Directory.BundleDir != "/var/run/sterling/bundles" {
		t.Errorf("bundle_dir = %q, want substituted env value", cfg.Directory.BundleDir)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v, want level=debug format=json", cfg.Logging)
	}

	policy := cfg.SearchPolicy.Resolve()
	if policy.MaxDepth != 32 {
		t.Errorf("MaxDepth = %d, want 32 (from YAML)", policy.MaxDepth)
	}
	if policy.DedupKey != search.DedupIdentityOnly {
		t.Errorf("DedupKey = %q, want default %q", policy.DedupKey, search.DedupIdentityOnly)
	}
	if policy.MaxCandidatesPerNode != 64 {
		t.Errorf("MaxCandidatesPerNode = %d, want default 64", policy.MaxCandidatesPerNode)
	}
}

func TestLoad_EnvDefaultFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sterling.yaml")
	body := "directory:\n  bundle_dir: ${STERLING_UNSET_VAR:-./bundles}\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Directory.BundleDir != "./bundles" {
		t.Errorf("bundle_dir = %q, want literal default ./bundles", cfg.Directory.BundleDir)
	}
}

func TestLoad_RejectsUnsupportedLogFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sterling.yaml")
	body := "logging:\n  format: xml\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("Load: want error for unsupported logging.format, got nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml")); err == nil {
		t.Fatal("Load: want error for missing file, got nil")
	}
}
