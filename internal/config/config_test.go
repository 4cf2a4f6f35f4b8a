package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPort != "8080" {
		t.Fatalf("unexpected api port: %s", cfg.APIPort)
	}
	if cfg.FusionRRFK != 60 || cfg.DefaultMatchCount != 5 || cfg.MaxMatchCount != 50 {
		t.Fatalf("unexpected retrieval defaults: %+v", cfg)
	}
	if cfg.GroundingThreshold != 0.75 {
		t.Fatalf("unexpected grounding threshold: %v", cfg.GroundingThreshold)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("FUSION_RRF_K", "45")
	t.Setenv("GROUNDING_THRESHOLD", "0.9")
	t.Setenv("QDRANT_COLLECTION", "kb_test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.FusionRRFK != 45 {
		t.Fatalf("unexpected rrf k: %d", cfg.FusionRRFK)
	}
	if cfg.GroundingThreshold != 0.9 {
		t.Fatalf("unexpected threshold: %v", cfg.GroundingThreshold)
	}
	if cfg.QdrantCollection != "kb_test" {
		t.Fatalf("unexpected collection: %s", cfg.QdrantCollection)
	}
}

func TestLoadAppliesYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("fusion_rrf_k: 30\nmax_match_count: 25\nungrounded_banner: \"unverified\"\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("FUSION_RRF_K", "45")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.FusionRRFK != 30 {
		t.Fatalf("file overlay should win, got %d", cfg.FusionRRFK)
	}
	if cfg.MaxMatchCount != 25 || cfg.UngroundedBanner != "unverified" {
		t.Fatalf("unexpected overlay values: %+v", cfg)
	}
	if cfg.APIPort != "8080" {
		t.Fatalf("untouched keys must keep defaults, got %s", cfg.APIPort)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(":\n\t- broken"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}
