package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfig_FileSizeLimit(t *testing.T) {
	tmpDir := t.TempDir()

	largeFile := filepath.Join(tmpDir, "large.yaml")
	data := strings.Repeat("x: value\n", 200000) // ~1.8MB
	if err := os.WriteFile(largeFile, []byte(data), 0600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	_, err := LoadConfig(largeFile)
	if err == nil {
		t.Error("expected error for large file")
	}
	if !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected 'too large' error, got: %v", err)
	}
}

func TestLoadConfig_ValidFile(t *testing.T) {
	tmpDir := t.TempDir()

	validConfig := `
deepseek_api_key: test-key
default_cache_ttl_seconds: 3600
similarity_threshold_default: 0.9
`
	validFile := filepath.Join(tmpDir, "valid.yaml")
	if err := os.WriteFile(validFile, []byte(validConfig), 0600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	cfg, err := LoadConfig(validFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DeepSeekAPIKey != "test-key" {
		t.Errorf("expected deepseek key 'test-key', got %s", cfg.DeepSeekAPIKey)
	}
	if cfg.DefaultCacheTTLSeconds != 3600 {
		t.Errorf("expected ttl 3600, got %d", cfg.DefaultCacheTTLSeconds)
	}
	if cfg.CacheQualityFloor != 0.7 {
		t.Errorf("expected default cache quality floor 0.7, got %v", cfg.CacheQualityFloor)
	}
}

func TestLoadConfig_NonexistentFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()

	invalidYAML := `
deepseek_api_key: test-key
invalid yaml here: [[[
`
	invalidFile := filepath.Join(tmpDir, "invalid.yaml")
	if err := os.WriteFile(invalidFile, []byte(invalidYAML), 0600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	_, err := LoadConfig(invalidFile)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadConfig_DefaultsApplied(t *testing.T) {
	tmpDir := t.TempDir()
	validFile := filepath.Join(tmpDir, "minimal.yaml")
	if err := os.WriteFile(validFile, []byte("deepseek_api_key: k\n"), 0600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	cfg, err := LoadConfig(validFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HistoryWindow != 1000 {
		t.Errorf("expected default history window 1000, got %d", cfg.HistoryWindow)
	}
	if cfg.AlertThresholds.Critical != 0.90 {
		t.Errorf("expected default critical threshold 0.90, got %v", cfg.AlertThresholds.Critical)
	}
	if len(cfg.TierMonthlyLimitsUSD) != 4 {
		t.Errorf("expected 4 default tier limits, got %d", len(cfg.TierMonthlyLimitsUSD))
	}
}

func TestConfig_Validate_RequiresAProviderKey(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error with no provider keys configured")
	}

	cfg.OpenAIAPIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error once a provider key is set: %v", err)
	}
}
