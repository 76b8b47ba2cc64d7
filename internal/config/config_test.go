package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"GITLAB_URL", "CI_SERVER_URL", "GITLAB_TOKEN", "CI_PROJECT_ID", "CI_MERGE_REQUEST_IID", "MR_CONFLICTS_IGNORE"} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// TestLoad_MissingFileUsesDefaults tests loading config without a file.
// Follows AAA (Arrange, Act, Assert) pattern.
func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	// Arrange
	clearEnv(t)

	// Act
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.GitLab.URL != "https://gitlab.com" {
		t.Errorf("expected default url, got %s", cfg.GitLab.URL)
	}
	if !cfg.Ignore.CaseSensitive {
		t.Error("expected case-sensitive matching by default")
	}
	if len(cfg.Ignore.Patterns) != 0 {
		t.Errorf("expected no ignore patterns, got %v", cfg.Ignore.Patterns)
	}
	if cfg.Report.MaxFilesListed != 10 {
		t.Errorf("expected 10 listed files, got %d", cfg.Report.MaxFilesListed)
	}
}

// TestLoad_File tests loading values from YAML.
func TestLoad_File(t *testing.T) {
	// Arrange
	clearEnv(t)
	path := writeConfig(t, `
gitlab:
  url: https://gitlab.example.com
  timeout: 10s
ignore:
  patterns: ["*.lock", "docs/**"]
  case_sensitive: false
report:
  max_title_length: 30
same_target_branch_only: false
cache_ttl: 1m
`)

	// Act
	cfg, err := Load(path)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.GitLab.URL != "https://gitlab.example.com" {
		t.Errorf("expected url from file, got %s", cfg.GitLab.URL)
	}
	if cfg.GitLab.Timeout != 10*time.Second {
		t.Errorf("expected 10s timeout, got %v", cfg.GitLab.Timeout)
	}
	if cfg.Ignore.CaseSensitive {
		t.Error("expected case-insensitive matching")
	}
	if len(cfg.Ignore.Patterns) != 2 || cfg.Ignore.Patterns[1] != "docs/**" {
		t.Errorf("unexpected patterns %v", cfg.Ignore.Patterns)
	}
	if cfg.Report.MaxTitleLength != 30 {
		t.Errorf("expected max title length 30, got %d", cfg.Report.MaxTitleLength)
	}
	if cfg.Report.MaxFilesListed != 10 {
		t.Errorf("expected default max files listed to survive, got %d", cfg.Report.MaxFilesListed)
	}
	if cfg.SameTargetBranchOnly {
		t.Error("expected same_target_branch_only=false")
	}
	if cfg.CacheTTL != time.Minute {
		t.Errorf("expected 1m cache ttl, got %v", cfg.CacheTTL)
	}
}

// TestLoad_EnvOverridesFile tests that environment variables win over the file.
func TestLoad_EnvOverridesFile(t *testing.T) {
	// Arrange
	clearEnv(t)
	path := writeConfig(t, "gitlab:\n  url: https://file.example.com\n  token: file-token\n")
	t.Setenv("CI_SERVER_URL", "https://ci.example.com")
	t.Setenv("GITLAB_TOKEN", "env-token")
	t.Setenv("CI_PROJECT_ID", "42")
	t.Setenv("CI_MERGE_REQUEST_IID", "7")
	t.Setenv("MR_CONFLICTS_IGNORE", "go.sum, *.lock ,")

	// Act
	cfg, err := Load(path)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.GitLab.URL != "https://ci.example.com" {
		t.Errorf("expected CI_SERVER_URL, got %s", cfg.GitLab.URL)
	}
	if cfg.GitLab.Token != "env-token" {
		t.Errorf("expected env token, got %s", cfg.GitLab.Token)
	}
	if cfg.GitLab.ProjectID != "42" || cfg.GitLab.MergeRequestIID != 7 {
		t.Errorf("expected project 42 / mr 7, got %s / %d", cfg.GitLab.ProjectID, cfg.GitLab.MergeRequestIID)
	}
	if len(cfg.Ignore.Patterns) != 2 || cfg.Ignore.Patterns[0] != "go.sum" || cfg.Ignore.Patterns[1] != "*.lock" {
		t.Errorf("unexpected patterns %v", cfg.Ignore.Patterns)
	}
}

// TestLoad_InvalidIID tests that an invalid IID is ignored.
func TestLoad_InvalidIID(t *testing.T) {
	// Arrange
	clearEnv(t)
	t.Setenv("CI_MERGE_REQUEST_IID", "invalid")

	// Act
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.GitLab.MergeRequestIID != 0 {
		t.Errorf("expected iid 0 for invalid input, got %d", cfg.GitLab.MergeRequestIID)
	}
}

// TestLoad_InvalidYAML tests that malformed files are reported.
func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "ignore: [unterminated")

	_, err := Load(path)

	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// TestValidate tests configuration validation.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) { c.GitLab.Token = "t" }, false},
		{"missing token", func(c *Config) {}, true},
		{"tiny title length", func(c *Config) { c.GitLab.Token = "t"; c.Report.MaxTitleLength = 2 }, true},
		{"zero files listed", func(c *Config) { c.GitLab.Token = "t"; c.Report.MaxFilesListed = 0 }, true},
		{"zero concurrency", func(c *Config) { c.GitLab.Token = "t"; c.Concurrency = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			cfg := Default()
			tt.mutate(cfg)

			// Act
			err := cfg.Validate()

			// Assert
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}
