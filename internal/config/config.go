package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = ".mr-conflicts.yml"

// Config holds application configuration.
// Follows Single Responsibility - only holds configuration data.
type Config struct {
	GitLab GitLab `yaml:"gitlab"`
	Ignore Ignore `yaml:"ignore"`
	Report Report `yaml:"report"`

	// Only compare merge requests that target the same branch as the checked one.
	SameTargetBranchOnly bool `yaml:"same_target_branch_only"`

	// Concurrent change-set requests against the GitLab API.
	Concurrency int `yaml:"concurrency"`

	// How long merge request lists and change sets are reused within one process.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// GitLab holds the connection settings.
type GitLab struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`

	// Usually provided by GitLab CI (CI_PROJECT_ID, CI_MERGE_REQUEST_IID).
	ProjectID       string `yaml:"project_id"`
	MergeRequestIID int    `yaml:"merge_request_iid"`
}

// Ignore holds the path filter settings.
type Ignore struct {
	Patterns      []string `yaml:"patterns"`
	CaseSensitive bool     `yaml:"case_sensitive"`
}

// Report holds the rendering limits.
type Report struct {
	MaxTitleLength int `yaml:"max_title_length"`
	MaxFilesListed int `yaml:"max_files_listed"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		GitLab: GitLab{
			URL:     "https://gitlab.com",
			Timeout: 30 * time.Second,
		},
		Ignore: Ignore{
			CaseSensitive: true,
		},
		Report: Report{
			MaxTitleLength: 50,
			MaxFilesListed: 10,
		},
		SameTargetBranchOnly: true,
		Concurrency:          5,
		CacheTTL:             5 * time.Minute,
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides file settings with environment variables. GitLab CI
// predefined variables are used as fallbacks.
func (c *Config) applyEnv() {
	c.GitLab.URL = getEnvOrDefault("GITLAB_URL", getEnvOrDefault("CI_SERVER_URL", c.GitLab.URL))
	c.GitLab.Token = getEnvOrDefault("GITLAB_TOKEN", c.GitLab.Token)
	c.GitLab.ProjectID = getEnvOrDefault("CI_PROJECT_ID", c.GitLab.ProjectID)

	if iidStr := os.Getenv("CI_MERGE_REQUEST_IID"); iidStr != "" {
		if iid, err := strconv.Atoi(iidStr); err == nil {
			c.GitLab.MergeRequestIID = iid
		}
	}

	if patterns := os.Getenv("MR_CONFLICTS_IGNORE"); patterns != "" {
		c.Ignore.Patterns = splitList(patterns)
	}
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.GitLab.Token == "" {
		errs = append(errs, errors.New("gitlab token is not set (GITLAB_TOKEN)"))
	}
	if c.GitLab.URL == "" {
		errs = append(errs, errors.New("gitlab url is not set"))
	}
	if c.Report.MaxTitleLength < 4 {
		errs = append(errs, fmt.Errorf("report.max_title_length must be at least 4, got %d", c.Report.MaxTitleLength))
	}
	if c.Report.MaxFilesListed < 1 {
		errs = append(errs, fmt.Errorf("report.max_files_listed must be positive, got %d", c.Report.MaxFilesListed))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be positive, got %d", c.Concurrency))
	}
	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
