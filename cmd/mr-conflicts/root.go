package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/vilaca/mr-conflict-detector/internal/api"
	"github.com/vilaca/mr-conflict-detector/internal/api/gitlab"
	"github.com/vilaca/mr-conflict-detector/internal/config"
	"github.com/vilaca/mr-conflict-detector/internal/detector"
	"github.com/vilaca/mr-conflict-detector/internal/filter"
	"github.com/vilaca/mr-conflict-detector/internal/report"
	"github.com/vilaca/mr-conflict-detector/internal/service"
)

// errConflictsFound makes the process exit with status 2.
var errConflictsFound = errors.New("conflicts found")

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	debug      bool

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "mr-conflicts",
		Short:         "Detect open merge requests that modify the same files",
		Long:          "Compares the changed files of open GitLab merge requests and reports the ones that will collide.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.DefaultPath, "path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(newCheckCmd(a))
	rootCmd.AddCommand(newScanCmd(a))

	return rootCmd
}

// init loads configuration and sets up logging.
func (a *app) init() error {
	level := slog.LevelInfo
	if a.debug {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg
	return nil
}

// buildService wires up all dependencies and returns the conflict service.
// This is the composition root where all dependencies are created and injected.
func (a *app) buildService() (*service.ConflictService, report.Formatter, error) {
	cfg := a.cfg

	httpClient := &http.Client{
		Timeout:   cfg.GitLab.Timeout,
		Transport: &api.RetryTransport{Base: http.DefaultTransport, Logger: a.logger},
	}

	gitlabClient, err := gitlab.NewClient(api.ClientConfig{
		BaseURL: cfg.GitLab.URL,
		Token:   cfg.GitLab.Token,
	}, httpClient)
	if err != nil {
		return nil, nil, err
	}

	// Wrap with caching layer
	client := api.NewCachingClient(gitlabClient, cfg.CacheTTL, a.logger)

	pathFilter, err := filter.NewGlobFilter(cfg.Ignore.Patterns, cfg.Ignore.CaseSensitive)
	if err != nil {
		return nil, nil, err
	}

	formatter := report.NewMarkdownFormatter(report.Options{
		MaxTitleLength: cfg.Report.MaxTitleLength,
		MaxFilesListed: cfg.Report.MaxFilesListed,
		Logger:         a.logger,
	})

	svc := service.NewConflictService(client, detector.NewConflictDetector(pathFilter), formatter, service.Options{
		Concurrency:          cfg.Concurrency,
		SameTargetBranchOnly: cfg.SameTargetBranchOnly,
		Logger:               a.logger,
	})

	a.logger.Debug("service ready",
		"gitlab_url", cfg.GitLab.URL,
		"ignore_patterns", pathFilter.Patterns(),
		"case_sensitive", cfg.Ignore.CaseSensitive)

	return svc, formatter, nil
}

// projectID returns the flag value or the configured project.
func (a *app) projectID(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if a.cfg.GitLab.ProjectID != "" {
		return a.cfg.GitLab.ProjectID, nil
	}
	return "", errors.New("no project given (use --project or CI_PROJECT_ID)")
}
