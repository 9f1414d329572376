// Command opsdeck runs the business-operations portal service: an HTTP API
// serving per-user activity overviews over a sqlite store.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"opsdeck/internal/adapters/generate"
	serveradapter "opsdeck/internal/adapters/server"
	"opsdeck/internal/adapters/server/httpapi"
	"opsdeck/internal/adapters/storage/sqlite"
	"opsdeck/internal/config"
	"opsdeck/internal/domain"
	"opsdeck/internal/overview"
	"opsdeck/internal/platform"
)

var version = "dev"

var (
	configPathFlag string
	dbPathFlag     string
	bindFlag       string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "opsdeck",
		Short:         "opsdeck - business operations portal service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "", "path to config.toml (defaults to the platform config dir)")
	rootCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "path to the sqlite database (overrides config)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&bindFlag, "bind", "", "listen address (overrides config)")

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with demo data and print session tokens",
		RunE:  runSeed,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the opsdeck version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "opsdeck", version)
		},
	}

	rootCmd.AddCommand(serveCmd, seedCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves platform paths, reads the config file, and applies
// flag overrides.
func loadConfig() (config.Config, error) {
	paths, err := platform.DefaultPaths()
	if err != nil {
		return config.Config{}, fmt.Errorf("resolve paths: %w", err)
	}
	configPath := configPathFlag
	if configPath == "" {
		configPath = paths.ConfigPath
	}
	cfg, err := config.Load(configPath, config.Default(paths.DBPath))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if dbPathFlag != "" {
		cfg.Database.Path = dbPathFlag
	}
	if bindFlag != "" {
		cfg.Server.Bind = bindFlag
	}
	return cfg, nil
}

func newLogger(cfg config.LoggingConfig) (*charmLog.Logger, error) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	level, err := charmLog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}
	return charmLog.NewWithOptions(os.Stderr, charmLog.Options{
		Level:           level,
		Prefix:          "opsdeck",
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.TextFormatter,
	}), nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}

	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		_ = repo.Close()
	}()

	var generator overview.Generator
	if cfg.Generator.Enabled {
		client, err := generate.NewClient(generate.Options{
			BaseURL:   cfg.Generator.BaseURL,
			APIKey:    config.GeneratorAPIKey(),
			Model:     cfg.Generator.Model,
			MaxTokens: cfg.Generator.MaxTokens,
		})
		if err != nil {
			return fmt.Errorf("configure generator: %w", err)
		}
		generator = client
		logger.Info("highlight generator enabled", "model", cfg.Generator.Model)
	} else {
		logger.Info("highlight generator disabled, using deterministic fallback")
	}

	svc := overview.NewService(overview.Dependencies{
		Logs:      repo,
		Counters:  repo,
		Perms:     repo,
		Directory: repo,
		Generator: generator,
		Cache:     repo,
		Logger:    logger,
	})
	api := httpapi.NewHandler(repo, svc, time.Now, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting server", "bind", cfg.Server.Bind, "db", cfg.Database.Path)
	return serveradapter.Run(ctx, serveradapter.Config{
		HTTPBind:    cfg.Server.Bind,
		APIEndpoint: cfg.Server.APIEndpoint,
	}, api)
}

// runSeed loads demo data: two users with sessions, two clients with
// projects, tasks, leads, and a spread of activity-log entries.
func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		_ = repo.Close()
	}()

	ctx := cmd.Context()
	now := time.Now().UTC()
	out := cmd.OutOrStdout()

	admin, err := domain.NewUser(uuid.NewString(), "Avery Admin", domain.RoleAdmin, now)
	if err != nil {
		return err
	}
	member, err := domain.NewUser(uuid.NewString(), "Dana Member", domain.RoleMember, now)
	if err != nil {
		return err
	}
	for _, user := range []domain.User{admin, member} {
		if err := repo.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("seed user %s: %w", user.DisplayName, err)
		}
		session, err := domain.NewSession(uuid.NewString(), user.ID, now, 30*24*time.Hour)
		if err != nil {
			return err
		}
		if err := repo.CreateSession(ctx, session); err != nil {
			return fmt.Errorf("seed session for %s: %w", user.DisplayName, err)
		}
		fmt.Fprintf(out, "%s (%s): token %s\n", user.DisplayName, user.Role, session.Token)
	}

	acme, err := domain.NewClient(uuid.NewString(), "Acme Corp", now)
	if err != nil {
		return err
	}
	initech, err := domain.NewClient(uuid.NewString(), "Initech", now)
	if err != nil {
		return err
	}
	for _, client := range []domain.Client{acme, initech} {
		if err := repo.CreateClient(ctx, client); err != nil {
			return fmt.Errorf("seed client %s: %w", client.Name, err)
		}
	}

	website, err := domain.NewProject(uuid.NewString(), acme.ID, "Website Revamp", now)
	if err != nil {
		return err
	}
	migration, err := domain.NewProject(uuid.NewString(), initech.ID, "Data Migration", now)
	if err != nil {
		return err
	}
	for _, project := range []domain.Project{website, migration} {
		if err := repo.CreateProject(ctx, project); err != nil {
			return fmt.Errorf("seed project %s: %w", project.Name, err)
		}
	}
	// The member only belongs to the Acme project; Initech activity shows up
	// for them under the generic scope label.
	if err := repo.AddProjectMember(ctx, website.ID, member.ID); err != nil {
		return fmt.Errorf("seed membership: %w", err)
	}

	taskSeeds := []struct {
		title   string
		project string
		status  domain.TaskStatus
		at      time.Time
	}{
		{"Redesign landing page", website.ID, domain.TaskStatusDone, now.Add(-20 * time.Hour)},
		{"Migrate user table", migration.ID, domain.TaskStatusDone, now.Add(-3 * 24 * time.Hour)},
		{"Set up staging environment", website.ID, domain.TaskStatusBlocked, now.Add(-2 * 24 * time.Hour)},
		{"Write rollback plan", migration.ID, domain.TaskStatusProgress, now.Add(-26 * time.Hour)},
	}
	for _, seed := range taskSeeds {
		task, err := domain.NewTask(uuid.NewString(), seed.project, seed.title, seed.status, seed.at)
		if err != nil {
			return err
		}
		if err := repo.CreateTask(ctx, task); err != nil {
			return fmt.Errorf("seed task %s: %w", seed.title, err)
		}
	}

	lead, err := domain.NewLead(uuid.NewString(), "Globex", "referral", now.Add(-5*time.Hour))
	if err != nil {
		return err
	}
	if err := repo.CreateLead(ctx, lead); err != nil {
		return fmt.Errorf("seed lead: %w", err)
	}

	logSeeds := []struct {
		input domain.LogEntryInput
		at    time.Time
	}{
		{
			input: domain.LogEntryInput{
				ActorName:  "Dana Member",
				Verb:       "completed task",
				Summary:    "Redesign landing page",
				TargetType: domain.TargetTask,
				ProjectID:  website.ID,
				ClientID:   acme.ID,
			},
			at: now.Add(-20 * time.Hour),
		},
		{
			input: domain.LogEntryInput{
				ActorName:  "Avery Admin",
				Verb:       "completed task",
				Summary:    "Migrate user table",
				TargetType: domain.TargetTask,
				ProjectID:  migration.ID,
				ClientID:   initech.ID,
				Metadata:   mustJSON(map[string]any{"project": map[string]any{"name": "Data Migration"}}),
			},
			at: now.Add(-3 * 24 * time.Hour),
		},
		{
			input: domain.LogEntryInput{
				ActorName:  "Avery Admin",
				Verb:       "flagged task as blocked",
				Summary:    "Set up staging environment",
				TargetType: domain.TargetTask,
				ProjectID:  website.ID,
				ClientID:   acme.ID,
			},
			at: now.Add(-2 * 24 * time.Hour),
		},
		{
			input: domain.LogEntryInput{
				ActorName:  "Avery Admin",
				Verb:       "registered lead",
				Summary:    "Globex via referral",
				TargetType: domain.TargetLead,
			},
			at: now.Add(-5 * time.Hour),
		},
		{
			input: domain.LogEntryInput{
				ActorName:  "System",
				Verb:       "ran nightly backup",
				TargetType: domain.TargetSystem,
			},
			at: now.Add(-8 * time.Hour),
		},
	}
	for _, seed := range logSeeds {
		entry, err := domain.NewLogEntry(seed.input, seed.at)
		if err != nil {
			return err
		}
		if err := repo.AppendLogEntry(ctx, entry); err != nil {
			return fmt.Errorf("seed log entry: %w", err)
		}
	}

	fmt.Fprintf(out, "seeded %s\n", cfg.Database.Path)
	return nil
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
