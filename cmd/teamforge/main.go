package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mpataki/teamforge/internal/config"
	"github.com/mpataki/teamforge/internal/discussion"
	"github.com/mpataki/teamforge/internal/generator"
	"github.com/mpataki/teamforge/internal/ollama"
	"github.com/mpataki/teamforge/internal/orchestrator"
	"github.com/mpataki/teamforge/internal/skills"
	"github.com/mpataki/teamforge/internal/storage"
	"github.com/mpataki/teamforge/internal/tui"
	"github.com/mpataki/teamforge/internal/webcontent"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "teamforge",
		Short:         "Generate and run teams of LLM agents",
		Long:          "TeamForge turns a request into a team of expert agents backed by a local Ollama server, packages them for agent frameworks and lets the team discuss the request.",
		RunE:          runTUI,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "Enable debug logging")
	flags.String("model", "", "Model to use (overrides config)")
	flags.String("ollama-url", "", "Ollama base URL (overrides config)")
	flags.Float64("temperature", 0, "Sampling temperature (overrides config)")

	rootCmd.AddCommand(newGenerateCommand())
	rootCmd.AddCommand(newPackageCommand())
	rootCmd.AddCommand(newExportCommand())
	rootCmd.AddCommand(newAskCommand())
	rootCmd.AddCommand(newChatCommand())
	rootCmd.AddCommand(newRefineCommand())
	rootCmd.AddCommand(newRemoveCommand())
	rootCmd.AddCommand(newModelsCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newDeleteCommand())
	rootCmd.AddCommand(newDiscussionsCommand())
	rootCmd.AddCommand(newSkillsCommand())
	rootCmd.AddCommand(newTeamsCommand())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// env holds everything a command needs. Close releases the database.
type env struct {
	cfg    *config.Config
	store  *storage.Storage
	client *ollama.Client
	skills *skills.Registry
	orch   *orchestrator.Orchestrator
	logger *slog.Logger

	closers []io.Closer
}

func (e *env) Close() {
	for _, c := range e.closers {
		c.Close()
	}
}

// openEnv loads config, applies flag overrides and wires the orchestrator.
// logOut receives the structured log.
func openEnv(cmd *cobra.Command, logOut io.Writer) (*env, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	e := &env{cfg: cfg}
	if logOut == nil {
		logOut = os.Stderr
	}
	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	e.logger = slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))

	store, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	e.store = store
	e.closers = append(e.closers, store)

	reg, err := skills.Load(cfg.SkillsDir)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to load skills: %w", err)
	}
	e.skills = reg

	e.client = ollama.New(cfg.OllamaURL,
		ollama.WithTimeout(cfg.RequestTimeout),
		ollama.WithThrottle(cfg.Throttle),
		ollama.WithLogger(e.logger),
	)

	e.orch = orchestrator.New(store, e.client, orchestrator.Options{
		WorkspaceDir: cfg.WorkspacesDir(),
		Settings: generator.Settings{
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.AgentTimeout,
		},
		MaxRetries:  cfg.MaxRetries,
		RetryDelay:  cfg.RetryDelay,
		Skills:      reg,
		Discussions: discussion.NewStore(cfg.DiscussionsDir()),
		Fetcher:     webcontent.NewFetcher(&http.Client{Timeout: cfg.RequestTimeout}),
		Logger:      e.logger,
	})
	return e, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Model, _ = flags.GetString("model")
	}
	if flags.Changed("ollama-url") {
		cfg.OllamaURL, _ = flags.GetString("ollama-url")
	}
	if flags.Changed("temperature") {
		t, err := flags.GetFloat64("temperature")
		if err != nil {
			return err
		}
		cfg.Temperature = t
	}
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// The alt screen owns the terminal, so logs go to a file.
	logFile, err := os.OpenFile(filepath.Join(cfg.DataDir, "teamforge.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	e, err := openEnv(cmd, logFile)
	if err != nil {
		return err
	}
	defer e.Close()

	app := tui.NewApp(cmd.Context(), e.orch)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context()))

	_, err = p.Run()
	return err
}

func parseRunID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid run ID: %w", err)
	}
	return id, nil
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
