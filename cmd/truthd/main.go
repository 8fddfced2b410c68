package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rilhia/the-hallucinated-truth/internal/api"
	"github.com/rilhia/the-hallucinated-truth/internal/config"
	"github.com/rilhia/the-hallucinated-truth/internal/facts"
	"github.com/rilhia/the-hallucinated-truth/internal/game"
	"github.com/rilhia/the-hallucinated-truth/internal/judge"
	"github.com/rilhia/the-hallucinated-truth/internal/llm"
	"github.com/rilhia/the-hallucinated-truth/internal/registry"
	"github.com/rilhia/the-hallucinated-truth/internal/search"
	"github.com/rilhia/the-hallucinated-truth/internal/store"
	"github.com/rilhia/the-hallucinated-truth/internal/story"
)

var (
	configPath string
	verbose    bool

	logger *zap.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "truthd",
	Short: "truthd - The Hallucinated Truth game server",
	Long: `truthd runs The Hallucinated Truth, a single-player deduction game:
pick a subject, and the server searches the web for true facts about it,
hides them inside a fabricated story, and judges your guesses about which
statements were real.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapConfig := zap.NewProductionConfig()
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// serveCmd runs the HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the game API server",
	RunE:  runServe,
}

// configCmd writes the default configuration file.
var configCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write the default configuration to the config path",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultConfig()
		if err := cfg.Save(configPath); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", configPath)
		return nil
	},
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	st, err := store.New(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer st.Close()

	client := llm.NewOllamaClient(llm.OllamaConfig{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Timeout:     cfg.GetLLMTimeout(),
		Temperature: cfg.LLM.StoryTemperature,
	}, logger)

	searchClient := search.NewGoogleClient(search.GoogleConfig{
		APIKey:     cfg.Search.APIKey,
		EngineID:   cfg.Search.EngineID,
		MaxResults: cfg.Search.MaxResults,
		Timeout:    cfg.GetSearchTimeout(),
	}, logger)

	factSource := facts.NewSource(searchClient, client, facts.SourceConfig{
		MaxPages:           cfg.Scraper.MaxPages,
		Concurrency:        cfg.Scraper.Concurrency,
		UserAgent:          cfg.Scraper.UserAgent,
		FetchTimeout:       cfg.GetScraperTimeout(),
		MaxBodyBytes:       cfg.Scraper.MaxBodyBytes,
		ExtractTemperature: cfg.LLM.ExtractTemperature,
	}, logger)

	storyGen := story.NewGenerator(client, cfg.LLM.StoryTemperature, logger)
	gameJudge := judge.NewLLMJudge(client, cfg.LLM.JudgeTemperature, logger)

	scoring := game.Scoring{
		CorrectGuessPoints: cfg.Game.CorrectGuessPoints,
		WrongGuessPenalty:  cfg.Game.WrongGuessPenalty,
		AllFoundBonus:      cfg.Game.AllFoundBonus,
		MissedFactPenalty:  cfg.Game.MissedFactPenalty,
	}

	newSession := func(id string) *game.Session {
		return game.NewSession(id, factSource, storyGen, gameJudge, logger,
			game.WithScoring(scoring),
			game.WithSnapshotSaver(st))
	}
	restore := func(snap game.Snapshot) *game.Session {
		return game.Restore(snap, factSource, storyGen, gameJudge, logger,
			game.WithScoring(scoring),
			game.WithSnapshotSaver(st))
	}

	reg := registry.New(newSession, restore, logger, registry.WithSnapshotSaver(st))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := reg.RestoreAll(ctx, st); err != nil {
		logger.Warn("failed to restore persisted sessions", zap.Error(err))
	}

	server := api.NewServer(reg, logger)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API listening", zap.String("addr", cfg.Server.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}

	return nil
}

func main() {
	// .env is optional; real config comes from the YAML file and environment.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "truthd.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
