package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spigell/recruitgenie/internal/ai"
	"github.com/spigell/recruitgenie/internal/ai/gemini"
	"github.com/spigell/recruitgenie/internal/backend"
	"github.com/spigell/recruitgenie/internal/logger"
	"github.com/spigell/recruitgenie/internal/secrets"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the development chat backend backed by Gemini and SQLite",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "address to listen on (default is "+backend.DefaultListen+")")
	serveCmd.Flags().String("db-path", "", "sqlite database file (default is agent_memory.db)")

	viper.BindPFlag("serve.listen", serveCmd.Flags().Lookup("listen"))
	viper.BindPFlag("serve.db-path", serveCmd.Flags().Lookup("db-path"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the recruitgenie backend", zap.String("version", version))

	assistant, err := newAssistant(ctx, config.AI.Gemini, logger)
	if err != nil {
		logger.Fatal(
			"building the assistant",
			zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY or the 'ai.gemini.api-key-file' key in the configuration file"),
		)
	}

	store, err := backend.NewSQLite(config.Serve.DBPath)
	if err != nil {
		logger.Fatal("opening the database", zap.Error(err), zap.String("path", config.Serve.DBPath))
	}
	defer store.Close()

	serveConfig := *config.Serve
	serveConfig.MaxLogLength = config.AI.Gemini.MaxLogLength

	server := backend.NewServer(serveConfig, store, assistant, logger)
	if err := server.Start(ctx); err != nil {
		logger.Error("serving", zap.Error(err))
		return
	}

	logger.Info("stopped")
}

func newAssistant(ctx context.Context, cfg *GeminiConfig, logger *zap.Logger) (ai.Assistant, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  cfg.APIKeyFile,
		Value: cfg.APIKey,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, err
	}

	genLogger := logger.With(zap.Int("ai_retry_attempts", cfg.MaxRetries))

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Model, cfg.MaxRetries, genLogger)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	assistantLogger := logWithProvider(logger, generator.Model())

	return gemini.NewAssistant(generator, cfg.MaxLogLength, assistantLogger), nil
}

func logWithProvider(l *zap.Logger, model string) *zap.Logger {
	return logger.WithCommonFields(l, "gemini", model)
}
