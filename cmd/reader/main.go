package main

import (
	"context"
	"fmt"
	"os"

	"articlewave/internal/config"
	"articlewave/internal/db"
	"articlewave/internal/fetcher"
	"articlewave/internal/logger"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	flagConfig   string
	flagEnvFile  string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:           "reader",
	Short:         "Headline reader with an image cache",
	Long:          "reader fetches top headlines per country, prefetches article thumbnails and serves the list state over HTTP.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (json or yaml)")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "dotenv file with secrets")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override log level")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(headlinesCmd)
	rootCmd.AddCommand(countriesCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "reader %s (commit: %s)\n", version, commit)
	},
}

func main() {
	logger.Init()
	if err := rootCmd.Execute(); err != nil {
		logger.Log.Errorf("Command failed: %v", err)
		os.Exit(1)
	}
}

// loadConfig подгружает .env, читает конфигурацию и применяет уровень журнала.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnv(flagEnvFile); err != nil {
		return nil, err
	}
	cfg, err := config.Resolve(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("config load error: %w", err)
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// buildSource создаёт источник статей по cfg.Source. Возвращаемая функция освобождает
// ресурсы источника.
func buildSource(ctx context.Context, cfg *config.Config) (fetcher.ArticleSource, func(), error) {
	noop := func() {}
	switch cfg.Source {
	case config.SourceNewsAPI:
		return fetcher.NewNewsAPISource(cfg.NewsAPI.BaseURL, cfg.NewsAPI.APIKey, cfg.Timeout()), noop, nil
	case config.SourceRSS:
		return fetcher.NewRSSSource(cfg.RSSFeeds, cfg.Timeout()), noop, nil
	case config.SourcePostgres:
		database, err := openDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		return database, database.Close, nil
	case config.SourceMock:
		switch cfg.Mock.Mode {
		case config.MockModeDelay:
			return fetcher.NewMockSource(cfg.MockDelay(), false), noop, nil
		case config.MockModeError:
			return fetcher.NewMockSource(cfg.MockDelay(), true), noop, nil
		default:
			return fetcher.NewMockSource(0, false), noop, nil
		}
	default:
		return nil, noop, fmt.Errorf("unknown source: %s", cfg.Source)
	}
}

// openDatabase подключается к Postgres и создаёт таблицу статей, если её нет.
func openDatabase(ctx context.Context, connString string) (*db.Database, error) {
	database, err := db.NewDB(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("DB connection error: %w", err)
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}
