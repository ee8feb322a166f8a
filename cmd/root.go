package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rasnes/stock-warehouse-etl/config"
	"github.com/rasnes/stock-warehouse-etl/logger"
	"github.com/rasnes/stock-warehouse-etl/pipeline"
	"github.com/rasnes/stock-warehouse-etl/utils"
	"github.com/spf13/cobra"
)

var tickersFlag []string

var rootCmd = &cobra.Command{
	Use:          "etl",
	Short:        "Loads incremental stock prices and profiles into the warehouse",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&tickersFlag, "tickers", nil, "comma-separated tickers, overrides pipeline.tickers")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newPricesCmd())
	rootCmd.AddCommand(newProfilesCmd())
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.AddCommand(newEnsureCmd())
}

func isRunningOnGitHubActions() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true"
}

func initializeConfigAndLogger() (*config.Config, *slog.Logger, error) {
	log := logger.NewLogger()
	if !isRunningOnGitHubActions() {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Error("Error loading .env file", "error", err)
			return nil, nil, err
		}
	}

	baseConfigFile, err := os.Open("config.base.yaml")
	if err != nil {
		log.Error("Error opening base config file", "error", err)
		return nil, nil, err
	}
	defer baseConfigFile.Close()

	env := os.Getenv("APP_ENV")
	var envConfigFile *os.File
	envConfigFilename := fmt.Sprintf("config.%s.yaml", env)
	if _, err := os.Stat(envConfigFilename); err == nil {
		envConfigFile, err = os.Open(envConfigFilename)
		if err != nil {
			log.Error("Error opening environment config file", "error", err)
			return nil, nil, err
		}
		defer envConfigFile.Close()
	}

	// A nil *os.File must not reach NewConfig as a non-nil io.Reader.
	var cfg *config.Config
	if envConfigFile != nil {
		cfg, err = config.NewConfig(baseConfigFile, envConfigFile, env)
	} else {
		cfg, err = config.NewConfig(baseConfigFile, nil, env)
	}
	if err != nil {
		log.Error("Error reading config", "error", err)
		return nil, nil, err
	}

	if len(tickersFlag) > 0 {
		cfg.Pipeline.Tickers = tickersFlag
	}

	log, _ = logger.WithRunID(logger.New(os.Stdout, cfg.Log.Level))
	log = log.With("env", cfg.Env)

	return cfg, log, nil
}

// withPipeline builds the pipeline for one command and closes it afterwards.
// The context is cancelled on SIGINT or SIGTERM.
func withPipeline(fn func(ctx context.Context, p *pipeline.Pipeline, log *slog.Logger) error) error {
	cfg, log, err := initializeConfigAndLogger()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.NewPipeline(ctx, cfg, config.LoadCredentials(os.Getenv), log, utils.RealTimeProvider{})
	if err != nil {
		log.Error("Error creating pipeline", "error", err)
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Warn("Error closing warehouse", "error", err)
		}
	}()

	return fn(ctx, p, log)
}
