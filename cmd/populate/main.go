// Command populate imports one user's collection from the command line and
// prints the run report.
//
//	populate --user alice [--config ./config] [--batch-size 20] [--batch-delay 1s]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"board-game-suggestor/internal/catalog"
	"board-game-suggestor/internal/config"
	"board-game-suggestor/internal/model"
	"board-game-suggestor/internal/pkg/db"
	"board-game-suggestor/internal/pkg/logger"
	"board-game-suggestor/internal/reconcile"
	"board-game-suggestor/internal/repository"
	"board-game-suggestor/internal/service"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("populate", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: populate --user NAME [flags]\n%s", flags.FlagUsages())
	}
	userName := flags.StringP("user", "u", "", "catalog user name to import (required)")
	configDir := flags.StringP("config", "c", "config", "directory containing config.yaml")
	flags.Int("batch-size", config.MaxBatchSize, "ids per item-detail request")
	flags.Duration("batch-delay", 0, "pause between item-detail requests (default from config)")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *userName == "" {
		fmt.Fprintln(stderr, "populate: --user is required")
		flags.Usage()
		return 2
	}

	cfg, err := loadConfig(flags, *configDir)
	if err != nil {
		fmt.Fprintln(stderr, "populate:", err)
		return 2
	}
	logger.Setup(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to database")
		return 1
	}
	defer dbPool.Close()

	if err := db.Migrate(ctx, dbPool); err != nil {
		log.Error().Err(err).Msg("Failed to run database migrations")
		return 1
	}

	stores := service.Stores{
		Users:       repository.NewUserRepository(dbPool.Pool),
		Collections: repository.NewCollectionRepository(dbPool.Pool),
		Games:       repository.NewGameRepository(dbPool.Pool),
		Mechanics:   repository.NewMechanicRepository(dbPool.Pool),
		Stats:       repository.NewUserMechanicRepository(dbPool.Pool),
	}
	pipeline := service.NewPipeline(
		stores,
		catalog.NewClient(&cfg.Catalog),
		reconcile.NewFixedDelay(cfg.Pipeline.BatchDelay),
		nil,
		service.PipelineOptions{
			BatchSize:    cfg.Pipeline.BatchSize,
			GameLinkBase: cfg.Catalog.GameLinkBase,
		},
	)

	report, err := pipeline.Run(ctx, *userName)
	if report != nil {
		printReport(stdout, report)
	}
	return exitCode(report, err)
}

// loadConfig binds the tuning flags over the file and environment values.
// Flags left at their default do not override the config.
func loadConfig(flags *pflag.FlagSet, dir string) (*config.Config, error) {
	v := viper.New()
	if err := v.BindPFlag("pipeline.batch_size", flags.Lookup("batch-size")); err != nil {
		return nil, err
	}
	if f := flags.Lookup("batch-delay"); f.Changed {
		if err := v.BindPFlag("pipeline.batch_delay", f); err != nil {
			return nil, err
		}
	}
	return config.LoadWith(v, dir)
}

func printReport(w io.Writer, report *model.RunReport) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Error().Err(err).Msg("Failed to print run report")
	}
}

// exitCode is 0 for completed and pending runs, 1 otherwise.
func exitCode(report *model.RunReport, err error) int {
	if err != nil || report == nil {
		return 1
	}
	switch report.Status {
	case model.RunCompleted, model.RunPending:
		return 0
	default:
		return 1
	}
}
