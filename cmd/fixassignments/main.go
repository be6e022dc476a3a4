// fixassignments clears ticket assignments that point at deleted agents.
// It runs one sweep and prints the result, or keeps sweeping with
// --interval.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-routing/internal/bootstrap"
	"github.com/spec-kit/ticket-routing/internal/config"
	"github.com/spec-kit/ticket-routing/internal/observability"
	"github.com/spec-kit/ticket-routing/internal/service"
	"github.com/spec-kit/ticket-routing/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var interval time.Duration
	var logLevel string

	flagSet := pflag.NewFlagSet("fixassignments", pflag.ContinueOnError)
	flagSet.DurationVar(&interval, "interval", 0, "keep sweeping at this interval instead of running once")
	flagSet.StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logger.Level = logLevel
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("POSTGRES_DSN is required; the in-memory store has nothing to fix")
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	assignments := service.NewAssignmentService(rt.Deps)

	if interval > 0 {
		sweeper := worker.NewAssignmentSweeper(assignments, rt.Deps.Clock, interval, logger)
		<-sweeper.Start(ctx)
		return nil
	}

	result, err := assignments.FixAssignments(ctx)
	if err != nil {
		return err
	}
	logger.Info("sweep finished", zap.Int("fixed_count", result.FixedCount))
	return json.NewEncoder(os.Stdout).Encode(result)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: fixassignments [flags]\n\nClears assignments to agents that no longer exist.\n\nFlags:\n")
	flagSet.PrintDefaults()
}
