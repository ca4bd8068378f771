// Package main provides the CLI entrypoint for studydeck.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/conorfennell/studydeck/internal/config"
	"github.com/conorfennell/studydeck/internal/logger"
	"github.com/conorfennell/studydeck/internal/review"
	"github.com/conorfennell/studydeck/internal/stats"
	"github.com/conorfennell/studydeck/internal/storage"
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the wiring shared by every subcommand, built once flags are parsed.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      *storage.DB
	stats   *stats.Tracker
	control *review.Controller
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "studydeck",
		Short:         "Spaced repetition flashcards in the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newReviewCmd(a))
	rootCmd.AddCommand(newDueCmd(a))
	rootCmd.AddCommand(newAddCmd(a))
	rootCmd.AddCommand(newImportCmd(a))
	rootCmd.AddCommand(newExportCmd(a))
	rootCmd.AddCommand(newResetCmd(a))
	rootCmd.AddCommand(newStatsCmd(a))

	return rootCmd
}

func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.logger, err = logger.Setup(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a.db, err = storage.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}

	a.stats = stats.NewTracker(a.db, nil, a.logger)
	a.control = review.NewController(a.db, review.Options{
		Recorder: a.stats,
		Shuffler: review.NewRandShuffler(cfg.Seed),
		Logger:   a.logger,
	})
	if err := a.control.Load(cmd.Context()); err != nil {
		return fmt.Errorf("failed to load deck: %w", err)
	}
	return nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	if err != nil {
		return fmt.Errorf("failed to close db: %w", err)
	}
	return nil
}
