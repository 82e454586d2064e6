package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"livehouse/internal/config"
	"livehouse/internal/logging"
	"livehouse/internal/store"
)

// app carries state shared by every subcommand.
type app struct {
	cfg    *config.Config
	dryRun bool
	openDB func(ctx context.Context, dsn string) (*sql.DB, error)
}

func newRootCmd() *cobra.Command {
	a := &app{openDB: store.Open}
	cmd := &cobra.Command{
		Use:   "livehouse",
		Short: "Ingest and serve live house schedules",
		Long: `livehouse keeps a catalog of live music venues and their scheduled events.
Batches from catalog files or scraped schedule pages are written idempotently:
re-running an ingestion never duplicates a venue or an event.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			logging.SetGlobalLogger(logging.New(logging.Config{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Output: cmd.ErrOrStderr(),
			}))
			return nil
		},
	}
	cmd.PersistentFlags().BoolVar(&a.dryRun, "dry-run", false, "Use an in-memory store instead of the database")

	cmd.AddCommand(
		newIngestCmd(a),
		newScrapeCmd(a),
		newVenuesCmd(a),
		newEventsCmd(a),
		newServeCmd(a),
		newTokenCmd(a),
	)
	return cmd
}

// runContext bounds a command by the configured store timeout.
func (a *app) runContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, a.cfg.Store.Timeout)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func logFailure(err error, msg string) error {
	log.Error().Err(err).Msg(msg)
	return err
}
