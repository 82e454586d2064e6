package main

import (
	"errors"

	"github.com/spf13/cobra"

	"livehouse/internal/app/ingest"
	"livehouse/internal/catalog"
	"livehouse/internal/genre"
	"livehouse/internal/logging"
)

func newWriter(s *session, observer ingest.Observer) *ingest.Writer {
	opts := []ingest.Option{
		ingest.WithTx(s.tx),
		ingest.WithClassifier(genre.Infer),
	}
	if observer != nil {
		opts = append(opts, ingest.WithObserver(observer))
	}
	return ingest.NewWriter(s.store, opts...)
}

func newIngestCmd(a *app) *cobra.Command {
	var catalogPath string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Write the venues and events of a catalog file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			batches, err := catalog.Load(catalogPath)
			if err != nil {
				return logFailure(err, "load catalog")
			}

			ctx, cancel := a.runContext(cmd.Context())
			defer cancel()
			ctx, _ = logging.WithRunID(ctx)
			logger := logging.WithContext(ctx)

			s, err := a.openSession(ctx, true)
			if err != nil {
				return logFailure(err, "open store")
			}
			defer s.Close()

			writer := newWriter(s, nil)
			reports, err := writer.IngestAll(ctx, batches)
			if printErr := printJSON(cmd.OutOrStdout(), reports); printErr != nil {
				err = errors.Join(err, printErr)
			}
			if err != nil {
				logger.Error().Err(err).Str("kind", ingest.KindName(err)).Msg("ingest aborted")
				return err
			}
			logger.Info().Int("venues", len(reports)).Msg("ingest finished")
			return nil
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Catalog file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("catalog")
	return cmd
}
