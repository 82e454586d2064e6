package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"livehouse/internal/app/ingest"
	"livehouse/internal/app/venues"
	"livehouse/internal/logging"
	"livehouse/internal/scraper"
)

func newScrapeCmd(a *app) *cobra.Command {
	var (
		sourcesPath string
		venueName   string
	)
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Fetch venue schedule pages and ingest their events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sourcesPath == "" {
				sourcesPath = a.cfg.Scrape.SourcesPath
			}
			sources, err := scraper.LoadSources(sourcesPath)
			if err != nil {
				return logFailure(err, "load sources")
			}
			if venueName != "" {
				src, ok := scraper.Find(sources, venueName)
				if !ok {
					return logFailure(fmt.Errorf("no scrape source for venue %q", venueName), "select source")
				}
				sources = []scraper.Source{src}
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

			sc := scraper.New(scraper.Options{
				UserAgent: a.cfg.Scrape.UserAgent,
				Timeout:   a.cfg.Scrape.Timeout,
			})
			writer := newWriter(s, nil)
			venueSvc := venues.New(s.store)

			var (
				reports  []ingest.Report
				failures []error
			)
			for _, src := range sources {
				result, err := sc.Fetch(ctx, src)
				if err != nil {
					logger.Warn().Err(err).Str("venue", src.Venue.Name).Msg("scrape failed")
					failures = append(failures, fmt.Errorf("scrape %q: %w", src.Venue.Name, err))
					continue
				}
				report, err := writer.Ingest(ctx, result.Batch)
				reports = append(reports, report)
				if err != nil {
					// An aborted ingest stops the run.
					failures = append(failures, err)
					break
				}
				if err := venueSvc.RecordScheduleFetch(ctx, report.VenueID, src.ScheduleURL, result.FetchedAt); err != nil {
					failures = append(failures, err)
					break
				}
			}

			err = errors.Join(failures...)
			if printErr := printJSON(cmd.OutOrStdout(), reports); printErr != nil {
				err = errors.Join(err, printErr)
			}
			if err != nil {
				logger.Error().Err(err).Msg("scrape finished with errors")
				return err
			}
			logger.Info().Int("venues", len(reports)).Msg("scrape finished")
			return nil
		},
	}
	cmd.Flags().StringVar(&sourcesPath, "sources", "", "Scrape sources file (defaults to SCRAPE_SOURCES)")
	cmd.Flags().StringVar(&venueName, "venue", "", "Only scrape this venue")
	return cmd
}
