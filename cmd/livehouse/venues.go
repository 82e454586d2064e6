package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"livehouse/internal/app/venues"
	"livehouse/internal/catalog"
	"livehouse/internal/logging"
	"livehouse/internal/models"
)

func newVenuesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "venues",
		Short: "Inspect and maintain venues",
	}
	cmd.AddCommand(newVenuesListCmd(a), newVenuesSetGenresCmd(a))
	return cmd
}

func newVenuesListCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known venues",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.runContext(cmd.Context())
			defer cancel()

			s, err := a.openSession(ctx, false)
			if err != nil {
				return logFailure(err, "open store")
			}
			defer s.Close()

			list, err := venues.New(s.store).List(ctx)
			if err != nil {
				return logFailure(err, "list venues")
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), list)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tAREA\tGENRE\tLAST FETCH")
			for _, v := range list {
				lastFetch := "-"
				if v.LastScheduleFetch != nil {
					lastFetch = v.LastScheduleFetch.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.ID, v.Name, v.Area, genreLabel(v), lastFetch)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func genreLabel(v models.Venue) string {
	if tags := v.Genres(); len(tags) > 0 {
		return strings.Join(tags, ",")
	}
	return "-"
}

func newVenuesSetGenresCmd(a *app) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "set-genres",
		Short: "Apply default genres from a file to venue metadata",
		RunE: func(cmd *cobra.Command, _ []string) error {
			defaults, err := catalog.LoadGenreDefaults(path)
			if err != nil {
				return logFailure(err, "load genre defaults")
			}

			ctx, cancel := a.runContext(cmd.Context())
			defer cancel()
			logger := logging.WithContext(ctx)

			s, err := a.openSession(ctx, true)
			if err != nil {
				return logFailure(err, "open store")
			}
			defer s.Close()

			updated, missing, err := venues.New(s.store).ApplyDefaultGenres(ctx, defaults)
			if err != nil {
				return logFailure(err, "apply genres")
			}
			for _, name := range missing {
				logger.Warn().Str("venue", name).Msg("venue not found, genres not applied")
			}
			logger.Info().Int("updated", len(updated)).Int("missing", len(missing)).Msg("genres applied")
			return printJSON(cmd.OutOrStdout(), map[string][]string{"updated": updated, "missing": missing})
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "Genre defaults file (venue name: [genres])")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
