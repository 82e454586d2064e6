package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"livehouse/internal/app/events"
	"livehouse/internal/app/venues"
	"livehouse/internal/models"
)

func newEventsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect events",
	}
	cmd.AddCommand(newEventsListCmd(a))
	return cmd
}

func newEventsListCmd(a *app) *cobra.Command {
	var (
		venueName string
		from      string
		upcoming  bool
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a venue's events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var fromDate *time.Time
			if from != "" {
				d, err := models.ParseDate(from)
				if err != nil {
					return fmt.Errorf("invalid --from: %w", err)
				}
				fromDate = &d
			}

			ctx, cancel := a.runContext(cmd.Context())
			defer cancel()

			s, err := a.openSession(ctx, false)
			if err != nil {
				return logFailure(err, "open store")
			}
			defer s.Close()

			venue, err := venues.New(s.store).FindByName(ctx, venueName)
			if err != nil {
				return logFailure(err, "find venue")
			}

			svc := events.New(s.store)
			var list []models.Event
			if upcoming {
				list, err = svc.Upcoming(ctx, venue.ID, time.Now())
			} else {
				list, err = svc.ListByVenue(ctx, venue.ID, fromDate)
			}
			if err != nil {
				return logFailure(err, "list events")
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), list)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tSTART\tTITLE\tARTISTS\tSTATUS")
			for _, e := range list {
				start := "-"
				if e.StartTime != nil {
					start = *e.StartTime
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					e.Date.Format(models.DateLayout), start, e.Title, strings.Join(e.Artists, ", "), e.Status)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&venueName, "venue", "", "Venue name")
	cmd.Flags().StringVar(&from, "from", "", "Only events on or after this date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&upcoming, "upcoming", false, "Only active events from today on")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	_ = cmd.MarkFlagRequired("venue")
	return cmd
}
