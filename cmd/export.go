/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tripdesk/apiserver/internal/reports"
	"github.com/tripdesk/apiserver/internal/server"
	"github.com/tripdesk/apiserver/internal/services"
	"github.com/tripdesk/apiserver/internal/storage"
	"github.com/tripdesk/apiserver/types"
)

var (
	exportStatus      string
	exportDestination string
	exportStartDate   string
	exportEndDate     string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export trip requests as CSV to object storage",
	Long: `Writes a CSV snapshot of the trip requests matching the filters to the
configured bucket. Usage:

	tripdesk export --status approved --start-date 2026-01-01
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := exportFilter()
		if err != nil {
			return err
		}
		cfg, logger := loadRuntime()
		ctx := cmd.Context()

		repos, err := server.OpenRepositories(ctx, cfg)
		if err != nil {
			return err
		}
		defer repos.Close()

		bucket, err := storage.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer bucket.Close()
		if err := bucket.EnsureBucket(ctx); err != nil {
			return err
		}

		trips := services.NewTripRequestService(repos.TripRequests, repos.Travelers, repos.Destinations, nil, logger)
		res, err := reports.NewExporter(trips, bucket, logger).Export(ctx, filter)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s/%s\n", res.Rows, bucket.Bucket(), res.Key)
		return nil
	},
}

func exportFilter() (types.TripRequestFilter, error) {
	var f types.TripRequestFilter
	if exportStatus != "" {
		s, ok := types.ParseTripStatus(exportStatus)
		if !ok {
			return f, fmt.Errorf("unknown status %q", exportStatus)
		}
		f.Status = s
	}
	f.Destination = exportDestination
	if exportStartDate != "" {
		t, err := time.Parse(time.DateOnly, exportStartDate)
		if err != nil {
			return f, fmt.Errorf("start-date: %w", err)
		}
		f.StartDate = &t
	}
	if exportEndDate != "" {
		t, err := time.Parse(time.DateOnly, exportEndDate)
		if err != nil {
			return f, fmt.Errorf("end-date: %w", err)
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		f.EndDate = &end
	}
	return f, nil
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportStatus, "status", "", "only trips in this status")
	exportCmd.Flags().StringVar(&exportDestination, "destination", "", "match destination city, state or country")
	exportCmd.Flags().StringVar(&exportStartDate, "start-date", "", "earliest departure date (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportEndDate, "end-date", "", "latest departure date (YYYY-MM-DD), inclusive")
}
