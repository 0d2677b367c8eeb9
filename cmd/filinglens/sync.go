package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seenimoa/filinglens/internal/ingest"
	"github.com/seenimoa/filinglens/internal/parser"
	"github.com/seenimoa/filinglens/pkg/models"
	"github.com/seenimoa/filinglens/pkg/utils"
)

// --- Sync Commands ---

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Ingest filings from EDGAR",
}

var syncFeedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Ingest new filings from the current filings feed",
	Long: `Poll the EDGAR current filings feed for each form type, fetch every
filing not yet stored, and write the parsed records in one transaction.

Examples:
  filinglens sync feed
  filinglens sync feed --form 13F-HR --form "SC 13D" --limit 50
  filinglens sync feed --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		forms, _ := cmd.Flags().GetStringArray("form")
		limit, _ := cmd.Flags().GetInt("limit")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if len(forms) == 0 {
			forms = cfg.Sync.FormTypes
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			s := ingest.NewFeedSync(ingest.FeedSyncOptions{
				Source:  a.clients.SEC,
				Store:   a.store,
				Parser:  parser.New(a.logger),
				Workers: cfg.Sync.Workers,
				Metrics: a.metrics,
				Logger:  a.logger,
			})
			sum, err := s.Run(ctx, ingest.FeedOptions{
				FormTypes: forms,
				Count:     cfg.SEC.FeedCount,
				Limit:     limit,
				DryRun:    dryRun,
			})
			return report(cmd, sum, err)
		})
	},
}

var syncBulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Backfill quarters from the quarterly data set archives",
	Long: `Download the quarterly 13F or insider data set archives for a range of
quarters and load them into the store. Completed quarters are skipped
unless --force is given.

Examples:
  filinglens sync bulk --family 13f --from 2023-Q1 --to 2024-Q1
  filinglens sync bulk --family form345 --from 2024-Q2 --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		family, _ := cmd.Flags().GetString("family")
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		force, _ := cmd.Flags().GetBool("force")
		if to == "" {
			to = from
		}
		quarters, err := utils.QuartersBetween(from, to)
		if err != nil {
			return err
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			b := ingest.NewBulkSync(ingest.BulkSyncOptions{
				Source:  a.clients.SEC,
				Store:   a.store,
				TempDir: cfg.Sync.TempDir,
				Force:   force,
				Metrics: a.metrics,
				Logger:  a.logger,
			})
			sum, err := b.Run(ctx, models.FormFamily(strings.ToLower(family)), quarters)
			return report(cmd, sum, err)
		})
	},
}

// report prints a run summary and passes the run error through.
func report(cmd *cobra.Command, sum *ingest.RunSummary, err error) error {
	if sum != nil {
		if wantJSON(cmd) {
			if perr := printJSON(sum); perr != nil {
				return perr
			}
		} else {
			fmt.Println(sum.String())
			for table, n := range sum.Written {
				fmt.Printf("  %-20s %d rows\n", table+":", n)
			}
		}
	}
	return err
}

func init() {
	syncFeedCmd.Flags().StringArray("form", nil, "form type to poll, repeatable (default: sync.form_types)")
	syncFeedCmd.Flags().Int("limit", 0, "max filings fetched this run, 0 for no limit")
	syncFeedCmd.Flags().Bool("dry-run", false, "report what would be fetched without fetching or writing")

	syncBulkCmd.Flags().String("family", string(models.Family13F), "data set family: 13f or form345")
	syncBulkCmd.Flags().String("from", "", "first quarter, e.g. 2024-Q1")
	syncBulkCmd.Flags().String("to", "", "last quarter (default: --from)")
	syncBulkCmd.Flags().Bool("force", false, "reload quarters already complete")
	_ = syncBulkCmd.MarkFlagRequired("from")

	syncCmd.AddCommand(syncFeedCmd)
	syncCmd.AddCommand(syncBulkCmd)
}
