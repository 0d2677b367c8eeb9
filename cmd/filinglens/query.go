package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seenimoa/filinglens/internal/analysis/ownership"
	"github.com/seenimoa/filinglens/pkg/models"
	"github.com/seenimoa/filinglens/pkg/utils"
)

// --- Resolve Commands ---

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve CIKs to names and CUSIPs to tickers",
}

var resolveCIKCmd = &cobra.Command{
	Use:   "cik [cik...]",
	Short: "Look up registrant names",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			out := make([]models.FilerName, 0, len(args))
			for _, cik := range args {
				name, err := a.names.Lookup(ctx, cik)
				if err != nil {
					return err
				}
				out = append(out, models.FilerName{CIK: cik, Name: name})
			}
			if wantJSON(cmd) {
				return printJSON(out)
			}
			for _, n := range out {
				fmt.Printf("%-12s %s\n", n.CIK, n.Name)
			}
			return nil
		})
	},
}

var resolveCUSIPCmd = &cobra.Command{
	Use:   "cusip [cusip...]",
	Short: "Map CUSIPs to tickers and FIGIs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			ms, err := a.cusips.Resolve(ctx, args)
			if err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(ms)
			}
			for _, c := range args {
				m := ms[utils.NormalizeCUSIP(c)]
				if !m.Mapped() {
					fmt.Printf("%-10s (unmapped: %s)\n", m.CUSIP, m.Error)
					continue
				}
				fmt.Printf("%-10s %-8s %-14s %s\n", m.CUSIP, m.Ticker, m.FIGI, m.Name)
			}
			return nil
		})
	},
}

// --- Search Command ---

var searchCmd = &cobra.Command{
	Use:   "search [name]",
	Short: "Search known filer names",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if _, err := a.names.Warm(ctx); err != nil {
				return err
			}
			hits, err := a.names.Search(strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(hits)
			}
			for _, h := range hits {
				fmt.Printf("%-12s %.2f %-7s %s\n", h.CIK, h.Score, h.Kind, h.Name)
			}
			return nil
		})
	},
}

// --- Analyze Command ---

type analysis struct {
	Changes       []models.PositionChange            `json:"changes"`
	Sentiment     models.SentimentScore              `json:"sentiment"`
	Concentration models.ConcentrationMetrics        `json:"concentration"`
	PutCall       models.PutCallRatio                `json:"put_call"`
	Beneficial    []models.BeneficialOwnershipFiling `json:"beneficial,omitempty"`
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [cusip]",
	Short: "Analyze institutional ownership of a security",
	Long: `Show quarter-over-quarter holder changes, the institutional sentiment
score, ownership concentration, the put/call ratio and recent Schedule
13D/G filings for a CUSIP.

Examples:
  filinglens analyze 037833100
  filinglens analyze 037833100 --quarter 2023-Q4 --top 25`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		quarter, _ := cmd.Flags().GetString("quarter")
		top, _ := cmd.Flags().GetInt("top")
		filings, _ := cmd.Flags().GetInt("filings")
		cusip := args[0]

		return withApp(cmd, func(ctx context.Context, a *app) error {
			var (
				r   analysis
				err error
			)
			if r.Changes, err = a.engine.Changes(ctx, cusip, quarter); err != nil {
				return err
			}
			if r.Sentiment, err = a.engine.Sentiment(ctx, cusip); err != nil {
				return err
			}
			if r.Concentration, err = a.engine.Concentration(ctx, cusip, quarter); err != nil {
				return err
			}
			if r.PutCall, err = a.engine.PutCall(ctx, cusip); err != nil {
				return err
			}
			if filings > 0 {
				if r.Beneficial, err = a.store.BeneficialFilings(ctx, cusip, filings); err != nil {
					return err
				}
			}
			if wantJSON(cmd) {
				return printJSON(r)
			}
			printAnalysis(r, top)
			return nil
		})
	},
}

func printAnalysis(r analysis, top int) {
	c := r.Concentration
	s := r.Sentiment
	fmt.Printf("%s  %s\n\n", c.CUSIP, c.Quarter)

	fmt.Printf("  Sentiment:      %d %s (vs %s)\n", s.Score, s.Signal, s.PreviousQuarter)
	fmt.Printf("    value %+.1f  holders %+.1f  concentration %+.1f  new/closed %+.1f\n",
		s.Components.ValueChange, s.Components.HolderChange, s.Components.Concentration, s.Components.NewVsClosed)
	fmt.Printf("  Holders:        %d (%d new, %d closed)\n", s.HolderCount, s.NewHolders, s.ClosedHolders)
	fmt.Printf("  Total value:    %s\n", utils.FormatUSDCompact(float64(c.TotalValue)))
	fmt.Printf("  Top-10 share:   %.1f%%\n", c.Top10Share*100)
	fmt.Printf("  HHI:            %.0f\n", c.HHI)
	if c.LargestHolderCIK != "" {
		fmt.Printf("  Largest holder: %s (%.1f%%)\n", c.LargestHolderName, c.LargestHolderPct)
	}
	if r.PutCall.Ratio != nil {
		fmt.Printf("  Put/call:       %.2f (puts %s, calls %s)\n", *r.PutCall.Ratio,
			utils.FormatUSDCompact(float64(r.PutCall.PutValue)), utils.FormatUSDCompact(float64(r.PutCall.CallValue)))
	} else {
		fmt.Println("  Put/call:       n/a (no call holdings)")
	}

	fmt.Println("\n  Position changes:")
	for i, ch := range r.Changes {
		if i == top {
			fmt.Printf("    ... %d more\n", len(r.Changes)-top)
			break
		}
		fmt.Printf("    %-9s %-40.40s %15s -> %-15s %s\n", ch.Type, ch.FilerName,
			utils.FormatShares(ch.PreviousShares), utils.FormatShares(ch.CurrentShares), utils.FormatPct(ch.ChangePct))
	}

	if len(r.Beneficial) > 0 {
		fmt.Println("\n  Schedule 13D/G:")
		for _, b := range r.Beneficial {
			fmt.Printf("    %s %-10s %-40.40s %6.2f%%\n", b.FilingDate.Format("2006-01-02"), b.FormType, b.FilerName, b.PercentOfClass)
		}
	}
}

// --- Insiders Command ---

var insidersCmd = &cobra.Command{
	Use:   "insiders [issuer-cik]",
	Short: "List recent Form 3/4/5 transactions for an issuer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withApp(cmd, func(ctx context.Context, a *app) error {
			txs, err := a.store.InsiderTransactions(ctx, args[0], limit)
			if err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(txs)
			}
			for _, tx := range txs {
				when := "holding"
				if !tx.TransactionDate.IsZero() {
					when = tx.TransactionDate.Format("2006-01-02")
				}
				fmt.Printf("%-10s %-4s %-30.30s %-2s %14s @ %-10s after %s\n", when, tx.FormType, tx.OwnerName,
					tx.TransactionCode, tx.Shares.StringFixed(0), tx.Price.StringFixed(2), tx.SharesOwnedAfter.StringFixed(0))
			}
			return nil
		})
	},
}

// --- Alerts Commands ---

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Find securities with sharp institutional accumulation",
	Long: `List securities whose aggregate institutional value grew by at least
--min times over the lookback window, ranked by last-quarter momentum.

Examples:
  filinglens alerts
  filinglens alerts --lookback 12 --min 3 --max 20 --tickers-only`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			alerts, err := a.engine.Alerts(ctx, alertParams(cmd))
			if err != nil {
				return err
			}
			return printAlerts(cmd, alerts)
		})
	},
}

var alertsAckCmd = &cobra.Command{
	Use:   "ack [cusip...]",
	Short: "Compute alerts and mark the given CUSIPs acknowledged",
	Long: `Acknowledgement is held only on cached alert results in this process;
it is not persisted and does not survive the cache expiring.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			p := alertParams(cmd)
			if _, err := a.engine.Alerts(ctx, p); err != nil {
				return err
			}
			for _, c := range args {
				if !a.engine.Acknowledge(c) {
					fmt.Printf("no alert for %s\n", c)
				}
			}
			alerts, err := a.engine.Alerts(ctx, p)
			if err != nil {
				return err
			}
			return printAlerts(cmd, alerts)
		})
	},
}

func alertParams(cmd *cobra.Command) ownership.AlertParams {
	var p ownership.AlertParams
	p.LookbackMonths, _ = cmd.Flags().GetInt("lookback")
	p.MinChange, _ = cmd.Flags().GetFloat64("min")
	p.MaxChange, _ = cmd.Flags().GetFloat64("max")
	p.MinStartValue, _ = cmd.Flags().GetInt64("min-start")
	p.TickersOnly, _ = cmd.Flags().GetBool("tickers-only")
	p.Limit, _ = cmd.Flags().GetInt("limit")
	return p
}

func printAlerts(cmd *cobra.Command, alerts []models.Alert) error {
	if wantJSON(cmd) {
		return printJSON(alerts)
	}
	if len(alerts) == 0 {
		fmt.Println("no alerts")
		return nil
	}
	for _, al := range alerts {
		ack := ""
		if al.Acknowledged {
			ack = " [ack]"
		}
		fmt.Printf("%-10s %-6s %-35.35s %8s -> %-8s %5.1fx  momentum %.2f  %s%s\n",
			al.CUSIP, al.Ticker, al.IssuerName,
			utils.FormatUSDCompact(float64(al.PreviousValue)), utils.FormatUSDCompact(float64(al.CurrentValue)),
			al.ChangeMultiple, al.Momentum, al.LargestHolder, ack)
	}
	return nil
}

func init() {
	resolveCmd.AddCommand(resolveCIKCmd)
	resolveCmd.AddCommand(resolveCUSIPCmd)

	searchCmd.Flags().Int("limit", 10, "max matches")

	analyzeCmd.Flags().String("quarter", "", "quarter to analyze, e.g. 2024-Q1 (default: latest)")
	analyzeCmd.Flags().Int("top", 20, "position changes to print")
	analyzeCmd.Flags().Int("filings", 5, "recent Schedule 13D/G filings to include, 0 to skip")

	insidersCmd.Flags().Int("limit", 25, "max transactions")

	for _, c := range []*cobra.Command{alertsCmd, alertsAckCmd} {
		c.Flags().Int("lookback", 0, "lookback in months (default: analysis.lookback_months)")
		c.Flags().Float64("min", 0, "minimum end/start value multiple (default: analysis.min_change)")
		c.Flags().Float64("max", 0, "maximum multiple, 0 for no limit")
		c.Flags().Int64("min-start", 0, "minimum start value in dollars (default: analysis.min_start_value)")
		c.Flags().Bool("tickers-only", false, "only securities with a plain 1-5 letter ticker")
		c.Flags().Int("limit", 0, "max alerts (default: analysis.alert_limit)")
	}
	alertsCmd.AddCommand(alertsAckCmd)
}
