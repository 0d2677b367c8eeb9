// filinglens ingests SEC ownership filings and analyzes institutional
// positioning.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seenimoa/filinglens/internal/analysis/ownership"
	"github.com/seenimoa/filinglens/internal/config"
	"github.com/seenimoa/filinglens/internal/infra"
	"github.com/seenimoa/filinglens/internal/logging"
	"github.com/seenimoa/filinglens/internal/metrics"
	"github.com/seenimoa/filinglens/internal/providers"
	"github.com/seenimoa/filinglens/internal/resolver"
	"github.com/seenimoa/filinglens/internal/store"
	"github.com/seenimoa/filinglens/pkg/models"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "filinglens",
	Short: "filinglens - SEC ownership filings ingestion and analytics",
	Long: `filinglens ingests 13F, Schedule 13D/G and Form 3/4/5 filings from SEC EDGAR
into DuckDB or MotherDuck and analyzes institutional positioning: position
changes, sentiment, concentration, put/call ratios and accumulation alerts.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
			cfg.Metrics.Addr = addr
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("metrics-addr", "", "serve prometheus metrics on this address, e.g. :9090")
	rootCmd.PersistentFlags().Bool("json", false, "print results as JSON")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(insidersCmd)
	rootCmd.AddCommand(alertsCmd)
}

// --- Application wiring ---

// app holds the services one command invocation uses.
type app struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	store   *store.Gateway
	clients *providers.Set
	queue   *infra.TaskQueue
	names   *resolver.Names
	cusips  *resolver.Cusips
	engine  *ownership.Engine
}

func newApp(ctx context.Context) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr); err != nil {
				logger.Warn("metrics endpoint stopped", zap.String("addr", cfg.Metrics.Addr), zap.Error(err))
			}
		}()
	}

	gw, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	if err := gw.EnsureSchema(ctx); err != nil {
		_ = gw.Close()
		return nil, err
	}
	clients, err := providers.New(cfg, m, logger)
	if err != nil {
		_ = gw.Close()
		return nil, err
	}

	ttl := config.Seconds(cfg.Resolver.CacheTTL)
	queue := infra.NewTaskQueue(cfg.Resolver.Workers, cfg.Resolver.QueueSize, logger)
	names := resolver.NewNames(resolver.NamesOptions{
		Source:   clients.SEC,
		Store:    gw,
		Queue:    queue,
		Metrics:  m,
		Logger:   logger,
		CacheTTL: ttl,
	})
	cusips := resolver.NewCusips(resolver.CusipsOptions{
		Mapper:     clients.OpenFIGI,
		Store:      gw,
		Cache:      infra.NewCache[models.CusipMapping](infra.NewLRUStore[models.CusipMapping](cfg.Resolver.CacheSize, ttl), ttl),
		Metrics:    m,
		Logger:     logger,
		CacheTTL:   ttl,
		FailureTTL: 7 * 24 * time.Hour,
	})
	engine := ownership.NewEngine(ownership.EngineOptions{
		Store:   gw,
		Names:   names,
		Tickers: cusips,
		Config:  cfg.Analysis,
		Logger:  logger,
	})
	return &app{
		logger:  logger,
		metrics: m,
		store:   gw,
		clients: clients,
		queue:   queue,
		names:   names,
		cusips:  cusips,
		engine:  engine,
	}, nil
}

// Close drains background refreshes and releases the store.
func (a *app) Close() {
	a.queue.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// withApp runs fn with a wired app bound to the command's context.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func wantJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("filinglens %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, upstream health and sync state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			fmt.Println("═══════════════════════════════════════")
			fmt.Println("  filinglens - System Status")
			fmt.Println("═══════════════════════════════════════")
			fmt.Printf("  Version:   %s (%s)\n", version, commit)
			where := "in-memory DuckDB"
			switch {
			case cfg.Store.Remote():
				where = "MotherDuck " + cfg.Store.Database
			case cfg.Store.Path != "":
				where = "DuckDB " + cfg.Store.Path
			}
			fmt.Printf("  Store:     %s\n", where)
			fmt.Println()

			fmt.Println("  Credentials:")
			for _, k := range config.CheckSecrets(cfg) {
				status := "not set"
				if k.IsSet {
					status = fmt.Sprintf("set (%s: %s)", k.Source, k.Masked)
				}
				fmt.Printf("    %-25s %s\n", k.Name+":", status)
			}
			fmt.Println()

			fmt.Println("  Upstreams:")
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			results := a.clients.Registry.PingAll(pingCtx)
			cancel()
			for _, info := range a.clients.Registry.List() {
				status := "ok"
				if err := results[info.Name]; err != nil {
					status = err.Error()
				}
				fmt.Printf("    %-25s %s\n", info.Name+":", status)
			}
			fmt.Println()

			states, err := a.store.SyncStates(ctx)
			if err != nil {
				return err
			}
			fmt.Println("  Sync sources:")
			if len(states) == 0 {
				fmt.Println("    (none)")
			}
			for _, s := range states {
				line := fmt.Sprintf("%s, %d records", s.Status, s.RecordsProcessed)
				if !s.LastFilingDate.IsZero() {
					line += ", through " + s.LastFilingDate.Format(time.DateOnly)
				}
				if s.Error != "" {
					line += ", error: " + s.Error
				}
				fmt.Printf("    %-25s %s\n", s.Source+":", line)
			}
			fmt.Println()

			fmt.Println("  Backfill:")
			for _, fam := range []models.FormFamily{models.Family13F, models.FamilyInsider} {
				list, err := a.store.BackfillList(ctx, fam)
				if err != nil {
					return err
				}
				for _, p := range list {
					fmt.Printf("    %-25s %s, %d rows\n", string(fam)+" "+p.Quarter+":", p.Status, p.RowsLoaded)
				}
			}
			fmt.Println("═══════════════════════════════════════")
			return nil
		})
	},
}
