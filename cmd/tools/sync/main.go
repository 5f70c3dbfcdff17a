package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"

	"github.com/fundsync/fundsync/internal/ai"
	"github.com/fundsync/fundsync/internal/config"
	"github.com/fundsync/fundsync/internal/db"
	syncpkg "github.com/fundsync/fundsync/internal/sync"
)

// Manual sync trigger for local runs and cron jobs, bypassing the HTTP
// layer. Prints a per-configuration result table.
func main() {
	source := flag.String("source", "", "provider to sync (empty = all)")
	maxConfigs := flag.Int("max-configs", 0, "cap on generated search configurations (0 = no cap)")
	noAI := flag.Bool("no-ai", false, "skip the AI strategy tier")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("[Sync] No .env file found, using environment")
	}
	cfg := config.Load()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[Sync] Database connection failed: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("[Sync] Migrations failed: %v", err)
	}
	store := db.NewStore(pool)

	registry, err := syncpkg.LoadRegistry()
	if err != nil {
		log.Fatalf("[Sync] Provider registry failed: %v", err)
	}

	providers := registry.Providers
	if *source != "" {
		providerCfg, ok := registry.Get(*source)
		if !ok {
			log.Fatalf("[Sync] Unknown provider %q (known: %v)", *source, registry.IDs())
		}
		providers = []syncpkg.ProviderConfig{providerCfg}
	}

	oracle := ai.NewOllamaClient(cfg.OracleHost, cfg.OracleEmbedModel, cfg.OracleGenModel)

	profiles, err := store.ListProjectProfiles(ctx)
	if err != nil {
		log.Printf("[Sync] Project profiles unavailable: %v", err)
	}

	failed := false
	for _, providerCfg := range providers {
		adapter, err := syncpkg.NewAdapter(providerCfg)
		if err != nil {
			log.Printf("[Sync] %s: %v", providerCfg.ID, err)
			failed = true
			continue
		}

		gen := &syncpkg.Generator{PageSize: providerCfg.PageSize}
		if !*noAI {
			gen.Oracle = oracle
		}
		configs := gen.Generate(ctx, profiles)
		if *maxConfigs > 0 && len(configs) > *maxConfigs {
			configs = configs[:*maxConfigs]
		}

		orch := &syncpkg.Orchestrator{
			Adapter:        adapter,
			Client:         &http.Client{Timeout: cfg.RequestTimeout},
			Store:          store,
			Quota:          syncpkg.NewQuotaTracker(store, adapter.Source(), adapter.DailyLimit()),
			Limiter:        syncpkg.NewRateLimiter(cfg.BaseDelay, cfg.MaxBackoff),
			Embedder:       oracle,
			RequestTimeout: cfg.RequestTimeout,
		}

		start := time.Now()
		report, err := orch.Run(ctx, configs)
		if err != nil {
			log.Printf("[Sync] %s failed: %v", providerCfg.ID, err)
			failed = true
		}
		printReport(providerCfg.ID, report, time.Since(start))
	}

	if failed {
		os.Exit(1)
	}
}

func printReport(source string, report *syncpkg.RunReport, elapsed time.Duration) {
	if report == nil {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("%s (%s)", source, elapsed.Round(time.Millisecond))
	t.AppendHeader(table.Row{"Configuration", "Strategy", "Status", "Records", "Error"})
	for _, r := range report.Results {
		records := "-"
		if r.RecordCount != nil {
			records = fmt.Sprintf("%d", *r.RecordCount)
		}
		t.AppendRow(table.Row{r.ConfigName, r.StrategyKind, r.Status, records, r.Error})
	}
	t.AppendFooter(table.Row{"", "", "imported", report.Imported, report.Message})
	t.SetStyle(table.StyleLight)
	t.Render()
}
