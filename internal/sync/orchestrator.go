package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/fundsync/fundsync/internal/ai"
	"github.com/fundsync/fundsync/internal/models"
)

// RunState tracks where a sync run is in its lifecycle. Transitions are
// strictly forward; a failed run jumps straight to StateDone.
type RunState string

const (
	StateIdle          RunState = "idle"
	StateQuotaCheck    RunState = "quota_check"
	StateExecuting     RunState = "executing"
	StateDeduplicating RunState = "deduplicating"
	StateNormalizing   RunState = "normalizing"
	StatePersisting    RunState = "persisting"
	StateDone          RunState = "done"
)

// OpportunityStore is the persistence surface a run needs: batch upsert
// returning the number of newly inserted rows.
type OpportunityStore interface {
	UpsertOpportunities(ctx context.Context, opps []models.Opportunity) (int, error)
}

// Orchestrator drives one provider through the full sync pipeline:
// quota check, sequential configuration execution with rate limiting,
// cross-configuration deduplication, normalization, and persistence.
// One orchestrator per provider; a Run call is single-use of its limiter
// state but the orchestrator itself is reusable.
type Orchestrator struct {
	Adapter ProviderAdapter
	Client  *http.Client
	Store   OpportunityStore
	Quota   *QuotaTracker
	Limiter *RateLimiter

	// Embedder is optional; when set, persisted records get a semantic
	// embedding computed from title and description.
	Embedder ai.Embedder

	// RequestTimeout bounds each provider request, defaulting to 30s.
	RequestTimeout time.Duration

	state RunState
}

func (o *Orchestrator) State() RunState {
	if o.state == "" {
		return StateIdle
	}
	return o.state
}

// maxSampleRecords caps how many normalized records a report carries for
// inspection by callers.
const maxSampleRecords = 3

// RunReport is the full outcome of one sync run.
type RunReport struct {
	Success       bool                   `json:"success"`
	Imported      int                    `json:"imported"`
	Message       string                 `json:"message"`
	Summary       models.SyncSummary     `json:"summary"`
	Results       []models.SyncRunResult `json:"searchResults"`
	SampleRecords []models.Opportunity   `json:"sampleRecords"`
}

// Run executes the given search configurations against the provider and
// persists the resulting canonical records. Per-configuration failures are
// recorded and skipped; only quota exhaustion before any work, backoff
// exhaustion, and persistence failures end the run with an error.
func (o *Orchestrator) Run(ctx context.Context, configs []SearchConfiguration) (*RunReport, error) {
	source := o.Adapter.Source()
	report := &RunReport{
		Summary: models.SyncSummary{
			Source:                    source,
			TotalSearchConfigurations: len(configs),
			LastSync:                  time.Now().UTC(),
		},
	}
	defer func() { o.state = StateDone }()

	// Quota check: trim the plan to what the daily budget still allows.
	o.state = StateQuotaCheck
	remaining, err := o.Quota.Remaining(ctx)
	if err != nil {
		return report, err
	}
	if remaining == 0 {
		return report, ErrQuotaExceeded
	}
	runnable := configs
	if len(runnable) > remaining {
		log.Printf("[Sync] %s: quota allows %d of %d configurations", source, remaining, len(runnable))
		for _, cfg := range runnable[remaining:] {
			report.Results = append(report.Results, skippedResult(cfg, "daily quota reached"))
		}
		runnable = runnable[:remaining]
	}

	// Execute sequentially with the courtesy delay between requests, then
	// fold every batch into one deduplicated set.
	o.state = StateExecuting
	dedupe := NewDeduplicator(o.Adapter.UniqueID)
	strategies := make(map[StrategyKind]bool)
	abandoned := false

	for i, cfg := range runnable {
		if abandoned {
			report.Results = append(report.Results, skippedResult(cfg, "abandoned after backoff cap"))
			continue
		}
		if i > 0 {
			if err := o.Limiter.Wait(ctx); err != nil {
				return report, err
			}
		}

		batch, err := o.executeConfiguration(ctx, cfg)
		if err != nil {
			if errors.Is(err, ErrBackoffExhausted) || errors.Is(err, ErrQuotaExceeded) {
				// No point hammering the provider with the rest of the plan.
				log.Printf("[Sync] %s: abandoning remaining configurations: %v", source, err)
				abandoned = true
			}
			report.Results = append(report.Results, errorResult(cfg, err))
			continue
		}

		added := dedupe.Add(batch)
		report.Summary.TotalFetched += len(batch)
		strategies[cfg.StrategyKind] = true
		count := len(batch)
		report.Results = append(report.Results, models.SyncRunResult{
			ConfigName:       cfg.Name,
			Status:           models.RunResultOK,
			RecordCount:      &count,
			StrategyKind:     string(cfg.StrategyKind),
			RelatedProjectID: cfg.RelatedProjectID,
			TargetCategory:   cfg.TargetCategory,
		})
		log.Printf("[Sync] %s: %q returned %d records (%d new)", source, cfg.Name, len(batch), added)
	}

	o.state = StateDeduplicating
	report.Summary.TotalProcessed = dedupe.Len()
	for kind := range strategies {
		report.Summary.StrategiesUsed = append(report.Summary.StrategiesUsed, string(kind))
	}

	// Normalize; records failing validation are dropped, never fatal.
	o.state = StateNormalizing
	valid := make([]models.Opportunity, 0, dedupe.Len())
	dropped := 0
	for _, rec := range dedupe.Records() {
		opp, err := o.Adapter.Normalize(rec)
		if err != nil {
			dropped++
			continue
		}
		valid = append(valid, opp)
	}
	if dropped > 0 {
		log.Printf("[Sync] %s: dropped %d of %d records during normalization", source, dropped, dedupe.Len())
	}
	report.Summary.TotalValid = len(valid)
	if len(valid) > maxSampleRecords {
		report.SampleRecords = valid[:maxSampleRecords]
	} else {
		report.SampleRecords = valid
	}

	if len(valid) == 0 {
		// A clean run with nothing to import is still a success.
		report.Success = true
		report.Message = fmt.Sprintf("Sync completed for %s: no new records", source)
		return report, nil
	}

	o.embed(ctx, valid)

	o.state = StatePersisting
	imported, err := o.Store.UpsertOpportunities(ctx, valid)
	if err != nil {
		report.Message = "persistence failed"
		return report, fmt.Errorf("persisting %s batch: %w", source, err)
	}

	report.Success = true
	report.Imported = imported
	report.Summary.TotalImported = imported
	report.Message = fmt.Sprintf("Sync completed for %s: %d imported, %d updated", source, imported, len(valid)-imported)
	log.Printf("[Sync] %s: %s", source, report.Message)
	return report, nil
}

// executeConfiguration issues one provider request, retrying the same
// configuration with exponential backoff while the provider answers 429.
// Every attempt consumes a quota slot, including rate-limited ones.
func (o *Orchestrator) executeConfiguration(ctx context.Context, cfg SearchConfiguration) ([]ExternalRecord, error) {
	for {
		if err := o.Quota.Acquire(ctx); err != nil {
			return nil, err
		}

		batch, err := o.doRequest(ctx, cfg)
		if err == nil {
			o.Limiter.Reset()
			return batch, nil
		}
		if !errors.Is(err, ErrRateLimited) {
			return nil, err
		}

		log.Printf("[Sync] %s: rate limited on %q, backing off %s", o.Adapter.Source(), cfg.Name, o.Limiter.Delay())
		if err := o.Limiter.Backoff(ctx); err != nil {
			return nil, err
		}
	}
}

func (o *Orchestrator) doRequest(ctx context.Context, cfg SearchConfiguration) ([]ExternalRecord, error) {
	timeout := o.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := o.Adapter.BuildRequest(reqCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("building request for %q: %w", cfg.Name, err)
	}

	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing %q: %w", cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("executing %q: unexpected status %d", cfg.Name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %q response: %w", cfg.Name, err)
	}
	return o.Adapter.ParseResponse(body)
}

// embed attaches semantic embeddings when an embedder is configured.
// Embedding failures are logged and ignored; records persist without one.
func (o *Orchestrator) embed(ctx context.Context, opps []models.Opportunity) {
	if o.Embedder == nil {
		return
	}
	for i := range opps {
		text := opps[i].Title
		if opps[i].Description != "" {
			text += "\n" + truncateText(opps[i].Description, 2000)
		}
		vec, err := o.Embedder.GenerateEmbedding(ctx, text)
		if err != nil {
			log.Printf("[Sync] embedding failed for %s: %v", opps[i].ExternalID, err)
			continue
		}
		opps[i].Embedding = vec
	}
}

func skippedResult(cfg SearchConfiguration, reason string) models.SyncRunResult {
	return models.SyncRunResult{
		ConfigName:       cfg.Name,
		Status:           models.RunResultSkipped,
		Error:            reason,
		StrategyKind:     string(cfg.StrategyKind),
		RelatedProjectID: cfg.RelatedProjectID,
		TargetCategory:   cfg.TargetCategory,
	}
}

func errorResult(cfg SearchConfiguration, err error) models.SyncRunResult {
	return models.SyncRunResult{
		ConfigName:       cfg.Name,
		Status:           models.RunResultError,
		Error:            err.Error(),
		StrategyKind:     string(cfg.StrategyKind),
		RelatedProjectID: cfg.RelatedProjectID,
		TargetCategory:   cfg.TargetCategory,
	}
}
