// Package pipeline orchestrates one screening run: fetch the universe, enrich
// it with valuation ratios, benchmark against industry medians, and flag
// undervalued symbols. Each run has a unique ID and emits lifecycle events.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/events"
	"github.com/aristath/screener/internal/modules/analysis"
	"github.com/aristath/screener/internal/modules/summary"
	"github.com/aristath/screener/internal/modules/universe"
	"github.com/aristath/screener/internal/modules/valuation"
	"github.com/aristath/screener/internal/work"
)

// UniverseFetcher is the screener stage of the pipeline.
type UniverseFetcher interface {
	Fetch(ctx context.Context, q universe.Query) (*universe.FetchResult, error)
}

// ValuationEnricher is the enrichment stage of the pipeline.
type ValuationEnricher interface {
	Enrich(ctx context.Context, u *universe.Universe, progress *work.ProgressReporter) ([]valuation.Row, error)
}

// Service runs the screening pipeline end to end.
type Service struct {
	fetcher  UniverseFetcher
	enricher ValuationEnricher
	strategy valuation.StrategyName
	bus      *events.Bus
	log      zerolog.Logger
}

// NewService creates the pipeline service. bus may be nil when no one is
// listening.
func NewService(fetcher UniverseFetcher, enricher ValuationEnricher, strategy valuation.StrategyName, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		fetcher:  fetcher,
		enricher: enricher,
		strategy: strategy,
		bus:      bus,
		log:      log.With().Str("component", "pipeline").Logger(),
	}
}

// Result is the outcome of one screening run.
type Result struct {
	RunID     string             `json:"run_id"`
	Rows      []analysis.Flagged `json:"rows"`
	Warnings  []universe.Warning `json:"warnings,omitempty"`
	FromCache bool               `json:"from_cache"`
	NoData    bool               `json:"no_data"`
	StartedAt time.Time          `json:"started_at"`
	Duration  time.Duration      `json:"-"`
}

// Screen runs a full screening pass for the given query. An empty universe is
// reported as NoData, not as an error; only infrastructure failures (e.g. the
// bulk strategy losing both snapshots) abort the run.
func (s *Service) Screen(ctx context.Context, q universe.Query) (*Result, error) {
	runID := uuid.NewString()
	started := time.Now()
	log := s.log.With().Str("run_id", runID).Logger()

	s.emit(events.RunStarted, &events.RunStartedData{
		RunID:     runID,
		Exchanges: q.Exchanges,
		Strategy:  string(s.strategy),
	})
	log.Info().Strs("exchanges", q.Exchanges).Msg("Screening run started")

	fetched, err := s.fetcher.Fetch(ctx, q)
	if err != nil {
		return nil, s.fail(runID, fmt.Errorf("universe fetch failed: %w", err))
	}

	s.emit(events.ScreenFetched, &events.ScreenFetchedData{
		RunID:     runID,
		Rows:      len(fetched.Universe.Rows),
		Exchanges: len(q.Exchanges),
		FromCache: fetched.FromCache,
	})

	result := &Result{
		RunID:     runID,
		Warnings:  fetched.Warnings,
		FromCache: fetched.FromCache,
		StartedAt: started,
	}

	if fetched.Universe.Empty() {
		result.NoData = true
		result.Rows = []analysis.Flagged{}
		result.Duration = time.Since(started)
		log.Warn().Int("warnings", len(fetched.Warnings)).Msg("Screening run produced no data")
		s.emitCompleted(result)
		return result, nil
	}

	progress := work.NewProgressReporter(&busEmitter{bus: s.bus, runID: runID}, runID, "enrichment")
	enriched, err := s.enricher.Enrich(ctx, fetched.Universe, progress)
	if err != nil {
		return nil, s.fail(runID, fmt.Errorf("enrichment failed: %w", err))
	}

	result.Rows = analysis.FlagUndervalued(enriched)
	result.Duration = time.Since(started)

	log.Info().
		Int("symbols", len(result.Rows)).
		Int("flagged", countFlagged(result.Rows)).
		Dur("duration", result.Duration).
		Msg("Screening run completed")
	s.emitCompleted(result)

	return result, nil
}

// Summarize fetches the universe for the query and aggregates it by the
// requested grouping. Enrichment is skipped; the summary only needs the
// screener columns.
func (s *Service) Summarize(ctx context.Context, q universe.Query, groupBy summary.GroupBy) ([]summary.Group, []universe.Warning, error) {
	fetched, err := s.fetcher.Fetch(ctx, q)
	if err != nil {
		return nil, nil, fmt.Errorf("universe fetch failed: %w", err)
	}
	return summary.Aggregate(fetched.Universe.Rows, groupBy), fetched.Warnings, nil
}

func (s *Service) emit(eventType events.EventType, data events.EventData) {
	if s.bus != nil {
		s.bus.Emit(eventType, data)
	}
}

func (s *Service) emitCompleted(result *Result) {
	s.emit(events.RunCompleted, &events.RunCompletedData{
		RunID:      result.RunID,
		Symbols:    len(result.Rows),
		Flagged:    countFlagged(result.Rows),
		Warnings:   len(result.Warnings),
		DurationMS: float64(result.Duration.Milliseconds()),
	})
}

func (s *Service) fail(runID string, err error) error {
	s.log.Error().Str("run_id", runID).Err(err).Msg("Screening run failed")
	s.emit(events.RunFailed, &events.RunFailedData{RunID: runID, Error: err.Error()})
	return err
}

func countFlagged(rows []analysis.Flagged) int {
	n := 0
	for _, row := range rows {
		if row.MarginOfSafetyOK {
			n++
		}
	}
	return n
}

// busEmitter bridges worker-pool progress events onto the pipeline event bus.
type busEmitter struct {
	bus   *events.Bus
	runID string
}

func (e *busEmitter) Emit(_ string, data any) {
	if e.bus == nil {
		return
	}
	pe, ok := data.(work.ProgressEvent)
	if !ok {
		return
	}
	e.bus.Emit(events.EnrichmentProgress, &events.EnrichmentProgressData{
		RunID:   e.runID,
		Current: pe.Current,
		Total:   pe.Total,
		Message: pe.Message,
	})
}
