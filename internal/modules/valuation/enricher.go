package valuation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/modules/universe"
	"github.com/aristath/screener/internal/work"
)

// Strategy fetches valuation ratios for a set of symbols. Both strategies
// converge on the same contract: a map keyed by symbol; symbols the provider
// knows nothing about are simply absent.
type Strategy interface {
	Name() StrategyName
	Fetch(ctx context.Context, symbols []string, progress *work.ProgressReporter) (map[string]Ratios, error)
}

// Enricher left-joins the universe with valuation ratios from a strategy.
type Enricher struct {
	strategy Strategy
	log      zerolog.Logger
}

// NewEnricher creates an enricher around a strategy.
func NewEnricher(strategy Strategy, log zerolog.Logger) *Enricher {
	return &Enricher{
		strategy: strategy,
		log:      log.With().Str("component", "enricher").Str("strategy", string(strategy.Name())).Logger(),
	}
}

// Enrich fetches ratios for every distinct symbol in the universe and
// left-joins them onto the rows. Every universe row survives, with nil
// ratios when no valuation match exists - a lookup failure never drops a
// row from the universe.
func (e *Enricher) Enrich(ctx context.Context, u *universe.Universe, progress *work.ProgressReporter) ([]Row, error) {
	rows := make([]Row, len(u.Rows))
	for i, rec := range u.Rows {
		rows[i] = Row{TickerRecord: rec}
	}
	if len(rows) == 0 {
		return rows, nil
	}

	ratios, err := e.strategy.Fetch(ctx, u.Symbols(), progress)
	if err != nil {
		return nil, fmt.Errorf("valuation fetch failed: %w", err)
	}

	matched := 0
	for i := range rows {
		if r, ok := ratios[rows[i].Symbol]; ok {
			rows[i].Ratios = r
			matched++
		}
	}

	e.log.Info().
		Int("symbols", len(rows)).
		Int("matched", matched).
		Msg("Universe enriched with valuation ratios")

	return rows, nil
}

// reconcileEVEBITDA prefers the primary source field whenever it is present
// and numeric, otherwise falls back to the secondary.
func reconcileEVEBITDA(primary, fallback *float64) *float64 {
	if primary != nil {
		return primary
	}
	return fallback
}
