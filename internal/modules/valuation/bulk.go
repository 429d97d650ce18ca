package valuation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/clientdata"
	"github.com/aristath/screener/internal/clients/fmp"
	"github.com/aristath/screener/internal/work"
)

// BulkRatiosClient is the part of the FMP client the bulk strategy needs.
type BulkRatiosClient interface {
	BulkRatiosTTM(ctx context.Context) ([]fmp.BulkRatiosRow, error)
	BulkKeyMetricsTTM(ctx context.Context) ([]fmp.BulkKeyMetricsRow, error)
}

// BulkStrategy issues exactly two GETs for the whole provider universe and
// filters them down to the symbols of interest. EV/EBITDA is reconciled from
// the ratios snapshot (primary) with the key-metrics snapshot as fallback
// when the primary is absent or non-numeric.
type BulkStrategy struct {
	client BulkRatiosClient
	cache  *clientdata.Repository // optional
	log    zerolog.Logger
}

// NewBulkStrategy creates the bulk strategy. cache may be nil.
func NewBulkStrategy(client BulkRatiosClient, cache *clientdata.Repository, log zerolog.Logger) *BulkStrategy {
	return &BulkStrategy{
		client: client,
		cache:  cache,
		log:    log.With().Str("strategy", "bulk").Logger(),
	}
}

// Name implements Strategy.
func (s *BulkStrategy) Name() StrategyName {
	return StrategyBulk
}

// Fetch implements Strategy. Either snapshot failing alone is contained as a
// warning; the fetch only errors when both snapshots are unavailable and
// there is nothing to join.
func (s *BulkStrategy) Fetch(ctx context.Context, symbols []string, progress *work.ProgressReporter) (map[string]Ratios, error) {
	wanted := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		wanted[sym] = true
	}

	progress.Report(0, 2, "fetching bulk snapshots")

	ratioRows, ratiosErr := s.bulkRatios(ctx)
	if ratiosErr != nil {
		s.log.Warn().Err(ratiosErr).Msg("Bulk ratios snapshot unavailable")
	}
	progress.Report(1, 2, "ratios snapshot done")

	metricRows, metricsErr := s.bulkKeyMetrics(ctx)
	if metricsErr != nil {
		s.log.Warn().Err(metricsErr).Msg("Bulk key-metrics snapshot unavailable")
	}
	progress.Report(2, 2, "key-metrics snapshot done")

	if ratiosErr != nil && metricsErr != nil {
		return nil, fmt.Errorf("both bulk snapshots failed: %w", ratiosErr)
	}

	fallback := make(map[string]*float64, len(metricRows))
	for _, row := range metricRows {
		if wanted[row.Symbol] {
			fallback[row.Symbol] = row.EVToEBITDATTM.Ptr()
		}
	}

	results := make(map[string]Ratios, len(symbols))
	for _, row := range ratioRows {
		if !wanted[row.Symbol] {
			continue
		}
		results[row.Symbol] = Ratios{
			PERatioTTM:          row.PERatioTTM.Ptr(),
			PriceToBookRatioTTM: row.PriceToBookRatioTTM.Ptr(),
			EVToEBITDATTM:       reconcileEVEBITDA(row.EnterpriseValueOverEBITDATTM.Ptr(), fallback[row.Symbol]),
		}
	}

	// Symbols only present in the key-metrics snapshot still get their
	// fallback EV/EBITDA.
	for symbol, ev := range fallback {
		if _, ok := results[symbol]; !ok {
			results[symbol] = Ratios{EVToEBITDATTM: ev}
		}
	}

	s.log.Info().
		Int("ratio_rows", len(ratioRows)).
		Int("metric_rows", len(metricRows)).
		Int("matched", len(results)).
		Msg("Bulk snapshots filtered to universe")

	return results, nil
}

// bulkRatios fetches the whole-universe ratios snapshot, cache-first.
func (s *BulkStrategy) bulkRatios(ctx context.Context) ([]fmp.BulkRatiosRow, error) {
	if s.cache != nil {
		if data, err := s.cache.GetIfFresh("fmp_ratios_bulk", "all"); err == nil && data != nil {
			var rows []fmp.BulkRatiosRow
			if err := json.Unmarshal(data, &rows); err == nil {
				return rows, nil
			}
		}
	}

	rows, err := s.client.BulkRatiosTTM(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Store("fmp_ratios_bulk", "all", rows, clientdata.TTLBulkSnapshot); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache bulk ratios snapshot")
		}
	}
	return rows, nil
}

// bulkKeyMetrics fetches the whole-universe key-metrics snapshot, cache-first.
func (s *BulkStrategy) bulkKeyMetrics(ctx context.Context) ([]fmp.BulkKeyMetricsRow, error) {
	if s.cache != nil {
		if data, err := s.cache.GetIfFresh("fmp_key_metrics", "all"); err == nil && data != nil {
			var rows []fmp.BulkKeyMetricsRow
			if err := json.Unmarshal(data, &rows); err == nil {
				return rows, nil
			}
		}
	}

	rows, err := s.client.BulkKeyMetricsTTM(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Store("fmp_key_metrics", "all", rows, clientdata.TTLBulkSnapshot); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache bulk key-metrics snapshot")
		}
	}
	return rows, nil
}
