package valuation

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/clientdata"
	"github.com/aristath/screener/internal/clients/fmp"
	"github.com/aristath/screener/internal/work"
)

// SymbolRatiosClient is the part of the FMP client the per-symbol strategy needs.
type SymbolRatiosClient interface {
	RatiosTTM(ctx context.Context, symbol string) (*fmp.RatiosTTM, error)
}

// PerSymbolConfig tunes the per-symbol strategy.
type PerSymbolConfig struct {
	Workers       int           // Bounded pool width (default 8)
	ThrottleEvery int           // Sleep after every N lookups (0 disables)
	ThrottleDelay time.Duration
}

// PerSymbolStrategy fetches one ratio snapshot per distinct symbol on a
// bounded worker pool. Missing or erroring symbols contribute no entry,
// leaving the row's ratios blank after the join.
type PerSymbolStrategy struct {
	client SymbolRatiosClient
	cache  *clientdata.Repository // optional
	cfg    PerSymbolConfig
	log    zerolog.Logger
}

// NewPerSymbolStrategy creates the per-symbol strategy. cache may be nil.
func NewPerSymbolStrategy(client SymbolRatiosClient, cache *clientdata.Repository, cfg PerSymbolConfig, log zerolog.Logger) *PerSymbolStrategy {
	if cfg.Workers < 1 {
		cfg.Workers = 8
	}
	return &PerSymbolStrategy{
		client: client,
		cache:  cache,
		cfg:    cfg,
		log:    log.With().Str("strategy", "per_symbol").Logger(),
	}
}

// Name implements Strategy.
func (s *PerSymbolStrategy) Name() StrategyName {
	return StrategyPerSymbol
}

// Fetch implements Strategy. Per-symbol failures are contained: the symbol
// is logged and skipped, never failing the batch.
func (s *PerSymbolStrategy) Fetch(ctx context.Context, symbols []string, progress *work.ProgressReporter) (map[string]Ratios, error) {
	results := make(map[string]Ratios, len(symbols))
	var mu sync.Mutex

	pool := work.NewPool(s.cfg.Workers).WithThrottle(s.cfg.ThrottleEvery, s.cfg.ThrottleDelay)
	errs := pool.Run(ctx, len(symbols), progress, func(ctx context.Context, idx int) error {
		symbol := symbols[idx]

		snapshot, err := s.lookup(ctx, symbol)
		if err != nil {
			return err
		}
		if snapshot == nil {
			return nil
		}

		mu.Lock()
		results[symbol] = Ratios{
			PERatioTTM:          snapshot.PERatioTTM.Ptr(),
			PriceToBookRatioTTM: snapshot.PriceToBookRatioTTM.Ptr(),
			EVToEBITDATTM:       snapshot.EnterpriseValueOverEBITDATTM.Ptr(),
		}
		mu.Unlock()
		return nil
	})

	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			s.log.Warn().Err(err).Str("symbol", symbols[i]).Msg("Ratio lookup failed, leaving ratios blank")
		}
	}
	if failed > 0 {
		s.log.Warn().Int("failed", failed).Int("total", len(symbols)).Msg("Some ratio lookups failed")
	}

	return results, nil
}

// lookup fetches one symbol's snapshot, cache-first.
func (s *PerSymbolStrategy) lookup(ctx context.Context, symbol string) (*fmp.RatiosTTM, error) {
	if s.cache != nil {
		if data, err := s.cache.GetIfFresh("fmp_ratios", symbol); err == nil && data != nil {
			var cached fmp.RatiosTTM
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	snapshot, err := s.client.RatiosTTM(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, nil
	}

	if s.cache != nil {
		if err := s.cache.Store("fmp_ratios", symbol, snapshot, clientdata.TTLRatios); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache ratio snapshot")
		}
	}

	return snapshot, nil
}
