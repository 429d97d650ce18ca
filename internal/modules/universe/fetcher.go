package universe

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/clientdata"
	"github.com/aristath/screener/internal/clients/fmp"
	"github.com/aristath/screener/internal/work"
)

// Default width cap for concurrent exchange queries. The effective pool
// width is min(cap, number of exchanges).
const defaultMaxWorkers = 4

// ScreenerClient is the part of the FMP client the fetcher needs.
type ScreenerClient interface {
	Screener(ctx context.Context, q fmp.ScreenerQuery) ([]fmp.ScreenerRow, error)
}

// BatchFetcher issues one screener query per exchange concurrently, tags rows
// with their source exchange, and deduplicates by symbol.
type BatchFetcher struct {
	client     ScreenerClient
	cache      *clientdata.Repository // optional - nil disables the memo
	maxWorkers int
	memoTTL    time.Duration
	log        zerolog.Logger
}

// NewBatchFetcher creates a batch fetcher. cache may be nil.
func NewBatchFetcher(client ScreenerClient, cache *clientdata.Repository, log zerolog.Logger) *BatchFetcher {
	return &BatchFetcher{
		client:     client,
		cache:      cache,
		maxWorkers: defaultMaxWorkers,
		memoTTL:    clientdata.TTLScreener,
		log:        log.With().Str("component", "universe_fetcher").Logger(),
	}
}

// WithMaxWorkers overrides the concurrent exchange-query cap (minimum 1).
func (f *BatchFetcher) WithMaxWorkers(n int) *BatchFetcher {
	if n >= 1 {
		f.maxWorkers = n
	}
	return f
}

// WithMemoTTL overrides how long assembled universes stay memoized.
func (f *BatchFetcher) WithMemoTTL(ttl time.Duration) *BatchFetcher {
	f.memoTTL = ttl
	return f
}

// FetchResult is the outcome of one batch fetch.
type FetchResult struct {
	Universe  *Universe `json:"universe"`
	Warnings  []Warning `json:"warnings"`
	FromCache bool      `json:"from_cache"`
}

// Fetch runs the screener across all exchanges in q. Failed exchange queries
// are contained as warnings; only the warnings survive, never an error. An
// all-failed run yields an empty universe - the caller surfaces that as the
// distinct "no data" condition.
//
// Results are memoized keyed on the full parameter tuple. Memoized snapshots
// are immutable; callers always receive a clone.
func (f *BatchFetcher) Fetch(ctx context.Context, q Query) (*FetchResult, error) {
	cacheKey := q.CacheKey()

	if cached := f.fromCache(cacheKey); cached != nil {
		f.log.Debug().Str("key", cacheKey).Int("rows", len(cached.Rows)).Msg("Screener memo hit")
		return &FetchResult{Universe: cached.Clone(), FromCache: true}, nil
	}

	perExchange := make([][]fmp.ScreenerRow, len(q.Exchanges))

	pool := work.NewPool(min(f.maxWorkers, len(q.Exchanges)))
	errs := pool.Run(ctx, len(q.Exchanges), nil, func(ctx context.Context, idx int) error {
		rows, err := f.client.Screener(ctx, fmp.ScreenerQuery{
			Exchange:               q.Exchanges[idx],
			Country:                q.Country,
			MarketCapMoreThan:      q.MinMarketCap,
			VolumeMoreThan:         q.MinVolume,
			Limit:                  q.Limit,
			IncludeAllShareClasses: q.IncludeAllShareClasses,
		})
		if err != nil {
			return err
		}
		perExchange[idx] = rows
		return nil
	})

	var warnings []Warning
	for i, err := range errs {
		if err != nil {
			f.log.Warn().Err(err).Str("exchange", q.Exchanges[i]).Msg("Exchange query failed, excluding from result")
			warnings = append(warnings, Warning{Exchange: q.Exchanges[i], Message: err.Error()})
		}
	}

	// Deduplicate by symbol with a deterministic tie-break: the configured
	// exchange order is the canonical priority, rows keep response order
	// within an exchange, and the first occurrence wins. Completion order of
	// the concurrent queries never matters.
	universe := &Universe{}
	seen := make(map[string]bool)
	for i, exchange := range q.Exchanges {
		for _, row := range perExchange[i] {
			if row.Symbol == "" || seen[row.Symbol] {
				continue
			}
			seen[row.Symbol] = true
			universe.Rows = append(universe.Rows, TickerRecord{
				Symbol:         row.Symbol,
				CompanyName:    row.CompanyName,
				Sector:         row.Sector,
				Industry:       row.Industry,
				MarketCap:      row.MarketCap,
				Volume:         row.Volume,
				Price:          row.Price.Ptr(),
				SourceExchange: exchange,
			})
		}
	}

	f.log.Info().
		Int("exchanges", len(q.Exchanges)).
		Int("failed", len(warnings)).
		Int("symbols", len(universe.Rows)).
		Msg("Universe assembled")

	if !universe.Empty() {
		f.toCache(cacheKey, universe)
	}

	return &FetchResult{Universe: universe.Clone(), Warnings: warnings}, nil
}

// fromCache returns the memoized universe for a key, or nil.
func (f *BatchFetcher) fromCache(key string) *Universe {
	if f.cache == nil {
		return nil
	}

	data, err := f.cache.GetIfFresh("fmp_screener", key)
	if err != nil || data == nil {
		return nil
	}

	var u Universe
	if err := json.Unmarshal(data, &u); err != nil {
		f.log.Warn().Err(err).Msg("Failed to unmarshal memoized universe")
		return nil
	}
	return &u
}

// toCache memoizes a fetched universe.
func (f *BatchFetcher) toCache(key string, u *Universe) {
	if f.cache == nil {
		return
	}
	if err := f.cache.Store("fmp_screener", key, u, f.memoTTL); err != nil {
		f.log.Warn().Err(err).Msg("Failed to memoize universe")
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
