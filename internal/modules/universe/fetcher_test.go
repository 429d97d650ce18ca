package universe

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/screener/internal/clientdata"
	"github.com/aristath/screener/internal/clients/fmp"
	"github.com/aristath/screener/internal/database"
)

type fakeScreener struct {
	rows  map[string][]fmp.ScreenerRow
	fail  map[string]error
	calls int64
}

func (f *fakeScreener) Screener(ctx context.Context, q fmp.ScreenerQuery) ([]fmp.ScreenerRow, error) {
	atomic.AddInt64(&f.calls, 1)
	if err, ok := f.fail[q.Exchange]; ok {
		return nil, err
	}
	return f.rows[q.Exchange], nil
}

func row(symbol, sector, industry string, marketCap float64) fmp.ScreenerRow {
	return fmp.ScreenerRow{Symbol: symbol, CompanyName: symbol + " Inc.", Sector: sector, Industry: industry, MarketCap: marketCap, Volume: 1_000_000}
}

func testCache(t *testing.T) *clientdata.Repository {
	t.Helper()
	db, err := database.New(database.Config{
		Path: "file:" + t.Name() + "?mode=memory&cache=shared",
		Name: "client_data_test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, clientdata.EnsureSchema(db.Conn()))
	return clientdata.NewRepository(db.Conn())
}

func defaultQuery() Query {
	return Query{
		Exchanges:    []string{"NYSE", "NASDAQ"},
		Country:      "US",
		MinMarketCap: 2e9,
		MinVolume:    500_000,
		Limit:        1000,
	}
}

func TestFetchDeduplicatesDeterministically(t *testing.T) {
	client := &fakeScreener{rows: map[string][]fmp.ScreenerRow{
		"NYSE":   {row("AAA", "Tech", "Software", 5e9), row("BBB", "Tech", "Software", 4e9)},
		"NASDAQ": {row("AAA", "Tech", "Software", 5e9), row("CCC", "Tech", "Hardware", 3e9)},
	}}
	fetcher := NewBatchFetcher(client, nil, zerolog.Nop())

	result, err := fetcher.Fetch(context.Background(), defaultQuery())
	require.NoError(t, err)

	require.Len(t, result.Universe.Rows, 3)
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, result.Universe.Symbols())

	// AAA appears on both exchanges; the configured exchange order wins,
	// never concurrent completion order.
	assert.Equal(t, "NYSE", result.Universe.Rows[0].SourceExchange)
	assert.Equal(t, "NASDAQ", result.Universe.Rows[2].SourceExchange)
}

func TestFetchContainsPartialFailure(t *testing.T) {
	client := &fakeScreener{
		rows: map[string][]fmp.ScreenerRow{"NYSE": {row("AAA", "Tech", "Software", 5e9)}},
		fail: map[string]error{"NASDAQ": errors.New("upstream 500"), "AMEX": errors.New("timeout")},
	}
	fetcher := NewBatchFetcher(client, nil, zerolog.Nop())

	q := defaultQuery()
	q.Exchanges = []string{"NYSE", "NASDAQ", "AMEX"}

	result, err := fetcher.Fetch(context.Background(), q)
	require.NoError(t, err)

	assert.Len(t, result.Universe.Rows, 1)
	assert.Equal(t, "NYSE", result.Universe.Rows[0].SourceExchange)
	require.Len(t, result.Warnings, 2)
	assert.Equal(t, "NASDAQ", result.Warnings[0].Exchange)
	assert.Equal(t, "AMEX", result.Warnings[1].Exchange)
}

func TestFetchAllExchangesFailedIsNoDataNotError(t *testing.T) {
	client := &fakeScreener{fail: map[string]error{
		"NYSE":   errors.New("boom"),
		"NASDAQ": errors.New("boom"),
	}}
	fetcher := NewBatchFetcher(client, nil, zerolog.Nop())

	result, err := fetcher.Fetch(context.Background(), defaultQuery())
	require.NoError(t, err)

	assert.True(t, result.Universe.Empty())
	assert.Len(t, result.Warnings, 2)
}

func TestFetchMemoizesByParameterTuple(t *testing.T) {
	client := &fakeScreener{rows: map[string][]fmp.ScreenerRow{
		"NYSE":   {row("AAA", "Tech", "Software", 5e9)},
		"NASDAQ": {row("CCC", "Tech", "Hardware", 3e9)},
	}}
	fetcher := NewBatchFetcher(client, testCache(t), zerolog.Nop())

	first, err := fetcher.Fetch(context.Background(), defaultQuery())
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	callsAfterFirst := atomic.LoadInt64(&client.calls)

	second, err := fetcher.Fetch(context.Background(), defaultQuery())
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Universe.Symbols(), second.Universe.Symbols())
	assert.Equal(t, callsAfterFirst, atomic.LoadInt64(&client.calls))

	// Changing any parameter misses the memo
	q := defaultQuery()
	q.MinMarketCap = 1e9
	third, err := fetcher.Fetch(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, third.FromCache)
}

func TestMemoizedSnapshotsAreImmutable(t *testing.T) {
	client := &fakeScreener{rows: map[string][]fmp.ScreenerRow{
		"NYSE":   {row("AAA", "Tech", "Software", 5e9)},
		"NASDAQ": nil,
	}}
	fetcher := NewBatchFetcher(client, testCache(t), zerolog.Nop())

	first, err := fetcher.Fetch(context.Background(), defaultQuery())
	require.NoError(t, err)

	// Downstream enrichment mutates its copy in place
	first.Universe.Rows[0].Industry = "MUTATED"

	second, err := fetcher.Fetch(context.Background(), defaultQuery())
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, "Software", second.Universe.Rows[0].Industry)
}

func TestFetchSkipsRowsWithoutSymbol(t *testing.T) {
	client := &fakeScreener{rows: map[string][]fmp.ScreenerRow{
		"NYSE":   {{CompanyName: "Mystery Corp."}, row("AAA", "Tech", "Software", 5e9)},
		"NASDAQ": nil,
	}}
	fetcher := NewBatchFetcher(client, nil, zerolog.Nop())

	result, err := fetcher.Fetch(context.Background(), defaultQuery())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA"}, result.Universe.Symbols())
}

func TestWithMaxWorkersBoundsConcurrency(t *testing.T) {
	var inFlight, peak int64
	client := &trackingScreener{inFlight: &inFlight, peak: &peak}
	fetcher := NewBatchFetcher(client, nil, zerolog.Nop()).WithMaxWorkers(1)

	q := defaultQuery()
	q.Exchanges = []string{"NYSE", "NASDAQ", "AMEX", "TSX"}

	_, err := fetcher.Fetch(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int64(1), atomic.LoadInt64(&peak))
}

func TestWithMemoTTLControlsExpiry(t *testing.T) {
	client := &fakeScreener{rows: map[string][]fmp.ScreenerRow{
		"NYSE":   {row("AAA", "Tech", "Software", 5e9)},
		"NASDAQ": nil,
	}}
	// An already-expired TTL means every fetch misses the memo
	fetcher := NewBatchFetcher(client, testCache(t), zerolog.Nop()).WithMemoTTL(-time.Second)

	first, err := fetcher.Fetch(context.Background(), defaultQuery())
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := fetcher.Fetch(context.Background(), defaultQuery())
	require.NoError(t, err)
	assert.False(t, second.FromCache)
	assert.Equal(t, int64(4), atomic.LoadInt64(&client.calls)) // 2 exchanges x 2 fetches
}

type trackingScreener struct {
	inFlight *int64
	peak     *int64
}

func (s *trackingScreener) Screener(ctx context.Context, q fmp.ScreenerQuery) ([]fmp.ScreenerRow, error) {
	n := atomic.AddInt64(s.inFlight, 1)
	defer atomic.AddInt64(s.inFlight, -1)

	for {
		old := atomic.LoadInt64(s.peak)
		if n <= old || atomic.CompareAndSwapInt64(s.peak, old, n) {
			break
		}
	}

	time.Sleep(5 * time.Millisecond)
	return []fmp.ScreenerRow{row(q.Exchange+"-SYM", "Tech", "Software", 5e9)}, nil
}

func TestCacheKeyEncodesAllParameters(t *testing.T) {
	base := defaultQuery()

	variants := []Query{}
	q := base
	q.Exchanges = []string{"NASDAQ", "NYSE"} // order matters: it is the dedup priority
	variants = append(variants, q)
	q = base
	q.Country = "DE"
	variants = append(variants, q)
	q = base
	q.MinVolume = 1
	variants = append(variants, q)
	q = base
	q.Limit = 50
	variants = append(variants, q)
	q = base
	q.IncludeAllShareClasses = true
	variants = append(variants, q)

	for i, v := range variants {
		assert.NotEqual(t, base.CacheKey(), v.CacheKey(), "variant %d", i)
	}
}
