package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/screener/internal/events"
	"github.com/aristath/screener/internal/modules/summary"
	"github.com/aristath/screener/internal/modules/universe"
	"github.com/aristath/screener/internal/modules/valuation"
	"github.com/aristath/screener/internal/work"
)

type fakeFetcher struct {
	result *universe.FetchResult
	err    error
}

func (f *fakeFetcher) Fetch(ctx context.Context, q universe.Query) (*universe.FetchResult, error) {
	return f.result, f.err
}

type fakeEnricher struct {
	rows []valuation.Row
	err  error
}

func (f *fakeEnricher) Enrich(ctx context.Context, u *universe.Universe, progress *work.ProgressReporter) ([]valuation.Row, error) {
	return f.rows, f.err
}

type eventRecorder struct {
	mu     sync.Mutex
	events []*events.Event
}

func (r *eventRecorder) record(e *events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *eventRecorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]events.EventType, len(r.events))
	for i, e := range r.events {
		types[i] = e.Type
	}
	return types
}

func ptr(v float64) *float64 { return &v }

func techUniverse(symbols ...string) *universe.Universe {
	u := &universe.Universe{}
	for _, sym := range symbols {
		u.Rows = append(u.Rows, universe.TickerRecord{
			Symbol: sym, Sector: "Technology", Industry: "Software", SourceExchange: "NYSE",
		})
	}
	return u
}

func newTestService(fetcher *fakeFetcher, enricher *fakeEnricher, bus *events.Bus) *Service {
	return NewService(fetcher, enricher, valuation.StrategyBulk, bus, zerolog.Nop())
}

func TestScreenHappyPath(t *testing.T) {
	u := techUniverse("AAA", "BBB", "CCC")
	enriched := []valuation.Row{
		{TickerRecord: u.Rows[0], Ratios: valuation.Ratios{PERatioTTM: ptr(2), PriceToBookRatioTTM: ptr(0.5)}},
		{TickerRecord: u.Rows[1], Ratios: valuation.Ratios{PERatioTTM: ptr(10), PriceToBookRatioTTM: ptr(3)}},
		{TickerRecord: u.Rows[2], Ratios: valuation.Ratios{PERatioTTM: ptr(12), PriceToBookRatioTTM: ptr(4)}},
	}

	bus := events.NewBus()
	recorder := &eventRecorder{}
	bus.Subscribe(recorder.record)

	svc := newTestService(
		&fakeFetcher{result: &universe.FetchResult{Universe: u}},
		&fakeEnricher{rows: enriched},
		bus,
	)

	result, err := svc.Screen(context.Background(), universe.Query{Exchanges: []string{"NYSE"}})
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.False(t, result.NoData)
	require.Len(t, result.Rows, 3)
	assert.True(t, result.Rows[0].MarginOfSafetyOK) // AAA discounted on PE and PB
	assert.False(t, result.Rows[1].MarginOfSafetyOK)

	assert.Equal(t, []events.EventType{events.RunStarted, events.ScreenFetched, events.RunCompleted}, recorder.types())
}

func TestScreenRunIDsAreUnique(t *testing.T) {
	svc := newTestService(
		&fakeFetcher{result: &universe.FetchResult{Universe: &universe.Universe{}}},
		&fakeEnricher{},
		nil,
	)

	a, err := svc.Screen(context.Background(), universe.Query{})
	require.NoError(t, err)
	b, err := svc.Screen(context.Background(), universe.Query{})
	require.NoError(t, err)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestScreenEmptyUniverseIsNoDataNotError(t *testing.T) {
	bus := events.NewBus()
	recorder := &eventRecorder{}
	bus.Subscribe(recorder.record)

	svc := newTestService(
		&fakeFetcher{result: &universe.FetchResult{
			Universe: &universe.Universe{},
			Warnings: []universe.Warning{{Exchange: "NYSE", Message: "upstream 500"}},
		}},
		&fakeEnricher{err: errors.New("must not be called")},
		bus,
	)

	result, err := svc.Screen(context.Background(), universe.Query{Exchanges: []string{"NYSE"}})
	require.NoError(t, err)

	assert.True(t, result.NoData)
	assert.Empty(t, result.Rows)
	assert.Len(t, result.Warnings, 1)
	assert.Equal(t, []events.EventType{events.RunStarted, events.ScreenFetched, events.RunCompleted}, recorder.types())
}

func TestScreenFetchFailureEmitsRunFailed(t *testing.T) {
	bus := events.NewBus()
	recorder := &eventRecorder{}
	bus.Subscribe(recorder.record)

	svc := newTestService(&fakeFetcher{err: errors.New("network down")}, &fakeEnricher{}, bus)

	_, err := svc.Screen(context.Background(), universe.Query{})
	require.Error(t, err)

	types := recorder.types()
	require.Len(t, types, 2)
	assert.Equal(t, events.RunFailed, types[1])
}

func TestScreenEnrichmentFailureEmitsRunFailed(t *testing.T) {
	bus := events.NewBus()
	recorder := &eventRecorder{}
	bus.Subscribe(recorder.record)

	svc := newTestService(
		&fakeFetcher{result: &universe.FetchResult{Universe: techUniverse("AAA")}},
		&fakeEnricher{err: errors.New("both bulk snapshots failed")},
		bus,
	)

	_, err := svc.Screen(context.Background(), universe.Query{})
	require.Error(t, err)

	types := recorder.types()
	assert.Equal(t, events.RunFailed, types[len(types)-1])
}

func TestBusEmitterForwardsProgress(t *testing.T) {
	bus := events.NewBus()
	recorder := &eventRecorder{}
	bus.Subscribe(recorder.record)

	emitter := &busEmitter{bus: bus, runID: "run-1"}
	emitter.Emit(work.EventJobProgress, work.ProgressEvent{Current: 3, Total: 10, Message: "enriching"})
	emitter.Emit(work.EventJobProgress, "not a progress event")

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.Len(t, recorder.events, 1)
	assert.Equal(t, events.EnrichmentProgress, recorder.events[0].Type)

	data, ok := recorder.events[0].Data.(*events.EnrichmentProgressData)
	require.True(t, ok)
	assert.Equal(t, "run-1", data.RunID)
	assert.Equal(t, 3, data.Current)
	assert.Equal(t, 10, data.Total)
}

func TestSummarize(t *testing.T) {
	u := &universe.Universe{Rows: []universe.TickerRecord{
		{Symbol: "A", Sector: "Technology", Industry: "Software", MarketCap: 100},
		{Symbol: "B", Sector: "Technology", Industry: "Hardware", MarketCap: 300},
		{Symbol: "C", Sector: "Financials", Industry: "Banks", MarketCap: 50},
	}}

	svc := newTestService(&fakeFetcher{result: &universe.FetchResult{Universe: u}}, &fakeEnricher{}, nil)

	groups, warnings, err := svc.Summarize(context.Background(), universe.Query{}, summary.GroupBySector)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, groups, 2)
	assert.Equal(t, "Technology", groups[0].Sector)
	assert.Equal(t, 2, groups[0].Count)
}
