package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/screener/internal/modules/universe"
	"github.com/aristath/screener/internal/modules/valuation"
)

func ptr(v float64) *float64 { return &v }

func techRow(symbol string, pe, pb, ev *float64) valuation.Row {
	return valuation.Row{
		TickerRecord: universe.TickerRecord{Symbol: symbol, Sector: "Technology", Industry: "Tech"},
		Ratios:       valuation.Ratios{PERatioTTM: pe, PriceToBookRatioTTM: pb, EVToEBITDATTM: ev},
	}
}

func TestFlagThresholdScenario(t *testing.T) {
	// Median of [8, 20, 9] is 9; threshold is 7.2. A at 8 is not 20% below.
	rows := []valuation.Row{
		techRow("A", ptr(8), nil, nil),
		techRow("B", ptr(20), nil, nil),
		techRow("C", ptr(9), nil, nil),
	}
	flagged := FlagUndervalued(rows)

	require.NotNil(t, flagged[0].PEIndustryMedian)
	assert.Equal(t, 9.0, *flagged[0].PEIndustryMedian)
	assert.False(t, flagged[0].UndervalPE)

	// With [5, 20, 9] the median is still 9 and A at 5 clears the bar.
	rows[0] = techRow("A", ptr(5), nil, nil)
	flagged = FlagUndervalued(rows)
	assert.True(t, flagged[0].UndervalPE)
	assert.False(t, flagged[1].UndervalPE)
	assert.False(t, flagged[2].UndervalPE)
}

func TestFlagRequiresAllPreconditions(t *testing.T) {
	// Missing value: flag is false, never an error
	rows := []valuation.Row{
		techRow("A", nil, nil, nil),
		techRow("B", ptr(10), nil, nil),
		techRow("C", ptr(12), nil, nil),
	}
	flagged := FlagUndervalued(rows)
	assert.False(t, flagged[0].UndervalPE)
	assert.Nil(t, flagged[0].PERatioTTM)
	require.NotNil(t, flagged[0].PEIndustryMedian) // median from B and C only

	// Negative median: flag is false even for a lower value
	rows = []valuation.Row{
		techRow("A", ptr(-10), nil, nil),
		techRow("B", ptr(-4), nil, nil),
		techRow("C", ptr(-6), nil, nil),
	}
	flagged = FlagUndervalued(rows)
	for _, f := range flagged {
		assert.False(t, f.UndervalPE)
	}
}

func TestIndustryWithNoDataHasNilMedian(t *testing.T) {
	rows := []valuation.Row{
		techRow("A", nil, nil, nil),
	}
	flagged := FlagUndervalued(rows)
	assert.Nil(t, flagged[0].PEIndustryMedian)
	assert.False(t, flagged[0].UndervalPE)
}

func TestMediansAreGroupedByIndustry(t *testing.T) {
	bankRow := valuation.Row{
		TickerRecord: universe.TickerRecord{Symbol: "BNK", Sector: "Financials", Industry: "Banks"},
		Ratios:       valuation.Ratios{PERatioTTM: ptr(6)},
	}
	rows := []valuation.Row{
		techRow("A", ptr(30), nil, nil),
		techRow("B", ptr(40), nil, nil),
		bankRow,
	}
	flagged := FlagUndervalued(rows)

	require.NotNil(t, flagged[0].PEIndustryMedian)
	assert.Equal(t, 35.0, *flagged[0].PEIndustryMedian) // even group: average of middles
	require.NotNil(t, flagged[2].PEIndustryMedian)
	assert.Equal(t, 6.0, *flagged[2].PEIndustryMedian)
}

func TestCompositeMarginOfSafety(t *testing.T) {
	// Build an industry where X is deeply discounted on all three ratios
	rows := []valuation.Row{
		techRow("X", ptr(2), ptr(0.5), ptr(1)),
		techRow("Y", ptr(10), ptr(3), ptr(8)),
		techRow("Z", ptr(12), ptr(4), ptr(9)),
	}
	flagged := FlagUndervalued(rows)

	x := flagged[0]
	assert.True(t, x.UndervalPE)
	assert.True(t, x.UndervalPB)
	assert.True(t, x.UndervalEVEBITDA)
	assert.Equal(t, 3, x.UndervalCount)
	assert.True(t, x.MarginOfSafetyOK)

	y := flagged[1]
	assert.Equal(t, 0, y.UndervalCount)
	assert.False(t, y.MarginOfSafetyOK)
}

func TestCompositeFlagAllNullRow(t *testing.T) {
	rows := []valuation.Row{techRow("A", nil, nil, nil)}
	flagged := FlagUndervalued(rows)

	assert.Equal(t, 0, flagged[0].UndervalCount)
	assert.False(t, flagged[0].MarginOfSafetyOK)
}

func TestCompositeFlagExactlyTwo(t *testing.T) {
	rows := []valuation.Row{
		techRow("X", ptr(2), ptr(0.5), ptr(100)),
		techRow("Y", ptr(10), ptr(3), ptr(8)),
		techRow("Z", ptr(12), ptr(4), ptr(9)),
	}
	flagged := FlagUndervalued(rows)

	x := flagged[0]
	assert.True(t, x.UndervalPE)
	assert.True(t, x.UndervalPB)
	assert.False(t, x.UndervalEVEBITDA)
	assert.Equal(t, 2, x.UndervalCount)
	assert.True(t, x.MarginOfSafetyOK)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 9.0, median([]float64{8, 20, 9}))
	assert.Equal(t, 15.0, median([]float64{10, 20}))
	assert.Equal(t, 7.0, median([]float64{7}))
}
