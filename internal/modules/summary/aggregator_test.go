package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/screener/internal/modules/universe"
)

func rec(symbol, sector, industry string, marketCap float64) universe.TickerRecord {
	return universe.TickerRecord{
		Symbol: symbol, Sector: sector, Industry: industry, MarketCap: marketCap,
	}
}

func TestParseGroupBy(t *testing.T) {
	g, err := ParseGroupBy("")
	require.NoError(t, err)
	assert.Equal(t, GroupBySector, g)

	g, err = ParseGroupBy("sector_industry")
	require.NoError(t, err)
	assert.Equal(t, GroupBySectorIndustry, g)

	_, err = ParseGroupBy("exchange")
	require.Error(t, err)
}

func TestAggregateBySector(t *testing.T) {
	rows := []universe.TickerRecord{
		rec("A", "Technology", "Software", 100),
		rec("B", "Technology", "Hardware", 300),
		rec("C", "Financials", "Banks", 50),
	}

	groups := Aggregate(rows, GroupBySector)
	require.Len(t, groups, 2)

	tech := groups[0]
	assert.Equal(t, "Technology", tech.Sector)
	assert.Empty(t, tech.Industry)
	assert.Equal(t, 2, tech.Count)
	assert.Equal(t, 400.0, tech.TotalMarketCap)
	assert.Equal(t, 200.0, tech.MeanMarketCap)
	assert.Equal(t, 200.0, tech.MedianMarketCap)

	fin := groups[1]
	assert.Equal(t, 1, fin.Count)
	assert.Equal(t, 50.0, fin.MedianMarketCap)
}

func TestAggregateBySectorIndustry(t *testing.T) {
	rows := []universe.TickerRecord{
		rec("A", "Technology", "Software", 100),
		rec("B", "Technology", "Hardware", 300),
	}

	groups := Aggregate(rows, GroupBySectorIndustry)
	require.Len(t, groups, 2)
	assert.Equal(t, "Software", groups[0].Industry)
	assert.Equal(t, "Hardware", groups[1].Industry)
}

func TestAggregateCountsDistinctSymbols(t *testing.T) {
	rows := []universe.TickerRecord{
		rec("A", "Technology", "Software", 100),
		rec("A", "Technology", "Software", 100), // duplicate symbol
	}

	groups := Aggregate(rows, GroupBySector)
	require.Len(t, groups, 1)
	assert.Equal(t, 1, groups[0].Count)
	assert.Equal(t, 100.0, groups[0].TotalMarketCap)
}

func TestAggregateTiesKeepFirstSeenOrder(t *testing.T) {
	rows := []universe.TickerRecord{
		rec("A", "Energy", "Oil", 10),
		rec("B", "Utilities", "Power", 20),
		rec("C", "Financials", "Banks", 5),
		rec("D", "Financials", "Banks", 5),
	}

	groups := Aggregate(rows, GroupBySector)
	require.Len(t, groups, 3)
	assert.Equal(t, "Financials", groups[0].Sector) // count 2 sorts first
	assert.Equal(t, "Energy", groups[1].Sector)     // tie at 1: first seen
	assert.Equal(t, "Utilities", groups[2].Sector)
}

func TestAggregateEmpty(t *testing.T) {
	groups := Aggregate(nil, GroupBySector)
	assert.Empty(t, groups)
}

func TestAggregateMedianOddGroup(t *testing.T) {
	rows := []universe.TickerRecord{
		rec("A", "Technology", "Software", 100),
		rec("B", "Technology", "Software", 900),
		rec("C", "Technology", "Software", 200),
	}

	groups := Aggregate(rows, GroupBySector)
	require.Len(t, groups, 1)
	assert.Equal(t, 200.0, groups[0].MedianMarketCap)
	assert.Equal(t, 400.0, groups[0].MeanMarketCap)
}
