// Package summary aggregates the screener universe into per-group market-cap
// statistics for quick composition overviews.
package summary

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/aristath/screener/internal/modules/universe"
)

// GroupBy selects the aggregation key.
type GroupBy string

const (
	GroupBySector         GroupBy = "sector"
	GroupBySectorIndustry GroupBy = "sector_industry"
)

// ParseGroupBy validates a user-supplied grouping name. The empty string
// defaults to sector.
func ParseGroupBy(s string) (GroupBy, error) {
	switch s {
	case "", string(GroupBySector):
		return GroupBySector, nil
	case string(GroupBySectorIndustry):
		return GroupBySectorIndustry, nil
	default:
		return "", fmt.Errorf("unknown group_by %q", s)
	}
}

// Group is one aggregated row of the summary.
type Group struct {
	Sector   string `json:"sector"`
	Industry string `json:"industry,omitempty"`

	Count           int     `json:"count"`
	TotalMarketCap  float64 `json:"totalMarketCap"`
	MeanMarketCap   float64 `json:"meanMarketCap"`
	MedianMarketCap float64 `json:"medianMarketCap"`
}

// Aggregate groups the universe by sector (or sector+industry) and computes
// the distinct-symbol count plus total, mean, and median market cap per
// group. Groups are sorted by count descending; ties keep the order the
// groups were first seen in the input.
func Aggregate(rows []universe.TickerRecord, groupBy GroupBy) []Group {
	type bucket struct {
		group   Group
		symbols map[string]bool
		caps    []float64
	}

	var order []string
	buckets := make(map[string]*bucket)

	for _, row := range rows {
		key := row.Sector
		if groupBy == GroupBySectorIndustry {
			key = row.Sector + "\x00" + row.Industry
		}

		b, ok := buckets[key]
		if !ok {
			b = &bucket{
				group:   Group{Sector: row.Sector},
				symbols: make(map[string]bool),
			}
			if groupBy == GroupBySectorIndustry {
				b.group.Industry = row.Industry
			}
			buckets[key] = b
			order = append(order, key)
		}

		if b.symbols[row.Symbol] {
			continue
		}
		b.symbols[row.Symbol] = true
		b.caps = append(b.caps, row.MarketCap)
	}

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		g := b.group
		g.Count = len(b.symbols)
		for _, c := range b.caps {
			g.TotalMarketCap += c
		}
		g.MeanMarketCap = stat.Mean(b.caps, nil)
		g.MedianMarketCap = median(b.caps)
		groups = append(groups, g)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Count > groups[j].Count
	})

	return groups
}

// median averages the two middle values for even-sized inputs. values must be
// non-empty.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
