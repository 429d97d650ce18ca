// Package analysis computes industry-median benchmarks and undervaluation
// flags over the enriched universe. Pure, stateless transforms; no I/O.
package analysis

import (
	"sort"

	"github.com/aristath/screener/internal/modules/valuation"
)

// DiscountThreshold is the peer-discount cutoff: a ratio flags as undervalued
// when it is at least 20% below the industry median.
const DiscountThreshold = 0.8

// Flags required for the composite margin-of-safety flag.
const minFlagsForMarginOfSafety = 2

// Flagged is an enriched row with its industry benchmarks and flags.
type Flagged struct {
	valuation.Row

	PEIndustryMedian *float64 `json:"peRatioTTM_industry_median"`
	PBIndustryMedian *float64 `json:"priceToBookRatioTTM_industry_median"`
	EVIndustryMedian *float64 `json:"enterpriseValueOverEBITDATTM_industry_median"`

	UndervalPE       bool `json:"underval_pe"`
	UndervalPB       bool `json:"underval_pb"`
	UndervalEVEBITDA bool `json:"underval_evebitda"`
	UndervalCount    int  `json:"underval_count"`
	MarginOfSafetyOK bool `json:"margin_of_safety_ok"`
}

// FlagUndervalued groups the enriched universe by industry, computes the
// median of each ratio ignoring missing values, broadcasts the medians back
// onto every row, and evaluates the per-ratio and composite flags.
// Medians are recomputed from the full current universe on every call, never
// cached across universes.
func FlagUndervalued(rows []valuation.Row) []Flagged {
	peMedians := industryMedians(rows, func(r valuation.Row) *float64 { return r.PERatioTTM })
	pbMedians := industryMedians(rows, func(r valuation.Row) *float64 { return r.PriceToBookRatioTTM })
	evMedians := industryMedians(rows, func(r valuation.Row) *float64 { return r.EVToEBITDATTM })

	flagged := make([]Flagged, len(rows))
	for i, row := range rows {
		f := Flagged{
			Row:              row,
			PEIndustryMedian: peMedians[row.Industry],
			PBIndustryMedian: pbMedians[row.Industry],
			EVIndustryMedian: evMedians[row.Industry],
		}

		f.UndervalPE = undervalFlag(row.PERatioTTM, f.PEIndustryMedian)
		f.UndervalPB = undervalFlag(row.PriceToBookRatioTTM, f.PBIndustryMedian)
		f.UndervalEVEBITDA = undervalFlag(row.EVToEBITDATTM, f.EVIndustryMedian)

		for _, set := range []bool{f.UndervalPE, f.UndervalPB, f.UndervalEVEBITDA} {
			if set {
				f.UndervalCount++
			}
		}
		f.MarginOfSafetyOK = f.UndervalCount >= minFlagsForMarginOfSafety

		flagged[i] = f
	}

	return flagged
}

// undervalFlag is true iff both values are present, the median is strictly
// positive, and the value trades at or below the discount threshold.
// Missing data never raises; it just means false.
func undervalFlag(value, median *float64) bool {
	if value == nil || median == nil || *median <= 0 {
		return false
	}
	return *value <= DiscountThreshold**median
}

// industryMedians computes the per-industry median of one ratio column,
// ignoring missing values. Industries with no data have no entry (nil
// median).
func industryMedians(rows []valuation.Row, ratio func(valuation.Row) *float64) map[string]*float64 {
	grouped := make(map[string][]float64)
	for _, row := range rows {
		if v := ratio(row); v != nil {
			grouped[row.Industry] = append(grouped[row.Industry], *v)
		}
	}

	medians := make(map[string]*float64, len(grouped))
	for industry, values := range grouped {
		m := median(values)
		medians[industry] = &m
	}
	return medians
}

// median returns the middle value of values, averaging the two middle values
// for even-sized inputs. values must be non-empty.
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
