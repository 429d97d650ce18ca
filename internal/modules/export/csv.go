// Package export renders screener results and summaries as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/aristath/screener/internal/modules/analysis"
	"github.com/aristath/screener/internal/modules/summary"
)

// screenHeader is the stable column order for screen exports. Columns never
// reorder between runs so downstream spreadsheets keep working.
var screenHeader = []string{
	"symbol",
	"companyName",
	"sector",
	"industry",
	"marketCap",
	"volume",
	"price",
	"sourceExchange",
	"peRatioTTM",
	"priceToBookRatioTTM",
	"enterpriseValueOverEBITDATTM",
	"peRatioTTM_industry_median",
	"priceToBookRatioTTM_industry_median",
	"enterpriseValueOverEBITDATTM_industry_median",
	"underval_pe",
	"underval_pb",
	"underval_evebitda",
	"underval_count",
	"margin_of_safety_ok",
}

// WriteScreenCSV writes the flagged universe as CSV, one row per symbol.
// Missing numeric values render as empty cells.
func WriteScreenCSV(w io.Writer, rows []analysis.Flagged) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(screenHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.Symbol,
			row.CompanyName,
			row.Sector,
			row.Industry,
			formatFloat(row.MarketCap),
			strconv.FormatInt(row.Volume, 10),
			formatOptional(row.Price),
			row.SourceExchange,
			formatOptional(row.PERatioTTM),
			formatOptional(row.PriceToBookRatioTTM),
			formatOptional(row.EVToEBITDATTM),
			formatOptional(row.PEIndustryMedian),
			formatOptional(row.PBIndustryMedian),
			formatOptional(row.EVIndustryMedian),
			strconv.FormatBool(row.UndervalPE),
			strconv.FormatBool(row.UndervalPB),
			strconv.FormatBool(row.UndervalEVEBITDA),
			strconv.Itoa(row.UndervalCount),
			strconv.FormatBool(row.MarginOfSafetyOK),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row for %s: %w", row.Symbol, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// summaryHeader is the stable column order for summary exports. The industry
// column is present for both groupings and empty for sector-only summaries.
var summaryHeader = []string{
	"sector",
	"industry",
	"count",
	"totalMarketCap",
	"meanMarketCap",
	"medianMarketCap",
}

// WriteSummaryCSV writes the aggregated summary as CSV, one row per group.
func WriteSummaryCSV(w io.Writer, groups []summary.Group) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(summaryHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, g := range groups {
		record := []string{
			g.Sector,
			g.Industry,
			strconv.Itoa(g.Count),
			formatFloat(g.TotalMarketCap),
			formatFloat(g.MeanMarketCap),
			formatFloat(g.MedianMarketCap),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row for %s: %w", g.Sector, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
