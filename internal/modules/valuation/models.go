// Package valuation enriches the screener universe with TTM valuation ratios
// fetched per symbol or in bulk.
package valuation

import (
	"github.com/aristath/screener/internal/modules/universe"
)

// Ratios holds the canonical valuation columns. Every field is optional:
// a nil pointer means the provider had no value for that symbol.
type Ratios struct {
	PERatioTTM          *float64 `json:"peRatioTTM"`
	PriceToBookRatioTTM *float64 `json:"priceToBookRatioTTM"`
	EVToEBITDATTM       *float64 `json:"enterpriseValueOverEBITDATTM"`
}

// Row is a ticker record joined with its valuation ratios.
type Row struct {
	universe.TickerRecord
	Ratios
}

// StrategyName identifies an enrichment strategy.
type StrategyName string

// Supported strategies.
const (
	StrategyPerSymbol StrategyName = "per_symbol"
	StrategyBulk      StrategyName = "bulk"
)
