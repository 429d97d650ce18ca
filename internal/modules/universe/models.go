// Package universe builds the deduplicated set of ticker records produced by
// the multi-exchange screener stage.
package universe

import "strings"

// TickerRecord is one row per equity symbol in the screener universe.
// Records are created by the batch fetcher, enriched downstream, and never
// mutated after enrichment.
type TickerRecord struct {
	Symbol         string   `json:"symbol"`
	CompanyName    string   `json:"companyName"`
	Sector         string   `json:"sector"`
	Industry       string   `json:"industry"`
	MarketCap      float64  `json:"marketCap"`
	Volume         int64    `json:"volume"`
	Price          *float64 `json:"price,omitempty"`
	SourceExchange string   `json:"sourceExchange"`
}

// Warning records a contained per-exchange failure. Failed exchanges are
// excluded from the result but never abort sibling queries.
type Warning struct {
	Exchange string `json:"exchange"`
	Message  string `json:"message"`
}

// Universe is the deduplicated set of ticker records, one per symbol.
type Universe struct {
	Rows []TickerRecord `json:"rows"`
}

// Empty reports whether the universe contains no rows. An empty universe is
// the "no data" condition, distinct from an error.
func (u *Universe) Empty() bool {
	return u == nil || len(u.Rows) == 0
}

// Symbols returns the symbols in universe order.
func (u *Universe) Symbols() []string {
	symbols := make([]string, len(u.Rows))
	for i, row := range u.Rows {
		symbols[i] = row.Symbol
	}
	return symbols
}

// Clone returns a copy of the universe. Memoized snapshots are immutable, so
// downstream stages always operate on clones.
func (u *Universe) Clone() *Universe {
	rows := make([]TickerRecord, len(u.Rows))
	copy(rows, u.Rows)
	for i := range rows {
		if rows[i].Price != nil {
			p := *rows[i].Price
			rows[i].Price = &p
		}
	}
	return &Universe{Rows: rows}
}

// Query holds the screener parameters for one fetch across exchanges.
// The exchange list order is the canonical priority for deduplication.
type Query struct {
	Exchanges              []string
	Country                string
	MinMarketCap           float64
	MinVolume              int64
	Limit                  int
	IncludeAllShareClasses bool
}

// CacheKey returns the memo key for the full parameter tuple.
func (q Query) CacheKey() string {
	var b strings.Builder
	b.WriteString(strings.Join(q.Exchanges, ","))
	b.WriteByte('|')
	b.WriteString(q.Country)
	b.WriteByte('|')
	b.WriteString(formatFloat(q.MinMarketCap))
	b.WriteByte('|')
	b.WriteString(formatInt(q.MinVolume))
	b.WriteByte('|')
	b.WriteString(formatInt(int64(q.Limit)))
	b.WriteByte('|')
	if q.IncludeAllShareClasses {
		b.WriteString("all")
	} else {
		b.WriteString("primary")
	}
	return b.String()
}
