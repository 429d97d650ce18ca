package fmp

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Float is an optional float64 that tolerates the provider's loose numeric
// encoding: numbers, numeric strings, empty strings and nulls all decode
// without error. Absent or non-numeric values are simply not Valid.
type Float struct {
	Value float64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Float) UnmarshalJSON(b []byte) error {
	f.Value = 0
	f.Valid = false

	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}

	// Numeric strings ("12.5") and empty strings ("") both appear in bulk
	// payloads.
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f.Value = v
		f.Valid = true
		return nil
	}

	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	f.Value = v
	f.Valid = true
	return nil
}

// MarshalJSON implements json.Marshaler so cached snapshots round-trip.
func (f Float) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Ptr returns the value as *float64, nil when absent.
func (f Float) Ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// ScreenerQuery holds the filter parameters for one company-screener request.
type ScreenerQuery struct {
	Exchange               string
	Country                string
	MarketCapMoreThan      float64
	VolumeMoreThan         int64
	Limit                  int
	IncludeAllShareClasses bool
}

// ScreenerRow is one equity returned by the company screener.
type ScreenerRow struct {
	Symbol            string  `json:"symbol"`
	CompanyName       string  `json:"companyName"`
	Sector            string  `json:"sector"`
	Industry          string  `json:"industry"`
	MarketCap         float64 `json:"marketCap"`
	Volume            int64   `json:"volume"`
	Price             Float   `json:"price"`
	ExchangeShortName string  `json:"exchangeShortName"`
	Country           string  `json:"country"`
}

// RatiosTTM is a per-symbol trailing-twelve-month ratio snapshot.
// Every ratio is optional: the provider omits values it cannot compute
// (e.g., P/E with negative earnings).
type RatiosTTM struct {
	Symbol                       string `json:"symbol"`
	PERatioTTM                   Float  `json:"peRatioTTM"`
	PriceToBookRatioTTM          Float  `json:"priceToBookRatioTTM"`
	EnterpriseValueOverEBITDATTM Float  `json:"enterpriseValueOverEBITDATTM"`
}

// BulkRatiosRow is one row of the whole-universe ratios snapshot.
// Its enterpriseValueOverEBITDATTM is the primary EV/EBITDA source.
type BulkRatiosRow struct {
	Symbol                       string `json:"symbol"`
	PERatioTTM                   Float  `json:"peRatioTTM"`
	PriceToBookRatioTTM          Float  `json:"priceToBookRatioTTM"`
	EnterpriseValueOverEBITDATTM Float  `json:"enterpriseValueOverEBITDATTM"`
}

// BulkKeyMetricsRow is one row of the whole-universe key-metrics snapshot.
// Its evToEBITDATTM is the fallback EV/EBITDA source.
type BulkKeyMetricsRow struct {
	Symbol        string `json:"symbol"`
	EVToEBITDATTM Float  `json:"evToEBITDATTM"`
}
