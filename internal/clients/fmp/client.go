// Package fmp provides a client for the Financial Modeling Prep REST API.
// It covers the company screener and the TTM valuation-ratio endpoints, both
// per-symbol and bulk.
package fmp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/retry"
)

const defaultBaseURL = "https://financialmodelingprep.com/stable"

// Config holds client tuning.
type Config struct {
	BaseURL string        // Defaults to the FMP stable API
	Timeout time.Duration // Per-request timeout
	Retry   retry.Config
}

// Client is the FMP API client. One instance is shared by a pipeline run;
// the underlying http.Client pools connections across concurrent requests.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retryCfg   retry.Config
	log        zerolog.Logger
}

// NewClient creates a new FMP client.
func NewClient(apiKey string, cfg Config, log zerolog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	retryCfg := cfg.Retry
	if retryCfg.Attempts == 0 && retryCfg.BaseDelay == 0 {
		retryCfg = retry.DefaultConfig
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		retryCfg:   retryCfg,
		log:        log.With().Str("client", "fmp").Logger(),
	}
}

// Screener runs one company-screener query for a single exchange.
func (c *Client) Screener(ctx context.Context, q ScreenerQuery) ([]ScreenerRow, error) {
	params := url.Values{}
	params.Set("exchange", q.Exchange)
	params.Set("country", q.Country)
	params.Set("marketCapMoreThan", strconv.FormatFloat(q.MarketCapMoreThan, 'f', -1, 64))
	params.Set("volumeMoreThan", strconv.FormatInt(q.VolumeMoreThan, 10))
	params.Set("isEtf", "false")
	params.Set("isFund", "false")
	params.Set("isActivelyTrading", "true")
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("includeAllShareClasses", strconv.FormatBool(q.IncludeAllShareClasses))

	var rows []ScreenerRow
	if err := c.getJSON(ctx, "/company-screener", params, &rows); err != nil {
		return nil, fmt.Errorf("screener query for %s failed: %w", q.Exchange, err)
	}

	c.log.Debug().Str("exchange", q.Exchange).Int("rows", len(rows)).Msg("Screener fetched")
	return rows, nil
}

// RatiosTTM fetches the TTM ratio snapshot for one symbol.
// Returns nil when the provider has no snapshot for the symbol.
func (c *Client) RatiosTTM(ctx context.Context, symbol string) (*RatiosTTM, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var rows []RatiosTTM
	if err := c.getJSON(ctx, "/ratios-ttm", params, &rows); err != nil {
		return nil, fmt.Errorf("ratios-ttm for %s failed: %w", symbol, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	if row.Symbol == "" {
		row.Symbol = symbol
	}
	return &row, nil
}

// BulkRatiosTTM fetches the TTM ratio snapshot for the entire provider
// universe. Callers filter it down to their symbols of interest.
func (c *Client) BulkRatiosTTM(ctx context.Context) ([]BulkRatiosRow, error) {
	var rows []BulkRatiosRow
	if err := c.getJSON(ctx, "/ratios-ttm-bulk", url.Values{}, &rows); err != nil {
		return nil, fmt.Errorf("bulk ratios-ttm failed: %w", err)
	}
	c.log.Debug().Int("rows", len(rows)).Msg("Bulk ratios fetched")
	return rows, nil
}

// BulkKeyMetricsTTM fetches the TTM key-metrics snapshot for the entire
// provider universe. Used as the EV/EBITDA fallback source.
func (c *Client) BulkKeyMetricsTTM(ctx context.Context) ([]BulkKeyMetricsRow, error) {
	var rows []BulkKeyMetricsRow
	if err := c.getJSON(ctx, "/key-metrics-ttm-bulk", url.Values{}, &rows); err != nil {
		return nil, fmt.Errorf("bulk key-metrics-ttm failed: %w", err)
	}
	c.log.Debug().Int("rows", len(rows)).Msg("Bulk key metrics fetched")
	return rows, nil
}

// getJSON performs a retried GET and decodes the JSON response into dest.
// Any transport error or non-200 status counts as a failed attempt.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, dest interface{}) error {
	params.Set("apikey", c.apiKey)
	fullURL := c.baseURL + path + "?" + params.Encode()

	return retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("HTTP request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(body, 200))
		}

		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}

		return nil
	})
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
