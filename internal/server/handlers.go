package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/config"
	"github.com/aristath/screener/internal/modules/export"
	"github.com/aristath/screener/internal/modules/summary"
	"github.com/aristath/screener/internal/modules/universe"
	"github.com/aristath/screener/internal/pipeline"
)

// Handlers serves the screening and summary endpoints.
type Handlers struct {
	pipeline *pipeline.Service
	defaults config.ScreenerDefaults
	log      zerolog.Logger
}

// NewHandlers creates the API handlers.
func NewHandlers(p *pipeline.Service, cfg *config.Config, log zerolog.Logger) *Handlers {
	return &Handlers{
		pipeline: p,
		defaults: cfg.Screener,
		log:      log.With().Str("component", "handlers").Logger(),
	}
}

// screenResponse is the JSON envelope for GET /api/screen.
type screenResponse struct {
	*pipeline.Result
	Count int `json:"count"`
}

// HandleScreen handles GET /api/screen.
// Query parameters override the configured screener defaults.
func (h *Handlers) HandleScreen(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.pipeline.Screen(r.Context(), q)
	if err != nil {
		h.log.Error().Err(err).Msg("Screen request failed")
		respondError(w, http.StatusBadGateway, "screening run failed")
		return
	}

	respondJSON(w, http.StatusOK, screenResponse{Result: result, Count: len(result.Rows)})
}

// HandleScreenExport handles GET /api/screen/export (CSV download).
func (h *Handlers) HandleScreenExport(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.pipeline.Screen(r.Context(), q)
	if err != nil {
		h.log.Error().Err(err).Msg("Screen export failed")
		respondError(w, http.StatusBadGateway, "screening run failed")
		return
	}

	filename := fmt.Sprintf("screen-%s.csv", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := export.WriteScreenCSV(w, result.Rows); err != nil {
		h.log.Error().Err(err).Msg("Failed to write screen CSV")
	}
}

// summaryResponse is the JSON envelope for GET /api/summary.
type summaryResponse struct {
	Groups   []summary.Group    `json:"groups"`
	Warnings []universe.Warning `json:"warnings,omitempty"`
	GroupBy  summary.GroupBy    `json:"group_by"`
}

// HandleSummary handles GET /api/summary.
func (h *Handlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	q, groupBy, err := h.parseSummaryQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	groups, warnings, err := h.pipeline.Summarize(r.Context(), q, groupBy)
	if err != nil {
		h.log.Error().Err(err).Msg("Summary request failed")
		respondError(w, http.StatusBadGateway, "summary fetch failed")
		return
	}

	respondJSON(w, http.StatusOK, summaryResponse{Groups: groups, Warnings: warnings, GroupBy: groupBy})
}

// HandleSummaryExport handles GET /api/summary/export (CSV download).
func (h *Handlers) HandleSummaryExport(w http.ResponseWriter, r *http.Request) {
	q, groupBy, err := h.parseSummaryQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	groups, _, err := h.pipeline.Summarize(r.Context(), q, groupBy)
	if err != nil {
		h.log.Error().Err(err).Msg("Summary export failed")
		respondError(w, http.StatusBadGateway, "summary fetch failed")
		return
	}

	filename := fmt.Sprintf("summary-%s.csv", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := export.WriteSummaryCSV(w, groups); err != nil {
		h.log.Error().Err(err).Msg("Failed to write summary CSV")
	}
}

// parseQuery builds the screener query from request parameters, falling back
// to the configured defaults for anything unspecified.
func (h *Handlers) parseQuery(r *http.Request) (universe.Query, error) {
	params := r.URL.Query()

	q := universe.Query{
		Exchanges:              h.defaults.Exchanges,
		Country:                h.defaults.Country,
		MinMarketCap:           h.defaults.MinMarketCap,
		MinVolume:              h.defaults.MinVolume,
		Limit:                  h.defaults.Limit,
		IncludeAllShareClasses: h.defaults.IncludeAllShareClasses,
	}

	if v := params.Get("exchanges"); v != "" {
		q.Exchanges = splitCSVParam(v)
		if len(q.Exchanges) == 0 {
			return q, fmt.Errorf("exchanges must name at least one exchange")
		}
	}
	if v := params.Get("country"); v != "" {
		q.Country = v
	}
	if v := params.Get("min_market_cap"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return q, fmt.Errorf("invalid min_market_cap %q", v)
		}
		q.MinMarketCap = f
	}
	if v := params.Get("min_volume"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return q, fmt.Errorf("invalid min_volume %q", v)
		}
		q.MinVolume = n
	}
	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return q, fmt.Errorf("invalid limit %q", v)
		}
		q.Limit = n
	}
	if v := params.Get("all_share_classes"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return q, fmt.Errorf("invalid all_share_classes %q", v)
		}
		q.IncludeAllShareClasses = b
	}

	return q, nil
}

// parseSummaryQuery parses the screener query plus the group_by parameter.
func (h *Handlers) parseSummaryQuery(r *http.Request) (universe.Query, summary.GroupBy, error) {
	q, err := h.parseQuery(r)
	if err != nil {
		return q, "", err
	}

	// Both spellings are accepted; group_by wins when both are present.
	name := r.URL.Query().Get("group_by")
	if name == "" {
		name = r.URL.Query().Get("group")
	}
	groupBy, err := summary.ParseGroupBy(name)
	if err != nil {
		return q, "", err
	}

	return q, groupBy, nil
}

func splitCSVParam(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondError writes a JSON error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
