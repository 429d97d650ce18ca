package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/screener/internal/database"
)

// SystemHandlers serves health and system-status endpoints.
type SystemHandlers struct {
	log       zerolog.Logger
	dataDir   string
	cacheDB   *database.DB
	startedAt time.Time
}

// NewSystemHandlers creates the system handlers. cacheDB may be nil.
func NewSystemHandlers(log zerolog.Logger, dataDir string, cacheDB *database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("component", "system_handlers").Logger(),
		dataDir:   dataDir,
		cacheDB:   cacheDB,
		startedAt: time.Now(),
	}
}

// HandleHealth handles GET /health. It stays cheap so load balancers can poll
// it aggressively.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if h.cacheDB != nil {
		if err := h.cacheDB.Conn().PingContext(r.Context()); err != nil {
			h.log.Warn().Err(err).Msg("Cache database ping failed")
			status = "degraded"
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         status,
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	})
}

// HandleSystemStatus handles GET /api/health and GET /api/system/status with
// host resource usage.
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if h.cacheDB != nil {
		if err := h.cacheDB.Conn().PingContext(r.Context()); err != nil {
			h.log.Warn().Err(err).Msg("Cache database ping failed")
			status = "degraded"
		}
	}

	payload := map[string]interface{}{
		"status":         status,
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		payload["cpu_percent"] = percents[0]
	} else if err != nil {
		h.log.Debug().Err(err).Msg("CPU usage unavailable")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		payload["memory"] = map[string]interface{}{
			"total":        vm.Total,
			"used":         vm.Used,
			"used_percent": vm.UsedPercent,
		}
	} else {
		h.log.Debug().Err(err).Msg("Memory usage unavailable")
	}

	if usage, err := disk.Usage(h.dataDir); err == nil {
		payload["disk"] = map[string]interface{}{
			"path":         h.dataDir,
			"total":        usage.Total,
			"free":         usage.Free,
			"used_percent": usage.UsedPercent,
		}
	} else {
		h.log.Debug().Err(err).Msg("Disk usage unavailable")
	}

	if h.cacheDB != nil {
		payload["cache_db"] = h.cacheDB.Name()
	}

	respondJSON(w, http.StatusOK, payload)
}
