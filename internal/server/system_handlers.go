package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/alphatrader/alphatrader/internal/config"
	"github.com/alphatrader/alphatrader/internal/modules/market_hours"
	"github.com/alphatrader/alphatrader/internal/modules/trading"
)

// SystemHandlers handles system monitoring endpoints.
type SystemHandlers struct {
	log         zerolog.Logger
	cfg         *config.Config
	health      *trading.MarketHealth
	calendar    *market_hours.Calendar
	startupTime time.Time
}

// NewSystemHandlers creates a new system handlers instance.
func NewSystemHandlers(log zerolog.Logger, cfg *config.Config, health *trading.MarketHealth, calendar *market_hours.Calendar) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		cfg:         cfg,
		health:      health,
		calendar:    calendar,
		startupTime: time.Now(),
	}
}

// HandleSystemStatus reports process and market state in one call.
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPct, memPct := h.systemStats()

	now := time.Now()
	session, sessionOpen := h.calendar.Session(now)

	response := map[string]interface{}{
		"status":         "running",
		"uptime_seconds": int(time.Since(h.startupTime).Seconds()),
		"cpu_percent":    cpuPct,
		"mem_percent":    memPct,
		"goroutines":     runtime.NumGoroutine(),
		"broker_mode":    h.cfg.BrokerMode,
		"market_healthy": h.health.Healthy(),
		"session_open":   sessionOpen,
		"session":        session,
		"next_open":      h.calendar.NextOpen(now).Format(time.RFC3339),
	}

	h.writeJSON(w, response)
}

// systemStats samples CPU and RAM usage. A 100ms CPU window keeps the call
// responsive for polling dashboards.
func (h *SystemHandlers) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
