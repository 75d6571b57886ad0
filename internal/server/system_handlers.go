package server

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/assetflow/internal/database"
	"github.com/aristath/assetflow/internal/scheduler"
)

const healthCheckTimeout = 2 * time.Second

// CacheCounter reports the number of rows in each persistent cache table
type CacheCounter interface {
	Count(ctx context.Context) (map[string]int64, error)
}

// SystemHandlers serves health, job and database status endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	databases   map[string]*database.DB
	scheduler   *scheduler.Scheduler
	cache       CacheCounter
	startupTime time.Time
	systemStats func() (float64, float64)
}

// NewSystemHandlers creates a new system handlers instance. cache may be nil.
func NewSystemHandlers(log zerolog.Logger, databases map[string]*database.DB, sched *scheduler.Scheduler, cache CacheCounter) *SystemHandlers {
	h := &SystemHandlers{
		log:         log.With().Str("handler", "system").Logger(),
		databases:   databases,
		scheduler:   sched,
		cache:       cache,
		startupTime: time.Now(),
	}
	h.systemStats = h.getSystemStats
	return h
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status        string            `json:"status"`
	Service       string            `json:"service"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	CPUPercent    float64           `json:"cpu_percent"`
	MemoryPercent float64           `json:"memory_percent"`
	Databases     map[string]string `json:"databases"`
}

// DBInfo describes one database file
type DBInfo struct {
	Name          string  `json:"name"`
	Path          string  `json:"path"`
	SizeMB        float64 `json:"size_mb"`
	WALSizeMB     float64 `json:"wal_size_mb"`
	PageCount     int64   `json:"page_count"`
	FreelistCount int64   `json:"freelist_count"`
}

// DatabaseStatsResponse is returned by GET /api/system/database/stats
type DatabaseStatsResponse struct {
	Databases    []DBInfo         `json:"databases"`
	TotalSizeMB  float64          `json:"total_size_mb"`
	CacheEntries map[string]int64 `json:"cache_entries,omitempty"`
	LastChecked  string           `json:"last_checked"`
}

// HandleHealth pings every database and reports host load. A failing
// database turns the status to degraded and the code to 503.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:        "healthy",
		Service:       "assetflow",
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		Databases:     make(map[string]string, len(h.databases)),
	}

	for _, name := range h.databaseNames() {
		if err := h.databases[name].QuickCheck(ctx); err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Database health check failed")
			resp.Databases[name] = err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Databases[name] = "ok"
	}

	resp.CPUPercent, resp.MemoryPercent = h.systemStats()

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(h.log, w, status, resp)
}

// HandleJobsStatus returns scheduler job status
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		writeJSON(h.log, w, http.StatusOK, []scheduler.JobStatus{})
		return
	}
	writeJSON(h.log, w, http.StatusOK, h.scheduler.Status())
}

// HandleRunJob runs a registered job synchronously
func (h *SystemHandlers) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if h.scheduler == nil {
		writeJSON(h.log, w, http.StatusNotFound, map[string]string{"error": "scheduler not running"})
		return
	}

	if err := h.scheduler.RunByName(name); err != nil {
		status := http.StatusInternalServerError
		if strings.HasSuffix(err.Error(), "not registered") {
			status = http.StatusNotFound
		}
		writeJSON(h.log, w, status, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(h.log, w, http.StatusOK, map[string]string{"status": "ok", "job": name})
}

// HandleDatabaseStats returns file and page statistics for every database
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	resp := DatabaseStatsResponse{
		Databases:   []DBInfo{},
		LastChecked: time.Now().Format(time.RFC3339),
	}

	for _, name := range h.databaseNames() {
		db := h.databases[name]
		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to get database stats")
			continue
		}

		sizeMB := float64(stats.SizeBytes) / 1024 / 1024
		resp.TotalSizeMB += sizeMB
		resp.Databases = append(resp.Databases, DBInfo{
			Name:          name,
			Path:          db.Path(),
			SizeMB:        sizeMB,
			WALSizeMB:     float64(stats.WALSizeBytes) / 1024 / 1024,
			PageCount:     stats.PageCount,
			FreelistCount: stats.FreelistCount,
		})
	}

	if h.cache != nil {
		counts, err := h.cache.Count(r.Context())
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to count cache entries")
		} else {
			resp.CacheEntries = counts
		}
	}

	writeJSON(h.log, w, http.StatusOK, resp)
}

func (h *SystemHandlers) databaseNames() []string {
	names := make([]string, 0, len(h.databases))
	for name, db := range h.databases {
		if db != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// getSystemStats returns CPU and RAM usage percentages. The CPU sample is
// short so the health endpoint stays fast.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
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
