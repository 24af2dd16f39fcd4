package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/stockselect/internal/database"
	"github.com/aristath/stockselect/internal/di"
	"github.com/aristath/stockselect/internal/scheduler"
)

// SystemHandlers serves process, catalog and database status
type SystemHandlers struct {
	log         zerolog.Logger
	container   *di.Container
	jobs        map[string]scheduler.Job
	startupTime time.Time
}

// CatalogStatus describes the loaded catalog
type CatalogStatus struct {
	Source      string `json:"source"`
	Instruments int    `json:"instruments"`
	RefreshedAt string `json:"refreshed_at,omitempty"`
}

// SystemStatusResponse is the payload of GET /api/system/status
type SystemStatusResponse struct {
	Status      string            `json:"status"`
	UptimeHours float64           `json:"uptime_hours"`
	CPUPercent  float64           `json:"cpu_percent"`
	RAMPercent  float64           `json:"ram_percent"`
	Catalog     CatalogStatus     `json:"catalog"`
	Databases   []*database.Stats `json:"databases"`
	Strategies  []string          `json:"strategies"`
	CacheActive bool              `json:"cache_active"`
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(log zerolog.Logger, container *di.Container, jobs *di.JobInstances) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("handler", "system").Logger(),
		container:   container,
		jobs:        jobs.All(),
		startupTime: time.Now(),
	}
}

// HandleSystemStatus returns process, catalog and database status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent := h.getSystemStats()

	response := SystemStatusResponse{
		Status:      "healthy",
		UptimeHours: time.Since(h.startupTime).Hours(),
		CPUPercent:  cpuPercent,
		RAMPercent:  ramPercent,
		Catalog:     h.catalogStatus(r.Context()),
		Databases:   h.databaseStats(r.Context()),
		Strategies:  h.container.Registry.Names(),
		CacheActive: h.container.RunCache != nil,
	}
	if response.Catalog.Instruments == 0 {
		response.Status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"data": response}, h.log)
}

// HandleListJobs lists the jobs that can be triggered manually
func (h *SystemHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     names,
		"metadata": map[string]interface{}{"count": len(names)},
	}, h.log)
}

// HandleTriggerJob runs a job in the background
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := h.jobs[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown job: " + name}, h.log)
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job triggered")
	go func() {
		if err := job.Run(); err != nil {
			h.log.Error().Err(err).Str("job", name).Msg("Manual job failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"data": map[string]string{"job": name, "status": "triggered"},
	}, h.log)
}

func (h *SystemHandlers) catalogStatus(ctx context.Context) CatalogStatus {
	status := CatalogStatus{Source: h.container.UniverseService.SourceName()}
	if catalog, err := h.container.UniverseService.Catalog(ctx); err == nil {
		status.Instruments = catalog.Len()
	}
	if at := h.container.UniverseService.RefreshedAt(); !at.IsZero() {
		status.RefreshedAt = at.Format(time.RFC3339)
	}
	return status
}

func (h *SystemHandlers) databaseStats(ctx context.Context) []*database.Stats {
	var stats []*database.Stats
	for _, db := range []*database.DB{h.container.UniverseDB, h.container.RunsDB} {
		s, err := db.GetStats(ctx)
		if err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			continue
		}
		stats = append(stats, s)
	}
	return stats
}

// getSystemStats samples CPU over 100ms and reads memory usage
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(cpuPercent) == 0 {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuPercent[0], 0
	}

	return cpuPercent[0], memStat.UsedPercent
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
