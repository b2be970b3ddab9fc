package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Pinger checks that the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service health and gallery statistics.
type HealthHandler struct {
	pinger  Pinger
	matcher *facematch.Matcher
}

// NewHealthHandler creates a health handler. Both arguments may be nil.
func NewHealthHandler(pinger Pinger, matcher *facematch.Matcher) *HealthHandler {
	return &HealthHandler{pinger: pinger, matcher: matcher}
}

// HealthResponse is returned by the health endpoint
type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend,omitempty"`
	Gallery int    `json:"gallery"`
	Error   string `json:"error,omitempty"`
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Backend: database.BackendName()}
	if h.matcher != nil {
		resp.Gallery = h.matcher.Size()
	}

	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			log.Printf("[DB] health check failed: %v", err)
			resp.Status = "unavailable"
			resp.Error = "storage unreachable"
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// StatsResponse summarizes the stored data
type StatsResponse struct {
	Identities       int `json:"identities"`
	AttendanceEvents int `json:"attendance_events"`
	LoadedTemplates  int `json:"loaded_templates"`
}

// Stats handles GET /stats.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	gallery, err := database.GetGalleryReader(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	ledger, err := database.GetLedgerReader(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	var resp StatsResponse
	if resp.Identities, err = gallery.Count(r.Context()); err != nil {
		log.Printf("[DB] count identities: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to count identities")
		return
	}
	if resp.AttendanceEvents, err = ledger.Count(r.Context()); err != nil {
		log.Printf("[DB] count attendance: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to count attendance events")
		return
	}
	if h.matcher != nil {
		resp.LoadedTemplates = h.matcher.Size()
	}
	respondJSON(w, http.StatusOK, resp)
}
