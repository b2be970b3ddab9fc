package handlers

import (
	"log"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// GalleryHandler manages the matcher's in-memory gallery.
type GalleryHandler struct {
	matcher *facematch.Matcher
}

// NewGalleryHandler creates a gallery handler.
func NewGalleryHandler(matcher *facematch.Matcher) *GalleryHandler {
	return &GalleryHandler{matcher: matcher}
}

// Reload handles POST /gallery/reload. On failure the previous gallery stays loaded.
func (h *GalleryHandler) Reload(w http.ResponseWriter, r *http.Request) {
	gallery, err := database.GetGalleryReader(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	n, err := h.matcher.Reload(r.Context(), gallery)
	if err != nil {
		log.Printf("[MATCHER] reload failed, keeping %d identities: %v", h.matcher.Size(), err)
		respondError(w, http.StatusInternalServerError, "failed to reload gallery")
		return
	}
	log.Printf("[MATCHER] gallery reloaded on request: %d identities", n)
	respondJSON(w, http.StatusOK, map[string]int{"identities": n})
}
