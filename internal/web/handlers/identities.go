package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

// IdentitiesHandler serves the enrolled gallery.
type IdentitiesHandler struct {
	matcher *facematch.Matcher // reloaded after deletions, may be nil
}

// NewIdentitiesHandler creates an identities handler.
func NewIdentitiesHandler(matcher *facematch.Matcher) *IdentitiesHandler {
	return &IdentitiesHandler{matcher: matcher}
}

// IdentityResponse is an identity without its template
type IdentityResponse struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"display_name"`
	Designation string    `json:"designation,omitempty"`
	ImagePath   string    `json:"image_path,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toIdentityResponse(identity database.Identity) IdentityResponse {
	return IdentityResponse{
		ID:          identity.ID,
		DisplayName: identity.DisplayName,
		Designation: identity.Designation,
		ImagePath:   identity.ImagePath,
		CreatedAt:   identity.CreatedAt,
	}
}

// List handles GET /identities. With ?name= it searches by normalized name.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	gallery, err := database.GetGalleryReader(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	var identities []database.Identity
	if name := r.URL.Query().Get("name"); name != "" {
		identities, err = gallery.FindByName(r.Context(), name)
	} else {
		identities, err = gallery.All(r.Context())
	}
	if err != nil {
		log.Printf("[DB] list identities: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list identities")
		return
	}

	resp := make([]IdentityResponse, 0, len(identities))
	for _, identity := range identities {
		resp = append(resp, toIdentityResponse(identity))
	}
	respondJSON(w, http.StatusOK, resp)
}

// Get handles GET /identities/{id}.
func (h *IdentitiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	gallery, err := database.GetGalleryReader(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	identity, err := gallery.Lookup(r.Context(), id)
	if err != nil {
		log.Printf("[DB] lookup identity %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to get identity")
		return
	}
	if identity == nil {
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}
	respondJSON(w, http.StatusOK, toIdentityResponse(*identity))
}

// Delete handles DELETE /identities/{id}. The identity's attendance history is removed too.
func (h *IdentitiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	gallery, err := database.GetGalleryWriter(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	if err := gallery.Delete(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "identity not found")
			return
		}
		log.Printf("[DB] delete identity %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to delete identity")
		return
	}

	actor := "anonymous"
	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil {
		actor = claims.Subject
	}
	log.Printf("[DB] identity %d deleted by %s", id, sanitizeForLog(actor))

	if h.matcher != nil {
		if _, err := h.matcher.Reload(r.Context(), gallery); err != nil {
			log.Printf("[MATCHER] reload after deleting identity %d failed: %v", id, err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
