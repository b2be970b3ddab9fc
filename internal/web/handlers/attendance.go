package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// AttendanceHandler serves the attendance ledger.
type AttendanceHandler struct{}

// NewAttendanceHandler creates an attendance handler.
func NewAttendanceHandler() *AttendanceHandler {
	return &AttendanceHandler{}
}

// AttendanceResponse is one ledger row
type AttendanceResponse struct {
	ID          int64     `json:"id"`
	IdentityID  int64     `json:"identity_id"`
	DisplayName string    `json:"display_name"`
	Timestamp   time.Time `json:"timestamp"`
	Status      string    `json:"status"`
}

// List handles GET /attendance?identity=&since=&until=&limit=.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter database.AttendanceFilter
	var err error

	if raw := r.URL.Query().Get("identity"); raw != "" {
		filter.IdentityID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || filter.IdentityID <= 0 {
			respondError(w, http.StatusBadRequest, "invalid identity "+strconv.Quote(raw))
			return
		}
	}
	if filter.Since, err = parseTimeParam(r, "since"); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Until, err = parseTimeParam(r, "until"); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Limit, err = parseLimit(r); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ledger, err := database.GetLedgerReader(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	records, err := ledger.List(r.Context(), filter)
	if err != nil {
		log.Printf("[DB] list attendance: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}

	resp := make([]AttendanceResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, AttendanceResponse{
			ID:          rec.ID,
			IdentityID:  rec.IdentityID,
			DisplayName: rec.DisplayName,
			Timestamp:   rec.Timestamp,
			Status:      string(rec.Status),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}
