package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
)

// FrameProcessor runs one frame through recognition and recording
type FrameProcessor interface {
	ProcessFrame(ctx context.Context, frame pipeline.Frame) pipeline.FrameResult
}

// FramesHandler accepts still frames pushed by remote cameras.
type FramesHandler struct {
	processor FrameProcessor
	sink      pipeline.RenderSink // may be nil
}

// NewFramesHandler creates a frames handler. Results are also rendered to sink when it is not nil.
func NewFramesHandler(processor FrameProcessor, sink pipeline.RenderSink) *FramesHandler {
	return &FramesHandler{processor: processor, sink: sink}
}

// Upload handles POST /frames with a multipart "file" field and an optional
// RFC 3339 "captured_at" field. Attendance is recorded for recognized faces.
func (h *FramesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxFrameUploadSize)
	if err := r.ParseMultipartForm(constants.MaxFrameUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	img, err := camera.Decode(data)
	if errors.Is(err, camera.ErrFrameTooLarge) {
		respondError(w, http.StatusBadRequest, "image dimensions exceed limit")
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, "unsupported or corrupt image")
		return
	}

	capturedAt := time.Now()
	if raw := r.FormValue("captured_at"); raw != "" {
		capturedAt, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid captured_at: expected RFC 3339")
			return
		}
		if capturedAt.After(time.Now().Add(constants.MaxCaptureSkew)) {
			respondError(w, http.StatusBadRequest, "invalid captured_at: in the future")
			return
		}
	}

	frame := pipeline.NewFrame(img, capturedAt, "upload:"+filepath.Base(header.Filename))
	result := h.processor.ProcessFrame(r.Context(), frame)

	if h.sink != nil {
		if err := h.sink.Render(r.Context(), result); err != nil {
			log.Printf("[FRAME] render uploaded frame %s (%s): %v", frame.ID, sanitizeForLog(header.Filename), err)
		}
	}
	respondJSON(w, http.StatusOK, result)
}
