// Package pipeline drives frames through detection, recognition and
// attendance recording.
package pipeline

import (
	"context"
	"encoding/json"
	"image"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Frame is a single image from a frame source
type Frame struct {
	ID         uuid.UUID
	Image      image.Image
	CapturedAt time.Time
	Source     string // device, URL or file the frame came from
}

// NewFrame wraps an image captured at t with a fresh ID.
func NewFrame(img image.Image, t time.Time, source string) Frame {
	return Frame{ID: uuid.New(), Image: img, CapturedAt: t, Source: source}
}

// FrameSource produces frames. Next returns io.EOF when the stream ends;
// any other error is treated as a transient read failure.
type FrameSource interface {
	Next(ctx context.Context) (Frame, error)
}

// RenderSink receives the annotated result of every processed frame.
type RenderSink interface {
	Render(ctx context.Context, result FrameResult) error
}

// AnnotatedFace is one face of a processed frame
type AnnotatedFace struct {
	Region         facematch.FaceRegion
	Classification facematch.Classification
	Outcome        attendance.Outcome
}

// Label returns the overlay label of the face.
func (f AnnotatedFace) Label() string {
	return f.Classification.Label()
}

// FrameResult is the outcome of processing one frame
type FrameResult struct {
	FrameID    uuid.UUID
	Source     string
	CapturedAt time.Time
	Width      int
	Height     int
	Image      image.Image // the processed frame, not serialized
	Faces      []AnnotatedFace
	Err        error // detection failure, the frame is reported without faces
}

// Known returns the number of recognized faces.
func (r FrameResult) Known() int {
	n := 0
	for _, f := range r.Faces {
		if f.Classification.Known() {
			n++
		}
	}
	return n
}

type faceJSON struct {
	Region        facematch.FaceRegion `json:"region"`
	RelativeBox   []float64            `json:"relative_box,omitempty"` // [x1, y1, x2, y2] as fractions of the frame
	Kind          facematch.Kind       `json:"kind"`
	Label         string               `json:"label"`
	IdentityID    int64                `json:"identity_id,omitempty"`
	Name          string               `json:"name,omitempty"`
	Dissimilarity *float64             `json:"dissimilarity"` // null when nothing was matched
	Outcome       string               `json:"outcome,omitempty"`
	Reason        string               `json:"reason,omitempty"`
	EventID       int64                `json:"event_id,omitempty"`
}

type resultJSON struct {
	FrameID    string     `json:"frame_id"`
	Source     string     `json:"source,omitempty"`
	CapturedAt time.Time  `json:"captured_at"`
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	Faces      []faceJSON `json:"faces"`
	Error      string     `json:"error,omitempty"`
}

// MarshalJSON renders the result without templates and with a null
// dissimilarity for unmatched faces.
func (r FrameResult) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		FrameID:    r.FrameID.String(),
		Source:     r.Source,
		CapturedAt: r.CapturedAt,
		Width:      r.Width,
		Height:     r.Height,
		Faces:      make([]faceJSON, 0, len(r.Faces)),
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	for _, f := range r.Faces {
		fj := faceJSON{
			Region:  f.Region,
			Kind:    f.Classification.Kind,
			Label:   f.Label(),
			Outcome: string(f.Outcome.Kind),
			Reason:  f.Outcome.Reason,
		}
		if r.Width > 0 && r.Height > 0 {
			fj.RelativeBox = facematch.ConvertPixelBBoxToRelative(f.Region.Corners(), r.Width, r.Height)
		}
		if d := f.Classification.Dissimilarity; !math.IsInf(d, 0) && !math.IsNaN(d) {
			fj.Dissimilarity = &d
		}
		if f.Classification.Known() {
			fj.IdentityID = f.Classification.Identity.ID
			fj.Name = f.Classification.Identity.DisplayName
		}
		if f.Outcome.Event != nil {
			fj.EventID = f.Outcome.Event.ID
		}
		if f.Outcome.Err != nil {
			fj.Reason = f.Outcome.Err.Error()
		}
		out.Faces = append(out.Faces, fj)
	}
	return json.Marshal(out)
}
