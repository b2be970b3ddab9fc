// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Recognition constants
const (
	// DefaultFaceSize is the edge length of the normalized square face image
	DefaultFaceSize = 100

	// DefaultThreshold is the default acceptance threshold for LBPH dissimilarity.
	// Lower values = stricter matching
	DefaultThreshold = 70.0

	// RegionOverlapIoU is the IoU above which two detections are considered the same face
	RegionOverlapIoU = 0.5
)

// LBPH template layout
const (
	// LBPGridX and LBPGridY split the normalized face into cells
	LBPGridX = 8
	LBPGridY = 8

	// LBPUniformBins is the number of uniform LBP patterns for 8 neighbours plus one non-uniform bin
	LBPUniformBins = 59

	// TemplateDim is the length of a stored LBPH template
	TemplateDim = LBPGridX * LBPGridY * LBPUniformBins
)

// Attendance constants
const (
	// DefaultCooldownSeconds is the minimum gap between two Present events for one identity
	DefaultCooldownSeconds = 300

	// SkipReasonCooldown is reported when an observation falls inside the cooldown window
	SkipReasonCooldown = "within cooldown"

	// SkipReasonStale is reported when an observation predates the last recorded event
	SkipReasonStale = "older than last event"

	// SkipReasonFuture is reported when an observation lies beyond MaxCaptureSkew in the future
	SkipReasonFuture = "timestamp in the future"

	// MaxCaptureSkew is how far ahead of the local clock a capture time may be
	MaxCaptureSkew = 5 * time.Minute
)

// Processing constants
const (
	// EnrollWorkers is the default number of parallel workers for batch enrollment
	EnrollWorkers = 4

	// HNSWMinGallery is the gallery size from which the matcher uses the HNSW index
	HNSWMinGallery = 512
)
