// Package attendance turns recognitions into ledger entries, suppressing
// repeated Present events for the same person inside a cooldown window.
package attendance

import (
	"context"
	"log"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// OutcomeKind describes what happened to a recognition
type OutcomeKind string

const (
	OutcomeNone     OutcomeKind = ""         // nothing attempted (unknown face)
	OutcomeRecorded OutcomeKind = "recorded" // new Present event appended
	OutcomeSkipped  OutcomeKind = "skipped"  // deduplicated, no write
	OutcomeFailed   OutcomeKind = "failed"   // ledger error
)

// Outcome is the result of RecordPresence
type Outcome struct {
	Kind   OutcomeKind
	Event  *database.AttendanceEvent // set for OutcomeRecorded
	Reason string                    // set for OutcomeSkipped
	Err    error                     // set for OutcomeFailed, always a *database.StorageError
}

// Recorded reports whether a new event was written.
func (o Outcome) Recorded() bool { return o.Kind == OutcomeRecorded }

// String renders the outcome for logs and overlays.
func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeRecorded:
		return "recorded"
	case OutcomeSkipped:
		return "skipped: " + o.Reason
	case OutcomeFailed:
		return "failed: " + o.Err.Error()
	}
	return "-"
}

// Recorder appends Present events to the ledger.
type Recorder struct {
	ledger   database.LedgerWriter
	cooldown time.Duration
	locks    *keyLock
	now      func() time.Time
}

// NewRecorder creates a recorder. A negative cooldown selects the default.
func NewRecorder(ledger database.LedgerWriter, cooldown time.Duration) *Recorder {
	if cooldown < 0 {
		cooldown = constants.DefaultCooldownSeconds * time.Second
	}
	return &Recorder{
		ledger:   ledger,
		cooldown: cooldown,
		locks:    newKeyLock(),
		now:      time.Now,
	}
}

// Cooldown returns the deduplication window.
func (r *Recorder) Cooldown() time.Duration {
	return r.cooldown
}

// RecordPresence records that identityID was seen at observedAt, unless a
// Present event for the same identity lies within the cooldown window.
// Observations more than constants.MaxCaptureSkew ahead of the clock are
// skipped so they cannot block later events.
// Storage errors are reported through the outcome and never retried.
func (r *Recorder) RecordPresence(ctx context.Context, identityID int64, observedAt time.Time) Outcome {
	if observedAt.After(r.now().Add(constants.MaxCaptureSkew)) {
		log.Printf("[ATTENDANCE] identity %d: ignoring future observation at %s", identityID, observedAt.Format(time.RFC3339))
		return Outcome{Kind: OutcomeSkipped, Reason: constants.SkipReasonFuture}
	}

	unlock := r.locks.Lock(identityID)
	defer unlock()

	last, err := r.ledger.MostRecent(ctx, identityID)
	if err != nil {
		return r.failed(identityID, "read last event", err)
	}

	if last != nil {
		elapsed := observedAt.Sub(last.Timestamp)
		if elapsed < 0 {
			return Outcome{Kind: OutcomeSkipped, Reason: constants.SkipReasonStale}
		}
		if elapsed < r.cooldown {
			return Outcome{Kind: OutcomeSkipped, Reason: constants.SkipReasonCooldown}
		}
	}

	event := &database.AttendanceEvent{
		IdentityID: identityID,
		Timestamp:  observedAt,
		Status:     database.StatusPresent,
	}
	if err := r.ledger.Append(ctx, event); err != nil {
		return r.failed(identityID, "append event", err)
	}

	log.Printf("[ATTENDANCE] identity %d marked present at %s", identityID, observedAt.Format(time.RFC3339))
	return Outcome{Kind: OutcomeRecorded, Event: event}
}

func (r *Recorder) failed(identityID int64, op string, err error) Outcome {
	wrapped := database.WrapStorage(op, err)
	log.Printf("[ATTENDANCE] identity %d: %v", identityID, wrapped)
	return Outcome{Kind: OutcomeFailed, Err: wrapped}
}
