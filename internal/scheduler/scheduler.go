// Package scheduler runs periodic maintenance: gallery reloads and
// attendance retention purges.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// jobTimeout bounds a single maintenance run
const jobTimeout = 5 * time.Minute

// Scheduler wraps a gocron scheduler with the maintenance jobs.
type Scheduler struct {
	cron *gocron.Scheduler
	ctx  context.Context
}

// New creates a scheduler whose jobs stop when ctx is cancelled.
func New(ctx context.Context, loc *time.Location) *Scheduler {
	cron := gocron.NewScheduler(loc)
	cron.SingletonModeAll()
	return &Scheduler{cron: cron, ctx: ctx}
}

// ScheduleGalleryReload reloads the matcher from the gallery every interval.
func (s *Scheduler) ScheduleGalleryReload(matcher *facematch.Matcher, gallery database.GalleryReader, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	_, err := s.cron.Every(interval).WaitForSchedule().Tag("gallery-reload").Do(func() {
		ReloadGallery(s.ctx, matcher, gallery)
	})
	if err != nil {
		return fmt.Errorf("schedule gallery reload: %w", err)
	}
	return nil
}

// SchedulePurge deletes attendance older than retention every day at the given "HH:MM".
func (s *Scheduler) SchedulePurge(ledger database.LedgerWriter, retention time.Duration, at string) error {
	_, err := s.cron.Every(1).Day().At(at).Tag("attendance-purge").Do(func() {
		ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
		defer cancel()
		if _, err := attendance.Purge(ctx, ledger, retention, time.Now()); err != nil {
			log.Printf("[SCHEDULER] purge failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule purge: %w", err)
	}
	return nil
}

// Jobs returns the number of scheduled jobs.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Jobs())
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.StartAsync()
	log.Printf("[SCHEDULER] started with %d jobs", s.Jobs())
}

// Stop halts the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// ReloadGallery refreshes the matcher, keeping the previous gallery on failure.
func ReloadGallery(ctx context.Context, matcher *facematch.Matcher, gallery database.GalleryReader) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	before := matcher.Size()
	n, err := matcher.Reload(ctx, gallery)
	if err != nil {
		log.Printf("[SCHEDULER] gallery reload failed, keeping %d identities: %v", before, err)
		return
	}
	if n != before {
		log.Printf("[SCHEDULER] gallery reloaded: %d identities (was %d)", n, before)
	}
}
