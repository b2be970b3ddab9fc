package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

func validIdentity(id int64) database.Identity {
	return database.Identity{ID: id, DisplayName: "P", Template: make([]float32, constants.TemplateDim)}
}

func TestReloadGallery(t *testing.T) {
	gallery := mock.NewMockGallery()
	gallery.AddIdentity(validIdentity(1))
	gallery.AddIdentity(validIdentity(2))
	matcher := facematch.NewMatcher(100)

	ReloadGallery(context.Background(), matcher, gallery)
	if matcher.Size() != 2 {
		t.Fatalf("expected 2 identities, got %d", matcher.Size())
	}

	gallery.AllError = errors.New("db down")
	ReloadGallery(context.Background(), matcher, gallery)
	if matcher.Size() != 2 {
		t.Errorf("expected gallery kept on failure, got %d", matcher.Size())
	}
}

func TestScheduler_Jobs(t *testing.T) {
	s := New(context.Background(), time.UTC)

	if err := s.ScheduleGalleryReload(facematch.NewMatcher(100), mock.NewMockGallery(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Jobs() != 0 {
		t.Errorf("expected disabled reload not scheduled, got %d jobs", s.Jobs())
	}

	if err := s.ScheduleGalleryReload(facematch.NewMatcher(100), mock.NewMockGallery(), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SchedulePurge(mock.NewMockLedger(), time.Hour, "03:00"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Jobs() != 2 {
		t.Errorf("expected 2 jobs, got %d", s.Jobs())
	}

	s.Start()
	s.Stop()
}

func TestScheduler_InvalidTime(t *testing.T) {
	s := New(context.Background(), time.UTC)
	if err := s.SchedulePurge(mock.NewMockLedger(), time.Hour, "25:99"); err == nil {
		t.Error("expected error for invalid time")
	}
}
