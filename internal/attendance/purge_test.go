package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
)

func TestPurge(t *testing.T) {
	ledger := mock.NewMockLedger()
	now := t0
	for _, age := range []time.Duration{24 * time.Hour, 200 * 24 * time.Hour, 400 * 24 * time.Hour} {
		ledger.Append(context.Background(), &database.AttendanceEvent{IdentityID: 1, Timestamp: now.Add(-age), Status: database.StatusPresent})
	}

	removed, err := Purge(context.Background(), ledger, 180*24*time.Hour, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	if got := len(ledger.Events()); got != 1 {
		t.Errorf("expected 1 remaining event, got %d", got)
	}
}

func TestPurge_Errors(t *testing.T) {
	ledger := mock.NewMockLedger()
	if _, err := Purge(context.Background(), ledger, 0, t0); err == nil {
		t.Error("expected error for zero retention")
	}

	ledger.DeleteBeforeError = errors.New("locked")
	_, err := Purge(context.Background(), ledger, time.Hour, t0)
	var storageErr *database.StorageError
	if !errors.As(err, &storageErr) {
		t.Errorf("expected StorageError, got %v", err)
	}
}
