package attendance

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Purge deletes ledger events older than retention relative to now.
func Purge(ctx context.Context, ledger database.LedgerWriter, retention time.Duration, now time.Time) (int64, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("retention must be positive, got %s", retention)
	}
	cutoff := now.Add(-retention)
	removed, err := ledger.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, database.WrapStorage("purge attendance", err)
	}
	if removed > 0 {
		log.Printf("[ATTENDANCE] purged %d events older than %s", removed, cutoff.Format(time.DateOnly))
	}
	return removed, nil
}
