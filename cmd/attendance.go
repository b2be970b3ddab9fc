package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Inspect and maintain the attendance ledger",
}

var attendanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List attendance events, newest first",
	Long: `List attendance events, newest first.

Examples:
  # Events of the last 24 hours
  face-attendance attendance list --since 24h

  # The last 20 events of identity 3
  face-attendance attendance list --identity 3 --limit 20`,
	Args: cobra.NoArgs,
	RunE: runAttendanceList,
}

var attendancePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete attendance events older than the retention period",
	Args:  cobra.NoArgs,
	RunE:  runAttendancePurge,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceListCmd, attendancePurgeCmd)

	attendanceListCmd.Flags().Int64("identity", 0, "Only events of this identity ID")
	attendanceListCmd.Flags().Duration("since", 0, "Only events newer than this duration ago (e.g. 24h)")
	attendanceListCmd.Flags().Int("limit", constants.DefaultHandlerPageSize, "Maximum number of events")
	attendanceListCmd.Flags().Bool("json", false, "Output as JSON")

	attendancePurgeCmd.Flags().Duration("older-than", 0, "Retention period (defaults to RETENTION)")
}

// eventView is the CLI representation of an attendance record
type eventView struct {
	ID          int64     `json:"id"`
	IdentityID  int64     `json:"identity_id"`
	DisplayName string    `json:"display_name"`
	RecordedAt  time.Time `json:"recorded_at"`
	Status      string    `json:"status"`
}

// openLedger connects storage and returns the ledger writer.
func openLedger(ctx context.Context, cfg *config.Config) (database.LedgerWriter, func(), error) {
	_, closeStorage, err := initStorage(cfg)
	if err != nil {
		return nil, nil, err
	}
	ledger, err := database.GetLedgerWriter(ctx)
	if err != nil {
		closeStorage()
		return nil, nil, err
	}
	return ledger, closeStorage, nil
}

func runAttendanceList(cmd *cobra.Command, args []string) error {
	filter := database.AttendanceFilter{
		IdentityID: mustGetInt64(cmd, "identity"),
		Limit:      min(max(mustGetInt(cmd, "limit"), 1), constants.MaxHandlerPageSize),
	}
	if since := mustGetDuration(cmd, "since"); since > 0 {
		filter.Since = time.Now().Add(-since)
	}

	ctx := context.Background()
	ledger, closeStorage, err := openLedger(ctx, config.Load())
	if err != nil {
		return err
	}
	defer closeStorage()

	records, err := ledger.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list attendance: %w", err)
	}

	views := make([]eventView, len(records))
	for i, r := range records {
		views[i] = eventView{
			ID:          r.ID,
			IdentityID:  r.IdentityID,
			DisplayName: r.DisplayName,
			RecordedAt:  r.Timestamp,
			Status:      string(r.Status),
		}
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(views)
	}
	if len(views) == 0 {
		fmt.Println("No attendance events found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tID\tNAME\tSTATUS")
	for _, v := range views {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", v.RecordedAt.Local().Format(time.DateTime), v.IdentityID, v.DisplayName, v.Status)
	}
	return w.Flush()
}

func runAttendancePurge(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	retention := mustGetDuration(cmd, "older-than")
	if retention == 0 {
		retention = cfg.Attendance.Retention
	}

	ctx := context.Background()
	ledger, closeStorage, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	removed, err := attendance.Purge(ctx, ledger, retention, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d events older than %s\n", removed, formatDuration(retention))
	return nil
}
