package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API access token signed with API_JWT_SECRET",
	Long: `Issue a bearer token for the HTTP API.

The token is signed with API_JWT_SECRET and must be sent as
"Authorization: Bearer <token>" (or ?access_token= for the event stream).`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().String("subject", "admin", "Subject stored in the token")
	tokenCmd.Flags().Duration("ttl", 30*24*time.Hour, "Token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Web.JWTSecret == "" {
		return &config.ConfigurationError{Field: "API_JWT_SECRET", Reason: "required to issue tokens"}
	}
	ttl := mustGetDuration(cmd, "ttl")
	if ttl <= 0 {
		return fmt.Errorf("--ttl must be positive")
	}

	token, err := middleware.IssueToken([]byte(cfg.Web.JWTSecret), mustGetString(cmd, "subject"), ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
