package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-attendance",
	Short: "Record attendance by recognizing enrolled faces in camera frames",
	Long: `Face Attendance watches a camera (or a directory of frames), finds faces,
matches them against an enrolled gallery and records one attendance event per
person per cooldown window.

Enroll people with "enroll", then run "serve" to start recognition together
with the HTTP API.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
