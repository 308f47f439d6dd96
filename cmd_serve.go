package main

import (
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run jobs on schedule and on loader notifications",
	Long: `Run the configured cron schedules (SCHEDULE_*), trigger jobs on
NOTIFY from the loaders (NOTIFY_CHANNEL) and serve /health, /metrics,
/api/status, /api/events (SSE) and /api/ws on HTTP_PORT until SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return application.Start()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
