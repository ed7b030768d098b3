package main

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/auros/internal/notifier"
)

// notifyTimeout bounds a single webhook delivery.
const notifyTimeout = 10 * time.Second

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification subcommands",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test notification",
	Long:  "Sends a test notification using the configured notifier.",
	RunE:  runNotifyTest,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyTestCmd)
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	n := setupNotifier(cfg, &http.Client{Timeout: notifyTimeout}, logger)
	if err := notifier.SendTestMessage(context.Background(), n); err != nil {
		logger.Error("test notification failed", "error", err)
		return err
	}
	logger.Info("test notification sent successfully", "type", cfg.Notification.Type)
	return nil
}
