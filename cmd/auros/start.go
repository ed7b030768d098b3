package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/auros/internal/scheduler"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the scan daemon",
	Long:  "Start the cron scheduler; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if !cfg.Schedule.Enabled {
		return errors.New("schedule is disabled in config; use `auros scan` for a one-off run")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	orch, err := buildOrchestrator(cfg, st, logger)
	if err != nil {
		return err
	}

	logger.Info("config loaded",
		"companies", len(cfg.Companies),
		"llm", cfg.LLM.Provider+"/"+cfg.LLM.Model,
		"notifier", cfg.Notification.Type,
		"database", cfg.Database.Driver,
	)

	sched, err := scheduler.New(orch, cfg.Schedule.Cron, cfg.Schedule.Timezone, cfg.Schedule.RunOnStart, logger)
	if err != nil {
		return err
	}
	if err := sched.Run(ctx); err != nil {
		return err
	}

	logger.Info("goodbye")
	return nil
}
