package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/auros/internal/model"
	"github.com/amishk599/auros/internal/watch"
)

var scanWatch bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan now",
	Long: "Runs a full scan over all enabled companies in the foreground. " +
		"If a scan is already running, its status is shown instead.",
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVarP(&scanWatch, "watch", "w", false, "show a live progress view while the scan runs")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
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

	if scanWatch {
		if _, err := orch.Trigger(ctx); err != nil {
			return err
		}
		final, err := watch.Run(ctx, orch, time.Second)
		if err != nil {
			return err
		}
		if final.Running() {
			fmt.Println("Waiting for the scan to finish (ctrl+c to stop)...")
		}
		orch.Wait()
		return nil
	}

	log, err := orch.Run(ctx)
	if errors.Is(err, model.ErrAlreadyRunning) {
		state, statusErr := orch.Status(ctx)
		if statusErr != nil {
			return statusErr
		}
		fmt.Println("A scan is already running.")
		printStatus(state)
		return nil
	}
	if err != nil {
		return err
	}
	printScanLog(log)
	return nil
}
