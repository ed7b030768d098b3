package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/auros/internal/model"
	"github.com/amishk599/auros/internal/store"
	"github.com/amishk599/auros/internal/watch"
)

// errorsShown caps how many scan errors the CLI prints.
const errorsShown = 5

var watchInterval time.Duration

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current or last scan",
	RunE:  runStatus,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the running scan",
	Long:  "Requests cooperative cancellation: the company in flight finishes, the rest are skipped.",
	RunE:  runCancel,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the running scan live",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "status poll interval")
	rootCmd.AddCommand(statusCmd, cancelCmd, watchCmd)
}

// withStore runs fn against the configured store without building the scan pipeline.
func withStore(fn func(ctx context.Context, st *store.Store) error) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}
	ctx := context.Background()
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, st)
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, st *store.Store) error {
		state, err := st.CurrentStatus(ctx)
		if err != nil {
			return err
		}
		printStatus(state)
		return nil
	})
}

func runCancel(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, st *store.Store) error {
		res, err := st.RequestCancellation(ctx)
		if err != nil {
			return err
		}
		if !res.Cancelled {
			return model.ErrNoScanRunning
		}
		fmt.Printf("Cancellation requested; %d companies will be skipped.\n", res.UnitsSkipped)
		return nil
	})
}

type storeStatus struct {
	st *store.Store
}

func (s storeStatus) Status(ctx context.Context) (model.ScanState, error) {
	return s.st.CurrentStatus(ctx)
}

func runWatch(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, st *store.Store) error {
		_, err := watch.Run(ctx, storeStatus{st}, watchInterval)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
}

func fmtTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func printStatus(s model.ScanState) {
	status := string(s.Status)
	if s.Stale {
		status += " (stale, treated as idle)"
	}
	if s.CancelRequested {
		status += " (cancel requested)"
	}
	fmt.Printf("%-18s %s\n", "Status:", status)
	if s.ScanID == "" {
		return
	}
	fmt.Printf("%-18s %s\n", "Scan ID:", s.ScanID)
	fmt.Printf("%-18s %s\n", "Started:", fmtTime(s.StartedAt))
	fmt.Printf("%-18s %s\n", "Completed:", fmtTime(s.CompletedAt))
	fmt.Printf("%-18s %d / %d\n", "Companies:", s.CompaniesScanned, s.CompaniesTotal)
	fmt.Printf("%-18s %d found, %d new\n", "Jobs:", s.JobsFound, s.JobsNew)
	printErrors(s.Errors)
}

func printErrors(errs []string) {
	if len(errs) == 0 {
		return
	}
	fmt.Printf("%-18s %d\n", "Errors:", len(errs))
	for _, e := range errs[:min(len(errs), errorsShown)] {
		fmt.Printf("  - %s\n", e)
	}
	if len(errs) > errorsShown {
		fmt.Printf("  ... and %d more\n", len(errs)-errorsShown)
	}
}
