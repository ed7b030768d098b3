package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/auros/internal/model"
	"github.com/amishk599/auros/internal/store"
)

var logsLimit int

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent scan history",
	RunE:  runLogs,
}

func init() {
	logsCmd.Flags().IntVarP(&logsLimit, "limit", "n", 10, "number of scans to show")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, st *store.Store) error {
		logs, err := st.ScanLogs(ctx, logsLimit)
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			fmt.Println("No scans recorded yet.")
			return nil
		}

		fmt.Printf("%-20s %-10s %-10s %-8s %-6s %-7s %s\n", "Started", "Duration", "Companies", "Skipped", "Found", "New", "Errors")
		fmt.Println(strings.Repeat("─", 78))
		for _, l := range logs {
			started := l.StartedAt
			note := ""
			if l.Cancelled {
				note = " (cancelled)"
			}
			fmt.Printf("%-20s %-10s %-10d %-8d %-6d %-7d %d%s\n",
				fmtTime(&started),
				l.CompletedAt.Sub(l.StartedAt).Round(time.Second).String(),
				l.CompaniesScanned,
				l.CompaniesSkipped,
				l.JobsFound,
				l.JobsNew,
				len(l.Errors),
				note,
			)
		}
		return nil
	})
}

func printScanLog(l model.ScanLog) {
	fmt.Printf("Scan %s finished", l.ScanID)
	if l.Cancelled {
		fmt.Print(" (cancelled)")
	}
	fmt.Println()
	fmt.Printf("%-18s %d scanned, %d skipped\n", "Companies:", l.CompaniesScanned, l.CompaniesSkipped)
	fmt.Printf("%-18s %d found, %d new\n", "Jobs:", l.JobsFound, l.JobsNew)
	fmt.Printf("%-18s %s\n", "Duration:", l.CompletedAt.Sub(l.StartedAt).Round(time.Second))
	printErrors(l.Errors)
}
