package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/auros/internal/store"
)

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "Manage scan targets",
}

var companiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all companies with their scrape health",
	RunE:  runCompaniesList,
}

var companiesEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Include a company in scans",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setEnabled(args[0], true) },
}

var companiesDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Exclude a company from scans",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setEnabled(args[0], false) },
}

func init() {
	companiesCmd.AddCommand(companiesListCmd, companiesEnableCmd, companiesDisableCmd)
	rootCmd.AddCommand(companiesCmd)
}

func runCompaniesList(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, st *store.Store) error {
		companies, err := st.ListCompanies(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("%-14s %-22s %-5s %-9s %-8s %s\n", "ID", "Company", "Tier", "Status", "Health", "Last scraped")
		fmt.Println(strings.Repeat("─", 80))

		enabled := 0
		for _, c := range companies {
			status := "disabled"
			if c.Enabled {
				status = "enabled"
				enabled++
			}
			health := string(c.ScrapeStatus)
			if health == "" {
				health = "-"
			}
			fmt.Printf("%-14s %-22s %-5d %-9s %-8s %s\n", c.ID, c.Name, c.Tier, status, health, fmtTime(c.LastScraped))
		}

		fmt.Printf("\nTotal: %d companies (%d enabled, %d disabled)\n", len(companies), enabled, len(companies)-enabled)
		return nil
	})
}

func setEnabled(id string, enabled bool) error {
	return withStore(func(ctx context.Context, st *store.Store) error {
		if err := st.SetCompanyEnabled(ctx, id, enabled); err != nil {
			return err
		}
		state := "disabled"
		if enabled {
			state = "enabled"
		}
		fmt.Printf("%s %s\n", id, state)
		return nil
	})
}
