package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/auros/internal/model"
	"github.com/amishk599/auros/internal/store"
)

var (
	jobsMinScore float64
	jobsStatus   string
	jobsCompany  string
	jobsLimit    int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List discovered postings, best match first",
	RunE:  runJobs,
}

var jobsMarkCmd = &cobra.Command{
	Use:   "mark <id> <new|bookmarked|applied|hidden>",
	Short: "Set the triage status of a posting",
	Args:  cobra.ExactArgs(2),
	RunE:  runJobsMark,
}

func init() {
	jobsCmd.Flags().Float64Var(&jobsMinScore, "min-score", 0, "only show postings scoring at least this")
	jobsCmd.Flags().StringVar(&jobsStatus, "status", "", "filter by status")
	jobsCmd.Flags().StringVar(&jobsCompany, "company", "", "filter by company id")
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 25, "maximum postings to show")
	jobsCmd.AddCommand(jobsMarkCmd)
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, st *store.Store) error {
		postings, err := st.ListPostings(ctx, store.PostingFilter{
			CompanyID: jobsCompany,
			Status:    model.PostingStatus(jobsStatus),
			MinScore:  jobsMinScore,
			Limit:     jobsLimit,
		})
		if err != nil {
			return err
		}
		if len(postings) == 0 {
			fmt.Println("No postings found.")
			return nil
		}

		fmt.Printf("%-6s %-12s %-40s %-8s %-18s %-10s %s\n", "Score", "Company", "Title", "Mode", "Salary", "Status", "ID")
		fmt.Println(strings.Repeat("─", 120))
		for _, p := range postings {
			fmt.Printf("%-6s %-12s %-40s %-8s %-18s %-10s %s\n",
				fmt.Sprintf("%.0f%%", p.MatchScore*100),
				clip(p.CompanyID, 12),
				clip(p.Title, 40),
				p.WorkMode,
				salaryRange(p),
				p.Status,
				p.ID,
			)
		}
		return nil
	})
}

func runJobsMark(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, st *store.Store) error {
		if err := st.SetPostingStatus(ctx, args[0], model.PostingStatus(args[1])); err != nil {
			return err
		}
		fmt.Printf("%s marked %s\n", args[0], args[1])
		return nil
	})
}

func salaryRange(p model.Posting) string {
	if p.SalaryMin == nil || p.SalaryMax == nil {
		return "-"
	}
	s := fmt.Sprintf("$%dk-$%dk", *p.SalaryMin/1000, *p.SalaryMax/1000)
	if p.SalaryEstimated() {
		s += " (est)"
	}
	return s
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
