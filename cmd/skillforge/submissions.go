package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/skillforge/internal/checker"
	"github.com/michaelbrown/skillforge/internal/storage"
)

var (
	taskFilter   string
	statusFilter string
	limitFlag    int
	codeFlag     bool
)

var submissionsCmd = &cobra.Command{
	Use:     "submissions",
	Aliases: []string{"submission", "s"},
	Short:   "Inspect checked submissions",
}

var submissionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List submissions, newest first",
	RunE:  runSubmissionsList,
}

var submissionsShowCmd = &cobra.Command{
	Use:   "show <submission-id>",
	Short: "Show a submission and its per-test report",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmissionsShow,
}

func init() {
	rootCmd.AddCommand(submissionsCmd)
	submissionsCmd.AddCommand(submissionsListCmd, submissionsShowCmd)

	submissionsListCmd.Flags().StringVar(&taskFilter, "task", "", "Filter by task ID")
	submissionsListCmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status (passed, failed, error)")
	submissionsListCmd.Flags().IntVar(&limitFlag, "limit", 20, "Max submissions to show")

	submissionsShowCmd.Flags().BoolVar(&codeFlag, "code", false, "Also print the submitted code")
}

func runSubmissionsList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	subs, err := a.store.ListSubmissions(cmd.Context(), storage.SubmissionListOptions{
		TaskID: taskFilter,
		Status: storage.SubmissionStatus(strings.ToUpper(statusFilter)),
		Limit:  limitFlag,
	})
	if err != nil {
		return err
	}

	if len(subs) == 0 {
		fmt.Println("No submissions found.")
		return nil
	}

	// Header
	fmt.Printf("%-10s %-20s %-8s %-8s %s\n", "ID", "TASK", "STATUS", "TESTS", "CREATED")
	fmt.Println(strings.Repeat("─", 70))

	for _, s := range subs {
		status := string(s.Status)
		if s.Resubmission {
			status += "*"
		}
		fmt.Printf("%-10s %-20s %-8s %-8s %s\n",
			s.ID[:8], truncate(s.TaskID, 20), status,
			fmt.Sprintf("%d/%d", s.TestsPassed, s.TestsTotal), timeAgo(s.CreatedAt))
	}

	return nil
}

func runSubmissionsShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	sub, err := a.store.GetSubmission(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Submission: %s\n", sub.ID)
	fmt.Printf("Task:       %s\n", sub.TaskID)
	fmt.Printf("Status:     %s\n", sub.Status)
	fmt.Printf("Tests:      %d/%d\n", sub.TestsPassed, sub.TestsTotal)
	if sub.Resubmission {
		fmt.Println("            (task was already solved)")
	}
	fmt.Printf("Created:    %s\n", sub.CreatedAt.Format(time.RFC3339))
	if sub.ErrorMessage != "" {
		fmt.Printf("\n%s\n", sub.ErrorMessage)
	}

	if codeFlag {
		fmt.Println(strings.Repeat("─", 60))
		fmt.Println(sub.Code)
	}

	if sub.TestResults == "" {
		return nil
	}
	report, err := checker.ParseReport(sub.TestResults)
	if err != nil {
		return err
	}

	fmt.Println(strings.Repeat("─", 60))
	for _, e := range report.Tests {
		mark := "\033[32mPASS\033[0m"
		if !e.Passed {
			mark = "\033[31mFAIL\033[0m"
		}
		fmt.Printf("#%-3d %s\n", e.TestNumber, mark)
		fmt.Printf("  \033[90minput:\033[0m    %s\n", truncate(e.Input, 100))
		fmt.Printf("  \033[90mexpected:\033[0m %s\n", truncate(e.Expected, 100))
		fmt.Printf("  \033[90mactual:\033[0m   %s\n", truncate(e.Actual, 100))
		if e.Error != "" {
			fmt.Printf("  \033[33m%s\033[0m\n", truncate(e.Error, 200))
		}
	}
	return nil
}

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
