package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/skillforge/internal/checker"
	"github.com/michaelbrown/skillforge/internal/storage"
)

var (
	publishedFlag bool
	taskLimitFlag int
)

var tasksCmd = &cobra.Command{
	Use:     "tasks",
	Aliases: []string{"task", "t"},
	Short:   "Manage the task catalog",
}

var tasksImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Create or replace tasks from a YAML catalog",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksImport,
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTasksList,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksImportCmd, tasksListCmd)

	tasksListCmd.Flags().BoolVar(&publishedFlag, "published", false, "Only show published tasks")
	tasksListCmd.Flags().IntVar(&taskLimitFlag, "limit", 50, "Max tasks to show")
}

func runTasksImport(cmd *cobra.Command, args []string) error {
	tasks, err := storage.LoadTaskFile(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	for i := range tasks {
		if err := a.store.UpsertTask(cmd.Context(), &tasks[i]); err != nil {
			return fmt.Errorf("importing task %s: %w", tasks[i].ID, err)
		}
		n := len(checker.ParseTestCases(tasks[i].TestCases))
		fmt.Printf("Imported %-20s %d tests\n", tasks[i].ID, n)
	}
	return nil
}

func runTasksList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	tasks, err := a.store.ListTasks(cmd.Context(), storage.TaskListOptions{
		PublishedOnly: publishedFlag,
		Limit:         taskLimitFlag,
	})
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks found.")
		return nil
	}

	// Header
	fmt.Printf("%-20s %-40s %-12s %-6s %s\n", "ID", "TITLE", "DIFFICULTY", "TESTS", "PUBLISHED")
	fmt.Println(strings.Repeat("─", 90))

	for _, t := range tasks {
		fmt.Printf("%-20s %-40s %-12s %-6d %v\n",
			truncate(t.ID, 20), truncate(t.Title, 38), t.Difficulty,
			len(checker.ParseTestCases(t.TestCases)), t.Published)
	}
	return nil
}
