package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/skillforge/internal/checker"
)

var jsonFlag bool

var checkCmd = &cobra.Command{
	Use:   "check <source.c> <tests.json>",
	Short: "Check a C source file against a test spec",
	Long: `Compile a C source file and run it against the test cases in a JSON
file of the form {"tests":[{"input":"...","output":"..."}]}.

The command exits non-zero unless every test passes. Nothing is stored.

Examples:
  skillforge check solution.c tests.json
  skillforge check solution.c tests.json --json`,
	Args: cobra.ExactArgs(2),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&jsonFlag, "json", false, "Print the verdict as JSON")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}
	tests, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("reading tests: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	v := a.service.Check(ctx, checker.Request{
		Source:    string(source),
		TestsJSON: string(tests),
	}, nil)

	out := cmd.OutOrStdout()
	if jsonFlag {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return err
		}
	} else {
		printVerdict(out, v)
	}

	if v.Status != checker.StatusPassed {
		return fmt.Errorf("check %s", strings.ToLower(string(v.Status)))
	}
	return nil
}

func printVerdict(w io.Writer, v checker.Verdict) {
	fmt.Fprintf(w, "Status:   %s\n", v.Status)
	if v.Message != "" && v.CompilationError == "" {
		fmt.Fprintf(w, "Message:  %s\n", v.Message)
	}
	if v.CompilationError != "" {
		fmt.Fprintf(w, "\nCompilation error:\n%s\n", v.CompilationError)
		return
	}
	if v.TestsTotal == 0 {
		return
	}

	fmt.Fprintf(w, "Passed:   %d/%d\n", v.TestsPassed, v.TestsTotal)
	fmt.Fprintln(w, strings.Repeat("─", 60))
	for i, r := range v.TestResults {
		mark := "\033[32mPASS\033[0m"
		if !r.Passed {
			mark = "\033[31mFAIL\033[0m"
		}
		fmt.Fprintf(w, "#%-3d %s  input: %s\n", i+1, mark, truncate(r.Input, 60))
		if !r.Passed && r.ErrorMessage != "" {
			fmt.Fprintf(w, "      %s\n", truncate(r.ErrorMessage, 200))
		}
	}
}
