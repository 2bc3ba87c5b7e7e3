package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "skillforge",
	Short: "skillforge - C exercise checker",
	Long: `skillforge compiles C submissions with gcc, runs them against a task's
test cases in a sandbox, and records the verdicts.

It can serve an HTTP/WebSocket API, check a single file from the command
line, and manage the task catalog and submission history.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default: ./skillforge.yaml or ~/.skillforge/skillforge.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
