package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/skillforge/internal/server"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the skillforge API server",
	Long: `Start the skillforge HTTP server with REST API and WebSocket support.

API endpoints are under /api. Submissions posted to
/api/tasks/{id}/submissions are checked and stored; /api/tasks/{id}/ws
streams per-test progress while a check runs.

Examples:
  skillforge serve
  skillforge serve --port 9090`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.checker.CompilerAvailable(cmd.Context()) {
		a.logger.Warnw("Compiler not available; submissions will fail until it is installed",
			"compiler", a.checker.CompilerPath())
	}

	// Determine port
	port := a.cfg.Server.Port
	if portFlag > 0 {
		port = portFlag
	}

	srv := server.New(a.store, a.service, a.checker, a.logger.Named("server"))

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		if err := srv.Shutdown(context.Background()); err != nil {
			a.logger.Errorw("Shutdown failed", "error", err)
		}
	}()

	if err := srv.Start(port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
