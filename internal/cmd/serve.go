package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ghelleks/email-labeler-agent-sub001/internal/server"
	"github.com/ghelleks/email-labeler-agent-sub001/internal/trigger"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the labeler server with scheduled cycles and an HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server_addr config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	scheduler := trigger.NewScheduler(a.orchestrator)
	if err := scheduler.RegisterSchedule(a.cfg.CycleCron); err != nil {
		return fmt.Errorf("registering schedule: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	if a.cfg.APIToken == "" {
		log.Warn().Msg("api_token not set, HTTP API runs unauthenticated. Set LABELER_API_TOKEN for production.")
	}

	srv := server.New(a.orchestrator, a.tracker, a.audits, a.cfg.APIToken)

	addr := a.cfg.ServerAddr
	if serveAddr != "" {
		addr = serveAddr
	}
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().
		Str("addr", addr).
		Str("cycle_cron", a.cfg.CycleCron).
		Int("cron_entries", scheduler.Entries()).
		Str("policy", a.pol.Name).
		Msg("labeler_serve_started")

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown_signal_received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server_stopped")
	return nil
}
