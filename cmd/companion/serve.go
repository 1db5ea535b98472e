package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"talking-pet/companion/shared/observability"
)

var (
	listenAddr string
	noReminder bool
)

// serveCmd runs the loopback control surface
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the loopback control surface",
	Long: `Serve the companion's HTTP and websocket surface on a loopback address.

The pet profile and shop catalog are loaded on startup and the reminder loop
starts unless disabled. Ctrl-C shuts everything down gracefully.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (or set LISTEN_ADDR)")
	serveCmd.Flags().BoolVar(&noReminder, "no-reminders", false, "Do not start the reminder loop")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()
	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}

	c, err := newContainer(ctx, cfg)
	if err != nil {
		return err
	}
	log := c.Logger

	log.Info("Starting companion", "gateway", cfg.Gateway.URL, "listen", cfg.Server.ListenAddr)

	if err := c.Store.LoadProfile(ctx); err != nil {
		log.LogWarn(err, "Initial profile load failed")
	}
	if _, err := c.Store.LoadShop(ctx, false); err != nil {
		log.LogWarn(err, "Initial shop load failed")
	}
	if cfg.Reminders.Enabled && !noReminder {
		c.Store.StartReminders()
	}

	servers := []*http.Server{{
		Addr:              cfg.Server.ListenAddr,
		Handler:           c.Router().Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if cfg.Telemetry.MetricsAddr != "" {
		servers = append(servers, &http.Server{
			Addr:              cfg.Telemetry.MetricsAddr,
			Handler:           observability.Handler(c.Registry),
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			log.Info("Server starting", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Hub first so websocket connections do not hold Shutdown open
		c.Hub.Stop()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.LogError(err, "Server forced to shutdown", "addr", srv.Addr)
			}
		}
		return c.Close(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.LogError(err, "Companion stopped with error")
		return err
	}

	log.Info("Server exited gracefully")
	return nil
}
