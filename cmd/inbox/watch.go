package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/shopdesk/inbox"
)

var watchMetricsAddr string

func init() {
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the inbox in sync until interrupted",
	Long:  "Poll the server on the configured interval, print sync events, and save the snapshot after every refresh.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reg := prometheus.NewRegistry()
		metrics := inbox.NewMetrics(reg)

		s, err := openSession(ctx, metrics)
		if err != nil {
			return err
		}
		defer s.Close()
		if s.cfg.Default.StoreRef == "" {
			return errors.New("no store configured. Run 'inbox config set default.store_ref <ref>' first")
		}

		if watchMetricsAddr != "" {
			ln, err := net.Listen("tcp", watchMetricsAddr)
			if err != nil {
				return fmt.Errorf("metrics listener: %w", err)
			}
			stopMetrics := serveHTTP(ln, metricsMux(reg), s.log)
			defer stopMetrics(5 * time.Second)
		}

		s.inbox.On("sync.complete", func(_ string, payload any) {
			p, _ := payload.(map[string]any)
			fmt.Printf("%s synced: %v new, %v updated\n", time.Now().Format("15:04:05"), p["inserted"], p["merged"])
			saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.save(saveCtx); err != nil {
				s.log.Error("snapshot not saved", "err", err)
			}
		})
		s.inbox.On("sync.error", func(_ string, payload any) {
			p, _ := payload.(map[string]any)
			fmt.Printf("%s sync failed: %v\n", time.Now().Format("15:04:05"), p["error"])
		})

		interval, _ := s.cfg.pollInterval()
		fmt.Printf("Watching store %s every %s. Press Ctrl+C to stop.\n", s.cfg.Default.StoreRef, interval)
		s.inbox.Start(ctx)
		<-ctx.Done()
		s.inbox.Close()

		saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.save(saveCtx)
	},
}

// serveHTTP serves h on ln in the background. The returned func shuts the
// server down, waiting at most timeout for in-flight requests.
func serveHTTP(ln net.Listener, h http.Handler, log *slog.Logger) func(timeout time.Duration) {
	srv := &http.Server{Handler: h}
	addr := ln.Addr().String()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "addr", addr, "err", err)
		}
	}()
	return func(timeout time.Duration) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("metrics server shutdown", "addr", addr, "err", err)
		}
	}
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}
