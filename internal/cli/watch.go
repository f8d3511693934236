package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"git.sr.ht/~jakintosh/authclient/pkg/client"
)

func newWatchCommand() *cobra.Command {
	var (
		metricsAddr string
		interval    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the session refreshed until interrupted",
		Long: "Restores the cached session and keeps it alive, refreshing before expiry.\n" +
			"Prometheus metrics are served on --metrics-addr when set.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return rt.watch(ctx, metricsAddr, interval)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. 127.0.0.1:9090")
	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "How often to report the session state")
	return cmd
}

func (rt *runtimeState) watch(
	ctx context.Context,
	metricsAddr string,
	interval time.Duration,
) error {
	if interval <= 0 {
		return errors.New("interval must be positive")
	}

	reg := prometheus.NewRegistry()
	metrics, err := client.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	s, err := rt.openSession(ctx, nil, client.WithMetrics(metrics))
	if err != nil {
		return err
	}
	defer func() {
		_ = s.Close()
	}()

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		server := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				rt.log.Errorw("metrics server failed", "addr", metricsAddr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		state := s.State()
		rt.report(s.Client, state)
		if state == client.Unauthenticated {
			return notSignedIn(client.ErrInvalidToken)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (rt *runtimeState) report(c *client.Client, state client.State) {
	info, err := c.TokenInfo()
	if err != nil {
		_, _ = fmt.Fprintf(rt.Writer(), "%s %s\n", time.Now().UTC().Format(time.RFC3339), state)
		return
	}
	_, _ = fmt.Fprintf(rt.Writer(), "%s %s user=%s expires_in=%dm\n",
		time.Now().UTC().Format(time.RFC3339), state, info.User.Username, info.MinutesUntilExpiry)
}
