package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/lukman83/closeshave/internal/api"
	"github.com/lukman83/closeshave/internal/cache"
	mcpserver "github.com/lukman83/closeshave/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveHTTPCmd = &cobra.Command{
	Use:   "serve-http",
	Short: "Start the HTTP API and MCP HTTP server",
	Long:  "Serve the search API, image proxy, Prometheus metrics and the MCP endpoint over HTTP.",
	RunE:  runServeHTTP,
}

func init() {
	serveHTTPCmd.Flags().String("port", "", "HTTP port (default from $PORT or 8000)")
	rootCmd.AddCommand(serveHTTPCmd)
}

func runServeHTTP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmdContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	port := cfg.HTTPPort
	if p, _ := cmd.Flags().GetString("port"); p != "" {
		port = p
	}

	handlers := api.NewHandlers(api.Options{
		Version:     cfg.Version,
		Search:      a.search,
		Validator:   a.validator,
		Merchants:   a.registry,
		ImageProxy:  api.NewImageProxy(nil),
		Metrics:     a.metrics,
		MCP:         mcpserver.Handler(a.mcpDeps(), cfg.APIKey),
		CORSOrigins: cfg.CORSOrigins,
		// Headless merchants can take most of the merchant timeout.
		RequestTimeout: cfg.MerchantTimeout + 15*time.Second,
		Log:            a.log.Named("api"),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      handlers.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.MerchantTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if a.store != nil {
		go sweepLoop(ctx, a.store, cfg.CacheSweepInterval, a.log.Named("cache"))
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("CloseShave HTTP server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// sweepLoop removes expired cache entries once at startup and then every
// interval until ctx is done.
func sweepLoop(ctx context.Context, store cache.Store, interval time.Duration, log *zap.Logger) {
	sweep := func() {
		n, err := store.Sweep(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("cache sweep failed", zap.Error(err))
			}
			return
		}
		log.Info("cleaned up expired cache entries", zap.Int64("removed", n))
	}

	sweep()
	if interval <= 0 {
		return
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			sweep()
		}
	}
}
