package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/snowball-gateway/internal/server"
	"github.com/Sternrassler/snowball-gateway/pkg/logging"
	"github.com/spf13/cobra"
)

var (
	serverPort int
	serverHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP gateway",
	Long: `Start the HTTP gateway with graceful shutdown support.

Routes:
  GET /health                       liveness and cache connectivity
  GET /metrics                      Prometheus metrics
  GET /v1/ops                       operation catalog
  GET /v1/ops/{operation}?k=v       invoke one operation (profile=, raw=true)
  GET /v1/batch/{operation}?symbols=A,B
  GET /v1/status                    credential pool and limiter state

SIGINT or SIGTERM drains in-flight requests and exits.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "listen port (overrides server.port)")
	serveCmd.Flags().StringVar(&serverHost, "host", "", "listen host (overrides server.host)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logging.NewLogger("serve")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stack, err := bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	srvCfg := cfg.Server
	if serverPort != 0 {
		srvCfg.Port = serverPort
	}
	if serverHost != "" {
		srvCfg.Host = serverHost
	}

	deps := server.Deps{
		Gateway: stack.gateway,
		Batch:   stack.batch,
		Pool:    stack.pool,
		Limiter: stack.limiter,
	}
	if stack.cache != nil {
		deps.Cache = stack.cache
	}
	srv := server.New(srvCfg, deps)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	logger.Info().
		Str("version", versionInfo.Version).
		Str("addr", srvCfg.Addr()).
		Msg("Gateway serving")

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), srvCfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("HTTP server stopped gracefully")
	return nil
}
