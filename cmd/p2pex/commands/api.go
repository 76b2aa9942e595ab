package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/p2pex/backend/internal/api"
	"github.com/wonny/p2pex/backend/internal/api/handlers"
	"github.com/wonny/p2pex/backend/internal/settlement"
	"github.com/wonny/p2pex/backend/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Start the HTTP API server.

The server keeps an in-memory order snapshot fresh on
SNAPSHOT_REFRESH_SCHEDULE and answers match requests against it.

Endpoints:
  GET  /health                        - Health check
  GET  /metrics                       - Prometheus metrics
  GET  /api/orders?view=              - Order snapshot (active|completed|disputed)
  POST /api/orders                    - Create an order
  GET  /api/orders/{id}               - One order
  POST /api/orders/{id}/transitions   - Apply a lifecycle action
  GET  /api/lifecycle/transitions     - Transition table
  POST /api/match                     - Best counter-order
  POST /api/estimate                  - Non-binding quote
  GET  /ws/estimate                   - Live quotes (websocket)

Example:
  go run ./cmd/p2pex api
  go run ./cmd/p2pex api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort  string
	apiSweep bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
	apiCmd.Flags().BoolVar(&apiSweep, "sweep", false, "also run the fiat timeout sweep in this process")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== p2pex API Server ===")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if apiPort != "" {
		rt.cfg.Port = apiPort
	}

	// Snapshot first, then keep it fresh
	rt.waitForSnapshot(ctx)

	sched, err := rt.newScheduler(apiSweep)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	router := api.NewRouter(buildHandlers(rt), rt.log)
	server := api.New(rt.cfg, rt.log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	rt.log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", rt.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	rt.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	rt.log.Info("Server stopped")
	return nil
}

func buildHandlers(rt *runtime) api.Handlers {
	match := handlers.NewMatchHandler(rt.store, rt.engine, rt.metrics, rt.log)
	if rt.redis.Enabled() {
		match.WithRateLimit(redis.NewRateLimiter(rt.redis, keyPrefix), rt.cfg.Matching.RateLimit)
	}

	return api.Handlers{
		Orders:         handlers.NewOrderHandler(rt.store, rt.settlement, rt.log),
		Match:          match,
		Stream:         handlers.NewStreamHandler(match, rt.cfg.CORSAllowedOrigins),
		Store:          rt.store,
		Metrics:        rt.metrics,
		AllowedOrigins: rt.cfg.CORSAllowedOrigins,
		MaxSnapshotAge: 10 * redis.TTLSnapshot,
	}
}

var _ handlers.Settlement = (*settlement.Service)(nil)
