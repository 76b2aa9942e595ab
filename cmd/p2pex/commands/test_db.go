package commands

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/p2pex/backend/pkg/config"
	"github.com/wonny/p2pex/backend/pkg/database"
	"github.com/wonny/p2pex/backend/pkg/redis"
)

// testDBCmd represents the test-db command
var testDBCmd = &cobra.Command{
	Use:   "test-db",
	Short: "Test PostgreSQL and Redis connectivity",
	Long: `Check the storage backends and print pool statistics.

This command:
- loads DATABASE_URL and REDIS_* from config
- connects and pings PostgreSQL
- creates the order mirror schema if missing
- prints connection pool statistics
- pings Redis when REDIS_ENABLED is set

Example:
  go run ./cmd/p2pex test-db`,
	RunE: runTestDB,
}

func init() {
	rootCmd.AddCommand(testDBCmd)
}

func runTestDB(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== p2pex Storage Connection Test ===")

	// Load configuration
	fmt.Fprintln(out, "Loading configuration...")
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("❌ Failed to load config: %w", err)
	}
	printSuccess(out, fmt.Sprintf("Config loaded (ENV: %s)", cfg.Env))
	printKeyValue(out, "Database URL", maskPassword(cfg.Database.URL), 12)

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	// PostgreSQL
	fmt.Fprintln(out, "\nConnecting to database...")
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("❌ Failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("❌ Failed to ping database: %w", err)
	}
	printSuccess(out, "Ping successful")

	if err := db.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("❌ Failed to ensure schema: %w", err)
	}
	printSuccess(out, "Order mirror schema present")

	status, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("❌ Health check failed: %w", err)
	}

	printHeader(out, "Connection Pool")
	printKeyValue(out, "Response Time", status.ResponseTime.String(), 18)
	printKeyValue(out, "Max Conns", fmt.Sprint(status.Stats.MaxConns), 18)
	printKeyValue(out, "Total Conns", fmt.Sprint(status.Stats.TotalConns), 18)
	printKeyValue(out, "Acquired Conns", fmt.Sprint(status.Stats.AcquiredConns), 18)
	printKeyValue(out, "Idle Conns", fmt.Sprint(status.Stats.IdleConns), 18)
	printKeyValue(out, "Acquire Count", fmt.Sprint(status.Stats.AcquireCount), 18)
	printKeyValue(out, "Acquire Duration", status.Stats.AcquireDuration.String(), 18)

	// Redis
	fmt.Fprintln(out)
	if !cfg.Redis.Enabled {
		printWarning(out, "Redis disabled (REDIS_ENABLED=false), skipping")
	} else {
		rc, err := redis.New(cfg)
		if err != nil {
			return fmt.Errorf("❌ %w", err)
		}
		defer rc.Close()

		if err := rc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("❌ Redis health check failed: %w", err)
		}
		printSuccess(out, fmt.Sprintf("Redis reachable at %s:%s", cfg.Redis.Host, cfg.Redis.Port))
	}

	fmt.Fprintln(out)
	printSuccess(out, "All checks passed!")
	return nil
}

// maskPassword hides the password of a connection URL for display
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
