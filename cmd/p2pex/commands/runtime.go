package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/wonny/p2pex/backend/internal/lifecycle"
	"github.com/wonny/p2pex/backend/internal/matchconfig"
	"github.com/wonny/p2pex/backend/internal/matching"
	"github.com/wonny/p2pex/backend/internal/metrics"
	"github.com/wonny/p2pex/backend/internal/orderbook"
	"github.com/wonny/p2pex/backend/internal/scheduler"
	"github.com/wonny/p2pex/backend/internal/scheduler/jobs"
	"github.com/wonny/p2pex/backend/internal/settlement"
	"github.com/wonny/p2pex/backend/pkg/config"
	"github.com/wonny/p2pex/backend/pkg/database"
	"github.com/wonny/p2pex/backend/pkg/httputil"
	"github.com/wonny/p2pex/backend/pkg/logger"
	"github.com/wonny/p2pex/backend/pkg/redis"
)

// keyPrefix namespaces every Redis key this service writes
const keyPrefix = "p2pex"

// runtime holds the wired service graph shared by api and scheduler
type runtime struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Metrics

	engine *matching.Engine

	db    *database.DB
	redis *redis.Client

	store      *orderbook.Store
	refresher  *orderbook.Refresher
	settlement *settlement.Service
}

// newRuntime loads config and connects to Postgres and Redis.
// Redis is optional: when it cannot be reached the service runs without cache and shared limits.
func newRuntime(ctx context.Context) (*runtime, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	// 3. Matching policy
	pcfg, err := loadPolicy(firstNonEmpty(policyFile, cfg.Matching.PolicyFile), log)
	if err != nil {
		return nil, err
	}
	policy, err := pcfg.MatchingPolicy()
	if err != nil {
		return nil, fmt.Errorf("matching policy: %w", err)
	}
	engine := matching.NewEngine(policy, log)
	machine := lifecycle.NewMachine(pcfg.LifecycleConfig(cfg.Matching.DisputeResolver))

	// 4. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	// 5. Connect to Redis
	rc, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without cache and shared rate limits")
		rc = redis.NewFromRedis(nil)
	}

	// 6. Order source: indexer feed when configured, otherwise the mirror itself
	repo := orderbook.NewRepository(db.Pool)
	store := orderbook.NewStore()

	var source orderbook.Source = repo
	fromFeed := cfg.OrderFeed.URL != ""
	if fromFeed {
		client := httputil.New(cfg, log).WithLimiter(cfg.OrderFeed.RequestsPerSec)
		if rc.Enabled() {
			client.WithRateLimiter(redis.NewRateLimiter(rc, keyPrefix), redis.OrderFeedRateLimit)
		}
		source = orderbook.NewFeed(client, cfg.OrderFeed.URL, log)
	}

	refresher := orderbook.NewRefresher(source, store, log).WithMetrics(m)
	if rc.Enabled() {
		refresher.WithCache(orderbook.NewSnapshotCache(redis.NewCache(rc, keyPrefix), cfg.OrderFeed.CacheTTL))
	}
	if fromFeed {
		refresher.WithMirror(repo)
	}

	log.WithFields(map[string]interface{}{
		"env":       cfg.Env,
		"source":    source.Name(),
		"policy_id": pcfg.Meta.PolicyID,
		"redis":     rc.Enabled(),
	}).Info("Runtime initialized")

	return &runtime{
		cfg:        cfg,
		log:        log,
		metrics:    m,
		engine:     engine,
		db:         db,
		redis:      rc,
		store:      store,
		refresher:  refresher,
		settlement: settlement.NewService(repo, machine, m, log),
	}, nil
}

// Close releases connections
func (rt *runtime) Close() {
	if err := rt.redis.Close(); err != nil {
		rt.log.WithError(err).Warn("Failed to close redis")
	}
	rt.db.Close()
}

// newScheduler registers the snapshot jobs and, when sweep is set, the fiat timeout sweep
func (rt *runtime) newScheduler(sweep bool) (*scheduler.Scheduler, error) {
	sched := scheduler.New(rt.log)

	maxAge := 10 * redis.TTLSnapshot
	toAdd := []scheduler.Job{
		jobs.NewSnapshotRefreshJob(rt.refresher, rt.cfg.OrderFeed.RefreshSchedule, rt.log),
		jobs.NewSnapshotWatchdogJob(rt.store, maxAge, rt.log),
	}
	if sweep {
		toAdd = append(toAdd, jobs.NewFiatTimeoutJob(rt.settlement, rt.log))
	}

	for _, job := range toAdd {
		if err := sched.AddJob(job); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

// loadPolicy reads the policy file, or the built-in default when path is empty
func loadPolicy(path string, log *logger.Logger) (*matchconfig.Config, error) {
	if path == "" {
		return matchconfig.Default(), nil
	}

	pcfg, yamlData, err := matchconfig.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load policy %s: %w", path, err)
	}

	snapshot, err := matchconfig.NewPolicySnapshot(pcfg, yamlData)
	if err != nil {
		return nil, fmt.Errorf("hash policy: %w", err)
	}
	log.WithFields(map[string]interface{}{
		"policy_id": snapshot.PolicyID,
		"hash":      snapshot.PolicyHash[:12],
	}).Info("Matching policy loaded")

	for _, w := range matchconfig.Warn(pcfg) {
		log.WithField("code", w.Code).Warn(w.Message)
	}

	return pcfg, nil
}

// cliLogger logs to stderr for commands that run without the service config
func cliLogger() *logger.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	return logger.NewWithWriter(os.Stderr, level)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// waitForSnapshot performs the first refresh so the API never serves an empty book on boot
func (rt *runtime) waitForSnapshot(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	snapshot, err := rt.refresher.Refresh(ctx)
	if err != nil {
		rt.log.WithError(err).Warn("Initial snapshot refresh failed, serving empty book until the next refresh")
		return
	}
	rt.log.WithFields(map[string]interface{}{
		"orders": snapshot.Len(),
		"source": snapshot.Source(),
	}).Info("Initial snapshot loaded")
}
