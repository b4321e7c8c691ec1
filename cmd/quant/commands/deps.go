package commands

import (
	"context"
	"fmt"

	"github.com/wonny/fvgsim/internal/audit"
	"github.com/wonny/fvgsim/internal/backtest"
	"github.com/wonny/fvgsim/internal/risk"
	"github.com/wonny/fvgsim/internal/s0_data"
	"github.com/wonny/fvgsim/internal/strategyconfig"
	"github.com/wonny/fvgsim/pkg/config"
	"github.com/wonny/fvgsim/pkg/database"
	"github.com/wonny/fvgsim/pkg/logger"
	"github.com/wonny/fvgsim/pkg/redis"
)

// env bundles what every command needs
type env struct {
	cfg *config.Config
	log *logger.Logger
	db  *database.DB // nil without DATABASE_URL
	rdb *redis.Client
}

// setup loads process config and the logger. The database and Redis are
// opened only when requested.
func setup(ctx context.Context, needDB bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	e := &env{cfg: cfg, log: logger.New(cfg), rdb: redis.Disabled()}
	if !needDB {
		return e, nil
	}

	if !cfg.HasDatabase() {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	if e.db, err = database.New(ctx, cfg); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := e.db.EnsureSchema(ctx); err != nil {
		e.db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	if e.rdb, err = redis.New(ctx, cfg); err != nil {
		// 캐시 없이도 실행 가능
		e.log.WithError(err).Warn("Redis unavailable, dataset cache disabled")
		e.rdb = redis.Disabled()
	}
	return e, nil
}

func (e *env) close() {
	if e.db != nil {
		e.db.Close()
	}
	_ = e.rdb.Close()
}

// strategy resolves --strategy, then $STRATEGY_CONFIG, then the defaults
func (e *env) strategy() (*strategyconfig.Config, error) {
	path := strategyFile
	if path == "" {
		path = e.cfg.StrategyConfigPath
	}
	if path == "" {
		cfg := strategyconfig.Default()
		return &cfg, nil
	}

	cfg, _, err := strategyconfig.Load(path)
	if err != nil {
		return nil, err
	}
	e.log.WithField("path", path).Info("Strategy config loaded")
	return cfg, nil
}

// loader reads CSV files from dataDir when given; otherwise Postgres,
// through the Redis cache when it is enabled
func (e *env) loader(dataDir string) (s0_data.Loader, error) {
	if dataDir != "" {
		ds, err := s0_data.ReadCSVDir(dataDir)
		if err != nil {
			return nil, fmt.Errorf("read csv dataset: %w", err)
		}
		return s0_data.StaticLoader{Dataset: ds}, nil
	}

	if e.db == nil {
		return nil, fmt.Errorf("no --data-dir given and no database configured")
	}
	repo := s0_data.NewRepository(e.db.Pool)
	if e.rdb.Enabled() {
		return s0_data.NewCachedLoader(repo, redis.NewCache(e.rdb, "fvgsim"), e.cfg.Redis.TTL, e.log), nil
	}
	return s0_data.NewDBLoader(repo, e.log), nil
}

// auditRepo returns the run repository; the database must be open
func (e *env) auditRepo() *audit.Repository {
	return audit.NewRepository(e.db.Pool)
}

// engineOptions configures the analyzer with optional bootstrap statistics
func engineOptions(e *env, bootstrap int, seed int64, observer backtest.Observer) []backtest.Option {
	analyzer := audit.NewAnalyzer(risk.NewEngine(risk.DefaultLimits()), e.log)
	if bootstrap > 0 {
		bc := risk.DefaultBootstrapConfig()
		bc.NumSimulations = bootstrap
		bc.Seed = seed
		analyzer = analyzer.WithBootstrap(bc)
	}

	opts := []backtest.Option{backtest.WithAnalyzer(analyzer)}
	if observer != nil {
		opts = append(opts, backtest.WithObserver(observer))
	}
	return opts
}
