package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/fvgsim/internal/contracts"
	"github.com/wonny/fvgsim/pkg/logger"
	"github.com/wonny/fvgsim/pkg/redis"
)

// LoadRequest describes the input window of one run.
// Bars start WarmupDays calendar days before From so momentum windows are
// filled on the first simulated day.
type LoadRequest struct {
	From       time.Time
	To         time.Time
	WarmupDays int
}

func (r LoadRequest) barsFrom() time.Time {
	return contracts.Day(r.From).AddDate(0, 0, -r.WarmupDays)
}

// Loader produces a Dataset before the simulation starts.
// All I/O happens here; the simulator itself never blocks.
type Loader interface {
	Load(ctx context.Context, req LoadRequest) (*Dataset, error)
}

// DBLoader loads a dataset from PostgreSQL
type DBLoader struct {
	repo   *Repository
	logger *logger.Logger
}

// NewDBLoader creates a loader backed by the repository
func NewDBLoader(repo *Repository, log *logger.Logger) *DBLoader {
	return &DBLoader{repo: repo, logger: log}
}

// Load reads instruments, bars and fundamentals published on/before req.To
func (l *DBLoader) Load(ctx context.Context, req LoadRequest) (*Dataset, error) {
	instruments, err := l.repo.LoadInstruments(ctx)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Instruments: instruments}
	for _, inst := range instruments {
		bars, err := l.repo.LoadBars(ctx, inst.Ticker, req.barsFrom(), req.To)
		if err != nil {
			return nil, err
		}
		ds.Bars = append(ds.Bars, bars...)

		if inst.Benchmark {
			continue
		}
		recs, err := l.repo.LoadFundamentals(ctx, inst.Ticker, req.To)
		if err != nil {
			return nil, err
		}
		ds.Fundamentals = append(ds.Fundamentals, recs...)
	}

	l.logger.WithFields(map[string]interface{}{
		"instruments":  len(ds.Instruments),
		"bars":         len(ds.Bars),
		"fundamentals": len(ds.Fundamentals),
	}).Info("Dataset loaded from database")

	return ds, nil
}

// Source reads the input dataset piecewise. *Repository satisfies it.
type Source interface {
	LoadInstruments(ctx context.Context) ([]contracts.Instrument, error)
	LoadBars(ctx context.Context, ticker string, from, to time.Time) ([]contracts.PriceBar, error)
	LoadFundamentals(ctx context.Context, ticker string, cutoff time.Time) ([]contracts.FundamentalRecord, error)
}

// Cache is the JSON cache the loader reads through. *redis.Cache satisfies it.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

var _ Cache = (*redis.Cache)(nil)

// CachedLoader wraps the repository with a Redis cache keyed per ticker.
// A disabled Redis client makes it a pass-through.
type CachedLoader struct {
	repo   Source
	cache  Cache
	ttl    time.Duration
	logger *logger.Logger
}

// NewCachedLoader creates a cache-aside loader
func NewCachedLoader(repo Source, cache Cache, ttl time.Duration, log *logger.Logger) *CachedLoader {
	return &CachedLoader{repo: repo, cache: cache, ttl: ttl, logger: log}
}

// Load serves each ticker's bars and fundamentals from cache when present
func (l *CachedLoader) Load(ctx context.Context, req LoadRequest) (*Dataset, error) {
	var instruments []contracts.Instrument
	var err error
	if !l.lookup(ctx, redis.InstrumentsKey(), &instruments) {
		if instruments, err = l.repo.LoadInstruments(ctx); err != nil {
			return nil, err
		}
		l.store(ctx, redis.InstrumentsKey(), instruments)
	}

	from := req.barsFrom().Format(contracts.DateLayout)
	to := contracts.Day(req.To).Format(contracts.DateLayout)

	ds := &Dataset{Instruments: instruments}
	hits, misses := 0, 0
	for _, inst := range instruments {
		var bars []contracts.PriceBar
		key := redis.BarsKey(inst.Ticker, from, to)
		if l.lookup(ctx, key, &bars) {
			hits++
		} else {
			misses++
			if bars, err = l.repo.LoadBars(ctx, inst.Ticker, req.barsFrom(), req.To); err != nil {
				return nil, err
			}
			l.store(ctx, key, bars)
		}
		ds.Bars = append(ds.Bars, bars...)

		if inst.Benchmark {
			continue
		}

		var recs []contracts.FundamentalRecord
		key = redis.FundamentalsKey(inst.Ticker, to)
		if l.lookup(ctx, key, &recs) {
			hits++
		} else {
			misses++
			if recs, err = l.repo.LoadFundamentals(ctx, inst.Ticker, req.To); err != nil {
				return nil, err
			}
			l.store(ctx, key, recs)
		}
		ds.Fundamentals = append(ds.Fundamentals, recs...)
	}

	l.logger.WithFields(map[string]interface{}{
		"instruments":  len(ds.Instruments),
		"bars":         len(ds.Bars),
		"fundamentals": len(ds.Fundamentals),
		"cache_hits":   hits,
		"cache_misses": misses,
	}).Info("Dataset loaded")

	return ds, nil
}

// lookup reports a cache hit. A read failure is logged and treated as a miss.
func (l *CachedLoader) lookup(ctx context.Context, key string, dest interface{}) bool {
	found, err := l.cache.Get(ctx, key, dest)
	if err != nil {
		l.logger.WithError(err).WithField("key", key).Warn("cache read failed")
		return false
	}
	return found
}

func (l *CachedLoader) store(ctx context.Context, key string, value interface{}) {
	if err := l.cache.Set(ctx, key, value, l.ttl); err != nil {
		// 캐시 실패는 로드 실패가 아님
		l.logger.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}

// StaticLoader returns a fixed dataset; tests and CSV imports use it
type StaticLoader struct {
	Dataset *Dataset
}

// Load returns the dataset trimmed to the request window
func (l StaticLoader) Load(_ context.Context, req LoadRequest) (*Dataset, error) {
	if l.Dataset == nil {
		return nil, fmt.Errorf("static loader: no dataset")
	}
	from, to := req.barsFrom(), contracts.Day(req.To)

	out := &Dataset{Instruments: l.Dataset.Instruments}
	for _, b := range l.Dataset.Bars {
		d := contracts.Day(b.Date)
		if d.Before(from) || d.After(to) {
			continue
		}
		out.Bars = append(out.Bars, b)
	}
	for _, r := range l.Dataset.Fundamentals {
		if r.VisibleAt(to) {
			out.Fundamentals = append(out.Fundamentals, r)
		}
	}
	return out, nil
}
