// Package app assembles the engine from configuration for the API and worker binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/poi-engine/internal/batch"
	"github.com/yourorg/poi-engine/internal/config"
	"github.com/yourorg/poi-engine/internal/distance"
	"github.com/yourorg/poi-engine/internal/events"
	"github.com/yourorg/poi-engine/internal/geocode"
	"github.com/yourorg/poi-engine/internal/logger"
	"github.com/yourorg/poi-engine/internal/poi"
	"github.com/yourorg/poi-engine/internal/poisource"
	"github.com/yourorg/poi-engine/internal/poisync"
	"github.com/yourorg/poi-engine/internal/ratelimit"
	"github.com/yourorg/poi-engine/internal/redisx"
	"github.com/yourorg/poi-engine/internal/scorecache"
	"github.com/yourorg/poi-engine/internal/scoring"
	"github.com/yourorg/poi-engine/internal/seaview"
	"github.com/yourorg/poi-engine/internal/store"
	"github.com/yourorg/poi-engine/nominatim"
	"github.com/yourorg/poi-engine/overpass"
)

type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Store    store.Backend
	KV       redisx.KV
	Events   events.Publisher
	Geocoder *geocode.Geocoder
	Syncer   *poisync.Syncer
	Engine   *scoring.Engine
	Batch    *batch.Analyzer
	Scores   *scorecache.Cache

	closers []func() error
}

// Open connects Postgres and Redis when configured, falling back to the in-process
// store and cache, and builds the component graph.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	log = logger.OrNop(log)
	var (
		st      store.Backend
		kv      redisx.KV
		closers []func() error
	)
	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	if cfg.DatabaseURL != "" {
		pg, err := store.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		closers = append(closers, pg.Close)
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := pg.Ping(pingCtx); err != nil {
			closeAll()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		if err := pg.Migrate(pingCtx); err != nil {
			closeAll()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		st = pg
	} else {
		log.Warn("DATABASE_URL not set, using in-memory store")
		st = store.NewMemory()
	}

	if cfg.RedisAddr != "" {
		rc := redisx.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		closers = append(closers, rc.Close)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			closeAll()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		kv = rc
	} else {
		log.Warn("REDIS_ADDR not set, using in-memory cache")
		kv = redisx.NewMemory()
	}

	a := New(cfg, log, st, kv)
	a.closers = closers
	return a, nil
}

// New wires components over already opened backends.
func New(cfg *config.Config, log *zap.Logger, st store.Backend, kv redisx.KV) *App {
	log = logger.OrNop(log)
	pub := events.NewInMemory(256)
	leveled := logger.NewLeveled(log.Named("http"))

	geoGate := ratelimit.NewGate(cfg.GeocodeInterval)
	nc := nominatim.NewClient(cfg.NominatimURL, cfg.NominatimUserAgent, cfg.GeocodeInterval,
		nominatim.WithLogger(leveled), nominatim.WithGate(geoGate))
	geo := geocode.New(nc, geoGate,
		geocode.WithLogger(log.Named("geocode")),
		geocode.WithCountry(cfg.GeocodeCountry),
	)

	oc := overpass.NewClient(cfg.OverpassEndpoints, ratelimit.NewGate(cfg.OverpassInterval), cfg.OverpassTimeout, overpass.WithLogger(leveled))
	src := poisource.New(oc, poisource.WithLogger(log.Named("poisource")))
	syncer := poisync.New(src, st,
		poisync.WithLogger(log.Named("poisync")),
		poisync.WithPublisher(pub),
		poisync.WithFreshFor(cfg.SyncFreshFor),
	)

	calc := distance.New(st, distance.WithLogger(log.Named("distance")))
	engine := scoring.New(st, calc, seaview.New(),
		scoring.WithLogger(log.Named("scoring")),
		scoring.WithPublisher(pub),
		scoring.WithMaxDistance(cfg.MaxDistanceMeters),
	)
	analyzer := batch.New(st, geo, engine,
		batch.WithLogger(log.Named("batch")),
		batch.WithStaleAfter(cfg.StaleAfter),
	)
	scores := scorecache.New(kv, st,
		scorecache.WithLogger(log.Named("scorecache")),
		scorecache.WithTTL(cfg.CacheTTL),
		scorecache.WithStaleAfter(cfg.StaleAfter),
	)

	return &App{
		Config:   cfg,
		Logger:   log,
		Store:    st,
		KV:       kv,
		Events:   pub,
		Geocoder: geo,
		Syncer:   syncer,
		Engine:   engine,
		Batch:    analyzer,
		Scores:   scores,
	}
}

// Invalidator keeps the score cache in step with analyses run by this process.
func (a *App) Invalidator() *scorecache.Invalidator {
	return &scorecache.Invalidator{Cache: a.Scores, Pub: a.Events, Logger: a.Logger.Named("invalidator")}
}

// SyncOptions turns the SYNC_* settings into sync options.
func (a *App) SyncOptions() (poisync.Options, error) {
	cats, err := poi.ParseCategories(a.Config.SyncCategories)
	if err != nil {
		return poisync.Options{}, err
	}
	return poisync.Options{Categories: cats, District: a.Config.SyncDistrict, ForceRefresh: a.Config.SyncForceRefresh}, nil
}

// Locker returns a redis lease that lets one worker replica run at a time.
func (a *App) Locker(key string, ttl time.Duration) batch.Locker {
	return &kvLocker{kv: a.KV, key: key, ttl: ttl, log: a.Logger}
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

type kvLocker struct {
	kv  redisx.KV
	key string
	ttl time.Duration
	log *zap.Logger
}

func (l *kvLocker) Acquire(ctx context.Context) (func(), bool, error) {
	lock, err := redisx.TryLock(ctx, l.kv, l.key, l.ttl)
	if err != nil || lock == nil {
		return nil, false, err
	}
	return func() {
		if err := lock.Release(context.Background()); err != nil {
			l.log.Warn("release worker lock", zap.String("key", l.key), zap.Error(err))
		}
	}, true, nil
}
