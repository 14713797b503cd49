package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/tbourn/go-timezones-backend/internal/catalog"
	"github.com/tbourn/go-timezones-backend/internal/config"
	"github.com/tbourn/go-timezones-backend/internal/enrichment"
	httpapi "github.com/tbourn/go-timezones-backend/internal/http"
	"github.com/tbourn/go-timezones-backend/internal/observability"
	"github.com/tbourn/go-timezones-backend/internal/repo"
	"github.com/tbourn/go-timezones-backend/internal/services"
	"github.com/tbourn/go-timezones-backend/internal/sysutil"
	"github.com/tbourn/go-timezones-backend/internal/weather"
)

const purgeInterval = time.Hour

// app is the dependency graph of the server process.
func app() fx.Option {
	return fx.Options(
		fx.Provide(
			config.Load,
			newLogger,
			openDB,
			openCatalog,
			newWeatherCache,
			newSelectionService,
			newEngine,
		),
		fx.Invoke(
			registerTracing,
			startSweeper,
			startIdempotencyPurge,
			runHTTP,
		),
	)
}

func newLogger(cfg config.Config) *zerolog.Logger {
	l := sysutil.ConfigureLogger(nil, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)
	return &l
}

func registerTracing(lc fx.Lifecycle, cfg config.Config) error {
	return observability.Register(lc, cfg, version)
}

// openDB connects to the configured backend, migrates the schema and
// closes the pool on shutdown.
func openDB(lc fx.Lifecycle, cfg config.Config, lg *zerolog.Logger) (*gorm.DB, error) {
	db, err := repo.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, err
	}
	lg.Info().Str("driver", cfg.DB.Driver).Msg("database ready")

	lc.Append(fx.Hook{OnStop: func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}})
	return db, nil
}

// openCatalog loads the zone catalog from CatalogPath, or from the embedded
// copy when the path is empty.
func openCatalog(cfg config.Config, lg *zerolog.Logger) (*catalog.Provider, error) {
	cat, err := catalog.Open(catalog.SourceFor(cfg.CatalogPath))
	if err != nil {
		return nil, err
	}
	src := cfg.CatalogPath
	if src == "" {
		src = "embedded"
	}
	lg.Info().Str("source", src).Int("zones", cat.Len()).Msg("catalog loaded")
	return cat, nil
}

// newWeatherCache returns a disabled cache when weather is off.
func newWeatherCache(lc fx.Lifecycle, cfg config.Config, cat *catalog.Provider, lg *zerolog.Logger) *enrichment.Cache {
	wc := cfg.Weather
	if !wc.Enabled {
		return enrichment.New(nil, cat, enrichment.Options{})
	}

	opts := enrichment.Options{
		TTL:         wc.TTL,
		Timeout:     wc.Timeout,
		BatchSize:   wc.BatchSize,
		Concurrency: wc.Concurrency,
		Logger:      lg,
	}
	if wc.RedisAddr != "" {
		client := enrichment.NewRedisClient(wc.RedisAddr, wc.RedisPassword, wc.RedisDB)
		opts.Shared = enrichment.NewRedisStore(client, "")
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return client.Close() }})
	}

	provider := weather.NewOpenMeteo(wc.BaseURL, wc.Timeout, weather.WithRateLimit(wc.RPS, wc.Concurrency))
	cache := enrichment.New(provider, cat, opts)
	lc.Append(fx.Hook{OnStop: cache.Wait})
	lg.Info().
		Str("base_url", wc.BaseURL).
		Dur("ttl", wc.TTL).
		Bool("shared", opts.Shared != nil).
		Msg("weather enrichment enabled")
	return cache
}

func newSelectionService(db *gorm.DB, cat *catalog.Provider, cache *enrichment.Cache) *services.SelectionService {
	return httpapi.NewSelectionService(db, cat, cache)
}

// newEngine builds the gin engine with every route and middleware mounted.
func newEngine(cfg config.Config, db *gorm.DB, cat *catalog.Provider, cache *enrichment.Cache, sel *services.SelectionService) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:         db,
		Catalog:    cat,
		Weather:    cache,
		Selections: sel,
	}, cfg)
	return r
}

// startSweeper keeps selected zones warm; a zero interval leaves it off.
func startSweeper(lc fx.Lifecycle, cfg config.Config, cache *enrichment.Cache, sel *services.SelectionService) {
	sw := enrichment.NewSweeper(cache, sel.SelectedZones, cfg.Weather.PrewarmInterval)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { sw.Start(); return nil },
		OnStop:  sw.Stop,
	})
}

// purger deletes expired idempotency records on a fixed interval.
type purger struct {
	db       *gorm.DB
	interval time.Duration
	log      *zerolog.Logger
	now      func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (p *purger) runOnce(ctx context.Context) int64 {
	n, err := repo.PurgeExpiredIdempotency(ctx, p.db, p.now().UTC())
	if err != nil {
		p.log.Warn().Err(err).Msg("idempotency purge failed")
		return 0
	}
	if n > 0 {
		p.log.Debug().Int64("purged", n).Msg("idempotency purge")
	}
	return n
}

func (p *purger) start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		t := time.NewTicker(p.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				p.runOnce(ctx)
			}
		}
	}()
}

func (p *purger) stop(context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

func startIdempotencyPurge(lc fx.Lifecycle, db *gorm.DB, lg *zerolog.Logger) {
	p := &purger{db: db, interval: purgeInterval, log: lg, now: time.Now}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { p.start(); return nil },
		OnStop:  p.stop,
	})
}

// runHTTP serves r on cfg.Port from OnStart and shuts down gracefully on
// OnStop, waiting at most 10s for in-flight requests.
func runHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, lg *zerolog.Logger) {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				lg.Info().Str("addr", srv.Addr).Str("version", version).Msg("http server listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					lg.Fatal().Err(err).Msg("http server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
