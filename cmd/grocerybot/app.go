package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/grocerybot/assistant/config"
	httpDelivery "github.com/grocerybot/assistant/internal/delivery/http"
	"github.com/grocerybot/assistant/internal/domain"
	"github.com/grocerybot/assistant/internal/infrastructure/cache"
	"github.com/grocerybot/assistant/internal/infrastructure/catalog"
	"github.com/grocerybot/assistant/internal/infrastructure/driver"
	"github.com/grocerybot/assistant/internal/infrastructure/listfile"
	"github.com/grocerybot/assistant/internal/infrastructure/metrics"
	"github.com/grocerybot/assistant/internal/logging"
	"github.com/grocerybot/assistant/internal/usecase"
)

// app holds the dependencies shared by the commands
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	metrics *metrics.Metrics
	matcher *usecase.MatchingService
	catalog *usecase.CatalogService

	closers []io.Closer
}

func newApp(cfg *config.Config) (*app, error) {
	log := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})

	a := &app{cfg: cfg, log: log}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New()
	}

	db, err := catalog.Open(cfg.Catalog.Driver, cfg.Catalog.DSN, log)
	if err != nil {
		return nil, err
	}
	catalogStore, err := catalog.NewStore(db, catalog.Config{
		ProductHost: cfg.Catalog.ProductHost,
		Logger:      log,
	})
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, err
	}
	a.closers = append(a.closers, catalogStore)

	var store domain.CatalogStore = catalogStore
	if cfg.Catalog.ReadOnly {
		log.Warn().Msg("read-only mode: catalog and ledger writes are disabled")
		store = catalog.NewReadOnlyStore(catalogStore, log)
	}

	lookupCache, err := a.newCache()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.matcher = usecase.NewMatchingService(usecase.MatchConfig{
		EnableDebugLogging: cfg.Session.DebugMatching,
		Logger:             log,
	})
	a.catalog = usecase.NewCatalogService(store, lookupCache, a.matcher, usecase.CatalogServiceConfig{
		CacheTTL: cfg.Catalog.LookupCacheTTL,
		Logger:   log,
	})

	log.Info().
		Str("catalog", cfg.Catalog.Driver).
		Str("cache", cfg.Cache.Type).
		Bool("read_only", cfg.Catalog.ReadOnly).
		Msg("catalog ready")
	return a, nil
}

func (a *app) newCache() (domain.CacheRepository, error) {
	if a.cfg.Cache.Type == "redis" {
		c, err := cache.NewRedisCache(a.cfg.Cache.RedisURL, a.cfg.Cache.Prefix)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, c)
		return c, nil
	}
	c := cache.NewMemoryCache()
	a.closers = append(a.closers, c)
	return c, nil
}

// newListSource opens the list file. In read-only mode the list is never written back.
func (a *app) newListSource() domain.ListSource {
	store := listfile.NewStore(a.cfg.List.Path, a.log)
	if a.cfg.Catalog.ReadOnly {
		return listfile.NewReadOnlyStore(store, a.log)
	}
	return store
}

// newDriverChannel builds the channel over the configured transport
func (a *app) newDriverChannel() (*driver.Channel, error) {
	var mailbox driver.Mailbox
	switch a.cfg.Driver.Transport {
	case "file":
		fm, err := driver.NewFileMailbox(a.cfg.Driver.Dir)
		if err != nil {
			return nil, err
		}
		mailbox = fm
	case "redis":
		rm, err := driver.NewRedisMailbox(a.cfg.Driver.RedisURL, driver.WithPrefix(a.cfg.Driver.RedisPrefix))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rm)
		mailbox = rm
	case "memory":
		a.log.Warn().Msg("memory driver transport: no external driver can connect")
		mailbox = driver.NewMemoryMailbox()
	default:
		return nil, fmt.Errorf("unknown driver transport %q", a.cfg.Driver.Transport)
	}

	cfg := driver.Config{
		PollInterval: a.cfg.Driver.PollInterval,
		Logger:       a.log,
	}
	if a.metrics != nil {
		cfg.Observer = a.metrics
	}
	return driver.NewChannel(mailbox, cfg), nil
}

func (a *app) newHTTPServer() *http.Server {
	opts := httpDelivery.RouterOptions{Logger: a.log}
	if a.metrics != nil {
		opts.Metrics = a.metrics.Handler()
	}
	handler := httpDelivery.NewHandler(a.catalog, version, a.log)
	return &http.Server{
		Addr:              ":" + a.cfg.Server.Port,
		Handler:           httpDelivery.SetupRouter(a.cfg, handler, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// serveHTTP runs srv until ctx is done, then shuts it down
func (a *app) serveHTTP(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("graceful shutdown did not complete")
		return srv.Close()
	}
	a.log.Info().Msg("http server stopped")
	return nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.Debug().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}
