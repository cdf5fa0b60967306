// Package app wires configuration, storage and services for the server and the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shwanortho/site/internal/config"
	"github.com/shwanortho/site/internal/db"
	"github.com/shwanortho/site/internal/handler"
	"github.com/shwanortho/site/internal/localfile"
	"github.com/shwanortho/site/internal/logger"
	"github.com/shwanortho/site/internal/service"
	"github.com/shwanortho/site/internal/store"
	"github.com/shwanortho/site/internal/store/postgres"
	"github.com/shwanortho/site/internal/store/rest"
	"github.com/shwanortho/site/internal/store/sqlstore"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// App holds the long-lived dependencies of one process.
type App struct {
	Config  config.AppConfig
	DB      *gorm.DB
	Store   store.Store
	Local   *localfile.Source
	Cache   *service.DictionaryCache
	Content *service.ContentService
	Sync    *service.SyncService
	Gallery *service.GalleryService
	Log     zerolog.Logger
}

// New opens the admin database and the configured content store and builds the services.
func New(ctx context.Context, cfg config.AppConfig, log zerolog.Logger) (*App, error) {
	gdb, err := db.Init(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.EnsureUser(gdb, cfg.SuperRootUserName, cfg.SuperRootPassword); err != nil {
		closeGorm(gdb)
		return nil, fmt.Errorf("ensure admin user: %w", err)
	}

	st, err := OpenStore(ctx, cfg, gdb, log)
	if err != nil {
		closeGorm(gdb)
		return nil, err
	}

	local := localfile.New(cfg.LocalesDir)
	cache := service.NewDictionaryCache(cfg.CacheTTL)
	return &App{
		Config:  cfg,
		DB:      gdb,
		Store:   st,
		Local:   local,
		Cache:   cache,
		Content: service.NewContentService(st, local, cache, logger.Component(log, "resolver")),
		Sync: service.NewSyncService(st, local, cache, service.SyncOptions{
			Concurrency:   cfg.SyncConcurrency,
			MirrorToLocal: cfg.MirrorToLocal,
		}, logger.Component(log, "sync")),
		Gallery: service.NewGalleryService(st, cfg.StaticDir, cache, logger.Component(log, "gallery")),
		Log:     log,
	}, nil
}

// OpenStore returns the content store selected by STORE_DRIVER.
func OpenStore(ctx context.Context, cfg config.AppConfig, gdb *gorm.DB, log zerolog.Logger) (store.Store, error) {
	storeLog := logger.Component(log, "store").With().Str("driver", cfg.StoreDriver).Logger()
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		return sqlstore.New(gdb), nil
	case config.StorePostgres:
		openCtx, cancel := storeContext(ctx, cfg.StoreTimeout)
		defer cancel()
		st, err := postgres.Open(openCtx, postgres.Config{DSN: cfg.DatabaseURL, Migrate: true, Logger: storeLog})
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return st, nil
	case config.StoreREST, "":
		client := rest.New(rest.Config{
			URL:          cfg.SupabaseURL,
			APIKey:       cfg.SupabaseAnonKey,
			Timeout:      cfg.StoreTimeout,
			PollInterval: cfg.StorePollInterval,
			Logger:       storeLog,
		})
		if !client.Configured() {
			storeLog.Warn().Msg("SUPABASE_URL or SUPABASE_ANON_KEY missing, content will come from local files")
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// storeContext bounds the startup connection attempt; zero means no bound.
func storeContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// API builds the HTTP handler set.
func (a *App) API() *handler.API {
	return handler.NewAPI(handler.Deps{
		DB:      a.DB,
		Store:   a.Store,
		Content: a.Content,
		Sync:    a.Sync,
		Gallery: a.Gallery,
		Local:   a.Local,
		Driver:  a.Config.StoreDriver,
		Logger:  logger.Component(a.Log, "http"),
	})
}

// Close releases the store and the database.
func (a *App) Close() error {
	var err error
	if a.Store != nil {
		err = multierr.Append(err, a.Store.Close())
	}
	if a.DB != nil {
		if sqlDB, dbErr := a.DB.DB(); dbErr == nil {
			err = multierr.Append(err, sqlDB.Close())
		}
	}
	return err
}

func closeGorm(gdb *gorm.DB) {
	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.Close()
	}
}
