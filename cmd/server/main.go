// Command server runs the Tales of Aneria storefront API.
//
// @title       Tales of Aneria Storefront API
// @version     1.0
// @description Session carts, cached Etsy/Printful catalogs, YouTube videos and interaction analytics.
// @BasePath    /api/v1
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	_ "github.com/talesofaneria/storefront/docs"
	"github.com/talesofaneria/storefront/internal/cart"
	"github.com/talesofaneria/storefront/internal/catalog"
	"github.com/talesofaneria/storefront/internal/config"
	"github.com/talesofaneria/storefront/internal/domain"
	"github.com/talesofaneria/storefront/internal/events"
	httpapi "github.com/talesofaneria/storefront/internal/http"
	"github.com/talesofaneria/storefront/internal/observability"
	"github.com/talesofaneria/storefront/internal/repo"
	"github.com/talesofaneria/storefront/internal/services"
	"github.com/talesofaneria/storefront/internal/sysutil"
)

const purgeEvery = time.Hour

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.ConfigureLogger(cfg.LogLevel, cfg.LogPretty)
	version := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), "dev")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, version); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cfg config.Config, version string) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	// SQLite always backs idempotency records; carts and cache use it on demand.
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", cfg.DBPath, err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
	}

	storage := cartStorage(cfg, db)
	bus, closeBus, err := cartBus(ctx, cfg, rdb)
	if err != nil {
		return err
	}
	defer closeBus()

	cartSvc := services.NewCartService(storage, bus)
	cartSvc.SettleDelay = cfg.Cart.SettleDelay
	cartSvc.IdleTTL = cfg.Cart.SessionIdleTTL
	cartSvc.MaxQuantity = cfg.Cart.MaxQuantity
	defer cartSvc.Close()

	catalogSvc, err := catalogService(ctx, cfg, db, rdb)
	if err != nil {
		return err
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, httpapi.Services{Cart: cartSvc, Catalog: catalogSvc}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		// No WriteTimeout: it would cut /cart/events streams.
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
		// Request contexts end on shutdown, which closes open event streams.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go purgeLoop(ctx, db)

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", version).
			Str("cart_store", cfg.Cart.Store).
			Str("cart_events", cfg.Cart.EventsBackend).
			Str("cache_backend", cfg.Cache.Backend).
			Msg("storefront listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.WriteTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

func cartStorage(cfg config.Config, db *gorm.DB) cart.Storage {
	if cfg.Cart.Store == "memory" {
		return cart.NewMemoryStorage()
	}
	return repo.CartStore{DB: db}
}

func cartBus(ctx context.Context, cfg config.Config, rdb *redis.Client) (events.Bus, func(), error) {
	if cfg.Cart.EventsBackend != "redis" {
		return events.NewLocalBus(), func() {}, nil
	}
	bus := events.NewRedisBus(rdb, "")
	if err := bus.Start(ctx); err != nil {
		return nil, nil, err
	}
	return bus, func() {
		if err := bus.Close(); err != nil {
			log.Warn().Err(err).Msg("close redis bus")
		}
	}, nil
}

func cacheStore(cfg config.Config, db *gorm.DB, rdb *redis.Client) catalog.Store {
	switch cfg.Cache.Backend {
	case "sqlite":
		return repo.CacheStore{DB: db}
	case "redis":
		return catalog.NewRedisStore(rdb)
	default:
		return catalog.NewFileStore(cfg.Cache.Dir)
	}
}

func catalogService(ctx context.Context, cfg config.Config, db *gorm.DB, rdb *redis.Client) (*services.CatalogService, error) {
	store := cacheStore(cfg, db, rdb)
	client := catalog.NewHTTPClient(cfg.UpstreamTimeout)
	locale := cfg.LocaleTag()

	etsy := catalog.NewEtsy(catalog.EtsyConfig{
		APIKey:  cfg.Etsy.APIKey,
		BaseURL: cfg.Etsy.BaseURL,
		Locale:  locale,
	}, client)
	printful := catalog.NewPrintful(catalog.PrintfulConfig{
		Token:          cfg.Printful.Token,
		BaseURL:        cfg.Printful.BaseURL,
		ProductURLBase: cfg.Printful.ProductURLBase,
		Locale:         locale,
	}, client)
	yt, err := catalog.NewYouTube(ctx, catalog.YouTubeConfig{
		APIKey:  cfg.YouTube.APIKey,
		BaseURL: cfg.YouTube.BaseURL,
	}, client)
	if err != nil {
		return nil, err
	}

	svc := services.NewCatalogService(
		catalog.NewSource[domain.Product](etsy, store, cfg.Etsy.CacheTTL),
		catalog.NewSource[domain.Product](printful, store, cfg.Printful.CacheTTL),
		catalog.NewSource[domain.Video](yt, store, cfg.YouTube.CacheTTL),
	)
	svc.DefaultShopID = cfg.Etsy.ShopID
	svc.DefaultStoreID = cfg.Printful.StoreID
	svc.DefaultPlaylistID = cfg.YouTube.PlaylistID
	return svc, nil
}

// purgeLoop drops expired idempotency records and cart documents that can
// no longer be alive: carts expire a fixed time after creation, so a
// document untouched for longer than that is expired.
func purgeLoop(ctx context.Context, db *gorm.DB) {
	t := time.NewTicker(purgeEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			now = now.UTC()
			if n, err := repo.PurgeExpiredIdempotency(ctx, db, now); err != nil {
				log.Error().Err(err).Msg("purge idempotency")
			} else if n > 0 {
				log.Info().Int64("rows", n).Msg("purged idempotency records")
			}
			if n, err := repo.PurgeCartDocuments(ctx, db, now.Add(-domain.CartTTL)); err != nil {
				log.Error().Err(err).Msg("purge carts")
			} else if n > 0 {
				log.Info().Int64("rows", n).Msg("purged expired carts")
			}
		}
	}
}
