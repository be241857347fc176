// Command cachectl inspects and clears the catalog cache used by the
// storefront server. It reads the same environment as the server, so it
// always talks to the configured cache backend.
//
//	cachectl show -source etsy -key shop1
//	cachectl clear -source all
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/talesofaneria/storefront/internal/catalog"
	"github.com/talesofaneria/storefront/internal/config"
	"github.com/talesofaneria/storefront/internal/repo"
	"github.com/talesofaneria/storefront/internal/sysutil"
)

const usage = `usage:
  cachectl show  -source etsy|printful|youtube -key KEY
  cachectl clear -source etsy|printful|youtube|all [-key KEY]`

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.ConfigureLogger(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Cache.Backend).Msg("open cache store")
	}
	defer closeStore()

	if err := run(ctx, os.Args[1:], store, os.Stdout, time.Now()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// openStore builds the catalog.Store selected by CACHE_BACKEND.
func openStore(ctx context.Context, cfg config.Config) (catalog.Store, func(), error) {
	switch cfg.Cache.Backend {
	case "sqlite":
		db, err := repo.OpenSQLite(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.AutoMigrate(db); err != nil {
			return nil, nil, err
		}
		return repo.CacheStore{DB: db}, func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		return catalog.NewRedisStore(rdb), func() { _ = rdb.Close() }, nil
	default:
		return catalog.NewFileStore(cfg.Cache.Dir), func() {}, nil
	}
}

var errUsage = errors.New("cachectl: invalid arguments")

// entryView is what show prints.
type entryView struct {
	Source    string          `json:"source"`
	Key       string          `json:"key"`
	Timestamp int64           `json:"timestamp"`
	Age       string          `json:"age"`
	Count     int             `json:"count"`
	Items     json.RawMessage `json:"items"`
}

func run(ctx context.Context, args []string, store catalog.Store, out io.Writer, now time.Time) error {
	if len(args) == 0 {
		return errUsage
	}
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	source := fs.String("source", "", "cache source")
	key := fs.String("key", "", "cache key")
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	switch args[0] {
	case "show":
		if !slices.Contains(catalog.Sources, *source) || *key == "" {
			return fmt.Errorf("%w: show needs -source and -key", errUsage)
		}
		return show(ctx, store, out, *source, *key, now)
	case "clear":
		sources, err := clearTargets(*source)
		if err != nil {
			return err
		}
		for _, s := range sources {
			if err := clearSource(ctx, store, s, *key); err != nil {
				return fmt.Errorf("clear %s: %w", s, err)
			}
			fmt.Fprintf(out, "cleared %s\n", s)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func show(ctx context.Context, store catalog.Store, out io.Writer, source, key string, now time.Time) error {
	entry, err := store.Load(ctx, source, key)
	if errors.Is(err, catalog.ErrCacheMiss) {
		fmt.Fprintf(out, "%s: nothing cached for %q\n", source, key)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s/%s: %w", source, key, err)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(entry.Items, &items); err != nil {
		return fmt.Errorf("decode %s/%s items: %w", source, key, err)
	}
	age := now.Sub(time.UnixMilli(entry.Timestamp)).Truncate(time.Second)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(entryView{
		Source:    source,
		Key:       entry.Key,
		Timestamp: entry.Timestamp,
		Age:       age.String(),
		Count:     len(items),
		Items:     entry.Items,
	})
}

func clearTargets(source string) ([]string, error) {
	switch {
	case source == "all":
		return catalog.Sources, nil
	case slices.Contains(catalog.Sources, source):
		return []string{source}, nil
	default:
		return nil, fmt.Errorf("%w: unknown source %q", errUsage, source)
	}
}

func clearSource(ctx context.Context, store catalog.Store, source, key string) error {
	if key != "" {
		return store.Delete(ctx, source, key)
	}
	return store.Clear(ctx, source)
}
