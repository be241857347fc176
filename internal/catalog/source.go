// Package catalog fronts the storefront's external catalogs (Etsy listings,
// Printful products, YouTube playlists) with a TTL cache that falls back to
// stale data when an upstream fails and to an empty result when there is
// nothing to show. Lookups never return errors to callers.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/talesofaneria/storefront/internal/domain"
)

// Lookup outcomes reported by catalog_cache_lookups_total.
const (
	OutcomeHit          = "hit"
	OutcomeMiss         = "miss"
	OutcomeStale        = "stale"
	OutcomeEmpty        = "empty"
	OutcomeUnconfigured = "unconfigured"
)

var lookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "catalog_cache_lookups_total",
		Help: "Catalog lookups by source and outcome.",
	},
	[]string{"source", "outcome"},
)

func init() {
	prometheus.MustRegister(lookups)
}

// Upstream fetches the complete, already mapped item set for a key.
type Upstream[T any] interface {
	Name() string
	// Configured reports whether credentials are present.
	Configured() bool
	Fetch(ctx context.Context, key string) ([]T, error)
}

// Source is a cached view of one upstream.
type Source[T any] struct {
	up    Upstream[T]
	store Store
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group
}

// NewSource caches up in store; entries younger than ttl are served without
// contacting the upstream.
func NewSource[T any](up Upstream[T], store Store, ttl time.Duration) *Source[T] {
	return &Source[T]{up: up, store: store, ttl: ttl, now: time.Now}
}

// Name returns the upstream name.
func (s *Source[T]) Name() string { return s.up.Name() }

// Get returns at most limit items for key (limit <= 0 means all):
//
//  1. a fresh cached entry for key is served as is;
//  2. without credentials the result is empty;
//  3. otherwise the upstream is asked; on failure a cached entry for key is
//     served whatever its age, else the result is empty;
//  4. on success the full set replaces the cached entry.
//
// The returned slice is never nil and is owned by the caller.
func (s *Source[T]) Get(ctx context.Context, key string, limit int) []T {
	name := s.up.Name()
	ctx, span := otel.Tracer("catalog").Start(ctx, "Source.Get")
	span.SetAttributes(attribute.String("catalog.source", name), attribute.String("catalog.key", key))
	defer span.End()

	logger := log.Ctx(ctx).With().Str("source", name).Str("key", key).Logger()

	entry, cached, ok := s.lookup(ctx, key)
	if ok && s.fresh(entry) {
		lookups.WithLabelValues(name, OutcomeHit).Inc()
		return head(cached, limit)
	}

	if !s.up.Configured() {
		logger.Info().Msg("upstream credentials not configured")
		lookups.WithLabelValues(name, OutcomeUnconfigured).Inc()
		return []T{}
	}

	// The flight is shared: one caller going away must not fail the others.
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.refresh(context.WithoutCancel(ctx), key)
	})
	if err != nil {
		span.RecordError(err)
		if ok {
			logger.Error().Err(err).Int64("cached_at", entry.Timestamp).Msg("upstream fetch failed, serving stale cache")
			lookups.WithLabelValues(name, OutcomeStale).Inc()
			return head(cached, limit)
		}
		logger.Error().Err(err).Msg("upstream fetch failed, nothing cached")
		lookups.WithLabelValues(name, OutcomeEmpty).Inc()
		return []T{}
	}
	lookups.WithLabelValues(name, OutcomeMiss).Inc()
	return head(v.([]T), limit)
}

// lookup returns the cached entry for key and its decoded items.
func (s *Source[T]) lookup(ctx context.Context, key string) (domain.CacheEntry, []T, bool) {
	entry, err := s.store.Load(ctx, s.up.Name(), key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			log.Ctx(ctx).Warn().Err(err).Str("source", s.up.Name()).Str("key", key).Msg("cache read failed")
		}
		return domain.CacheEntry{}, nil, false
	}
	var items []T
	if err := json.Unmarshal(entry.Items, &items); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("source", s.up.Name()).Str("key", key).Msg("discarding malformed cache entry")
		return domain.CacheEntry{}, nil, false
	}
	return entry, items, true
}

func (s *Source[T]) fresh(entry domain.CacheEntry) bool {
	return s.now().UnixMilli()-entry.Timestamp < s.ttl.Milliseconds()
}

// refresh fetches key upstream and replaces the cached entry. A failed cache
// write is logged; the fetched items are still returned.
func (s *Source[T]) refresh(ctx context.Context, key string) ([]T, error) {
	items, err := s.up.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}

	raw, err := json.Marshal(items)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("source", s.up.Name()).Msg("cache encode failed")
		return items, nil
	}
	entry := domain.CacheEntry{Key: key, Items: raw, Timestamp: s.now().UnixMilli()}
	if err := s.store.Save(ctx, s.up.Name(), entry); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("source", s.up.Name()).Str("key", key).Msg("cache write failed")
	}
	return items, nil
}

func head[T any](items []T, limit int) []T {
	n := len(items)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]T, n)
	copy(out, items[:n])
	return out
}
