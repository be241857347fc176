// Package services – CatalogService
//
// This file implements the CatalogService, which resolves the configured
// default keys (shop, store, playlist), delegates to the cached catalog
// sources, and ranks products across shops for search.
package services

import (
	"context"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/talesofaneria/storefront/internal/catalog"
	"github.com/talesofaneria/storefront/internal/domain"
	"github.com/talesofaneria/storefront/internal/search"
)

// ProductSource is a cached product catalog such as *catalog.Source[domain.Product].
type ProductSource interface {
	Name() string
	Get(ctx context.Context, key string, limit int) []domain.Product
}

// VideoSource is a cached playlist catalog such as *catalog.Source[domain.Video].
type VideoSource interface {
	Name() string
	Get(ctx context.Context, key string, limit int) []domain.Video
}

// SearchHit is a product matched by SearchProducts.
type SearchHit struct {
	Product domain.Product `json:"product"`
	Source  string         `json:"source"`
	Score   float64        `json:"score"`
}

// CatalogService serves shop listings, products and playlist videos.
type CatalogService struct {
	Etsy     ProductSource
	Printful ProductSource
	YouTube  VideoSource

	// Default keys used when a request names none.
	DefaultShopID     string
	DefaultStoreID    string
	DefaultPlaylistID string

	// SearchMaxResults caps SearchProducts.
	SearchMaxResults int
}

// NewCatalogService constructs a CatalogService. Any source may be nil, in
// which case its lookups return an empty list.
func NewCatalogService(etsy, printful ProductSource, yt VideoSource) *CatalogService {
	return &CatalogService{
		Etsy:             etsy,
		Printful:         printful,
		YouTube:          yt,
		SearchMaxResults: 50,
	}
}

// ShopListings returns up to limit Etsy listings of shopID (default shop when blank).
func (s *CatalogService) ShopListings(ctx context.Context, shopID string, limit int) []domain.Product {
	return s.products(ctx, s.Etsy, keyOr(shopID, s.DefaultShopID), limit)
}

// PrintfulProducts returns up to limit Printful products of storeID (default store when blank).
func (s *CatalogService) PrintfulProducts(ctx context.Context, storeID string, limit int) []domain.Product {
	return s.products(ctx, s.Printful, keyOr(storeID, s.DefaultStoreID), limit)
}

// PlaylistVideos returns up to limit videos of playlistID (default playlist when blank).
func (s *CatalogService) PlaylistVideos(ctx context.Context, playlistID string, limit int) []domain.Video {
	if s.YouTube == nil {
		return []domain.Video{}
	}
	return s.YouTube.Get(ctx, keyOr(playlistID, s.DefaultPlaylistID), limit)
}

// SearchProducts ranks the products of both shops by name similarity to
// query and returns at most limit hits.
func (s *CatalogService) SearchProducts(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 || (s.SearchMaxResults > 0 && limit > s.SearchMaxResults) {
		limit = s.SearchMaxResults
	}

	ctx, span := otel.Tracer("services/CatalogService").Start(ctx, "SearchProducts",
		trace.WithAttributes(
			attribute.String("query", query),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	var etsy, printful []domain.Product
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		etsy = s.ShopListings(gctx, "", 0)
		return nil
	})
	g.Go(func() error {
		printful = s.PrintfulProducts(gctx, "", 0)
		return nil
	})
	_ = g.Wait() // lookups never fail

	// Index under source-qualified ids: Etsy and Printful number their
	// products independently, so a bare id may name one product in each.
	type entry struct {
		source  string
		product domain.Product
	}
	entries := make(map[string]entry, len(etsy)+len(printful))
	all := make([]domain.Product, 0, len(etsy)+len(printful))
	add := func(source string, products []domain.Product) {
		for n, p := range products {
			key := source + "\x00" + p.ID
			if p.ID == "" {
				key = source + "\x01" + strconv.Itoa(n)
			}
			if _, dup := entries[key]; dup {
				continue
			}
			entries[key] = entry{source: source, product: p}
			q := p
			q.ID = key
			all = append(all, q)
		}
	}
	add(catalog.SourceEtsy, etsy)
	add(catalog.SourcePrintful, printful)

	idx := search.NewProductIndex(all, search.WithStopwords(search.DefaultStopwords))
	res := idx.TopK(query, limit)
	span.SetAttributes(attribute.Int("hits", len(res)))

	hits := make([]SearchHit, 0, len(res))
	for _, r := range res {
		e := entries[r.Product.ID]
		hits = append(hits, SearchHit{Product: e.product, Source: e.source, Score: r.Score})
	}
	return hits, nil
}

func (s *CatalogService) products(ctx context.Context, src ProductSource, key string, limit int) []domain.Product {
	if src == nil {
		return []domain.Product{}
	}
	return src.Get(ctx, key, limit)
}

func keyOr(key, def string) string {
	if k := strings.TrimSpace(key); k != "" {
		return k
	}
	return def
}
