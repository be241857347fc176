package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/talesofaneria/storefront/internal/catalog"
	"github.com/talesofaneria/storefront/internal/domain"
)

// ----- Fakes -----

type fakeProducts struct {
	name  string
	items []domain.Product

	mu    sync.Mutex
	keys  []string
	limit int
}

func (f *fakeProducts) Name() string { return f.name }

func (f *fakeProducts) Get(_ context.Context, key string, limit int) []domain.Product {
	f.mu.Lock()
	f.keys = append(f.keys, key)
	f.limit = limit
	f.mu.Unlock()
	n := len(f.items)
	if limit > 0 && limit < n {
		n = limit
	}
	return append([]domain.Product{}, f.items[:n]...)
}

type fakeVideos struct {
	key   string
	items []domain.Video
}

func (f *fakeVideos) Name() string { return catalog.SourceYouTube }

func (f *fakeVideos) Get(_ context.Context, key string, limit int) []domain.Video {
	f.key = key
	return f.items
}

func newCatalogService() (*CatalogService, *fakeProducts, *fakeProducts, *fakeVideos) {
	etsy := &fakeProducts{name: catalog.SourceEtsy, items: []domain.Product{
		{ID: "e1", Name: "Aneria World Map Poster", InStock: true},
		{ID: "e2", Name: "Dragon Dice Set", InStock: true},
	}}
	pf := &fakeProducts{name: catalog.SourcePrintful, items: []domain.Product{
		{ID: "p1", Name: "Aneria Map Hoodie", InStock: true},
		{ID: "p2", Name: "Logo Mug", InStock: false},
	}}
	yt := &fakeVideos{items: []domain.Video{{ID: "v1", Title: "Episode 1"}}}
	s := NewCatalogService(etsy, pf, yt)
	s.DefaultShopID = "shop-default"
	s.DefaultStoreID = "store-default"
	s.DefaultPlaylistID = "pl-default"
	return s, etsy, pf, yt
}

// ----- Tests -----

func TestCatalogService_DefaultKeys(t *testing.T) {
	s, etsy, pf, yt := newCatalogService()
	ctx := context.Background()

	if got := s.ShopListings(ctx, "  ", 1); len(got) != 1 || etsy.keys[0] != "shop-default" || etsy.limit != 1 {
		t.Fatalf("ShopListings = %v keys=%v limit=%d", got, etsy.keys, etsy.limit)
	}
	s.ShopListings(ctx, "other", 0)
	if etsy.keys[1] != "other" {
		t.Fatalf("explicit key ignored: %v", etsy.keys)
	}
	s.PrintfulProducts(ctx, "", 0)
	if pf.keys[0] != "store-default" {
		t.Fatalf("printful key = %v", pf.keys)
	}
	if got := s.PlaylistVideos(ctx, "", 5); len(got) != 1 || yt.key != "pl-default" {
		t.Fatalf("PlaylistVideos = %v key=%q", got, yt.key)
	}
}

func TestCatalogService_NilSourcesAreEmpty(t *testing.T) {
	s := NewCatalogService(nil, nil, nil)
	ctx := context.Background()
	if got := s.ShopListings(ctx, "x", 0); got == nil || len(got) != 0 {
		t.Fatalf("ShopListings = %#v", got)
	}
	if got := s.PrintfulProducts(ctx, "x", 0); got == nil || len(got) != 0 {
		t.Fatalf("PrintfulProducts = %#v", got)
	}
	if got := s.PlaylistVideos(ctx, "x", 0); got == nil || len(got) != 0 {
		t.Fatalf("PlaylistVideos = %#v", got)
	}
}

func TestCatalogService_SearchProducts(t *testing.T) {
	s, _, _, _ := newCatalogService()

	hits, err := s.SearchProducts(context.Background(), "aneria map", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %+v", hits)
	}
	// "Aneria Map Hoodie" (2/3) outranks "Aneria World Map Poster" (2/4).
	if hits[0].Product.ID != "p1" || hits[0].Source != catalog.SourcePrintful {
		t.Fatalf("top hit = %+v", hits[0])
	}
	if hits[1].Product.ID != "e1" || hits[1].Source != catalog.SourceEtsy {
		t.Fatalf("second hit = %+v", hits[1])
	}

	one, _ := s.SearchProducts(context.Background(), "aneria", 1)
	if len(one) != 1 {
		t.Fatalf("limit ignored: %+v", one)
	}
}

func TestCatalogService_SearchProducts_SameIDInBothShops(t *testing.T) {
	s, etsy, pf, _ := newCatalogService()
	etsy.items = []domain.Product{
		{ID: "42", Name: "Dragon Mug"},
		{ID: "42", Name: "Dragon Mug Again"}, // repeated within a shop: dropped
	}
	pf.items = []domain.Product{{ID: "42", Name: "Dragon Hoodie"}}

	hits, err := s.SearchProducts(context.Background(), "dragon", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %+v", hits)
	}
	got := map[string]string{}
	for _, h := range hits {
		if h.Product.ID != "42" {
			t.Fatalf("id not restored: %+v", h)
		}
		got[h.Source] = h.Product.Name
	}
	if got[catalog.SourceEtsy] != "Dragon Mug" || got[catalog.SourcePrintful] != "Dragon Hoodie" {
		t.Fatalf("sources mislabelled: %v", got)
	}
}

func TestCatalogService_SearchProducts_EmptyQuery(t *testing.T) {
	s, _, _, _ := newCatalogService()
	if _, err := s.SearchProducts(context.Background(), "   ", 5); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("err = %v", err)
	}
}
