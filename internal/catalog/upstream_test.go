package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/text/language"

	"github.com/talesofaneria/storefront/internal/domain"
)

func TestEtsy_FetchMapsListings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/application/shops/shop1/listings/active" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("includes") != "Images" || r.URL.Query().Get("limit") != "100" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		if r.Header.Get("x-api-key") != "k" {
			t.Errorf("api key header = %q", r.Header.Get("x-api-key"))
		}
		fmt.Fprint(w, `{"count":2,"results":[
			{"listing_id":11,"title":"Dice","url":"https://etsy.com/l/11","quantity":3,
			 "price":{"amount":2500,"divisor":100,"currency_code":"USD"},
			 "images":[{"url_570xN":"https://img/570.jpg","url_fullxfull":"https://img/full.jpg"}]},
			{"listing_id":12,"title":"Map","url":"https://etsy.com/l/12","quantity":0,
			 "price":{"amount":1200,"divisor":100,"currency_code":"USD"},"images":[]}
		]}`)
	}))
	defer srv.Close()

	e := NewEtsy(EtsyConfig{APIKey: "k", BaseURL: srv.URL + "/", Locale: language.AmericanEnglish}, srv.Client())
	got, err := e.Fetch(context.Background(), "shop1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d products", len(got))
	}
	if got[0].ID != "11" || got[0].Price != "$25.00" || got[0].Image != "https://img/570.jpg" || !got[0].InStock {
		t.Fatalf("first = %+v", got[0])
	}
	if got[1].InStock || got[1].Image != PlaceholderImage {
		t.Fatalf("second = %+v", got[1])
	}
}

func TestEtsy_Non2xxIsUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewEtsy(EtsyConfig{APIKey: "k", BaseURL: srv.URL}, srv.Client()).Fetch(context.Background(), "shop1")
	if !errors.Is(err, ErrUpstreamStatus) || !strings.Contains(err.Error(), "500") {
		t.Fatalf("err = %v", err)
	}
}

func TestEtsy_ConfiguredAndEmptyKey(t *testing.T) {
	if NewEtsy(EtsyConfig{}, nil).Configured() {
		t.Fatal("no key should be unconfigured")
	}
	if _, err := NewEtsy(EtsyConfig{APIKey: "k"}, nil).Fetch(context.Background(), ""); err == nil {
		t.Fatal("want error for empty shop id")
	}
}

func TestSource_EtsyServerErrorServesStale(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	st := NewFileStore(t.TempDir())
	src := NewSource[domain.Product](NewEtsy(EtsyConfig{APIKey: "k", BaseURL: srv.URL}, srv.Client()), st, time.Hour)
	src.now = func() time.Time { return now }

	raw := []byte(`[{"id":"1","name":"Dice Set","price":"$25.00","image":"a","url":"u1","inStock":true},
		{"id":"2","name":"Map Print","price":"$12.00","image":"b","url":"u2","inStock":false}]`)
	_ = st.Save(context.Background(), SourceEtsy, domain.CacheEntry{Key: "shop1", Items: raw, Timestamp: now.Add(-7200 * time.Second).UnixMilli()})

	got := src.Get(context.Background(), "shop1", 8)
	if len(got) != 2 || got[0] != p1 || got[1] != p2 {
		t.Fatalf("got %+v", got)
	}
	if hits.Load() != 1 {
		t.Fatalf("upstream hits = %d", hits.Load())
	}
}

func TestPrintful_FetchPricesFromVariants(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" || r.Header.Get("X-PF-Store-Id") != "store9" {
			t.Errorf("headers = %v", r.Header)
		}
		switch r.URL.Path {
		case "/store/products":
			fmt.Fprint(w, `{"code":200,"result":[
				{"id":1,"name":"Hoodie","thumbnail_url":"https://img/h.png"},
				{"id":2,"name":"Mug","thumbnail_url":""},
				{"id":3,"name":"Hidden","is_ignored":true}
			],"paging":{"total":3,"offset":0,"limit":100}}`)
		case "/store/products/1":
			fmt.Fprint(w, `{"code":200,"result":{"sync_product":{"id":1},"sync_variants":[
				{"id":10,"retail_price":"44.99","currency":"USD","availability_status":"active"},
				{"id":11,"retail_price":"39.50","currency":"USD","availability_status":"discontinued"}
			]}}`)
		case "/store/products/2":
			fmt.Fprint(w, `{"code":200,"result":{"sync_product":{"id":2},"sync_variants":[
				{"id":20,"retail_price":"15.00","currency":"USD","availability_status":"out_of_stock",
				 "files":[{"type":"preview","preview_url":"https://img/mug.png"}]}
			]}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewPrintful(PrintfulConfig{Token: "tok", BaseURL: srv.URL, ProductURLBase: "https://shop.example/p/"}, srv.Client())
	got, err := p.Fetch(context.Background(), "store9")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got[0].Price != "$39.50" || !got[0].InStock || got[0].Image != "https://img/h.png" || got[0].URL != "https://shop.example/p/1" {
		t.Fatalf("hoodie = %+v", got[0])
	}
	if got[1].InStock || got[1].Image != "https://img/mug.png" || got[1].Price != "$15.00" {
		t.Fatalf("mug = %+v", got[1])
	}
}

func TestPrintful_DetailFailureFailsFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/store/products" {
			fmt.Fprint(w, `{"result":[{"id":1,"name":"Hoodie"}],"paging":{"total":1}}`)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewPrintful(PrintfulConfig{Token: "tok", BaseURL: srv.URL}, srv.Client()).Fetch(context.Background(), "")
	if !errors.Is(err, ErrUpstreamStatus) {
		t.Fatalf("err = %v", err)
	}
}

func TestYouTube_FetchPaginatesAndEnriches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "yt-key" {
			t.Errorf("key param = %q", r.URL.Query().Get("key"))
		}
		switch r.URL.Path {
		case "/youtube/v3/playlistItems":
			if r.URL.Query().Get("pageToken") == "" {
				fmt.Fprint(w, `{"nextPageToken":"p2","items":[
					{"snippet":{"title":"Episode 1","description":"d1","publishedAt":"2024-01-01T00:00:00Z",
					  "thumbnails":{"high":{"url":"https://i/1h.jpg"},"default":{"url":"https://i/1d.jpg"}}},
					 "contentDetails":{"videoId":"v1","videoPublishedAt":"2023-12-31T00:00:00Z"}},
					{"snippet":{"title":"Private video"},"contentDetails":{"videoId":"vp"}}
				]}`)
				return
			}
			fmt.Fprint(w, `{"items":[
				{"snippet":{"title":"Episode 2","publishedAt":"2024-01-08T00:00:00Z"},"contentDetails":{"videoId":"v2"}}
			]}`)
		case "/youtube/v3/videos":
			fmt.Fprint(w, `{"items":[
				{"id":"v1","contentDetails":{"duration":"PT1H2M3S"},"statistics":{"viewCount":"1500"}},
				{"id":"v2","contentDetails":{"duration":"PT4M5S"},"statistics":{"viewCount":"7"}}
			]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	y, err := NewYouTube(context.Background(), YouTubeConfig{APIKey: "yt-key", BaseURL: srv.URL}, srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	got, err := y.Fetch(context.Background(), "PL1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %+v", got)
	}
	v1 := got[0]
	if v1.ID != "v1" || v1.Thumbnail != "https://i/1h.jpg" || v1.PublishedAt != "2023-12-31T00:00:00Z" ||
		v1.Duration != "1:02:03" || v1.ViewCount != 1500 || v1.URL != "https://www.youtube.com/watch?v=v1&list=PL1" {
		t.Fatalf("v1 = %+v", v1)
	}
	if got[1].Thumbnail != PlaceholderImage || got[1].Duration != "4:05" {
		t.Fatalf("v2 = %+v", got[1])
	}
}

func TestYouTube_APIErrorIsUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":403,"message":"quotaExceeded"}}`)
	}))
	defer srv.Close()

	y, err := NewYouTube(context.Background(), YouTubeConfig{APIKey: "k", BaseURL: srv.URL}, srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := y.Fetch(context.Background(), "PL1"); !errors.Is(err, ErrUpstreamStatus) {
		t.Fatalf("err = %v", err)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[string]string{
		"PT1H2M3S": "1:02:03",
		"PT4M5S":   "4:05",
		"PT45S":    "0:45",
		"P1DT1M":   "24:01:00",
		"garbage":  "garbage",
		"PT5X":     "PT5X",
		"":         "",
	}
	for in, want := range cases {
		if got := FormatDuration(in); got != want {
			t.Errorf("FormatDuration(%q) = %q, want %q", in, got, want)
		}
	}
}
