package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/talesofaneria/storefront/internal/domain"
)

func TestEncodeDocument_FieldNamesPerSource(t *testing.T) {
	cases := map[string][2]string{
		SourceEtsy:     {"shopId", "products"},
		SourcePrintful: {"storeId", "products"},
		SourceYouTube:  {"playlistId", "videos"},
		"other":        {"key", "items"},
	}
	for source, f := range cases {
		doc, err := encodeDocument(source, domain.CacheEntry{Key: "k1", Items: json.RawMessage(`[{"id":"1"}]`), Timestamp: 42})
		if err != nil {
			t.Fatal(err)
		}
		var m map[string]json.RawMessage
		if err := json.Unmarshal(doc, &m); err != nil {
			t.Fatal(err)
		}
		if string(m[f[0]]) != `"k1"` || string(m[f[1]]) != `[{"id":"1"}]` || string(m["timestamp"]) != "42" {
			t.Fatalf("%s: doc = %s", source, doc)
		}

		back, err := decodeDocument(source, doc)
		if err != nil || back.Key != "k1" || back.Timestamp != 42 {
			t.Fatalf("%s: decode = %+v, %v", source, back, err)
		}
	}
}

func TestEncodeDocument_EmptyItemsIsArray(t *testing.T) {
	doc, _ := encodeDocument(SourceEtsy, domain.CacheEntry{Key: "s"})
	back, err := decodeDocument(SourceEtsy, doc)
	if err != nil || string(back.Items) != "[]" {
		t.Fatalf("items = %s, err %v", back.Items, err)
	}
}

func TestDecodeDocument_MissingItems(t *testing.T) {
	if _, err := decodeDocument(SourceEtsy, []byte(`{"shopId":"s","timestamp":1}`)); err == nil {
		t.Fatal("want error for missing products")
	}
}

func TestFileStore_RoundTripAndSingleKey(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), "cache"))

	if _, err := s.Load(ctx, SourceEtsy, "shop1"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("empty dir: err = %v", err)
	}

	e1 := domain.CacheEntry{Key: "shop1", Items: json.RawMessage(`[{"id":"1"}]`), Timestamp: 100}
	if err := s.Save(ctx, SourceEtsy, e1); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(ctx, SourceEtsy, "shop1")
	if err != nil || got.Key != "shop1" || got.Timestamp != 100 || string(got.Items) != `[{"id":"1"}]` {
		t.Fatalf("got %+v, %v", got, err)
	}

	raw, err := os.ReadFile(s.Path(SourceEtsy))
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		ShopID    string            `json:"shopId"`
		Products  []json.RawMessage `json:"products"`
		Timestamp int64             `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil || doc.ShopID != "shop1" || len(doc.Products) != 1 {
		t.Fatalf("on-disk doc = %s", raw)
	}

	if err := s.Save(ctx, SourceEtsy, domain.CacheEntry{Key: "shop2", Items: json.RawMessage(`[]`), Timestamp: 200}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(ctx, SourceEtsy, "shop1"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("replaced key should miss, err = %v", err)
	}
}

func TestFileStore_DeleteOnlyMatchingKey(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir())
	_ = s.Save(ctx, SourceYouTube, domain.CacheEntry{Key: "pl1", Items: json.RawMessage(`[]`), Timestamp: 1})

	if err := s.Delete(ctx, SourceYouTube, "other"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(ctx, SourceYouTube, "pl1"); err != nil {
		t.Fatalf("delete of other key removed doc: %v", err)
	}
	if err := s.Delete(ctx, SourceYouTube, "pl1"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(s.Path(SourceYouTube)); !os.IsNotExist(err) {
		t.Fatalf("doc still present: %v", err)
	}
	if err := s.Clear(ctx, SourceYouTube); err != nil {
		t.Fatalf("clear of missing doc: %v", err)
	}
}

func TestFileStore_MalformedDocIsError(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	if err := os.WriteFile(s.Path(SourcePrintful), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := s.Load(context.Background(), SourcePrintful, "st")
	if err == nil || errors.Is(err, ErrCacheMiss) {
		t.Fatalf("want decode error, got %v", err)
	}
}

func TestSource_WithFileStore_StaleScenario(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir())
	raw, _ := json.Marshal([]domain.Product{p1, p2})
	_ = s.Save(ctx, SourceEtsy, domain.CacheEntry{Key: "shop1", Items: raw, Timestamp: now.Add(-2 * time.Hour).UnixMilli()})

	up := &fakeUpstream{name: SourceEtsy, configured: true, err: ErrUpstreamStatus}
	got := newTestSource(up, s).Get(ctx, "shop1", 8)
	if len(got) != 2 || got[0] != p1 || got[1] != p2 {
		t.Fatalf("got %+v", got)
	}
}

func TestRedisStore_Keys(t *testing.T) {
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}))
	if got := s.key(SourceEtsy, "shop1"); got != "aneria:cache:etsy:shop1" {
		t.Fatalf("key = %q", got)
	}
}

func TestRedisStore_UnreachableIsErrorNotMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	defer client.Close()
	s := NewRedisStore(client)

	_, err := s.Load(context.Background(), SourceEtsy, "shop1")
	if err == nil || errors.Is(err, ErrCacheMiss) {
		t.Fatalf("want connection error, got %v", err)
	}
	if err := s.Save(context.Background(), SourceEtsy, domain.CacheEntry{Key: "shop1"}); err == nil {
		t.Fatal("want save error")
	}
}
