package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/talesofaneria/storefront/internal/domain"
)

// Upstream source names. They double as cache namespaces and metric labels.
const (
	SourceEtsy     = "etsy"
	SourcePrintful = "printful"
	SourceYouTube  = "youtube"
)

// Sources lists every known upstream source.
var Sources = []string{SourceEtsy, SourcePrintful, SourceYouTube}

// ErrCacheMiss is returned by Store.Load when nothing is cached for a key.
var ErrCacheMiss = errors.New("catalog: cache miss")

// Store persists one cached item set per (source, key). Save replaces any
// previous entry wholesale.
type Store interface {
	Load(ctx context.Context, source, key string) (domain.CacheEntry, error)
	Save(ctx context.Context, source string, entry domain.CacheEntry) error
	Delete(ctx context.Context, source, key string) error
	Clear(ctx context.Context, source string) error
}

// docFields names the JSON fields of a source's cache document, e.g.
// {"shopId": ..., "products": [...], "timestamp": ...} for Etsy.
type docFields struct {
	key, items string
}

func fieldsFor(source string) docFields {
	switch source {
	case SourceEtsy:
		return docFields{key: "shopId", items: "products"}
	case SourcePrintful:
		return docFields{key: "storeId", items: "products"}
	case SourceYouTube:
		return docFields{key: "playlistId", items: "videos"}
	default:
		return docFields{key: "key", items: "items"}
	}
}

// encodeDocument renders entry in the on-disk document format of source.
func encodeDocument(source string, entry domain.CacheEntry) ([]byte, error) {
	f := fieldsFor(source)
	items := entry.Items
	if len(items) == 0 {
		items = json.RawMessage("[]")
	}
	key, err := json.Marshal(entry.Key)
	if err != nil {
		return nil, err
	}
	ts, err := json.Marshal(entry.Timestamp)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{
		f.key:       key,
		f.items:     items,
		"timestamp": ts,
	})
}

// decodeDocument parses a cache document of source.
func decodeDocument(source string, doc []byte) (domain.CacheEntry, error) {
	f := fieldsFor(source)
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(doc, &raw); err != nil {
		return domain.CacheEntry{}, fmt.Errorf("decode %s cache document: %w", source, err)
	}
	var entry domain.CacheEntry
	if err := json.Unmarshal(raw[f.key], &entry.Key); err != nil {
		return domain.CacheEntry{}, fmt.Errorf("decode %s cache key: %w", source, err)
	}
	if err := json.Unmarshal(raw["timestamp"], &entry.Timestamp); err != nil {
		return domain.CacheEntry{}, fmt.Errorf("decode %s cache timestamp: %w", source, err)
	}
	items, ok := raw[f.items]
	if !ok {
		return domain.CacheEntry{}, fmt.Errorf("decode %s cache document: missing %q", source, f.items)
	}
	entry.Items = items
	return entry, nil
}
