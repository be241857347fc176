package domain

import "encoding/json"

// Product is the normalized shape every shop upstream is mapped into. Price is
// already formatted for display.
type Product struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Price   string `json:"price"`
	Image   string `json:"image"`
	URL     string `json:"url"`
	InStock bool   `json:"inStock"`
}

// Video is the normalized shape of a playlist entry.
type Video struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Thumbnail   string `json:"thumbnail"`
	PublishedAt string `json:"publishedAt"`
	URL         string `json:"url"`
	Duration    string `json:"duration,omitempty"`
	ViewCount   uint64 `json:"viewCount,omitempty"`
}

// CacheEntry is the storage-neutral form of a cached product set: the key it
// was fetched for, the mapped items as raw JSON, and the fetch time in epoch
// milliseconds.
type CacheEntry struct {
	Key       string
	Items     json.RawMessage
	Timestamp int64
}
