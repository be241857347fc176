package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/talesofaneria/storefront/internal/domain"
)

// StorageKey is the application-scoped key carts are stored under. Server
// sessions append ":<session id>" (see SessionKey).
const StorageKey = "tales-of-aneria-cart"

// ErrNotFound is returned by Storage.Get when no document exists for a key.
var ErrNotFound = errors.New("cart document not found")

// Storage persists whole cart documents. Writes replace the full document;
// there are no partial updates.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, doc []byte) error
	Delete(ctx context.Context, key string) error
}

// SessionKey returns the storage key for a server-side session.
func SessionKey(session string) string {
	return StorageKey + ":" + session
}

// LoadResult is the outcome of LoadDetailed.
type LoadResult struct {
	Cart    domain.Cart
	Found   bool // a well-formed document was stored
	Expired bool // the stored document had expired and was replaced
}

// Load reads the cart stored under key. Missing, unreadable, malformed and
// expired documents all yield NewCart(now); Load never fails.
func Load(ctx context.Context, s Storage, key string, now time.Time) domain.Cart {
	return LoadDetailed(ctx, s, key, now).Cart
}

// LoadDetailed is Load that also reports why a fresh cart was returned.
// Clearing an expired document is left to the caller.
func LoadDetailed(ctx context.Context, s Storage, key string, now time.Time) LoadResult {
	doc, err := s.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Ctx(ctx).Error().Err(err).Str("key", key).Msg("cart load failed")
		}
		return LoadResult{Cart: NewCart(now)}
	}

	c, err := Decode(doc)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("discarding malformed cart document")
		return LoadResult{Cart: NewCart(now)}
	}
	if IsExpired(c, now) {
		return LoadResult{Cart: NewCart(now), Found: true, Expired: true}
	}
	return LoadResult{Cart: c, Found: true}
}

// Save stamps UpdatedAt = now and writes c under key. Write failures are
// logged and swallowed; the returned stamped cart stays authoritative.
func Save(ctx context.Context, s Storage, key string, c domain.Cart, now time.Time) domain.Cart {
	c.UpdatedAt = domain.Millis(now)
	doc, err := Encode(c)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("key", key).Msg("cart encode failed")
		return c
	}
	if err := s.Set(ctx, key, doc); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("key", key).Msg("cart save failed")
	}
	return c
}

// Encode serializes a cart document.
func Encode(c domain.Cart) ([]byte, error) {
	if c.Items == nil {
		c.Items = []domain.CartItem{}
	}
	return json.Marshal(c)
}

// Decode parses a cart document.
func Decode(doc []byte) (domain.Cart, error) {
	var c domain.Cart
	if err := json.Unmarshal(doc, &c); err != nil {
		return domain.Cart{}, err
	}
	if c.Items == nil {
		c.Items = []domain.CartItem{}
	}
	return c, nil
}

// MemoryStorage is an in-process Storage. It is safe for concurrent use.
type MemoryStorage struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{docs: make(map[string][]byte)}
}

// Get implements Storage.
func (m *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), doc...), nil
}

// Set implements Storage.
func (m *MemoryStorage) Set(_ context.Context, key string, doc []byte) error {
	m.mu.Lock()
	m.docs[key] = append([]byte(nil), doc...)
	m.mu.Unlock()
	return nil
}

// Delete implements Storage.
func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.docs, key)
	m.mu.Unlock()
	return nil
}
