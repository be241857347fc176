package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/talesofaneria/storefront/internal/analytics"
	"github.com/talesofaneria/storefront/internal/domain"
	"github.com/talesofaneria/storefront/internal/events"
)

// DefaultSettleDelay is how long a coordinator ignores change events after
// its own write before announcing the change to same-context listeners.
const DefaultSettleDelay = 100 * time.Millisecond

// Options configures a Coordinator. Key, Storage and Bus are required.
type Options struct {
	Key         string
	Storage     Storage
	Bus         events.Bus
	Recorder    analytics.Recorder
	SettleDelay time.Duration

	// Now and AfterFunc default to time.Now and time.AfterFunc.
	Now       func() time.Time
	AfterFunc func(d time.Duration, f func())
}

// Coordinator owns the canonical in-memory cart of one storage key in this
// process.
//
// Every mutation is applied to the latest in-memory value, persisted at once,
// and announced with a storage event carrying the new document. While a
// mutation's settle window is open the coordinator ignores all incoming
// events, so its own writes never echo back into it. When the window closes
// a local event tells same-context listeners to re-read storage.
//
// Writes from different coordinators on the same key are last-write-wins.
type Coordinator struct {
	key       string
	origin    string
	store     Storage
	bus       events.Bus
	rec       analytics.Recorder
	settle    time.Duration
	now       func() time.Time
	afterFunc func(time.Duration, func())

	// pubMu keeps storage events in mutation order without holding mu
	// while handlers of other coordinators run.
	pubMu sync.Mutex

	mu       sync.Mutex
	cart     domain.Cart
	pending  int
	closed   bool
	nextW    uint64
	watchers map[uint64]func(domain.Cart)
	unsub    func()
}

// NewCoordinator loads the cart stored under opts.Key and subscribes to
// change events for that key. An expired stored cart is deleted.
func NewCoordinator(ctx context.Context, opts Options) *Coordinator {
	c := &Coordinator{
		key:       opts.Key,
		origin:    uuid.NewString(),
		store:     opts.Storage,
		bus:       opts.Bus,
		rec:       opts.Recorder,
		settle:    opts.SettleDelay,
		now:       opts.Now,
		afterFunc: opts.AfterFunc,
		watchers:  make(map[uint64]func(domain.Cart)),
	}
	if c.settle <= 0 {
		c.settle = DefaultSettleDelay
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.afterFunc == nil {
		c.afterFunc = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}

	res := LoadDetailed(ctx, c.store, c.key, c.now())
	if res.Expired {
		if err := c.store.Delete(ctx, c.key); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("key", c.key).Msg("clearing expired cart failed")
		}
	}
	c.cart = res.Cart
	c.unsub = c.bus.Subscribe(c.key, c.handle)
	return c
}

// Key returns the storage key this coordinator owns.
func (c *Coordinator) Key() string { return c.key }

// Cart returns a copy of the current cart. An expired cart is reset to an
// empty one and its persisted copy is deleted.
func (c *Coordinator) Cart(ctx context.Context) domain.Cart {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.currentLocked(ctx, now))
}

// Updating reports whether a settle window is open.
func (c *Coordinator) Updating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending > 0
}

// Add merges item into the cart and records an add_to_cart event.
func (c *Coordinator) Add(ctx context.Context, item domain.NewCartItem) domain.Cart {
	out := c.mutate(ctx, func(cur domain.Cart, now time.Time) domain.Cart {
		return Add(cur, item, now)
	})
	c.track(ctx, func() error {
		return c.rec.TrackAddToCart(ctx, analytics.ItemEvent{
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			ProductName: item.ProductName,
			Price:       item.Price,
			Quantity:    item.Quantity,
		})
	})
	return out
}

// Remove drops a line and records a remove_from_cart event when the line
// existed.
func (c *Coordinator) Remove(ctx context.Context, itemID string) domain.Cart {
	var (
		removed domain.CartItem
		found   bool
	)
	out := c.mutate(ctx, func(cur domain.Cart, _ time.Time) domain.Cart {
		removed, found = Find(cur, itemID)
		return Remove(cur, itemID)
	})
	if found {
		c.track(ctx, func() error {
			return c.rec.TrackRemoveFromCart(ctx, analytics.ItemEvent{
				ProductID:   removed.ProductID,
				VariantID:   removed.VariantID,
				ProductName: removed.ProductName,
				Price:       removed.Price,
				Quantity:    removed.Quantity,
			})
		})
	}
	return out
}

// UpdateQuantity sets a line's quantity; zero or less removes it.
func (c *Coordinator) UpdateQuantity(ctx context.Context, itemID string, quantity int) domain.Cart {
	return c.mutate(ctx, func(cur domain.Cart, _ time.Time) domain.Cart {
		return UpdateQuantity(cur, itemID, quantity)
	})
}

// Clear replaces the cart with a new empty one.
func (c *Coordinator) Clear(ctx context.Context) domain.Cart {
	return c.mutate(ctx, func(_ domain.Cart, now time.Time) domain.Cart {
		return NewCart(now)
	})
}

// Subscribe registers fn to receive the cart each time this coordinator
// adopts a change from the bus. fn runs on the delivering goroutine and must
// not block.
func (c *Coordinator) Subscribe(fn func(domain.Cart)) (cancel func()) {
	c.mu.Lock()
	c.nextW++
	id := c.nextW
	c.watchers[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.watchers, id)
			c.mu.Unlock()
		})
	}
}

// Close stops listening for change events.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsub := c.unsub
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (c *Coordinator) mutate(ctx context.Context, fn func(domain.Cart, time.Time) domain.Cart) domain.Cart {
	now := c.now()

	c.mu.Lock()
	c.pending++
	next := fn(c.currentLocked(ctx, now), now)
	next = Save(ctx, c.store, c.key, next, now)
	c.cart = next
	out := clone(next)
	c.pubMu.Lock()
	c.mu.Unlock()

	c.publishStorage(ctx, out)
	c.pubMu.Unlock()

	c.afterFunc(c.settle, c.settled)
	return out
}

// settled closes one settle window and tells same-context listeners to
// re-read the canonical cart.
func (c *Coordinator) settled() {
	c.mu.Lock()
	if c.pending > 0 {
		c.pending--
	}
	c.mu.Unlock()

	ev := events.Event{Kind: events.KindLocal, Key: c.key, Origin: c.origin}
	if err := c.bus.Publish(context.Background(), ev); err != nil {
		log.Warn().Err(err).Str("key", c.key).Msg("publishing cart change failed")
	}
}

func (c *Coordinator) publishStorage(ctx context.Context, cart domain.Cart) {
	doc, err := Encode(cart)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("key", c.key).Msg("cart encode failed")
		return
	}
	ev := events.Event{Kind: events.KindStorage, Key: c.key, Origin: c.origin, Payload: doc}
	if err := c.bus.Publish(ctx, ev); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", c.key).Msg("publishing cart write failed")
	}
}

// handle reacts to change events for this key.
func (c *Coordinator) handle(ev events.Event) {
	// A storage event is never delivered back to the context that wrote it,
	// and a local event only concerns the context that raised it.
	switch {
	case ev.Kind == events.KindStorage && ev.Origin == c.origin:
		return
	case ev.Kind == events.KindLocal && ev.Origin != c.origin:
		return
	}

	c.mu.Lock()
	if c.closed || c.pending > 0 {
		c.mu.Unlock()
		return
	}
	switch ev.Kind {
	case events.KindStorage:
		next, err := Decode(ev.Payload)
		if err != nil {
			c.mu.Unlock()
			log.Warn().Err(err).Str("key", c.key).Msg("ignoring malformed cart change")
			return
		}
		c.cart = next
	case events.KindLocal:
		c.cart = Load(context.Background(), c.store, c.key, c.now())
	default:
		c.mu.Unlock()
		return
	}
	snapshot := clone(c.cart)
	ws := make([]func(domain.Cart), 0, len(c.watchers))
	for _, w := range c.watchers {
		ws = append(ws, w)
	}
	c.mu.Unlock()

	for _, w := range ws {
		w(snapshot)
	}
}

func (c *Coordinator) currentLocked(ctx context.Context, now time.Time) domain.Cart {
	if IsExpired(c.cart, now) {
		c.cart = NewCart(now)
		if err := c.store.Delete(ctx, c.key); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("key", c.key).Msg("clearing expired cart failed")
		}
	}
	return c.cart
}

// track runs an analytics side effect. Failures and panics are logged and
// never reach the caller.
func (c *Coordinator) track(ctx context.Context, fn func() error) {
	if c.rec == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Ctx(ctx).Error().Interface("panic", r).Str("key", c.key).Msg("analytics recorder panicked")
		}
	}()
	if err := fn(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", c.key).Msg("analytics recorder failed")
	}
}
