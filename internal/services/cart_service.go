// Package services – CartService
//
// This file implements the CartService, which maps each shopping session to
// one cart coordinator and one analytics tracker. Coordinators are created on
// first use and evicted after a period without requests, unless a watcher is
// still streaming their changes.
//
// Observability: all public cart operations are OpenTelemetry-instrumented;
// spans are named after the operation and carry the session id.
package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/talesofaneria/storefront/internal/analytics"
	"github.com/talesofaneria/storefront/internal/cart"
	"github.com/talesofaneria/storefront/internal/domain"
	"github.com/talesofaneria/storefront/internal/events"
)

// DefaultMaxQuantity caps the quantity accepted by a single request.
const DefaultMaxQuantity = 10

// CartService provides the cart operations of every session.
type CartService struct {
	// Storage persists cart documents.
	Storage cart.Storage
	// Bus carries change events between coordinators.
	Bus events.Bus

	// SettleDelay is passed to each coordinator.
	SettleDelay time.Duration
	// IdleTTL evicts coordinators of sessions without requests for this long.
	// Zero disables eviction.
	IdleTTL time.Duration
	// MaxQuantity caps requested quantities.
	MaxQuantity int

	now func() time.Time

	mu        sync.Mutex
	sessions  map[string]*cartSession
	lastSweep time.Time
}

type cartSession struct {
	coord    *cart.Coordinator
	tracker  *analytics.Tracker
	lastUsed time.Time
	watchers int
}

// NewCartService constructs a CartService with default limits.
func NewCartService(storage cart.Storage, bus events.Bus) *CartService {
	return &CartService{
		Storage:     storage,
		Bus:         bus,
		SettleDelay: cart.DefaultSettleDelay,
		IdleTTL:     30 * time.Minute,
		MaxQuantity: DefaultMaxQuantity,
		now:         time.Now,
		sessions:    make(map[string]*cartSession),
	}
}

// Get returns the session's cart.
func (s *CartService) Get(ctx context.Context, session string) domain.Cart {
	ctx, span := s.start(ctx, "Get", session)
	defer span.End()
	return s.session(ctx, session).coord.Cart(ctx)
}

// Add validates item and merges it into the session's cart.
func (s *CartService) Add(ctx context.Context, session string, item domain.NewCartItem) (domain.Cart, error) {
	ctx, span := s.start(ctx, "Add", session,
		attribute.String("product.id", item.ProductID),
		attribute.String("variant.id", item.VariantID),
		attribute.Int("quantity", item.Quantity),
	)
	defer span.End()

	item.ProductID = strings.TrimSpace(item.ProductID)
	item.VariantID = strings.TrimSpace(item.VariantID)
	if item.ProductID == "" || item.VariantID == "" || item.Quantity <= 0 || item.Price < 0 {
		return domain.Cart{}, ErrInvalidItem
	}
	if s.MaxQuantity > 0 && item.Quantity > s.MaxQuantity {
		return domain.Cart{}, ErrInvalidQuantity
	}
	return s.session(ctx, session).coord.Add(ctx, item), nil
}

// Remove drops a line. Removing an unknown line is a no-op.
func (s *CartService) Remove(ctx context.Context, session, itemID string) domain.Cart {
	ctx, span := s.start(ctx, "Remove", session, attribute.String("item.id", itemID))
	defer span.End()
	return s.session(ctx, session).coord.Remove(ctx, itemID)
}

// UpdateQuantity sets a line's quantity; zero or less removes the line.
func (s *CartService) UpdateQuantity(ctx context.Context, session, itemID string, quantity int) (domain.Cart, error) {
	ctx, span := s.start(ctx, "UpdateQuantity", session,
		attribute.String("item.id", itemID),
		attribute.Int("quantity", quantity),
	)
	defer span.End()

	if s.MaxQuantity > 0 && quantity > s.MaxQuantity {
		return domain.Cart{}, ErrInvalidQuantity
	}
	return s.session(ctx, session).coord.UpdateQuantity(ctx, itemID, quantity), nil
}

// Clear empties the session's cart.
func (s *CartService) Clear(ctx context.Context, session string) domain.Cart {
	ctx, span := s.start(ctx, "Clear", session)
	defer span.End()
	return s.session(ctx, session).coord.Clear(ctx)
}

// Validate reports out-of-stock lines of the session's cart.
func (s *CartService) Validate(ctx context.Context, session string) domain.CartValidation {
	return cart.Validate(s.Get(ctx, session))
}

// Summary derives item counts and subtotal of the session's cart.
func (s *CartService) Summary(ctx context.Context, session string) domain.CartSummary {
	return cart.Summarize(s.Get(ctx, session))
}

// Tracker returns the session's analytics tracker.
func (s *CartService) Tracker(ctx context.Context, session string) *analytics.Tracker {
	return s.session(ctx, session).tracker
}

// Watch streams every cart the session's coordinator adopts from a change
// event. Slow readers miss intermediate carts, never the latest one. The
// channel is closed by cancel.
func (s *CartService) Watch(ctx context.Context, session string) (<-chan domain.Cart, func()) {
	sess := s.session(ctx, session)

	s.mu.Lock()
	sess.watchers++
	s.mu.Unlock()

	ch := make(chan domain.Cart, 1)
	var (
		mu     sync.Mutex
		closed bool
	)
	unsub := sess.coord.Subscribe(func(c domain.Cart) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case <-ch:
		default:
		}
		ch <- c
	})

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			unsub()
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()

			s.mu.Lock()
			sess.watchers--
			sess.lastUsed = s.now()
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

// Sessions returns the number of live coordinators.
func (s *CartService) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops every coordinator.
func (s *CartService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.coord.Close()
		delete(s.sessions, id)
	}
}

func (s *CartService) session(ctx context.Context, id string) *cartSession {
	id = strings.TrimSpace(id)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(ctx, now)

	sess, ok := s.sessions[id]
	if !ok {
		sess = &cartSession{tracker: analytics.NewTracker(id)}
		sess.coord = cart.NewCoordinator(ctx, cart.Options{
			Key:         cart.SessionKey(id),
			Storage:     s.Storage,
			Bus:         s.Bus,
			Recorder:    sess.tracker,
			SettleDelay: s.SettleDelay,
			Now:         s.now,
		})
		s.sessions[id] = sess
	}
	sess.lastUsed = now
	return sess
}

func (s *CartService) evictLocked(ctx context.Context, now time.Time) {
	if s.IdleTTL <= 0 || now.Sub(s.lastSweep) < s.IdleTTL/2 {
		return
	}
	s.lastSweep = now
	for id, sess := range s.sessions {
		if sess.watchers > 0 || now.Sub(sess.lastUsed) < s.IdleTTL {
			continue
		}
		sess.coord.Close()
		delete(s.sessions, id)
		log.Ctx(ctx).Debug().Str("session", id).Msg("evicted idle cart session")
	}
}

func (s *CartService) start(ctx context.Context, op, session string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("session.id", session))
	return otel.Tracer("services/CartService").Start(ctx, op, trace.WithAttributes(attrs...))
}
