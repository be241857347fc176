package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/talesofaneria/storefront/internal/cart"
	"github.com/talesofaneria/storefront/internal/domain"
	"github.com/talesofaneria/storefront/internal/events"
)

// ----- Fakes -----

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newCartService(store cart.Storage, bus events.Bus) *CartService {
	s := NewCartService(store, bus)
	s.SettleDelay = time.Millisecond
	return s
}

func item(pid, vid string, price float64, qty int) domain.NewCartItem {
	return domain.NewCartItem{ProductID: pid, VariantID: vid, ProductName: pid, Price: price, Quantity: qty, InStock: true}
}

func recv(t *testing.T, ch <-chan domain.Cart) domain.Cart {
	t.Helper()
	select {
	case c, ok := <-ch:
		if !ok {
			t.Fatal("watch channel closed")
		}
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cart change")
	}
	return domain.Cart{}
}

// ----- Tests -----

func TestNewCartService_Defaults(t *testing.T) {
	s := NewCartService(cart.NewMemoryStorage(), events.NewLocalBus())
	if s.MaxQuantity != DefaultMaxQuantity || s.SettleDelay != cart.DefaultSettleDelay || s.IdleTTL != 30*time.Minute {
		t.Fatalf("unexpected defaults: %+v", s)
	}
	if s.Sessions() != 0 {
		t.Fatalf("sessions = %d", s.Sessions())
	}
}

func TestCartService_AddMergesAndSummarizes(t *testing.T) {
	s := newCartService(cart.NewMemoryStorage(), events.NewLocalBus())
	defer s.Close()
	ctx := context.Background()

	if _, err := s.Add(ctx, "s1", item("A", "red", 10, 2)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add(ctx, "s1", item("B", "std", 5.5, 1)); err != nil {
		t.Fatal(err)
	}
	c, err := s.Add(ctx, "s1", item("A", "red", 10, 1))
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Items) != 2 || c.Items[0].Quantity != 3 {
		t.Fatalf("cart = %+v", c.Items)
	}

	sum := s.Summary(ctx, "s1")
	if sum.ItemCount != 2 || sum.TotalItems != 4 || sum.Subtotal != 35.5 {
		t.Fatalf("summary = %+v", sum)
	}
	if got := s.Tracker(ctx, "s1").Snapshot().CartAdds; got != 3 {
		t.Fatalf("tracker adds = %d", got)
	}
}

func TestCartService_AddValidation(t *testing.T) {
	s := newCartService(cart.NewMemoryStorage(), events.NewLocalBus())
	defer s.Close()
	ctx := context.Background()

	bad := []domain.NewCartItem{
		item(" ", "v", 1, 1),
		item("p", "", 1, 1),
		item("p", "v", 1, 0),
		item("p", "v", -1, 1),
	}
	for _, it := range bad {
		if _, err := s.Add(ctx, "s1", it); !errors.Is(err, ErrInvalidItem) {
			t.Fatalf("Add(%+v) err = %v, want ErrInvalidItem", it, err)
		}
	}
	if _, err := s.Add(ctx, "s1", item("p", "v", 1, 11)); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("over cap err = %v", err)
	}
	if c := s.Get(ctx, "s1"); len(c.Items) != 0 {
		t.Fatalf("rejected adds changed the cart: %+v", c.Items)
	}
}

func TestCartService_UpdateRemoveClear(t *testing.T) {
	s := newCartService(cart.NewMemoryStorage(), events.NewLocalBus())
	defer s.Close()
	ctx := context.Background()

	c, _ := s.Add(ctx, "s1", item("A", "red", 10, 1))
	id := c.Items[0].ID

	if _, err := s.UpdateQuantity(ctx, "s1", id, 11); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("over cap err = %v", err)
	}
	c, err := s.UpdateQuantity(ctx, "s1", id, 4)
	if err != nil || c.Items[0].Quantity != 4 {
		t.Fatalf("update = %+v, %v", c.Items, err)
	}

	if c := s.Remove(ctx, "s1", "missing"); len(c.Items) != 1 {
		t.Fatalf("removing unknown line changed cart: %+v", c.Items)
	}
	c, err = s.UpdateQuantity(ctx, "s1", id, 0)
	if err != nil || len(c.Items) != 0 {
		t.Fatalf("quantity 0 should remove: %+v, %v", c.Items, err)
	}

	s.Add(ctx, "s1", item("B", "std", 1, 1))
	if c := s.Clear(ctx, "s1"); len(c.Items) != 0 {
		t.Fatalf("clear left %+v", c.Items)
	}
}

func TestCartService_SessionsAreIsolated(t *testing.T) {
	s := newCartService(cart.NewMemoryStorage(), events.NewLocalBus())
	defer s.Close()
	ctx := context.Background()

	s.Add(ctx, "alice", item("A", "red", 10, 1))
	if c := s.Get(ctx, "bob"); len(c.Items) != 0 {
		t.Fatalf("bob sees alice's cart: %+v", c.Items)
	}
	if s.Sessions() != 2 {
		t.Fatalf("sessions = %d", s.Sessions())
	}
}

func TestCartService_Validate(t *testing.T) {
	s := newCartService(cart.NewMemoryStorage(), events.NewLocalBus())
	defer s.Close()
	ctx := context.Background()

	out := item("B", "std", 5, 1)
	out.InStock = false
	s.Add(ctx, "s1", item("A", "red", 10, 1))
	s.Add(ctx, "s1", out)

	v := s.Validate(ctx, "s1")
	if v.Valid || len(v.OutOfStockItems) != 1 || v.OutOfStockItems[0].ProductID != "B" {
		t.Fatalf("validation = %+v", v)
	}
}

func TestCartService_WatchSeesOtherReplica(t *testing.T) {
	store := cart.NewMemoryStorage()
	bus := events.NewLocalBus()
	a := newCartService(store, bus)
	b := newCartService(store, bus)
	defer a.Close()
	defer b.Close()
	ctx := context.Background()

	ch, cancel := b.Watch(ctx, "s1")
	defer cancel()

	a.Add(ctx, "s1", item("A", "red", 10, 2))

	got := recv(t, ch)
	if len(got.Items) != 1 || got.Items[0].Quantity != 2 {
		t.Fatalf("watched cart = %+v", got.Items)
	}
	if c := b.Get(ctx, "s1"); len(c.Items) != 1 {
		t.Fatalf("replica b did not converge: %+v", c.Items)
	}
}

func TestCartService_WatchCancelClosesChannel(t *testing.T) {
	s := newCartService(cart.NewMemoryStorage(), events.NewLocalBus())
	defer s.Close()

	ch, cancel := s.Watch(context.Background(), "s1")
	cancel()
	cancel() // idempotent
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
}

func TestCartService_EvictsIdleSessions(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s := newCartService(cart.NewMemoryStorage(), events.NewLocalBus())
	s.IdleTTL = time.Minute
	s.now = clock.Now
	defer s.Close()
	ctx := context.Background()

	s.Add(ctx, "idle", item("A", "red", 10, 1))
	_, cancel := s.Watch(ctx, "watched")

	clock.advance(2 * time.Minute)
	s.Get(ctx, "fresh")

	if s.Sessions() != 2 {
		t.Fatalf("sessions = %d, want watched+fresh", s.Sessions())
	}
	// Eviction drops the coordinator, not the stored cart.
	if c := s.Get(ctx, "idle"); len(c.Items) != 1 {
		t.Fatalf("evicted cart lost: %+v", c.Items)
	}

	cancel()
	clock.advance(2 * time.Minute)
	s.Get(ctx, "fresh")
	if s.Sessions() != 1 {
		t.Fatalf("sessions = %d, want 1", s.Sessions())
	}
}
