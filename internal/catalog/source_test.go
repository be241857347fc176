package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/talesofaneria/storefront/internal/domain"
)

// ----- Fakes -----

type fakeUpstream struct {
	name       string
	configured bool
	items      []domain.Product
	err        error
	calls      atomic.Int32
	gate       chan struct{}
}

func (f *fakeUpstream) Name() string     { return f.name }
func (f *fakeUpstream) Configured() bool { return f.configured }

func (f *fakeUpstream) Fetch(ctx context.Context, key string) ([]domain.Product, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

type memStore struct {
	mu      sync.Mutex
	entries map[string]domain.CacheEntry
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{entries: map[string]domain.CacheEntry{}}
}

func (m *memStore) Load(_ context.Context, source, key string) (domain.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[source+"/"+key]
	if !ok {
		return domain.CacheEntry{}, ErrCacheMiss
	}
	return e, nil
}

func (m *memStore) Save(_ context.Context, source string, e domain.CacheEntry) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	m.entries[source+"/"+e.Key] = e
	m.mu.Unlock()
	return nil
}

func (m *memStore) Delete(_ context.Context, source, key string) error {
	m.mu.Lock()
	delete(m.entries, source+"/"+key)
	m.mu.Unlock()
	return nil
}

func (m *memStore) Clear(context.Context, string) error {
	m.mu.Lock()
	m.entries = map[string]domain.CacheEntry{}
	m.mu.Unlock()
	return nil
}

func (m *memStore) put(t *testing.T, source, key string, items []domain.Product, ts time.Time) {
	t.Helper()
	raw, err := json.Marshal(items)
	if err != nil {
		t.Fatal(err)
	}
	_ = m.Save(context.Background(), source, domain.CacheEntry{Key: key, Items: raw, Timestamp: ts.UnixMilli()})
}

var (
	now = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	p1  = domain.Product{ID: "1", Name: "Dice Set", Price: "$25.00", Image: "a", URL: "u1", InStock: true}
	p2  = domain.Product{ID: "2", Name: "Map Print", Price: "$12.00", Image: "b", URL: "u2", InStock: false}
	p3  = domain.Product{ID: "3", Name: "Sticker", Price: "$3.00", Image: "c", URL: "u3", InStock: true}
)

func newTestSource(up *fakeUpstream, st Store) *Source[domain.Product] {
	s := NewSource[domain.Product](up, st, time.Hour)
	s.now = func() time.Time { return now }
	return s
}

func counter(source, outcome string) float64 {
	return testutil.ToFloat64(lookups.WithLabelValues(source, outcome))
}

// ----- Tests -----

func TestGet_FreshHitMakesNoUpstreamCall(t *testing.T) {
	st := newMemStore()
	st.put(t, "t-hit", "shop1", []domain.Product{p1, p2, p3}, now.Add(-30*time.Minute))
	up := &fakeUpstream{name: "t-hit", configured: true, err: errors.New("must not be called")}

	got := newTestSource(up, st).Get(context.Background(), "shop1", 2)
	if len(got) != 2 || got[0] != p1 || got[1] != p2 {
		t.Fatalf("got %+v", got)
	}
	if up.calls.Load() != 0 {
		t.Fatalf("upstream calls = %d", up.calls.Load())
	}
	if counter("t-hit", OutcomeHit) != 1 {
		t.Fatalf("hit counter = %v", counter("t-hit", OutcomeHit))
	}
}

func TestGet_StaleFallbackOnUpstreamFailure(t *testing.T) {
	st := newMemStore()
	st.put(t, "t-stale", "shop1", []domain.Product{p1, p2}, now.Add(-2*time.Hour))
	up := &fakeUpstream{name: "t-stale", configured: true, err: ErrUpstreamStatus}

	got := newTestSource(up, st).Get(context.Background(), "shop1", 8)
	if len(got) != 2 || got[0] != p1 || got[1] != p2 {
		t.Fatalf("want stale [p1 p2], got %+v", got)
	}
	if up.calls.Load() != 1 {
		t.Fatalf("upstream calls = %d", up.calls.Load())
	}
	if counter("t-stale", OutcomeStale) != 1 {
		t.Fatal("stale outcome not counted")
	}
}

func TestGet_FailureWithoutCacheIsEmpty(t *testing.T) {
	up := &fakeUpstream{name: "t-empty", configured: true, err: errors.New("connection refused")}
	got := newTestSource(up, newMemStore()).Get(context.Background(), "shop1", 8)
	if got == nil || len(got) != 0 {
		t.Fatalf("want empty non-nil, got %#v", got)
	}
}

func TestGet_UnconfiguredIsEmptyWithoutCall(t *testing.T) {
	st := newMemStore()
	st.put(t, "t-unconf", "shop1", []domain.Product{p1}, now.Add(-2*time.Hour))
	up := &fakeUpstream{name: "t-unconf", configured: false, items: []domain.Product{p2}}

	got := newTestSource(up, st).Get(context.Background(), "shop1", 8)
	if got == nil || len(got) != 0 {
		t.Fatalf("want empty, got %#v", got)
	}
	if up.calls.Load() != 0 {
		t.Fatal("upstream called without credentials")
	}
	if counter("t-unconf", OutcomeUnconfigured) != 1 {
		t.Fatal("unconfigured outcome not counted")
	}
}

func TestGet_SuccessReplacesEntryAndTruncates(t *testing.T) {
	st := newMemStore()
	st.put(t, "t-miss", "shop1", []domain.Product{p3}, now.Add(-3*time.Hour))
	up := &fakeUpstream{name: "t-miss", configured: true, items: []domain.Product{p1, p2}}
	src := newTestSource(up, st)

	got := src.Get(context.Background(), "shop1", 1)
	if len(got) != 1 || got[0] != p1 {
		t.Fatalf("got %+v", got)
	}

	e, err := st.Load(context.Background(), "t-miss", "shop1")
	if err != nil {
		t.Fatal(err)
	}
	var cached []domain.Product
	_ = json.Unmarshal(e.Items, &cached)
	if len(cached) != 2 || cached[0] != p1 || e.Timestamp != now.UnixMilli() {
		t.Fatalf("cache not replaced with full set: %+v ts=%d", cached, e.Timestamp)
	}

	// Second call is a hit for the full set.
	if got := src.Get(context.Background(), "shop1", 0); len(got) != 2 {
		t.Fatalf("limit 0 should return all, got %d", len(got))
	}
	if up.calls.Load() != 1 {
		t.Fatalf("upstream calls = %d", up.calls.Load())
	}
}

func TestGet_KeyMismatchIsMiss(t *testing.T) {
	st := newMemStore()
	st.put(t, "t-key", "shop1", []domain.Product{p1}, now)
	up := &fakeUpstream{name: "t-key", configured: true, items: []domain.Product{p3}}

	got := newTestSource(up, st).Get(context.Background(), "shop2", 8)
	if len(got) != 1 || got[0] != p3 {
		t.Fatalf("got %+v", got)
	}
}

func TestGet_CacheWriteFailureStillReturnsItems(t *testing.T) {
	st := newMemStore()
	st.saveErr = errors.New("read-only fs")
	up := &fakeUpstream{name: "t-wfail", configured: true, items: []domain.Product{p1}}
	if got := newTestSource(up, st).Get(context.Background(), "shop1", 8); len(got) != 1 {
		t.Fatalf("got %+v", got)
	}
}

func TestGet_NilUpstreamResultIsEmpty(t *testing.T) {
	up := &fakeUpstream{name: "t-nil", configured: true}
	got := newTestSource(up, newMemStore()).Get(context.Background(), "shop1", 8)
	if got == nil || len(got) != 0 {
		t.Fatalf("got %#v", got)
	}
}

func TestGet_ResultIsCallerOwned(t *testing.T) {
	st := newMemStore()
	up := &fakeUpstream{name: "t-own", configured: true, items: []domain.Product{p1, p2}}
	src := newTestSource(up, st)
	got := src.Get(context.Background(), "shop1", 0)
	got[0].Name = "mutated"
	if up.items[0].Name != p1.Name {
		t.Fatal("caller mutation leaked into upstream slice")
	}
}

func TestGet_ConcurrentMissesCollapse(t *testing.T) {
	up := &fakeUpstream{name: "t-sf", configured: true, items: []domain.Product{p1}, gate: make(chan struct{})}
	src := newTestSource(up, newMemStore())

	const n = 8
	var wg sync.WaitGroup
	results := make([][]domain.Product, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = src.Get(context.Background(), "shop1", 8)
		}(i)
	}
	// Let the first caller enter Fetch, then release everyone.
	for up.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(up.gate)
	wg.Wait()

	for i, r := range results {
		if len(r) != 1 {
			t.Fatalf("result %d = %+v", i, r)
		}
	}
	if c := up.calls.Load(); c >= n {
		t.Fatalf("upstream calls = %d, want fewer than %d", c, n)
	}
}

func TestGet_CancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	up := &fakeUpstream{name: "t-sf-cancel", configured: true, items: []domain.Product{p1}, gate: make(chan struct{})}
	st := newMemStore()
	src := newTestSource(up, st)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan []domain.Product, 1)
	go func() { first <- src.Get(ctx, "shop1", 8) }()
	for up.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	second := make(chan []domain.Product, 1)
	go func() { second <- src.Get(context.Background(), "shop1", 8) }()
	time.Sleep(20 * time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)
	close(up.gate)

	if got := <-second; len(got) != 1 {
		t.Fatalf("second caller got %+v, want the fetched item", got)
	}
	<-first
	if c := up.calls.Load(); c != 1 {
		t.Fatalf("upstream calls = %d, want 1", c)
	}
	if _, err := st.Load(context.Background(), "t-sf-cancel", "shop1"); err != nil {
		t.Fatalf("fetched items were not cached: %v", err)
	}
}

func TestHead(t *testing.T) {
	items := []int{1, 2, 3}
	cases := []struct {
		limit, want int
	}{{0, 3}, {-1, 3}, {2, 2}, {5, 3}}
	for _, tc := range cases {
		if got := head(items, tc.limit); len(got) != tc.want {
			t.Fatalf("limit %d: len %d, want %d", tc.limit, len(got), tc.want)
		}
	}
}
