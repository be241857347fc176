// Package analytics records storefront interaction events per session.
//
// Counters live on an explicit Tracker value (one per session) instead of
// package globals, so a session's state can be inspected, reset, and tested
// in isolation. Cart events are also exported as Prometheus counters.
package analytics

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// ErrEmptyTarget is returned when a click has no target name.
var ErrEmptyTarget = errors.New("click target is empty")

// ScrollMilestones are the depth percentages reported once per session.
var ScrollMilestones = []int{25, 50, 75, 100}

var (
	cartEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_events_total",
			Help: "Cart add/remove events recorded by session trackers.",
		},
		[]string{"event"},
	)
	cartEventValue = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_event_value_total",
			Help: "Sum of price*quantity of cart add/remove events.",
		},
		[]string{"event"},
	)
)

func init() {
	prometheus.MustRegister(cartEvents, cartEventValue)
}

// ItemEvent describes the cart line an add or remove event refers to.
type ItemEvent struct {
	ProductID   string
	VariantID   string
	ProductName string
	Price       float64
	Quantity    int
}

// Recorder receives cart side effects. Implementations may fail; callers
// must not let a failure affect the cart operation itself.
type Recorder interface {
	TrackAddToCart(ctx context.Context, ev ItemEvent) error
	TrackRemoveFromCart(ctx context.Context, ev ItemEvent) error
}

// Snapshot is a point-in-time copy of a Tracker's counters.
type Snapshot struct {
	Session          string         `json:"session"`
	Clicks           map[string]int `json:"clicks"`
	MaxScrollDepth   int            `json:"maxScrollDepth"`
	ScrollMilestones []int          `json:"scrollMilestones"`
	CartAdds         int            `json:"cartAdds"`
	CartRemoves      int            `json:"cartRemoves"`
}

// Tracker holds the interaction counters of one session. It is safe for
// concurrent use.
type Tracker struct {
	session string

	mu         sync.Mutex
	clicks     map[string]int
	maxScroll  int
	milestones map[int]struct{}
	adds       int
	removes    int
}

// NewTracker returns an empty tracker for session.
func NewTracker(session string) *Tracker {
	t := &Tracker{session: session}
	t.Reset()
	return t
}

// Reset clears every counter.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.clicks = make(map[string]int)
	t.milestones = make(map[int]struct{})
	t.maxScroll = 0
	t.adds, t.removes = 0, 0
	t.mu.Unlock()
}

// TrackClick counts a click on target and returns the new count.
func (t *Tracker) TrackClick(target string) (int, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return 0, ErrEmptyTarget
	}
	t.mu.Lock()
	t.clicks[target]++
	n := t.clicks[target]
	t.mu.Unlock()
	return n, nil
}

// TrackScroll records a scroll depth in percent (clamped to 0..100) and
// returns the milestones reached for the first time by this call.
func (t *Tracker) TrackScroll(depth int) []int {
	if depth < 0 {
		depth = 0
	}
	if depth > 100 {
		depth = 100
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if depth > t.maxScroll {
		t.maxScroll = depth
	}
	var reached []int
	for _, m := range ScrollMilestones {
		if depth < m {
			break
		}
		if _, seen := t.milestones[m]; !seen {
			t.milestones[m] = struct{}{}
			reached = append(reached, m)
		}
	}
	return reached
}

// TrackAddToCart implements Recorder.
func (t *Tracker) TrackAddToCart(ctx context.Context, ev ItemEvent) error {
	t.mu.Lock()
	t.adds++
	t.mu.Unlock()
	t.observe(ctx, "add_to_cart", ev)
	return nil
}

// TrackRemoveFromCart implements Recorder.
func (t *Tracker) TrackRemoveFromCart(ctx context.Context, ev ItemEvent) error {
	t.mu.Lock()
	t.removes++
	t.mu.Unlock()
	t.observe(ctx, "remove_from_cart", ev)
	return nil
}

// Snapshot copies the current counters.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	clicks := make(map[string]int, len(t.clicks))
	for k, v := range t.clicks {
		clicks[k] = v
	}
	ms := make([]int, 0, len(t.milestones))
	for m := range t.milestones {
		ms = append(ms, m)
	}
	sort.Ints(ms)
	return Snapshot{
		Session:          t.session,
		Clicks:           clicks,
		MaxScrollDepth:   t.maxScroll,
		ScrollMilestones: ms,
		CartAdds:         t.adds,
		CartRemoves:      t.removes,
	}
}

func (t *Tracker) observe(ctx context.Context, event string, ev ItemEvent) {
	cartEvents.WithLabelValues(event).Inc()
	if v := ev.Price * float64(ev.Quantity); v > 0 {
		cartEventValue.WithLabelValues(event).Add(v)
	}
	log.Ctx(ctx).Info().
		Str("event", event).
		Str("session", t.session).
		Str("product_id", ev.ProductID).
		Str("variant_id", ev.VariantID).
		Str("product_name", ev.ProductName).
		Float64("price", ev.Price).
		Int("quantity", ev.Quantity).
		Msg("analytics")
}
