package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestLocalBus_DeliversByKey(t *testing.T) {
	b := NewLocalBus()
	var gotA, gotB []Event
	cancelA := b.Subscribe("a", func(ev Event) { gotA = append(gotA, ev) })
	defer cancelA()
	cancelB := b.Subscribe("b", func(ev Event) { gotB = append(gotB, ev) })
	defer cancelB()

	if err := b.Publish(context.Background(), Event{Kind: KindLocal, Key: "a"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(gotA) != 1 || len(gotB) != 0 {
		t.Fatalf("a=%d b=%d; want 1/0", len(gotA), len(gotB))
	}
	if gotA[0].Kind != KindLocal {
		t.Fatalf("kind = %q", gotA[0].Kind)
	}
}

func TestLocalBus_CancelIsIdempotent(t *testing.T) {
	b := NewLocalBus()
	n := 0
	cancel := b.Subscribe("k", func(Event) { n++ })
	if b.Subscribers("k") != 1 {
		t.Fatalf("want 1 subscriber")
	}
	cancel()
	cancel()
	if b.Subscribers("k") != 0 {
		t.Fatalf("want 0 subscribers after cancel")
	}
	_ = b.Publish(context.Background(), Event{Key: "k"})
	if n != 0 {
		t.Fatalf("handler called after cancel")
	}
}

func TestLocalBus_HandlerMaySubscribeDuringPublish(t *testing.T) {
	b := NewLocalBus()
	done := false
	b.Subscribe("k", func(Event) {
		// would deadlock if Publish held the lock while calling handlers
		b.Subscribe("other", func(Event) {})
		done = true
	})
	_ = b.Publish(context.Background(), Event{Key: "k"})
	if !done {
		t.Fatalf("handler not invoked")
	}
}

func TestRedisBus_DispatchRoutesToLocalSubscribers(t *testing.T) {
	b := NewRedisBus(nil, "")
	if b.channel != DefaultChannel {
		t.Fatalf("channel = %q", b.channel)
	}
	var got []Event
	b.Subscribe("cart:s1", func(ev Event) { got = append(got, ev) })

	payload, _ := json.Marshal(Event{Kind: KindStorage, Key: "cart:s1", Origin: "o1", Payload: json.RawMessage(`{"items":[]}`)})
	b.dispatch(string(payload))
	b.dispatch("not json")
	b.dispatch(`{"kind":"storage"}`) // no key
	b.dispatch(`{"kind":"local","key":"cart:s1","origin":"o2"}`) // another replica's settle

	if len(got) != 1 {
		t.Fatalf("got %d events; want 1", len(got))
	}
	if got[0].Origin != "o1" || string(got[0].Payload) != `{"items":[]}` {
		t.Fatalf("unexpected event: %+v", got[0])
	}
}

func TestRedisBus_PublishErrorWhenUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	b := NewRedisBus(client, "test")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := b.Publish(ctx, Event{Kind: KindStorage, Key: "k"}); err == nil {
		t.Fatalf("expected publish error against unreachable redis")
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close without start: %v", err)
	}
}

func TestRedisBus_LocalEventsStayInProcess(t *testing.T) {
	// nil client: a local event must never reach Redis
	b := NewRedisBus(nil, "")
	var got []Event
	b.Subscribe("cart:s1", func(ev Event) { got = append(got, ev) })

	if err := b.Publish(context.Background(), Event{Kind: KindLocal, Key: "cart:s1", Origin: "o1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(got) != 1 || got[0].Kind != KindLocal || got[0].Origin != "o1" {
		t.Fatalf("got %+v", got)
	}
}
