package events

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishFanOut(t *testing.T) {
	hub := NewHub(16)
	a := hub.Subscribe()
	b := hub.Subscribe()
	defer a.Close()
	defer b.Close()

	hub.Publish(Event{Tipe: "stok", Event: ActionCreated})
	hub.Publish(Event{Tipe: "kasbon", Event: ActionUpdated})

	for _, sub := range []*Subscription{a, b} {
		evs, skipped := sub.Drain()
		require.Len(t, evs, 2)
		require.Zero(t, skipped)
		require.Equal(t, "stok", evs[0].Tipe)
		require.Equal(t, "kasbon", evs[1].Tipe)
	}
}

func TestNoReplayForLateSubscriber(t *testing.T) {
	hub := NewHub(16)
	hub.Publish(Event{Tipe: "stok", Event: ActionCreated})

	sub := hub.Subscribe()
	defer sub.Close()

	evs, skipped := sub.Drain()
	require.Empty(t, evs)
	require.Zero(t, skipped)
}

func TestLaggedSubscriberSkipsOldest(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe()
	defer sub.Close()

	for i := 0; i < 10; i++ {
		hub.Publish(Event{Tipe: "stok", Event: ActionUpdated, Payload: i})
	}

	evs, skipped := sub.Drain()
	require.Len(t, evs, 4)
	require.EqualValues(t, 6, skipped)
	// resumes from the current point: newest four survive
	require.Equal(t, 6, evs[0].Payload)
	require.Equal(t, 9, evs[3].Payload)

	hub.Publish(Event{Tipe: "stok", Event: ActionUpdated, Payload: 10})
	evs, skipped = sub.Drain()
	require.Len(t, evs, 1)
	require.Zero(t, skipped)
}

func TestStalledSubscriberNeverBlocksPublisher(t *testing.T) {
	hub := NewHub(8)
	sub := hub.Subscribe() // never drained
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			hub.Publish(Event{Tipe: "invoice", Event: ActionUpdated, Payload: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publisher blocked on stalled subscriber")
	}
}

func TestCloseIsIdempotentAndStopsDelivery(t *testing.T) {
	hub := NewHub(8)
	sub := hub.Subscribe()
	require.Equal(t, 1, hub.SubscriberCount())

	sub.Close()
	sub.Close()
	require.Equal(t, 0, hub.SubscriberCount())

	hub.Publish(Event{Tipe: "stok", Event: ActionDeleted})
	evs, _ := sub.Drain()
	require.Empty(t, evs)
}

func TestConcurrentPublishOrderPerSubscriber(t *testing.T) {
	hub := NewHub(1024)
	sub := hub.Subscribe()
	defer sub.Close()

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				hub.Publish(Event{Tipe: fmt.Sprintf("p%d", p), Payload: i})
			}
		}(p)
	}
	wg.Wait()

	evs, skipped := sub.Drain()
	require.Zero(t, skipped)
	require.Len(t, evs, 400)

	// per-producer FIFO holds even under interleaving
	last := map[string]int{}
	for _, ev := range evs {
		i := ev.Payload.(int)
		if prev, ok := last[ev.Tipe]; ok {
			require.Greater(t, i, prev)
		}
		last[ev.Tipe] = i
	}
}

func TestEncodeWireShape(t *testing.T) {
	ev := Event{Tipe: "kasbon", Event: ActionUpdated, Payload: map[string]any{"saldo_kasbon": 300}}
	raw, err := ev.Encode()
	require.NoError(t, err)
	require.JSONEq(t, `{"tipe":"kasbon","event":"updated","payload":{"saldo_kasbon":300}}`, string(raw))
}

func TestCountingPublisherCountsAndForwards(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe()
	defer sub.Close()

	var mu sync.Mutex
	counted := map[string]int{}
	pub := CountingPublisher{Next: hub, Count: func(tipe, event string) {
		mu.Lock()
		defer mu.Unlock()
		counted[tipe+"/"+event]++
	}}

	pub.Publish(Event{Tipe: "kasbon", Event: ActionUpdated})
	pub.Publish(Event{Tipe: "kasbon", Event: ActionUpdated})
	pub.Publish(Event{Tipe: "stok", Event: ActionCreated})

	evs, skipped := sub.Drain()
	require.Len(t, evs, 3)
	require.Zero(t, skipped)
	require.Equal(t, 2, counted["kasbon/updated"])
	require.Equal(t, 1, counted["stok/created"])
}

func TestCountingPublisherNilCountStillForwards(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe()
	defer sub.Close()

	CountingPublisher{Next: hub}.Publish(Event{Tipe: "invoice", Event: ActionDeleted})

	evs, _ := sub.Drain()
	require.Len(t, evs, 1)
}
