package notify_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"articlewave/internal/notify"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func closeHub[T any](t *testing.T, hub *notify.Hub[T]) {
	t.Helper()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, hub.Close(ctx))
	})
}

func TestHubDeliversInPublishOrder(t *testing.T) {
	hub := notify.NewHub[int](nil)
	closeHub(t, hub)

	got := make(chan int, 100)
	_, err := hub.Subscribe("ordered", func(v int) {
		got <- v
	})
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		hub.Publish(i)
	}

	for want := 0; want < 100; want++ {
		select {
		case v := <-got:
			require.Equal(t, want, v)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for value %d", want)
		}
	}
}

func TestHubInitialValuesComeFirst(t *testing.T) {
	hub := notify.NewHub[string](nil)
	closeHub(t, hub)

	got := make(chan string, 3)
	_, err := hub.Subscribe("initial", func(v string) {
		got <- v
	}, "idle")
	require.NoError(t, err)
	hub.Publish("loading")
	hub.Publish("loaded")

	for _, want := range []string{"idle", "loading", "loaded"} {
		select {
		case v := <-got:
			require.Equal(t, want, v)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestHubSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := notify.NewHub[int](nil)
	closeHub(t, hub)

	release := make(chan struct{})
	var mu sync.Mutex
	var seen []int
	_, err := hub.Subscribe("slow", func(v int) {
		<-release
		mu.Lock()
		seen = append(seen, v)
		mu.Unlock()
	})
	require.NoError(t, err)

	published := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Publish(i)
		}
		close(published)
	}()

	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
	close(release)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 10
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, seen)
}

func TestHubRecoversHandlerPanic(t *testing.T) {
	panics := make(chan string, 1)
	hub := notify.NewHub[int](func(name string, _ any) {
		panics <- name
	})
	closeHub(t, hub)

	got := make(chan int, 2)
	_, err := hub.Subscribe("fragile", func(v int) {
		if v == 1 {
			panic("boom")
		}
		got <- v
	})
	require.NoError(t, err)

	hub.Publish(1)
	hub.Publish(2)

	select {
	case name := <-panics:
		require.Equal(t, "fragile", name)
	case <-time.After(2 * time.Second):
		t.Fatal("panic was not reported")
	}
	select {
	case v := <-got:
		require.Equal(t, 2, v)
	case <-time.After(2 * time.Second):
		t.Fatal("delivery stopped after panic")
	}
}

func TestSubscriptionCloseStopsDelivery(t *testing.T) {
	hub := notify.NewHub[int](nil)
	closeHub(t, hub)

	got := make(chan int, 10)
	sub, err := hub.Subscribe("closing", func(v int) {
		got <- v
	})
	require.NoError(t, err)
	require.Equal(t, 1, hub.Len())

	require.NoError(t, sub.Close(context.Background()))
	require.Equal(t, 0, hub.Len())

	hub.Publish(7)
	select {
	case v := <-got:
		t.Fatalf("unexpected delivery after close: %d", v)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, sub.Close(context.Background()))
}

func TestSubscribeAfterCloseFails(t *testing.T) {
	hub := notify.NewHub[int](nil)
	require.NoError(t, hub.Close(context.Background()))

	_, err := hub.Subscribe("late", func(int) {})
	require.ErrorIs(t, err, notify.ErrClosed)

	hub.Publish(1)
	require.NoError(t, hub.Close(context.Background()))
}

func TestSubscribeNilHandler(t *testing.T) {
	hub := notify.NewHub[int](nil)
	closeHub(t, hub)

	_, err := hub.Subscribe("nil", nil)
	require.Error(t, err)
}
