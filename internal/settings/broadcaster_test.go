// ABOUTME: Tests for settings subscriptions
// ABOUTME: Covers fan-out, latest-wins delivery, unsubscribe, ctx cancellation and leaks

package settings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func setSeed(seed int) Updater {
	return func(cur Settings) Settings {
		cur.Experiment.RandomSeed = seed
		return cur
	}
}

func receive(t *testing.T, ch <-chan Settings) Settings {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "channel closed unexpectedly")
		return snap
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Settings{}
	}
}

func TestSubscribe_AllSubscribersReceiveChange(t *testing.T) {
	s, _ := newTestStore(t, NewMemoryPersister(nil))

	ch1, _ := s.Subscribe(t.Context())
	ch2, _ := s.Subscribe(t.Context())

	s.Update(setSeed(7))

	assert.Equal(t, 7, receive(t, ch1).Experiment.RandomSeed)
	assert.Equal(t, 7, receive(t, ch2).Experiment.RandomSeed)
}

func TestSubscribe_LatestWins(t *testing.T) {
	s, _ := newTestStore(t, NewMemoryPersister(nil))
	ch, _ := s.Subscribe(t.Context())

	for seed := 1; seed <= 10; seed++ {
		s.Update(setSeed(seed))
	}

	assert.Equal(t, 10, receive(t, ch).Experiment.RandomSeed)

	select {
	case snap := <-ch:
		t.Fatalf("intermediate snapshot buffered: seed %d", snap.Experiment.RandomSeed)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribe_ResetIsBroadcast(t *testing.T) {
	s, _ := newTestStore(t, NewMemoryPersister(nil))
	s.Update(setSeed(99))

	ch, _ := s.Subscribe(t.Context())
	s.Reset()

	assert.True(t, receive(t, ch).Equal(Defaults()))
}

func TestSubscribe_SnapshotsAreCopies(t *testing.T) {
	s, _ := newTestStore(t, NewMemoryPersister(nil))
	ch, _ := s.Subscribe(t.Context())

	s.Update(setSeed(3))
	snap := receive(t, ch)
	snap.Experiment.Metrics[0] = "BLEU"

	assert.Equal(t, MetricAccuracy, s.Get().Experiment.Metrics[0])
}

func TestUnsubscribe_ClosesChannel(t *testing.T) {
	s, _ := newTestStore(t, NewMemoryPersister(nil))
	ch, subID := s.Subscribe(t.Context())
	require.Equal(t, 1, s.Subscribers())

	s.Unsubscribe(subID)
	s.Unsubscribe(subID) // second call is a no-op

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, s.Subscribers())

	// Publishing after unsubscribe must not panic.
	s.Update(setSeed(5))
}

func TestSubscribe_ContextCancelUnsubscribes(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New(context.Background(), NewMemoryPersister(nil))
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := s.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	assert.Equal(t, 0, s.Subscribers())
}

func TestClose_ClosesAllAndRejectsNew(t *testing.T) {
	s := New(context.Background(), NewMemoryPersister(nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch1, _ := s.Subscribe(ctx)
	ch2, _ := s.Subscribe(ctx)
	s.Close()

	for _, ch := range []<-chan Settings{ch1, ch2} {
		_, ok := <-ch
		assert.False(t, ok)
	}

	late, _ := s.Subscribe(ctx)
	_, ok := <-late
	assert.False(t, ok, "subscribe after close yields a closed channel")

	// Store stays readable and writable.
	s.Update(setSeed(11))
	assert.Equal(t, 11, s.Get().Experiment.RandomSeed)
}

func TestUnsubscribe_ReleasesWatcherForLiveContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New(context.Background(), NewMemoryPersister(nil))

	_, subID := s.Subscribe(context.Background())
	s.Unsubscribe(subID)

	// Close tears down subscriptions whose contexts never end, too.
	for range 3 {
		s.Subscribe(context.Background())
	}
	s.Close()
	assert.Equal(t, 0, s.Subscribers())
}
