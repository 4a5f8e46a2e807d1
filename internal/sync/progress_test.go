package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressSinkSubscribePreSeedsLatest(t *testing.T) {
	sink := NewProgressSink()
	sink.Publish(Snapshot{Account: "acct-1", Status: SessionRunning})

	ch, unsubscribe := sink.Subscribe()
	defer unsubscribe()

	select {
	case snap := <-ch:
		assert.Equal(t, "acct-1", snap.Account)
	case <-time.After(time.Second):
		t.Fatal("expected pre-seeded snapshot")
	}
}

func TestProgressSinkSubscribeWithoutPriorPublishGetsNothingUntilNext(t *testing.T) {
	sink := NewProgressSink()

	ch, unsubscribe := sink.Subscribe()
	defer unsubscribe()

	select {
	case <-ch:
		t.Fatal("did not expect a snapshot before any publish")
	default:
	}

	sink.Publish(Snapshot{Account: "acct-2"})

	select {
	case snap := <-ch:
		assert.Equal(t, "acct-2", snap.Account)
	case <-time.After(time.Second):
		t.Fatal("expected snapshot after publish")
	}
}

func TestProgressSinkBroadcastsToMultipleSubscribers(t *testing.T) {
	sink := NewProgressSink()

	ch1, unsub1 := sink.Subscribe()
	defer unsub1()
	ch2, unsub2 := sink.Subscribe()
	defer unsub2()

	sink.Publish(Snapshot{Account: "acct-3"})

	for _, ch := range []<-chan Snapshot{ch1, ch2} {
		select {
		case snap := <-ch:
			assert.Equal(t, "acct-3", snap.Account)
		case <-time.After(time.Second):
			t.Fatal("expected broadcast snapshot")
		}
	}
}

func TestProgressSinkUnsubscribeStopsDelivery(t *testing.T) {
	sink := NewProgressSink()

	ch, unsubscribe := sink.Subscribe()
	unsubscribe()

	sink.Publish(Snapshot{Account: "acct-4"})

	_, ok := <-ch
	require.False(t, ok, "channel should be closed after unsubscribe")
}

func TestProgressSinkNonBlockingPublishDropsStaleSnapshot(t *testing.T) {
	sink := NewProgressSink()

	ch, unsubscribe := sink.Subscribe()
	defer unsubscribe()

	sink.Publish(Snapshot{Account: "first"})
	sink.Publish(Snapshot{Account: "second"})

	select {
	case snap := <-ch:
		assert.Equal(t, "second", snap.Account)
	case <-time.After(time.Second):
		t.Fatal("expected latest snapshot to be delivered")
	}
}
