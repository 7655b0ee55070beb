package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastDeliversToAllSubscribers(t *testing.T) {
	b := NewBroadcast(4)
	s1 := b.Subscribe()
	s2 := b.Subscribe()

	f := CanonicalFrame{TimestampMs: 32}
	b.Publish(f)

	got1 := <-s1.Frames()
	got2 := <-s2.Frames()
	assert.Equal(t, int64(32), got1.TimestampMs)
	assert.Equal(t, int64(32), got2.TimestampMs)
}

func TestBroadcastSlowSubscriberLagsWithoutBlockingOthers(t *testing.T) {
	b := NewBroadcast(2)
	fast := b.Subscribe()
	slow := b.Subscribe()

	for i := 0; i < 10; i++ {
		b.Publish(CanonicalFrame{TimestampMs: int64(i)})
		<-fast.Frames()
	}

	require.Positive(t, slow.Lagged())
}

func TestBroadcastUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroadcast(2)
	s := b.Subscribe()
	b.Unsubscribe(s)

	b.Publish(CanonicalFrame{TimestampMs: 1})

	select {
	case <-s.Frames():
		t.Fatal("unsubscribed consumer should not receive frames")
	default:
	}
}
