package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishDeliversToAllSubscribers(t *testing.T) {
	bus := New()
	sub1 := bus.Subscribe()
	sub2 := bus.Subscribe()

	bus.Publish(CoinsUpdated{Count: 3})

	assert.Equal(t, CoinsUpdated{Count: 3}, <-sub1.Events)
	assert.Equal(t, CoinsUpdated{Count: 3}, <-sub2.Events)
}

func TestBus_PublishOrderPreservedPerSubscriber(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()

	bus.Publish(ScrapeStopped{ExitCode: 0})
	bus.Publish(ScrapeLog{Stage: "aggregator", Line: "starting"})
	bus.Publish(CoinsUpdated{Count: 1})

	require.Equal(t, "scrapeStopped", (<-sub.Events).Type())
	require.Equal(t, "scrapeLog", (<-sub.Events).Type())
	require.Equal(t, "coinsUpdated", (<-sub.Events).Type())
}

func TestBus_SlowSubscriberDropsOldestInsteadOfBlocking(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()

	// Publish well past the per-subscriber buffer without ever reading —
	// this must never block the publisher.
	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Publish(CoinsUpdated{Count: i})
	}

	// Each overflowing publish leaves one droppedEvents marker in the full
	// buffer alongside the real events, and no goroutine is stuck in Publish.
	sawDropped := false
	count := 0
	for count < subscriberBuffer {
		ev := <-sub.Events
		if ev.Type() == "droppedEvents" {
			sawDropped = true
		}
		count++
	}
	assert.True(t, sawDropped, "a full subscriber buffer must surface a droppedEvents marker")
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	assert.Equal(t, 1, bus.SubscriberCount())

	sub.Unsubscribe()
	assert.Equal(t, 0, bus.SubscriberCount())

	_, ok := <-sub.Events
	assert.False(t, ok, "Events must be closed after Unsubscribe")
}

func TestBus_PublishAfterUnsubscribeDoesNotPanic(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	sub.Unsubscribe()

	assert.NotPanics(t, func() {
		bus.Publish(CoinsUpdated{Count: 1})
	})
}
