package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunningBroker(t *testing.T) *Broker {
	t.Helper()
	b := NewBroker()
	b.Start()
	t.Cleanup(b.Stop)
	return b
}

func TestSubscribeReceivesEveryType(t *testing.T) {
	b := newRunningBroker(t)
	sub := b.Subscribe()

	b.Publish(&Event{Type: EventDeploymentAdmitted, DeploymentID: 1})
	b.Publish(&Event{Type: EventDeploymentFailed, DeploymentID: 2})

	require.Eventually(t, func() bool { return len(sub) == 2 }, time.Second, time.Millisecond)
}

func TestSubscribeToFiltersByType(t *testing.T) {
	b := newRunningBroker(t)
	sub := b.SubscribeTo(EventDeploymentFailed)

	b.Publish(&Event{Type: EventDeploymentAdmitted, DeploymentID: 1})
	b.Publish(&Event{Type: EventDeploymentFailed, DeploymentID: 2})

	require.Eventually(t, func() bool { return len(sub) == 1 }, time.Second, time.Millisecond)
	got := <-sub
	assert.Equal(t, EventDeploymentFailed, got.Type)
	assert.Equal(t, uint64(2), got.DeploymentID)
}

func TestPublishStampsTimestampWhenUnset(t *testing.T) {
	b := newRunningBroker(t)
	sub := b.Subscribe()

	b.Publish(&Event{Type: EventDeploymentAdmitted})

	require.Eventually(t, func() bool { return len(sub) == 1 }, time.Second, time.Millisecond)
	got := <-sub
	assert.False(t, got.Timestamp.IsZero())
}

func TestUnsubscribeClosesChannelAndDropsCount(t *testing.T) {
	b := newRunningBroker(t)
	sub := b.Subscribe()
	assert.Equal(t, 1, b.SubscriberCount())

	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())

	_, ok := <-sub
	assert.False(t, ok)
}

func TestBroadcastSkipsFullSubscriberWithoutBlockingOthers(t *testing.T) {
	b := newRunningBroker(t)
	slow := b.Subscribe()
	fast := b.Subscribe()

	for i := 0; i < subscriberBuffer+5; i++ {
		b.Publish(&Event{Type: EventDeploymentAdmitted, DeploymentID: uint64(i)})
	}

	require.Eventually(t, func() bool { return len(fast) == subscriberBuffer }, time.Second, time.Millisecond)
	assert.Equal(t, subscriberBuffer, len(slow))
}
