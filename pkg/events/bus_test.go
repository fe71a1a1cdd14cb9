package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToMatchingChannelSubscriber(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(GlobalTasksChannel)
	defer sub.Unsubscribe()

	b.Publish(Event{Type: EventTypeTaskCreated, Channel: GlobalTasksChannel, Payload: TaskCreatedPayload{TaskID: "t1"}})

	select {
	case evt := <-sub.C:
		assert.Equal(t, EventTypeTaskCreated, evt.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBusSkipsNonMatchingChannel(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(GlobalAgentsChannel)
	defer sub.Unsubscribe()

	b.Publish(Event{Type: EventTypeTaskCreated, Channel: GlobalTasksChannel})

	select {
	case evt := <-sub.C:
		t.Fatalf("unexpected event delivered: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusEmptyFilterReceivesEverything(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe("")
	defer sub.Unsubscribe()

	b.Publish(Event{Type: EventTypeTaskCreated, Channel: GlobalTasksChannel})
	b.Publish(Event{Type: EventTypeAgentStatus, Channel: GlobalAgentsChannel})

	first := <-sub.C
	second := <-sub.C
	assert.Equal(t, EventTypeTaskCreated, first.Type)
	assert.Equal(t, EventTypeAgentStatus, second.Type)
}

func TestBusDropsOldestWhenMailboxFull(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(GlobalTasksChannel)
	defer sub.Unsubscribe()

	for i := 0; i < defaultSubscriberBuffer+10; i++ {
		b.Publish(Event{Type: EventTypeTaskStatus, Channel: GlobalTasksChannel, Payload: i})
	}

	// mailbox should contain the most recent events, not the oldest.
	last := -1
	for {
		select {
		case evt := <-sub.C:
			last = evt.Payload.(int)
		default:
			goto done
		}
	}
done:
	require.GreaterOrEqual(t, last, defaultSubscriberBuffer)
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(GlobalTasksChannel)
	sub.Unsubscribe()
	assert.Equal(t, 0, b.SubscriberCount())

	b.Publish(Event{Type: EventTypeTaskCreated, Channel: GlobalTasksChannel})
	_, ok := <-sub.C
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestBusSubscriberCount(t *testing.T) {
	b := NewBus()
	s1 := b.Subscribe("")
	s2 := b.Subscribe(GlobalTasksChannel)
	assert.Equal(t, 2, b.SubscriberCount())
	s1.Unsubscribe()
	assert.Equal(t, 1, b.SubscriberCount())
	s2.Unsubscribe()
}
