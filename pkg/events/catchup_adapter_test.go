package events

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEventQuerier implements eventQuerier for testing the adapter.
type mockEventQuerier struct {
	events []PersistedEvent
	err    error
}

func (m *mockEventQuerier) GetEventsSince(_ context.Context, _ string, _ int, limit int) ([]PersistedEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	if limit > 0 && len(m.events) > limit {
		return m.events[:limit], nil
	}
	return m.events, nil
}

func TestEventServiceAdapterGetCatchupEvents(t *testing.T) {
	querier := &mockEventQuerier{
		events: []PersistedEvent{
			{ID: 10, Payload: map[string]interface{}{"type": EventTypeTaskCreated, "seq": float64(1)}},
			{ID: 20, Payload: map[string]interface{}{"type": EventTypeTaskStatus, "seq": float64(2)}},
		},
	}

	adapter := NewEventServiceAdapter(querier)
	events, err := adapter.GetCatchupEvents(context.Background(), "task:test", 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, 10, events[0].ID)
	assert.Equal(t, 20, events[1].ID)
	assert.Equal(t, EventTypeTaskCreated, events[0].Payload["type"])
	assert.Equal(t, EventTypeTaskStatus, events[1].Payload["type"])
}

func TestEventServiceAdapterGetCatchupEventsWithLimit(t *testing.T) {
	querier := &mockEventQuerier{
		events: []PersistedEvent{{ID: 1}, {ID: 2}, {ID: 3}},
	}

	adapter := NewEventServiceAdapter(querier)
	events, err := adapter.GetCatchupEvents(context.Background(), "task:test", 0, 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, 1, events[0].ID)
	assert.Equal(t, 2, events[1].ID)
}

func TestEventServiceAdapterGetCatchupEventsError(t *testing.T) {
	querier := &mockEventQuerier{err: fmt.Errorf("database connection lost")}

	adapter := NewEventServiceAdapter(querier)
	events, err := adapter.GetCatchupEvents(context.Background(), "task:test", 0, 10)
	assert.Error(t, err)
	assert.Nil(t, events)
	assert.Contains(t, err.Error(), "database connection lost")
}

func TestEventServiceAdapterGetCatchupEventsEmpty(t *testing.T) {
	querier := &mockEventQuerier{events: []PersistedEvent{}}

	adapter := NewEventServiceAdapter(querier)
	events, err := adapter.GetCatchupEvents(context.Background(), "task:test", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
