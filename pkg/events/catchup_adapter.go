package events

import "context"

// PersistedEvent is one row of the events table, as returned by a
// CatchupQuerier's backing store (pkg/pgstore).
type PersistedEvent struct {
	ID      int
	Payload map[string]interface{}
}

// eventQuerier abstracts the event query method needed by
// EventServiceAdapter. Implemented by pkg/pgstore's event log reader.
type eventQuerier interface {
	GetEventsSince(ctx context.Context, channel string, sinceID, limit int) ([]PersistedEvent, error)
}

// EventServiceAdapter wraps an eventQuerier to implement CatchupQuerier.
type EventServiceAdapter struct {
	querier eventQuerier
}

// NewEventServiceAdapter creates a CatchupQuerier from a backing store.
func NewEventServiceAdapter(q eventQuerier) *EventServiceAdapter {
	return &EventServiceAdapter{querier: q}
}

// GetCatchupEvents queries events since sinceID up to limit for the catchup mechanism.
func (a *EventServiceAdapter) GetCatchupEvents(ctx context.Context, channel string, sinceID, limit int) ([]CatchupEvent, error) {
	rows, err := a.querier.GetEventsSince(ctx, channel, sinceID, limit)
	if err != nil {
		return nil, err
	}

	result := make([]CatchupEvent, len(rows))
	for i, row := range rows {
		result[i] = CatchupEvent{
			ID:      row.ID,
			Payload: row.Payload,
		}
	}
	return result, nil
}
