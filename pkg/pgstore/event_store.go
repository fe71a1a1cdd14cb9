package pgstore

import (
	"context"
	"encoding/json"

	"github.com/codeready-toolchain/tarsy/pkg/events"
)

// eventRow mirrors the events table for GetEventsSince's raw query.
type eventRow struct {
	ID      int64
	Payload []byte
}

// GetEventsSince implements the eventQuerier contract events.EventServiceAdapter
// needs for WebSocket catch-up: rows on channel with id > sinceID, oldest first,
// capped at limit.
func (s *Store) GetEventsSince(ctx context.Context, channel string, sinceID, limit int) ([]events.PersistedEvent, error) {
	db, err := s.db.DB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, payload FROM events WHERE channel = $1 AND id > $2 ORDER BY id ASC LIMIT $3`,
		channel, sinceID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.PersistedEvent
	for rows.Next() {
		var r eventRow
		if err := rows.Scan(&r.ID, &r.Payload); err != nil {
			return nil, err
		}
		var payload map[string]interface{}
		if err := json.Unmarshal(r.Payload, &payload); err != nil {
			return nil, err
		}
		out = append(out, events.PersistedEvent{ID: int(r.ID), Payload: payload})
	}
	return out, rows.Err()
}
