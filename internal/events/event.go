// Package events carries row-change events from the write paths to the
// notification rules. The wire shape follows database webhooks:
// {type, table, schema, record, old_record}.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type is the kind of row change.
type Type string

const (
	TypeInsert Type = "INSERT"
	TypeUpdate Type = "UPDATE"
)

// Tables whose changes are published.
const (
	TablePatients = "patients"
	TableScanLogs = "ward_scan_logs"
)

const defaultSchema = "public"

// Event is one row change.
type Event struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	Table      string          `json:"table"`
	Schema     string          `json:"schema"`
	Record     json.RawMessage `json:"record"`
	OldRecord  json.RawMessage `json:"old_record,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// NewEvent builds an event from the new row and, for updates, the previous row.
func NewEvent(typ Type, table string, record, oldRecord interface{}) (Event, error) {
	ev := Event{
		ID:         uuid.New().String(),
		Type:       typ,
		Table:      table,
		Schema:     defaultSchema,
		OccurredAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return Event{}, fmt.Errorf("marshal record: %w", err)
	}
	ev.Record = raw
	if oldRecord != nil {
		raw, err = json.Marshal(oldRecord)
		if err != nil {
			return Event{}, fmt.Errorf("marshal old record: %w", err)
		}
		ev.OldRecord = raw
	}
	return ev, nil
}

// Publisher sends events towards the notification rules.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Handler consumes events.
type Handler interface {
	Handle(ctx context.Context, ev Event) error
}
