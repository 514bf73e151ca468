package feed

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ChangeKind is the row operation that produced a feed event.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
)

// Table names carried in feed events.
const (
	TableSessions  = "sessions"
	TablePositions = "participant_positions"
)

// Event is the envelope relayed from the row store's change feed to the
// event bus. Payload is the full row as JSON.
type Event struct {
	ID        uuid.UUID       `json:"event_id"`
	Table     string          `json:"table"`
	Kind      ChangeKind      `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Notification is the shape of the NOTIFY payload emitted by the row
// triggers installed by the migration. Rows here are small enough to
// ride inside the notification itself (Postgres caps NOTIFY payloads at
// 8000 bytes).
type Notification struct {
	Table   string          `json:"table"`
	Kind    ChangeKind      `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Subject returns the bus subject for an event, e.g. "skirmish.sessions.update".
func (e Event) Subject() string {
	table := e.Table
	if table == TablePositions {
		table = "positions"
	}
	return "skirmish." + table + "." + string(e.Kind)
}
