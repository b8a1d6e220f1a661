package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"timetracker/internal/core"
)

// EntryEventMessage announces a time entry change. It carries only the id;
// the worker loads the current record from the database.
type EntryEventMessage struct {
	Kind       core.EventKind `json:"kind"`
	EntryID    string         `json:"entry_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Timestamp  time.Time      `json:"timestamp"`
}

// NewEntryEventMessage stamps ev with the current publish time.
func NewEntryEventMessage(ev core.EntryEvent) *EntryEventMessage {
	return &EntryEventMessage{
		Kind:       ev.Kind,
		EntryID:    ev.EntryID,
		OccurredAt: ev.At,
		Timestamp:  time.Now(),
	}
}

// Event converts the message back into the domain event.
func (m *EntryEventMessage) Event() core.EntryEvent {
	return core.EntryEvent{Kind: m.Kind, EntryID: m.EntryID, At: m.OccurredAt}
}

func (m *EntryEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntryEventMessageFromJSON decodes and validates a message body.
func EntryEventMessageFromJSON(data []byte) (*EntryEventMessage, error) {
	var msg EntryEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.EntryID == "" {
		return nil, errors.New("message has no entry_id")
	}
	switch msg.Kind {
	case core.EntryStarted, core.EntryStopped, core.EntryUpdated, core.EntryDeleted:
	default:
		return nil, errors.New("unknown event kind " + string(msg.Kind))
	}
	return &msg, nil
}
