package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventKind is the kind of change reported by the remote feed.
type EventKind string

const (
	EventUpdate EventKind = "UPDATE"
	EventDelete EventKind = "DELETE"
)

// RemoteOrder is the authoritative order record carried by feed events.
type RemoteOrder struct {
	ID              string           `json:"id"`
	Status          string           `json:"status,omitempty"`
	TotalAmount     Optional[int64]  `json:"total_amount,omitzero"`
	RejectionReason Optional[string] `json:"rejection_reason,omitzero"`
}

// OrderEvent is one change notification from the remote feed.
type OrderEvent struct {
	Kind      EventKind    `json:"type"`
	Record    *RemoteOrder `json:"record,omitempty"`
	OldRecord *RemoteOrder `json:"old_record,omitempty"`
}

// OrderID resolves the affected order. Deletes may only carry the prior snapshot.
func (e OrderEvent) OrderID() string {
	if e.Record != nil && e.Record.ID != "" {
		return e.Record.ID
	}
	if e.OldRecord != nil {
		return e.OldRecord.ID
	}
	return ""
}

// DecodeOrderEvent parses and validates a feed envelope.
func DecodeOrderEvent(raw []byte) (OrderEvent, error) {
	var ev OrderEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return OrderEvent{}, fmt.Errorf("decode order event: %w", err)
	}
	ev.Kind = EventKind(strings.ToUpper(strings.TrimSpace(string(ev.Kind))))
	switch ev.Kind {
	case EventUpdate:
		if ev.Record == nil || ev.Record.ID == "" {
			return OrderEvent{}, fmt.Errorf("update without record id: %w", ErrValidation)
		}
	case EventDelete:
		if ev.OrderID() == "" {
			return OrderEvent{}, fmt.Errorf("delete without order id: %w", ErrValidation)
		}
	default:
		return OrderEvent{}, fmt.Errorf("unknown event type %q: %w", ev.Kind, ErrValidation)
	}
	return ev, nil
}

// EncodeOrderEvent is the publisher side of DecodeOrderEvent.
func EncodeOrderEvent(ev OrderEvent) ([]byte, error) {
	return json.Marshal(ev)
}
