package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names a committed write on the registry or the ledger.
type EventType string

const (
	FamilyCreated  EventType = "family.created"
	FamilyUpdated  EventType = "family.updated"
	FamilyDeleted  EventType = "family.deleted"
	ExpenseCreated EventType = "expense.created"
	ExpenseDeleted EventType = "expense.deleted"
)

// LedgerEvent is a lightweight notification: consumers fetch the record from
// the store by ID when they need more than the keys.
type LedgerEvent struct {
	Type      EventType `json:"type"`
	ID        string    `json:"id"`
	FamilyID  string    `json:"familyId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEvent creates an event stamped with the current time.
func NewLedgerEvent(t EventType, id, familyID string) *LedgerEvent {
	return &LedgerEvent{
		Type:      t,
		ID:        id,
		FamilyID:  familyID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event and rejects ones missing a type or id.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if ev.Type == "" || ev.ID == "" {
		return nil, fmt.Errorf("incomplete ledger event: type=%q id=%q", ev.Type, ev.ID)
	}
	return &ev, nil
}
