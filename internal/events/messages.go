package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/seaclub/backend/internal/ledger"
	"github.com/seaclub/backend/internal/models"
)

// LedgerEvent is published after a ledger mutation commits.
type LedgerEvent struct {
	EventID       string            `json:"event_id"`
	Type          ledger.ChangeType `json:"type"`
	MemberID      string            `json:"member_id"`
	TransactionID int64             `json:"transaction_id,omitempty"`
	Categories    []models.Category `json:"categories"`
	Balances      models.Balances   `json:"balances"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

func NewLedgerEvent(c ledger.Change, at time.Time) *LedgerEvent {
	return &LedgerEvent{
		EventID:       uuid.NewString(),
		Type:          c.Type,
		MemberID:      c.MemberID,
		TransactionID: c.TransactionID,
		Categories:    c.Categories,
		Balances:      c.Balances,
		OccurredAt:    at.UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// RoutingKey is "ledger.<type>", e.g. "ledger.recorded".
func (e *LedgerEvent) RoutingKey() string {
	return "ledger." + string(e.Type)
}
