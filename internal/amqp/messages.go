package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"backoffice/internal/ledger"
)

// LedgerMessage is the wire form of a ledger event. MessageID lets
// consumers drop redeliveries they have already handled.
type LedgerMessage struct {
	ledger.Event
	MessageID   string    `json:"messageId"`
	PublishedAt time.Time `json:"publishedAt"`
}

func NewLedgerMessage(ev ledger.Event) *LedgerMessage {
	return &LedgerMessage{
		Event:       ev,
		MessageID:   uuid.NewString(),
		PublishedAt: time.Now().UTC(),
	}
}

func (m *LedgerMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerMessageFromJSON decodes a delivery body. Messages without a type are
// rejected.
func LedgerMessageFromJSON(data []byte) (*LedgerMessage, error) {
	var msg LedgerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("ledger message missing type")
	}
	return &msg, nil
}
