package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"smartexpense/internal/core"
)

// ExpensesChangedMessage is published after a user's expense collection is
// saved. Consumers re-read the collection from storage if they need it.
type ExpensesChangedMessage struct {
	core.ChangeEvent
}

// NewExpensesChangedMessage stamps ev with the current time when it has none.
func NewExpensesChangedMessage(ev core.ChangeEvent) *ExpensesChangedMessage {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return &ExpensesChangedMessage{ChangeEvent: ev}
}

func (m *ExpensesChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpensesChangedMessageFromJSON(data []byte) (*ExpensesChangedMessage, error) {
	var msg ExpensesChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, fmt.Errorf("message without user id")
	}
	return &msg, nil
}
