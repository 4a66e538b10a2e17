package amqp

import (
	"encoding/json"
	"time"
)

// Event kinds published on the ledger stream.
const (
	KindExpenseLogged = "expense.logged"
	KindLevelUp       = "level.up"
)

// LedgerEventMessage is a lightweight notification; consumers fetch the full
// expense row from storage by id rather than shipping it on the wire.
type LedgerEventMessage struct {
	Kind      string    `json:"kind"`
	UserID    string    `json:"user_id"`
	ExpenseID int64     `json:"expense_id,omitempty"`
	Level     int       `json:"level,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseLoggedMessage creates the event published after every persisted
// expense.
func NewExpenseLoggedMessage(userID string, expenseID int64) *LedgerEventMessage {
	return &LedgerEventMessage{
		Kind:      KindExpenseLogged,
		UserID:    userID,
		ExpenseID: expenseID,
		Timestamp: time.Now(),
	}
}

// NewLevelUpMessage creates the event published when an XP award crossed the
// level threshold.
func NewLevelUpMessage(userID string, level int) *LedgerEventMessage {
	return &LedgerEventMessage{
		Kind:      KindLevelUp,
		UserID:    userID,
		Level:     level,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON creates a message from JSON bytes
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
