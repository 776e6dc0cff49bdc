package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChangeOp names the mutation that produced a ChangeEvent.
type ChangeOp string

const (
	OpAdded   ChangeOp = "added"
	OpUpdated ChangeOp = "updated"
	OpDeleted ChangeOp = "deleted"
)

// ChangeEvent announces that a user's expense collection was saved.
type ChangeEvent struct {
	UserID    string          `json:"userId"`
	Op        ChangeOp        `json:"op"`
	ExpenseID string          `json:"expenseId"`
	Count     int             `json:"count"`
	Total     decimal.Decimal `json:"total"`
	Timestamp time.Time       `json:"timestamp"`
}
