package models

import "time"

// Balance holds a user's point amount. The amount never goes negative;
// every mutation is paired with exactly one history entry.
type Balance struct {
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	UpdatedAt time.Time `json:"updated_at"`
}

type BalanceEntryType string

const (
	BalanceEntryCharge BalanceEntryType = "charge"
	BalanceEntryUse    BalanceEntryType = "use"
)

// BalanceEntry is an append-only history row; entries are never
// modified or deleted.
type BalanceEntry struct {
	ID          int64            `json:"id"`
	UserID      string           `json:"user_id"`
	Amount      int64            `json:"amount"`
	Type        BalanceEntryType `json:"type"`
	Description string           `json:"description"`
	CreatedAt   time.Time        `json:"created_at"`
}
