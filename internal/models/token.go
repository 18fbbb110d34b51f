package models

import "time"

type TokenStatus string

const (
	TokenStatusWaiting TokenStatus = "waiting"
	TokenStatusActive  TokenStatus = "active"
	TokenStatusExpired TokenStatus = "expired"
)

// WaitingToken is one admission slot: a user's place in line while
// waiting, or their temporary right to transact once active. At most
// one live (waiting or active) token exists per user.
type WaitingToken struct {
	ID             string      `json:"id"`
	UserID         string      `json:"user_id"`
	Status         TokenStatus `json:"status"`
	Sequence       int64       `json:"sequence"`
	EntryToken     string      `json:"entry_token,omitempty"`
	IssuedAt       time.Time   `json:"issued_at"`
	ActivatedAt    *time.Time  `json:"activated_at,omitempty"`
	ActiveDeadline *time.Time  `json:"active_deadline,omitempty"`
	ExpiredAt      *time.Time  `json:"expired_at,omitempty"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

func (t *WaitingToken) IsWaiting() bool {
	return t.Status == TokenStatusWaiting
}

func (t *WaitingToken) IsActive() bool {
	return t.Status == TokenStatusActive
}

// IsLive reports whether the token still occupies the user's single
// admission slot.
func (t *WaitingToken) IsLive() bool {
	return t.Status == TokenStatusWaiting || t.Status == TokenStatusActive
}

// ActiveExpired reports whether an active token has outlived its
// residency deadline.
func (t *WaitingToken) ActiveExpired(now time.Time) bool {
	if t.Status != TokenStatusActive || t.ActiveDeadline == nil {
		return false
	}
	return now.After(*t.ActiveDeadline)
}
