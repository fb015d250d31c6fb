package models

import (
	"encoding/json"
	"time"
)

type PointBalance struct {
	UserID     int64     `json:"user_id"`
	Balance    int       `json:"balance"`
	TotalSpent int       `json:"total_spent"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Point event types recorded in point_events.
const (
	PointEventDeduct = "deduct"
	PointEventRefund = "refund"
	PointEventGrant  = "grant"
)

type PointEvent struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	EventType string          `json:"event_type"`
	Amount    int             `json:"amount"`
	Balance   int             `json:"balance"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// DeductResult reports whether a deduction went through. Success is false
// when the balance could not cover the amount; the balance is then unchanged.
type DeductResult struct {
	Success         bool `json:"success"`
	RemainingPoints int  `json:"remaining_points"`
}

type RefundResult struct {
	Success         bool `json:"success"`
	RemainingPoints int  `json:"remaining_points"`
}

type PointEventsResponse struct {
	Events  []PointEvent `json:"events"`
	Balance int          `json:"balance"`
}
