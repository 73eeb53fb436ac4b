package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
}

// DecisionRecord is one journaled oracle decision and how it was resolved.
type DecisionRecord struct {
	ID          string       `json:"id"`
	ConditionID string       `json:"condition_id"`
	Action      Action       `json:"action"`
	Confidence  float64      `json:"confidence"`
	Reasoning   string       `json:"reasoning"`
	BTCPrice    float64      `json:"btc_price"`
	YesPrice    float64      `json:"yes_price"`
	NoPrice     float64      `json:"no_price"`
	LimitPrice  float64      `json:"limit_price,omitempty"`
	Fee         float64      `json:"fee,omitempty"`
	Outcome     BriefOutcome `json:"outcome"`
	OrderStatus OrderStatus  `json:"order_status,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// DecisionJournal persists every decision the engine makes.
type DecisionJournal interface {
	Record(ctx context.Context, rec DecisionRecord) error
	List(ctx context.Context, opts ListOpts) ([]DecisionRecord, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log of state-changing actions.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
