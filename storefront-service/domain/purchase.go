package domain

import "time"

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusFailed    PurchaseStatus = "failed"
)

func (s PurchaseStatus) IsTerminal() bool {
	return s == PurchaseStatusCompleted || s == PurchaseStatusFailed
}

// String representation (for logging)
func (s PurchaseStatus) String() string {
	return string(s)
}

type Purchase struct {
	ID             int64
	UserID         int64
	TemplateID     int64
	PurchaseDate   time.Time
	TransactionID  string
	Status         PurchaseStatus
	IdempotencyKey string
}

// PurchasedTemplate is one row of the user's dashboard.
type PurchasedTemplate struct {
	ID           int64
	Name         string
	PurchaseDate time.Time
}

const EventTypePurchaseCompleted = "PurchaseCompleted"

// PurchaseCompletedEvent is the outbox payload published after a purchase.
type PurchaseCompletedEvent struct {
	TransactionID string    `json:"transaction_id"`
	UserID        int64     `json:"user_id"`
	TemplateID    int64     `json:"template_id"`
	TemplateName  string    `json:"template_name"`
	Price         int64     `json:"price"`
	Currency      string    `json:"currency"`
	CompletedAt   time.Time `json:"completed_at"`
}
