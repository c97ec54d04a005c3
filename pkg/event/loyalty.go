package event

import "time"

const (
	// OTPTopic carries freshly issued login codes to the SMS dispatcher.
	OTPTopic = "loyalty.otp"
	// LedgerTopic carries durable ledger changes. It is backed by a JetStream stream.
	LedgerTopic = "loyalty.ledger"

	EventOTPRequested     = "otp.requested"
	EventPurchaseRecorded = "purchase.recorded"
	EventPurchaseRemoved  = "purchase.removed"
	EventRoadmapCompleted = "roadmap.completed"
)

// OTPRequestedEvent asks the dispatcher to deliver a login code.
type OTPRequestedEvent struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	Mobile     string    `json:"mobile"`
	Code       string    `json:"code"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// LedgerEvent describes a change to a customer's purchase ledger or badges.
// Fields not relevant to an event type are left empty.
type LedgerEvent struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	CustomerID string    `json:"customer_id"`
	Mobile     string    `json:"mobile"`

	PurchaseID string   `json:"purchase_id,omitempty"`
	Items      []string `json:"items,omitempty"`
	Source     string   `json:"source,omitempty"`
	BillHash   string   `json:"bill_hash,omitempty"`

	RoadmapID string `json:"roadmap_id,omitempty"`
	Badge     string `json:"badge,omitempty"`
	Reward    string `json:"reward,omitempty"`

	Actor string `json:"actor,omitempty"`
}
