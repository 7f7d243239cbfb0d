// Package queue defines message payloads exchanged over the message broker.
package queue

// TicketBookedEvent is published when a reconciled payment moves a
// ticket to booked.  It carries enough for downstream consumers to log,
// notify or feed analytics without querying the primary database.
// Delivery of notifications themselves is owned by other services.
type TicketBookedEvent struct {
	TicketID   uint64 `json:"ticket_id"`
	EventID    uint64 `json:"event_id"`
	UserID     uint64 `json:"user_id"`
	TicketType string `json:"ticket_type"`
	Quantity   uint32 `json:"quantity"`
	Amount     string `json:"amount"` // decimal string, e.g. "1000"
	TxnRef     string `json:"txn_ref"`
	BookedAt   string `json:"booked_at"` // RFC 3339 UTC
}
