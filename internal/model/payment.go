package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod selects how a payment is collected.  vnpay is the
// redirect gateway implemented in internal/gateway; the wallet and card
// methods belong to external providers whose protocols live outside
// this service, so opening one only records the session and hands back
// an opaque provider URL.
type PaymentMethod string

const (
	MethodVNPay   PaymentMethod = "vnpay"
	MethodMomo    PaymentMethod = "momo"
	MethodZaloPay PaymentMethod = "zalopay"
	MethodCard    PaymentMethod = "card"
)

// ParsePaymentMethod validates a client-supplied method string.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(s) {
	case MethodVNPay, MethodMomo, MethodZaloPay, MethodCard:
		return PaymentMethod(s), true
	}
	return "", false
}

// PaymentStatus is the lifecycle state of a payment.  completed and
// failed are terminal: once a reconciliation outcome is recorded a
// replayed gateway callback observes it and applies nothing.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Terminal reports whether a payment status admits no further
// transition.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentCompleted || s == PaymentFailed
}

// Payment is the charge record backing a single ticket reservation.
// Exactly one payment exists per ticket; when the ticket expires or is
// cancelled the payment stays behind as an audit record.
//
// Fields:
//  ID        – primary key identifier.
//  TicketID  – the ticket this payment pays for (1–1).
//  Method    – collection method (vnpay, momo, zalopay, card).
//  Amount    – server-computed quantity × unit price.
//  Status    – lifecycle state (pending, completed, failed).
//  TxnRef    – order reference sent to the gateway; reconciliation
//              parses it back to the ticket ID.
//  PayURL    – redirect URL handed to the client.
//  CreatedAt – creation timestamp, UTC.
//  UpdatedAt – last status change, UTC.
type Payment struct {
	ID        uint64          // payments.id
	TicketID  uint64          // payments.ticket_id
	Method    PaymentMethod   // payments.method
	Amount    decimal.Decimal // payments.amount
	Status    PaymentStatus   // payments.status
	TxnRef    string          // payments.txn_ref
	PayURL    string          // payments.pay_url
	CreatedAt time.Time       // payments.created_at
	UpdatedAt time.Time       // payments.updated_at
}
