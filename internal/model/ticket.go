package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TicketType identifies the price tier a ticket was bought at.
type TicketType string

const (
	TicketTypeRegular TicketType = "regular"
	TicketTypeVIP     TicketType = "vip"
)

// ParseTicketType validates a client-supplied ticket type string.
func ParseTicketType(s string) (TicketType, bool) {
	switch TicketType(s) {
	case TicketTypeRegular:
		return TicketTypeRegular, true
	case TicketTypeVIP:
		return TicketTypeVIP, true
	}
	return "", false
}

// TicketStatus is the lifecycle state of a ticket reservation.
type TicketStatus string

const (
	TicketPending   TicketStatus = "pending"
	TicketBooked    TicketStatus = "booked"
	TicketExpired   TicketStatus = "expired"
	TicketCancelled TicketStatus = "cancelled"
)

// ticketTransitions defines the valid state transitions.  The key is the
// current status, the value the set of statuses it may move to.  booked,
// expired and cancelled are terminal; booked→booked is listed so that a
// duplicate payment confirmation is an idempotent no-op rather than an
// invalid transition.
var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketPending:   {TicketBooked, TicketExpired, TicketCancelled},
	TicketBooked:    {TicketBooked},
	TicketExpired:   {},
	TicketCancelled: {},
}

// CanTransition reports whether a ticket may move from one status to
// another.
func CanTransition(from, to TicketStatus) bool {
	for _, s := range ticketTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Ticket records a time-bounded reservation of event tickets by a user.
// The unit price is snapshotted from the event at reservation time and
// never changes afterwards, so later price edits on the event cannot
// alter what an existing holder owes.
//
// Fields:
//  ID        – primary key identifier.
//  EventID   – event the tickets are for.
//  UserID    – holder of the reservation.
//  Type      – price tier (regular, vip).
//  Quantity  – number of tickets, always positive.
//  UnitPrice – per-ticket price frozen at creation.
//  Status    – lifecycle state (pending, booked, expired, cancelled).
//  QRToken   – opaque redemption token presented at entry scanning.
//  CreatedAt – creation timestamp, UTC.
//  ExpiresAt – end of the reservation hold window, UTC; always after
//              CreatedAt.
type Ticket struct {
	ID        uint64          // tickets.id
	EventID   uint64          // tickets.event_id
	UserID    uint64          // tickets.user_id
	Type      TicketType      // tickets.ticket_type
	Quantity  uint32          // tickets.quantity
	UnitPrice decimal.Decimal // tickets.unit_price
	Status    TicketStatus    // tickets.status
	QRToken   string          // tickets.qr_token
	CreatedAt time.Time       // tickets.created_at
	ExpiresAt time.Time       // tickets.expires_at
}

// TotalPrice is the amount owed for the reservation.  It is always
// Quantity × UnitPrice computed server-side; client-submitted amounts
// are never trusted anywhere in the payment path.
func (t *Ticket) TotalPrice() decimal.Decimal {
	return t.UnitPrice.Mul(decimal.NewFromInt(int64(t.Quantity)))
}

// ExpiredBy reports whether the hold window had passed at the given
// instant.  Callers use this for lazy expiry so a stale pending row is
// never treated as live even before the sweep has run.
func (t *Ticket) ExpiredBy(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// MaxReservationQuantity caps how many tickets one reservation may
// hold.  The cap also keeps the quantity inside its storage range: a
// request body carries an int64, so without an upper bound a huge value
// would truncate on the way into the uint32 column.
const MaxReservationQuantity = 1000

// ValidateReservation checks the business rules for creating a ticket
// against an event.  It returns a map of field name to message for every
// violated rule, empty when the reservation is acceptable.  The event
// approval gate is handled separately (an unapproved event is reported
// as not found, not as a validation failure).
func ValidateReservation(event *Event, ticketType string, quantity int64) map[string]string {
	problems := map[string]string{}
	t, ok := ParseTicketType(ticketType)
	if !ok {
		problems["ticket_type"] = fmt.Sprintf("unknown ticket type %q", ticketType)
	}
	if quantity <= 0 {
		problems["quantity"] = "quantity must be a positive integer"
	} else if quantity > MaxReservationQuantity {
		problems["quantity"] = fmt.Sprintf("quantity must not exceed %d", MaxReservationQuantity)
	}
	if ok && t == TicketTypeVIP && event.PriceVIP == nil {
		problems["ticket_type"] = "event does not offer VIP tickets"
	}
	return problems
}

// Redemption outcome reasons returned by ValidateRedemption.
const (
	RedemptionOK            = "ok"
	RedemptionTokenMismatch = "token_mismatch"
	RedemptionNotBooked     = "not_booked"
	RedemptionExpired       = "expired"
)

// ValidateRedemption decides whether a presented QR token admits the
// holder.  It never mutates the ticket: redemption is a check against a
// booked, unexpired ticket, not a stored transition.  The first failed
// rule wins; an expired ticket is reported as expired even when the
// token matches.
func (t *Ticket) ValidateRedemption(presentedToken string, now time.Time) (bool, string) {
	if t.ExpiredBy(now) {
		return false, RedemptionExpired
	}
	if t.Status != TicketBooked {
		return false, RedemptionNotBooked
	}
	if presentedToken == "" || presentedToken != t.QRToken {
		return false, RedemptionTokenMismatch
	}
	return true, RedemptionOK
}
