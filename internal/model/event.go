package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event statuses as stored in events.status.  Only approved events can
// sell tickets; the approval workflow itself is owned by the event
// management side of the platform and is not modelled here.
const (
	EventStatusPending  = "pending"
	EventStatusApproved = "approved"
	EventStatusRejected = "rejected"
)

// Event is the read-only view of an event consumed by the ticketing
// core.  It carries just enough to validate a reservation and snapshot
// prices.
//
// Fields:
//  ID           – primary key identifier.
//  OrganizerID  – user who owns the event.
//  Name         – display name, copied into gateway order info.
//  Status       – approval state (pending, approved, rejected).
//  PriceRegular – unit price of a regular ticket.
//  PriceVIP     – unit price of a VIP ticket; nil when the event does
//                 not sell VIP tickets.
//  StartTime    – when the event begins.
type Event struct {
	ID           uint64           // events.id
	OrganizerID  uint64           // events.organizer_id
	Name         string           // events.name
	Status       string           // events.status
	PriceRegular decimal.Decimal  // events.ticket_price_regular
	PriceVIP     *decimal.Decimal // events.ticket_price_vip (nullable)
	StartTime    time.Time        // events.start_time
}

// UnitPrice returns the price snapshot for the given ticket type.  The
// boolean is false when the event does not offer that type (a VIP
// request against an event without a VIP price).
func (e *Event) UnitPrice(t TicketType) (decimal.Decimal, bool) {
	switch t {
	case TicketTypeRegular:
		return e.PriceRegular, true
	case TicketTypeVIP:
		if e.PriceVIP == nil {
			return decimal.Decimal{}, false
		}
		return *e.PriceVIP, true
	}
	return decimal.Decimal{}, false
}
