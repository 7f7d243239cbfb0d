package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func approvedEvent(vip *decimal.Decimal) *Event {
	return &Event{
		ID:           1,
		OrganizerID:  9,
		Name:         "Jazz Night",
		Status:       EventStatusApproved,
		PriceRegular: decimal.NewFromInt(200),
		PriceVIP:     vip,
		StartTime:    time.Now().Add(48 * time.Hour),
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to TicketStatus
		want     bool
	}{
		{TicketPending, TicketBooked, true},
		{TicketPending, TicketExpired, true},
		{TicketPending, TicketCancelled, true},
		{TicketBooked, TicketBooked, true}, // duplicate confirmation is a no-op
		{TicketBooked, TicketExpired, false},
		{TicketBooked, TicketCancelled, false},
		{TicketExpired, TicketBooked, false},
		{TicketExpired, TicketPending, false},
		{TicketCancelled, TicketBooked, false},
		{TicketPending, TicketPending, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTotalPriceIsQuantityTimesUnitPrice(t *testing.T) {
	ticket := Ticket{Quantity: 2, UnitPrice: decimal.NewFromInt(500)}
	assert.True(t, ticket.TotalPrice().Equal(decimal.NewFromInt(1000)))

	ticket = Ticket{Quantity: 3, UnitPrice: decimal.RequireFromString("19.99")}
	assert.True(t, ticket.TotalPrice().Equal(decimal.RequireFromString("59.97")))
}

func TestValidateReservation(t *testing.T) {
	vip := decimal.NewFromInt(500)

	// Clean regular and VIP reservations pass.
	assert.Empty(t, ValidateReservation(approvedEvent(&vip), "regular", 2))
	assert.Empty(t, ValidateReservation(approvedEvent(&vip), "vip", 1))

	// VIP against an event without a VIP price fails before anything
	// is persisted.
	problems := ValidateReservation(approvedEvent(nil), "vip", 1)
	assert.Contains(t, problems, "ticket_type")

	// Unknown type and non-positive quantities fail.
	assert.Contains(t, ValidateReservation(approvedEvent(&vip), "premium", 1), "ticket_type")
	assert.Contains(t, ValidateReservation(approvedEvent(&vip), "regular", 0), "quantity")
	assert.Contains(t, ValidateReservation(approvedEvent(&vip), "regular", -3), "quantity")

	// Both problems are reported at once.
	problems = ValidateReservation(approvedEvent(nil), "vip", 0)
	assert.Len(t, problems, 2)
}

func TestValidateReservationQuantityUpperBound(t *testing.T) {
	vip := decimal.NewFromInt(500)

	assert.Empty(t, ValidateReservation(approvedEvent(&vip), "regular", MaxReservationQuantity))
	assert.Contains(t, ValidateReservation(approvedEvent(&vip), "regular", MaxReservationQuantity+1), "quantity")

	// Values past the storage range would otherwise truncate to a
	// zero-quantity, zero-total reservation (1<<32 wraps to 0 as a
	// uint32) or silently shrink the order (1<<32+1 wraps to 1).
	assert.Contains(t, ValidateReservation(approvedEvent(&vip), "regular", 1<<32), "quantity")
	assert.Contains(t, ValidateReservation(approvedEvent(&vip), "regular", 1<<32+1), "quantity")
}

func TestUnitPriceSnapshotSelection(t *testing.T) {
	vip := decimal.NewFromInt(500)
	e := approvedEvent(&vip)

	p, ok := e.UnitPrice(TicketTypeRegular)
	assert.True(t, ok)
	assert.True(t, p.Equal(decimal.NewFromInt(200)))

	p, ok = e.UnitPrice(TicketTypeVIP)
	assert.True(t, ok)
	assert.True(t, p.Equal(decimal.NewFromInt(500)))

	_, ok = approvedEvent(nil).UnitPrice(TicketTypeVIP)
	assert.False(t, ok)
}

func TestValidateRedemption(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	booked := Ticket{
		Status:    TicketBooked,
		QRToken:   "a1b2c3",
		CreatedAt: now.Add(-10 * time.Minute),
		ExpiresAt: now.Add(20 * time.Minute),
	}

	valid, reason := booked.ValidateRedemption("a1b2c3", now)
	assert.True(t, valid)
	assert.Equal(t, RedemptionOK, reason)

	valid, reason = booked.ValidateRedemption("wrong", now)
	assert.False(t, valid)
	assert.Equal(t, RedemptionTokenMismatch, reason)

	valid, reason = booked.ValidateRedemption("", now)
	assert.False(t, valid)
	assert.Equal(t, RedemptionTokenMismatch, reason)

	pending := booked
	pending.Status = TicketPending
	valid, reason = pending.ValidateRedemption("a1b2c3", now)
	assert.False(t, valid)
	assert.Equal(t, RedemptionNotBooked, reason)

	// Past expiry the correct token is still refused, with the expiry
	// as the reported reason.
	expired := booked
	expired.ExpiresAt = now.Add(-time.Minute)
	valid, reason = expired.ValidateRedemption("a1b2c3", now)
	assert.False(t, valid)
	assert.Equal(t, RedemptionExpired, reason)

	// Boundary: expiry exactly now counts as expired.
	boundary := booked
	boundary.ExpiresAt = now
	valid, reason = boundary.ValidateRedemption("a1b2c3", now)
	assert.False(t, valid)
	assert.Equal(t, RedemptionExpired, reason)
}

func TestParseHelpers(t *testing.T) {
	_, ok := ParseTicketType("regular")
	assert.True(t, ok)
	_, ok = ParseTicketType("VIP") // case sensitive on purpose
	assert.False(t, ok)

	_, ok = ParsePaymentMethod("vnpay")
	assert.True(t, ok)
	_, ok = ParsePaymentMethod("paypal")
	assert.False(t, ok)
}

func TestPaymentStatusTerminal(t *testing.T) {
	assert.False(t, PaymentPending.Terminal())
	assert.True(t, PaymentCompleted.Terminal())
	assert.True(t, PaymentFailed.Terminal())
}
