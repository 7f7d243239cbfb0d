// Package repository provides data access to the ticketing tables.  The
// sentinel errors defined here let handlers distinguish failure modes
// without inspecting SQL details.  Not-found errors deliberately carry
// no information about whether the record exists for another user;
// ownership failures surface as the same not-found to the outside.
package repository

import "errors"

// ErrEventNotFound is returned when an event does not exist or is not
// in the approved state.  Handlers translate this into HTTP 404.
var ErrEventNotFound = errors.New("event not found")

// ErrTicketNotFound is returned when a ticket does not exist or does
// not belong to the requesting user.  Handlers translate this into
// HTTP 404 without disclosing which of the two it was.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrPaymentNotFound is returned when no payment record exists for a
// ticket reference.
var ErrPaymentNotFound = errors.New("payment not found")

// ErrInvalidState is returned when a status transition is attempted
// from a state that does not permit it, e.g. booking an expired ticket.
// The caller lost a compare-and-set race or acted on stale data; the
// side effect must not be retried.
var ErrInvalidState = errors.New("invalid state transition")

// ErrConflict is returned when an operation lost a race it may retry:
// a concurrent insert already created the record (the unique key on
// payments.ticket_id), or a status read caught another transaction
// mid-transition.  Unlike ErrInvalidState the outcome is not settled
// yet; the caller re-reads and decides.
var ErrConflict = errors.New("conflict")
