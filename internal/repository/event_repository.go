package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/eventix/event-ticketing/internal/model"
)

// EventRepo provides read-only access to the events table.  The
// ticketing core never writes events; creation, approval and pricing
// edits belong to the event management side of the platform.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the provided database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, organizer_id, name, status, ticket_price_regular, ticket_price_vip, start_time`

func scanEvent(row *sql.Row) (*model.Event, error) {
	var e model.Event
	var vip decimal.NullDecimal
	err := row.Scan(&e.ID, &e.OrganizerID, &e.Name, &e.Status, &e.PriceRegular, &vip, &e.StartTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	if vip.Valid {
		e.PriceVIP = &vip.Decimal
	}
	return &e, nil
}

// GetApprovedByID loads an event that is in the approved state.  A
// missing event and an unapproved event are indistinguishable to the
// caller: both return ErrEventNotFound, so the reservation endpoint
// cannot be used to probe the approval queue.
func (r *EventRepo) GetApprovedByID(ctx context.Context, id uint64) (*model.Event, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ? AND status = ?`,
		id, model.EventStatusApproved,
	)
	return scanEvent(row)
}

// GetByID loads an event regardless of approval state.  Used by the
// redemption endpoint to check that the scanning organizer owns the
// event a ticket belongs to.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id,
	)
	return scanEvent(row)
}
