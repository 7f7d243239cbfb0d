package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"github.com/eventix/event-ticketing/internal/model"
)

// TicketRepo provides data access to the tickets table.  Every status
// change goes through a single-statement compare-and-set keyed on the
// expected prior status, so concurrent callers (a reconciliation racing
// the expiry sweep, or two duplicate gateway callbacks) cannot both
// apply a transition: the loser observes zero affected rows and treats
// it as a no-op or a conflict, never retrying the side effect.  All
// timestamps are UTC.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the provided database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions
// that span tickets and payments.
func (r *TicketRepo) DB() *sql.DB { return r.db }

const ticketColumns = `id, event_id, user_id, ticket_type, quantity, unit_price, status, qr_token, created_at, expires_at`

// randomToken generates a cryptographically secure random hex string of
// n bytes (2n hex characters).  It populates the qr_token column.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewReservation builds an unsaved pending ticket for an event.  The
// unit price is snapshotted from the event here and never re-read, and
// the expiry is created-at plus the hold window so the expires-after-
// created invariant holds by construction.
func NewReservation(event *model.Event, userID uint64, t model.TicketType, quantity uint32, hold time.Duration, now time.Time) (*model.Ticket, error) {
	price, ok := event.UnitPrice(t)
	if !ok {
		return nil, ErrInvalidState
	}
	token, err := randomToken(32)
	if err != nil {
		return nil, err
	}
	now = now.UTC()
	return &model.Ticket{
		EventID:   event.ID,
		UserID:    userID,
		Type:      t,
		Quantity:  quantity,
		UnitPrice: price,
		Status:    model.TicketPending,
		QRToken:   token,
		CreatedAt: now,
		ExpiresAt: now.Add(hold),
	}, nil
}

// Create persists a new ticket and fills in its generated ID.
func (r *TicketRepo) Create(ctx context.Context, t *model.Ticket) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO tickets (event_id, user_id, ticket_type, quantity, unit_price, status, qr_token, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.EventID, t.UserID, string(t.Type), t.Quantity, t.UnitPrice, string(t.Status),
		t.QRToken, t.CreatedAt, t.ExpiresAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

func scanTicket(scan func(dest ...any) error) (*model.Ticket, error) {
	var t model.Ticket
	var typ, status string
	err := scan(&t.ID, &t.EventID, &t.UserID, &typ, &t.Quantity, &t.UnitPrice, &status, &t.QRToken, &t.CreatedAt, &t.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	t.Type = model.TicketType(typ)
	t.Status = model.TicketStatus(status)
	return &t, nil
}

// GetByID loads a ticket by primary key, applying lazy expiry first.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (*model.Ticket, error) {
	if err := r.expireIfDue(ctx, id); err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id)
	return scanTicket(row.Scan)
}

// GetByIDForUser loads a ticket owned by the given user.  A ticket that
// exists but belongs to someone else comes back as ErrTicketNotFound;
// the endpoint must not reveal other users' reservations.
func (r *TicketRepo) GetByIDForUser(ctx context.Context, id, userID uint64) (*model.Ticket, error) {
	if err := r.expireIfDue(ctx, id); err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = ? AND user_id = ?`, id, userID)
	return scanTicket(row.Scan)
}

// expireIfDue lazily applies the pending→expired transition for one
// ticket whose hold window has passed.  Whether this statement or a
// concurrent sweep wins the race is irrelevant; both leave the row
// expired and the follow-up read sees the settled state.
func (r *TicketRepo) expireIfDue(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tickets SET status = ? WHERE id = ? AND status = ? AND expires_at <= UTC_TIMESTAMP()`,
		string(model.TicketExpired), id, string(model.TicketPending),
	)
	return err
}

// ExpireSweep transitions every pending ticket whose expiry has passed
// to expired and reports how many rows it settled.  The statement is a
// pure CAS on (status, expires_at), so running it concurrently or
// repeatedly is safe: each due row is expired exactly once.
func (r *TicketRepo) ExpireSweep(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tickets SET status = ? WHERE status = ? AND expires_at <= ?`,
		string(model.TicketExpired), string(model.TicketPending), now.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkBookedTx applies the pending→booked transition inside the given
// transaction.  It is idempotent for already-booked tickets (duplicate
// callback delivery) and returns ErrInvalidState when the ticket has
// reached expired or cancelled, in which case the payment side effect
// must not proceed.  ErrConflict means a concurrent transition was
// still in flight and the caller may retry.
func (r *TicketRepo) MarkBookedTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE tickets SET status = ? WHERE id = ? AND status = ?`,
		string(model.TicketBooked), id, string(model.TicketPending),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	// CAS missed: find out why.
	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM tickets WHERE id = ?`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTicketNotFound
		}
		return err
	}
	cur := model.TicketStatus(status)
	if cur == model.TicketPending {
		// The CAS saw a different status than this read: another
		// transaction is mid-transition.  Report a conflict so the
		// caller retries instead of guessing the outcome.
		return ErrConflict
	}
	if model.CanTransition(cur, model.TicketBooked) {
		return nil // already booked, duplicate confirmation replays
	}
	return ErrInvalidState
}

// CancelForUser applies the pending→cancelled transition for a ticket
// owned by the given user.  Zero affected rows means the ticket is
// missing, not theirs, or no longer pending; the current state decides
// which error the caller sees.
func (r *TicketRepo) CancelForUser(ctx context.Context, id, userID uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tickets SET status = ? WHERE id = ? AND user_id = ? AND status = ?`,
		string(model.TicketCancelled), id, userID, string(model.TicketPending),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var status string
	err = r.db.QueryRowContext(ctx,
		`SELECT status FROM tickets WHERE id = ? AND user_id = ?`, id, userID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTicketNotFound
		}
		return err
	}
	cur := model.TicketStatus(status)
	if cur == model.TicketPending {
		return ErrConflict
	}
	if model.CanTransition(cur, model.TicketCancelled) {
		return nil
	}
	return ErrInvalidState
}

// ListByUser returns the user's tickets newest first.  Due pending rows
// are settled to expired beforehand so the listing never shows a stale
// hold as live.
func (r *TicketRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Ticket, error) {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tickets SET status = ? WHERE user_id = ? AND status = ? AND expires_at <= UTC_TIMESTAMP()`,
		string(model.TicketExpired), userID, string(model.TicketPending),
	)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tickets []model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows.Scan)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}
