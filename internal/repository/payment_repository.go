package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/eventix/event-ticketing/internal/model"
)

// PaymentRepo provides data access to the payments table.  Each ticket
// has at most one payment, enforced by a unique key on
// payments.ticket_id.  A payment is never deleted: tickets that expire
// or get cancelled keep their payment row behind as an audit record.
// Terminal transitions run inside the reconciliation transaction with
// the row locked, so duplicate gateway callbacks serialize and the
// second one reads the recorded outcome.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the provided database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// DB exposes the underlying handle for cross-repository transactions.
func (r *PaymentRepo) DB() *sql.DB { return r.db }

const paymentColumns = `id, ticket_id, method, amount, status, txn_ref, pay_url, created_at, updated_at`

// mysqlDuplicateEntry is the server error for a unique key violation.
const mysqlDuplicateEntry = 1062

// Create persists a new payment record and fills in its generated ID.
// The unique key on ticket_id makes the insert the arbiter between
// concurrent session openings: the loser gets ErrConflict and must
// re-read whichever session won.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (ticket_id, method, amount, status, txn_ref, pay_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.TicketID, string(p.Method), p.Amount, string(p.Status), p.TxnRef, p.PayURL,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

func scanPayment(scan func(dest ...any) error) (*model.Payment, error) {
	var p model.Payment
	var method, status string
	err := scan(&p.ID, &p.TicketID, &method, &p.Amount, &status, &p.TxnRef, &p.PayURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	p.Method = model.PaymentMethod(method)
	p.Status = model.PaymentStatus(status)
	return &p, nil
}

// GetByTicketID loads the payment backing a ticket.
func (r *PaymentRepo) GetByTicketID(ctx context.Context, ticketID uint64) (*model.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE ticket_id = ?`, ticketID)
	return scanPayment(row.Scan)
}

// GetByTicketIDForUpdateTx loads the payment backing a ticket with the
// row locked for the duration of the transaction.  Reconciliation uses
// this so that two concurrent callbacks for the same payment cannot
// both observe pending and both apply side effects.
func (r *PaymentRepo) GetByTicketIDForUpdateTx(ctx context.Context, tx *sql.Tx, ticketID uint64) (*model.Payment, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE ticket_id = ? FOR UPDATE`, ticketID)
	return scanPayment(row.Scan)
}

// settleTx applies the pending→(completed|failed) transition inside the
// given transaction.  The WHERE clause re-checks pending even though the
// row is locked; a zero row count means the caller raced a transition
// that committed before this transaction took the lock.
func (r *PaymentRepo) settleTx(ctx context.Context, tx *sql.Tx, id uint64, to model.PaymentStatus, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), now.UTC(), id, string(model.PaymentPending),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrInvalidState
	}
	return nil
}

// CompleteTx marks a pending payment completed.
func (r *PaymentRepo) CompleteTx(ctx context.Context, tx *sql.Tx, id uint64, now time.Time) error {
	return r.settleTx(ctx, tx, id, model.PaymentCompleted, now)
}

// FailTx marks a pending payment failed.  The ticket stays pending and
// is left to expire naturally.
func (r *PaymentRepo) FailTx(ctx context.Context, tx *sql.Tx, id uint64, now time.Time) error {
	return r.settleTx(ctx, tx, id, model.PaymentFailed, now)
}
