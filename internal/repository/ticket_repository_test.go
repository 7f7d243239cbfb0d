package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventix/event-ticketing/internal/model"
)

func TestNewReservationSnapshotsPriceAndWindow(t *testing.T) {
	vip := decimal.NewFromInt(500)
	event := &model.Event{
		ID:           1,
		Status:       model.EventStatusApproved,
		PriceRegular: decimal.NewFromInt(200),
		PriceVIP:     &vip,
	}
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	ticket, err := NewReservation(event, 3, model.TicketTypeVIP, 2, 30*time.Minute, now)
	require.NoError(t, err)

	assert.Equal(t, model.TicketPending, ticket.Status)
	assert.True(t, ticket.UnitPrice.Equal(vip))
	assert.True(t, ticket.TotalPrice().Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, now, ticket.CreatedAt)
	assert.Equal(t, now.Add(30*time.Minute), ticket.ExpiresAt)
	assert.True(t, ticket.ExpiresAt.After(ticket.CreatedAt))
	assert.Len(t, ticket.QRToken, 64) // 32 random bytes, hex encoded

	// Mutating the event afterwards must not touch the snapshot.
	*event.PriceVIP = decimal.NewFromInt(900)
	assert.True(t, ticket.UnitPrice.Equal(decimal.NewFromInt(500)))
}

func TestNewReservationTokensAreUnique(t *testing.T) {
	event := &model.Event{PriceRegular: decimal.NewFromInt(200)}
	a, err := NewReservation(event, 1, model.TicketTypeRegular, 1, time.Minute, time.Now())
	require.NoError(t, err)
	b, err := NewReservation(event, 1, model.TicketTypeRegular, 1, time.Minute, time.Now())
	require.NoError(t, err)
	assert.NotEqual(t, a.QRToken, b.QRToken)
}

func TestNewReservationRejectsMissingVIPPrice(t *testing.T) {
	event := &model.Event{PriceRegular: decimal.NewFromInt(200)}
	_, err := NewReservation(event, 1, model.TicketTypeVIP, 1, time.Minute, time.Now())
	assert.ErrorIs(t, err, ErrInvalidState)
}

// markBooked runs MarkBookedTx against a mocked connection where the
// booking compare-and-set misses and the follow-up read reports the
// given status.
func markBooked(t *testing.T, status string) error {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE tickets SET status = \? WHERE id = \? AND status = \?`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	q := mock.ExpectQuery(`SELECT status FROM tickets WHERE id = \?`)
	if status == "" {
		q.WillReturnError(sql.ErrNoRows)
	} else {
		q.WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(status))
	}

	tx, err := db.Begin()
	require.NoError(t, err)
	bookErr := NewTicketRepo(db).MarkBookedTx(context.Background(), tx, 42)
	assert.NoError(t, mock.ExpectationsWereMet())
	return bookErr
}

func TestMarkBookedTxMissedCAS(t *testing.T) {
	// Already booked: a duplicate confirmation replays as success.
	assert.NoError(t, markBooked(t, "booked"))

	// Settled states refuse the transition.
	assert.ErrorIs(t, markBooked(t, "expired"), ErrInvalidState)
	assert.ErrorIs(t, markBooked(t, "cancelled"), ErrInvalidState)

	// A pending read after the CAS missed means another transaction is
	// mid-flight; the caller gets a retryable conflict.
	assert.ErrorIs(t, markBooked(t, "pending"), ErrConflict)

	// Row gone entirely.
	assert.ErrorIs(t, markBooked(t, ""), ErrTicketNotFound)
}

func TestMarkBookedTxHitsCAS(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE tickets SET status = \? WHERE id = \? AND status = \?`).
		WithArgs("booked", 42, "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := db.Begin()
	require.NoError(t, err)
	assert.NoError(t, NewTicketRepo(db).MarkBookedTx(context.Background(), tx, 42))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireSweepReportsSettledRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec(`UPDATE tickets SET status = \? WHERE status = \? AND expires_at <= \?`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := NewTicketRepo(db).ExpireSweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
