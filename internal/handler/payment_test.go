package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventix/event-ticketing/internal/gateway"
	"github.com/eventix/event-ticketing/internal/model"
	"github.com/eventix/event-ticketing/internal/repository"
)

func TestProviderStubURL(t *testing.T) {
	url := providerStubURL(model.MethodMomo, "TICKET42_1700000000")
	assert.Equal(t, "https://pay.momo.example/checkout?ref=TICKET42_1700000000", url)
}

func TestTicketJSONRendersDecimalStrings(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	ticket := &model.Ticket{
		ID:        7,
		EventID:   1,
		UserID:    3,
		Type:      model.TicketTypeVIP,
		Quantity:  2,
		UnitPrice: decimal.NewFromInt(500),
		Status:    model.TicketPending,
		QRToken:   "deadbeef",
		CreatedAt: now,
		ExpiresAt: now.Add(30 * time.Minute),
	}
	body := ticketJSON(ticket)
	assert.Equal(t, "500", body["unit_price"])
	assert.Equal(t, "1000", body["total_price"])
	assert.Equal(t, "vip", body["ticket_type"])
	assert.Equal(t, "2026-06-01T12:30:00Z", body["expires_at"])
}

// Two checkout clicks race past the existing-session read; the loser
// hits the unique key on insert and must hand back the winner's session
// instead of erroring or double-charging.
func TestOpenReplaysSessionWhenInsertLosesRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	signer := gateway.NewSigner(gatewayConfig())
	h := NewPaymentHandler(
		repository.NewTicketRepo(db),
		repository.NewPaymentRepo(db),
		gateway.NewBuilder(gatewayConfig(), signer),
	)

	// Ticket load applies lazy expiry first, then reads the row.
	mock.ExpectExec(`UPDATE tickets SET status = \? WHERE id = \? AND status = \? AND expires_at`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .+ FROM tickets WHERE id = \? AND user_id = \?`).
		WillReturnRows(ticketRow(42, "pending"))
	// No session yet from this caller's point of view.
	mock.ExpectQuery(`SELECT .+ FROM payments WHERE ticket_id = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ticket_id", "method", "amount", "status", "txn_ref", "pay_url", "created_at", "updated_at"}))
	// The concurrent Open inserted first.
	mock.ExpectExec(`INSERT INTO payments`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '42' for key 'payments.ticket_id'"})
	// Re-read hands back the winning session.
	mock.ExpectQuery(`SELECT .+ FROM payments WHERE ticket_id = \?`).
		WillReturnRows(paymentRow(7, 42, "1000", "pending", "TICKET42_1700000000"))

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/tickets/42/payment", strings.NewReader(`{"method":"vnpay"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("42")
	c.Set("user_id", float64(9))

	require.NoError(t, h.Open(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://pay.example/checkout")
	assert.Contains(t, rec.Body.String(), `"status":"pending"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}
