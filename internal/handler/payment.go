package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eventix/event-ticketing/internal/gateway"
	"github.com/eventix/event-ticketing/internal/middleware"
	"github.com/eventix/event-ticketing/internal/model"
	"github.com/eventix/event-ticketing/internal/repository"
)

// PaymentHandler opens payment sessions for pending tickets.  The
// amount is always recomputed from the ticket's price snapshot; nothing
// in the request body can influence what is charged.
type PaymentHandler struct {
	TicketRepo  *repository.TicketRepo
	PaymentRepo *repository.PaymentRepo
	Builder     *gateway.Builder
}

// NewPaymentHandler constructs a PaymentHandler.  All dependencies must
// be non-nil.
func NewPaymentHandler(ticketRepo *repository.TicketRepo, paymentRepo *repository.PaymentRepo, builder *gateway.Builder) *PaymentHandler {
	if ticketRepo == nil || paymentRepo == nil || builder == nil {
		panic("nil dependency passed to NewPaymentHandler")
	}
	return &PaymentHandler{TicketRepo: ticketRepo, PaymentRepo: paymentRepo, Builder: builder}
}

// providerStubURL stands in for the wallet and card providers whose
// checkout protocols are integrated elsewhere.  The session is still
// recorded here so reconciliation has a payment row to settle.
func providerStubURL(method model.PaymentMethod, txnRef string) string {
	return fmt.Sprintf("https://pay.%s.example/checkout?ref=%s", method, txnRef)
}

// Open handles POST /v1/tickets/:id/payment.  Preconditions: the ticket
// exists, belongs to the caller and is still pending; anything else is
// 404 so the endpoint cannot be used to probe other users' tickets.
// Re-opening while a pending payment exists returns that session again
// instead of creating a second charge; a ticket whose payment already
// settled is a conflict.
func (h *PaymentHandler) Open(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ticketID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || ticketID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
	}
	var body struct {
		Method string `json:"method"`
		// Any client-supplied amount field is deliberately not bound.
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	method, ok := model.ParsePaymentMethod(body.Method)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":  "validation failed",
			"fields": echo.Map{"method": fmt.Sprintf("unknown payment method %q", body.Method)},
		})
	}

	ctx := c.Request().Context()
	ticket, err := h.TicketRepo.GetByIDForUser(ctx, ticketID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if ticket.Status != model.TicketPending {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
	}

	// One payment per ticket.  A pending session is simply handed back;
	// retried checkout clicks must not stack charges.  This read is a
	// fast path only: under concurrency the unique key on
	// payments.ticket_id is what holds the relation to one row.
	if existing, err := h.PaymentRepo.GetByTicketID(ctx, ticketID); err == nil {
		if existing.Status == model.PaymentPending {
			return c.JSON(http.StatusOK, echo.Map{
				"payment_url": existing.PayURL,
				"ticket_id":   ticket.ID,
				"status":      string(existing.Status),
			})
		}
		return c.JSON(http.StatusConflict, echo.Map{"error": "payment already settled for this ticket"})
	} else if !errors.Is(err, repository.ErrPaymentNotFound) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	now := time.Now().UTC()
	txnRef := gateway.FormatOrderRef(ticket.ID, now)
	amount := ticket.TotalPrice() // server-side q × p, never the client's number

	var payURL string
	if method == model.MethodVNPay {
		payURL, err = h.Builder.BuildRedirect(gateway.RedirectRequest{
			TicketID:  ticket.ID,
			OrderRef:  txnRef,
			Amount:    amount,
			OrderInfo: fmt.Sprintf("%d x %s ticket #%d", ticket.Quantity, ticket.Type, ticket.ID),
			ClientIP:  c.RealIP(),
			Now:       now,
		})
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to build payment url"})
		}
	} else {
		payURL = providerStubURL(method, txnRef)
	}

	payment := &model.Payment{
		TicketID:  ticket.ID,
		Method:    method,
		Amount:    amount,
		Status:    model.PaymentPending,
		TxnRef:    txnRef,
		PayURL:    payURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.PaymentRepo.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// A concurrent Open for the same ticket inserted first.
			// Hand back whichever session won instead of stacking a
			// second charge.
			existing, err := h.PaymentRepo.GetByTicketID(ctx, ticketID)
			if err == nil && existing.Status == model.PaymentPending {
				return c.JSON(http.StatusOK, echo.Map{
					"payment_url": existing.PayURL,
					"ticket_id":   ticket.ID,
					"status":      string(existing.Status),
				})
			}
			return c.JSON(http.StatusConflict, echo.Map{"error": "payment already settled for this ticket"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create payment"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"payment_url": payment.PayURL,
		"ticket_id":   ticket.ID,
		"status":      string(payment.Status),
	})
}
