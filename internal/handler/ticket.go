package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eventix/event-ticketing/internal/middleware"
	"github.com/eventix/event-ticketing/internal/model"
	"github.com/eventix/event-ticketing/internal/repository"
)

// TicketHandler serves reservation creation, redemption validation,
// cancellation and the caller's ticket history.  JWT authentication has
// already run by the time these methods execute; the redemption
// endpoint is additionally behind a role check so only organizers and
// admins can scan tickets.
type TicketHandler struct {
	EventRepo  *repository.EventRepo
	TicketRepo *repository.TicketRepo
	Hold       time.Duration // reservation hold window
}

// NewTicketHandler constructs a TicketHandler.  All repositories must
// be non-nil.
func NewTicketHandler(eventRepo *repository.EventRepo, ticketRepo *repository.TicketRepo, hold time.Duration) *TicketHandler {
	if eventRepo == nil || ticketRepo == nil {
		panic("nil repository passed to NewTicketHandler")
	}
	return &TicketHandler{EventRepo: eventRepo, TicketRepo: ticketRepo, Hold: hold}
}

// ticketJSON is the wire representation of a ticket.  Prices render as
// decimal strings so clients never see float rounding.
func ticketJSON(t *model.Ticket) echo.Map {
	return echo.Map{
		"id":          t.ID,
		"event_id":    t.EventID,
		"ticket_type": string(t.Type),
		"quantity":    t.Quantity,
		"unit_price":  t.UnitPrice.String(),
		"total_price": t.TotalPrice().String(),
		"status":      string(t.Status),
		"qr_token":    t.QRToken,
		"created_at":  t.CreatedAt.Format(time.RFC3339),
		"expires_at":  t.ExpiresAt.Format(time.RFC3339),
	}
}

// Reserve handles POST /v1/events/:id/tickets.  It creates a pending,
// time-bounded reservation against an approved event.  The unit price
// is snapshotted from the event; the response includes the computed
// total, the QR redemption token and the expiry of the hold window.
// A missing or unapproved event returns 404, business-rule violations
// return 400 with field-level messages.
func (h *TicketHandler) Reserve(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || eventID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var body struct {
		TicketType string `json:"ticket_type"`
		Quantity   int64  `json:"quantity"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	ctx := c.Request().Context()
	event, err := h.EventRepo.GetApprovedByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	if problems := model.ValidateReservation(event, body.TicketType, body.Quantity); len(problems) > 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": problems})
	}
	ticketType, _ := model.ParseTicketType(body.TicketType)

	ticket, err := repository.NewReservation(event, userID, ticketType, uint32(body.Quantity), h.Hold, time.Now())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to build reservation"})
	}
	if err := h.TicketRepo.Create(ctx, ticket); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create ticket"})
	}
	return c.JSON(http.StatusCreated, ticketJSON(ticket))
}

// Validate handles POST /v1/tickets/:id/validate, the organizer-side
// entry scan.  The body carries the presented QR payload.  The response
// is always 200 with {status, detail}; a mismatch is a business outcome
// for the scanning device, not a transport error.  Organizers can only
// validate tickets for their own events; a ticket for someone else's
// event is reported as not found.
func (h *TicketHandler) Validate(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ticketID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || ticketID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
	}
	var body struct {
		QRCode string `json:"qr_code"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	ctx := c.Request().Context()
	ticket, err := h.TicketRepo.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	event, err := h.EventRepo.GetByID(ctx, ticket.EventID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if role, _ := c.Get("role").(string); role != "ADMIN" && event.OrganizerID != userID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
	}

	valid, reason := ticket.ValidateRedemption(body.QRCode, time.Now().UTC())
	if !valid {
		return c.JSON(http.StatusOK, echo.Map{"status": "invalid", "detail": reason})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "valid", "detail": model.RedemptionOK})
}

// Cancel handles POST /v1/tickets/:id/cancel.  Only the owner may
// cancel, and only while the ticket is still pending; cancelled is
// terminal.  The payment record, if any, stays behind for audit.
func (h *TicketHandler) Cancel(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ticketID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || ticketID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
	}
	err = h.TicketRepo.CancelForUser(c.Request().Context(), ticketID, userID)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"status": string(model.TicketCancelled)})
	case errors.Is(err, repository.ErrTicketNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
	case errors.Is(err, repository.ErrInvalidState):
		return c.JSON(http.StatusConflict, echo.Map{"error": "ticket can no longer be cancelled"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "ticket is being updated, try again"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
}

// History handles GET /v1/tickets/history and lists the caller's
// tickets newest first.
func (h *TicketHandler) History(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	tickets, err := h.TicketRepo.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]echo.Map, 0, len(tickets))
	for i := range tickets {
		out = append(out, ticketJSON(&tickets[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": out})
}
