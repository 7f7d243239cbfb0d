package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eventix/event-ticketing/internal/gateway"
	"github.com/eventix/event-ticketing/internal/model"
	"github.com/eventix/event-ticketing/internal/queue"
	"github.com/eventix/event-ticketing/internal/repository"
)

// respCodeSuccess is the gateway response code meaning the charge went
// through.
const respCodeSuccess = "00"

// callbackOutcome classifies one reconciliation attempt.  The split
// between "confirmed" and "already confirmed" exists for the IPN reply
// codes and the logs; the browser-facing return endpoint collapses the
// rejection outcomes into a single uniform response so a caller cannot
// distinguish a forged signature from an unknown reference.
type callbackOutcome string

const (
	outcomeConfirmed        callbackOutcome = "confirmed"
	outcomeAlreadyConfirmed callbackOutcome = "already_confirmed"
	outcomeFailed           callbackOutcome = "failed"
	outcomeAlreadyFailed    callbackOutcome = "already_failed"
	outcomeInvalidSignature callbackOutcome = "invalid_signature"
	outcomeBadReference     callbackOutcome = "unparseable_reference"
	outcomeNotFound         callbackOutcome = "not_found"
	outcomeAmountMismatch   callbackOutcome = "amount_mismatch"
	outcomeError            callbackOutcome = "error"
)

// rejected reports whether the outcome means the callback was refused
// without any state change.
func (o callbackOutcome) rejected() bool {
	switch o {
	case outcomeInvalidSignature, outcomeBadReference, outcomeNotFound, outcomeAmountMismatch:
		return true
	}
	return false
}

// ReconcileHandler verifies inbound gateway callbacks and applies the
// terminal payment and ticket transitions.  Both the browser return URL
// and the server-to-server IPN run the same core; only the response
// shape differs.
type ReconcileHandler struct {
	TicketRepo  *repository.TicketRepo
	PaymentRepo *repository.PaymentRepo
	Signer      *gateway.Signer
	Publish     func(ctx context.Context, ev queue.TicketBookedEvent) error // nil disables publishing
}

// NewReconcileHandler constructs a ReconcileHandler.  Repositories and
// signer must be non-nil; publish may be nil to disable broker events.
func NewReconcileHandler(ticketRepo *repository.TicketRepo, paymentRepo *repository.PaymentRepo, signer *gateway.Signer, publish func(ctx context.Context, ev queue.TicketBookedEvent) error) *ReconcileHandler {
	if ticketRepo == nil || paymentRepo == nil || signer == nil {
		panic("nil dependency passed to NewReconcileHandler")
	}
	return &ReconcileHandler{TicketRepo: ticketRepo, PaymentRepo: paymentRepo, Signer: signer, Publish: publish}
}

// flattenQuery converts callback query parameters into the flat field
// map the signature covers.  Gateways send each field once; extra
// values would change the canonical string, so only the first is kept.
func flattenQuery(values url.Values) map[string]string {
	fields := make(map[string]string, len(values))
	for k := range values {
		fields[k] = values.Get(k)
	}
	return fields
}

// classifyCallback runs the stateless part of reconciliation: signature
// verification and order-reference parsing.  It returns the recovered
// ticket id and an empty outcome when the payload is clean.
// Verification comes first and fails closed; nothing later may run on
// an unauthenticated payload.
func classifyCallback(signer *gateway.Signer, fields map[string]string) (uint64, callbackOutcome) {
	sig := fields[gateway.FieldSecureHash]
	if !signer.Verify(fields, sig) {
		return 0, outcomeInvalidSignature
	}
	ticketID, err := gateway.ParseOrderRef(fields["vnp_TxnRef"])
	if err != nil {
		return 0, outcomeBadReference
	}
	return ticketID, ""
}

// reconcile applies one callback against storage.  The payment row is
// locked for the duration of the transaction, so a duplicate callback
// for the same payment serializes behind the first and observes the
// recorded terminal status.  Transitions are
// compare-and-set on pending; an expiry sweep that won the race leaves
// the booking CAS empty-handed and the payment is recorded failed
// instead of completed.
func (h *ReconcileHandler) reconcile(ctx context.Context, values url.Values) (callbackOutcome, *model.Payment) {
	fields := flattenQuery(values)

	ticketID, outcome := classifyCallback(h.Signer, fields)
	if outcome != "" {
		if outcome == outcomeInvalidSignature {
			log.Printf("security: gateway callback signature mismatch txn_ref=%q", fields["vnp_TxnRef"])
		} else {
			log.Printf("reconcile: rejected callback: %s txn_ref=%q", outcome, fields["vnp_TxnRef"])
		}
		return outcome, nil
	}

	tx, err := h.PaymentRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return outcomeError, nil
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	payment, err := h.PaymentRepo.GetByTicketIDForUpdateTx(ctx, tx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			log.Printf("reconcile: no payment for ticket %d", ticketID)
			return outcomeNotFound, nil
		}
		return outcomeError, nil
	}

	// Idempotency guard: a settled payment replays its stored outcome
	// with no further side effects.
	if payment.Status.Terminal() {
		if payment.Status == model.PaymentCompleted {
			return outcomeAlreadyConfirmed, payment
		}
		return outcomeAlreadyFailed, payment
	}

	// The callback's amount must equal the stored server-computed one.
	// With a valid signature a mismatch means the gateway and us
	// disagree about the charge; do not settle anything.
	wantAmount, err := gateway.ScaleAmount(payment.Amount)
	if err != nil || fields["vnp_Amount"] != wantAmount {
		log.Printf("security: gateway callback amount mismatch ticket=%d got=%q want=%q",
			ticketID, fields["vnp_Amount"], wantAmount)
		return outcomeAmountMismatch, nil
	}

	now := time.Now().UTC()
	outcome = outcomeFailed
	if fields["vnp_ResponseCode"] == respCodeSuccess {
		switch err := h.TicketRepo.MarkBookedTx(ctx, tx, ticketID); {
		case err == nil:
			if err := h.PaymentRepo.CompleteTx(ctx, tx, payment.ID, now); err != nil {
				return outcomeError, nil
			}
			payment.Status = model.PaymentCompleted
			outcome = outcomeConfirmed
		case errors.Is(err, repository.ErrInvalidState):
			// The hold lapsed (or the ticket was cancelled) before the
			// gateway answered.  The charge cannot buy an expired
			// ticket, so the payment settles as failed.
			if err := h.PaymentRepo.FailTx(ctx, tx, payment.ID, now); err != nil {
				return outcomeError, nil
			}
			payment.Status = model.PaymentFailed
			log.Printf("reconcile: ticket %d no longer bookable, payment %d failed", ticketID, payment.ID)
		default:
			return outcomeError, nil
		}
	} else {
		if err := h.PaymentRepo.FailTx(ctx, tx, payment.ID, now); err != nil {
			return outcomeError, nil
		}
		payment.Status = model.PaymentFailed
		log.Printf("reconcile: gateway reported failure code %q for ticket %d", fields["vnp_ResponseCode"], ticketID)
	}

	if err := tx.Commit(); err != nil {
		return outcomeError, nil
	}
	committed = true

	if outcome == outcomeConfirmed && h.Publish != nil {
		ticket, err := h.TicketRepo.GetByID(ctx, ticketID)
		if err == nil {
			_ = h.Publish(ctx, queue.TicketBookedEvent{
				TicketID:   ticket.ID,
				EventID:    ticket.EventID,
				UserID:     ticket.UserID,
				TicketType: string(ticket.Type),
				Quantity:   ticket.Quantity,
				Amount:     payment.Amount.String(),
				TxnRef:     payment.TxnRef,
				BookedAt:   now.Format(time.RFC3339),
			})
		}
	}
	return outcome, payment
}

// Return handles GET /payments/return, the browser redirect after
// checkout.  Every rejection outcome shares one 400 body: the response
// must not reveal whether a probe failed on the signature, the
// reference format, or an unknown order.  The precise reason is logged
// inside reconcile.
func (h *ReconcileHandler) Return(c echo.Context) error {
	outcome, _ := h.reconcile(c.Request().Context(), c.QueryParams())
	switch {
	case outcome == outcomeConfirmed || outcome == outcomeAlreadyConfirmed:
		return c.JSON(http.StatusOK, echo.Map{"status": "completed", "message": "payment confirmed"})
	case outcome == outcomeFailed || outcome == outcomeAlreadyFailed:
		return c.JSON(http.StatusOK, echo.Map{"status": "failed", "message": "payment was not completed"})
	case outcome.rejected():
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment could not be confirmed"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reconciliation failed"})
	}
}

// IPN handles GET /payments/ipn, the gateway's server-to-server
// notification.  The gateway expects HTTP 200 with its own code
// vocabulary.  Order-existence codes are only reachable behind a valid
// signature, so they reveal nothing to anyone but the gateway itself.
func (h *ReconcileHandler) IPN(c echo.Context) error {
	outcome, _ := h.reconcile(c.Request().Context(), c.QueryParams())
	rsp, msg := ipnReply(outcome)
	return c.JSON(http.StatusOK, echo.Map{"RspCode": rsp, "Message": msg})
}

// ipnReply maps a reconciliation outcome onto the gateway's IPN code
// vocabulary.  Recording a gateway-reported failure is still a
// successful confirmation from the gateway's point of view.
func ipnReply(outcome callbackOutcome) (rsp, msg string) {
	switch outcome {
	case outcomeConfirmed, outcomeFailed:
		return "00", "Confirm Success"
	case outcomeAlreadyConfirmed, outcomeAlreadyFailed:
		return "02", "Order already confirmed"
	case outcomeInvalidSignature:
		return "97", "Invalid checksum"
	case outcomeBadReference, outcomeNotFound:
		return "01", "Order not found"
	case outcomeAmountMismatch:
		return "04", "Invalid amount"
	}
	return "99", "Unknown error"
}
