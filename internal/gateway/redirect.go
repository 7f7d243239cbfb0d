package gateway

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// createDateLayout is the gateway's timestamp format (yyyyMMddHHmmss).
const createDateLayout = "20060102150405"

// orderRefPrefix anchors the order-reference contract.  The reference
// format TICKET{id}_{unix-ts} is versioned in effect: ParseOrderRef
// accepts exactly this shape and nothing else, so a future format
// change must ship a new parser alongside the old one rather than
// silently loosening this one.
const orderRefPrefix = "TICKET"

// ErrBadOrderRef is returned when a callback's order reference does not
// match the format produced by FormatOrderRef.
var ErrBadOrderRef = errors.New("gateway: malformed order reference")

// FormatOrderRef builds the order reference for a ticket.  The
// timestamp suffix disambiguates retried checkout attempts for the same
// ticket on the gateway side; the ticket id is what reconciliation
// recovers.
func FormatOrderRef(ticketID uint64, at time.Time) string {
	return fmt.Sprintf("%s%d_%d", orderRefPrefix, ticketID, at.Unix())
}

// ParseOrderRef recovers the ticket id from an order reference.  It
// fails closed on anything that is not TICKET{digits}_{digits}.
func ParseOrderRef(ref string) (uint64, error) {
	rest, ok := strings.CutPrefix(ref, orderRefPrefix)
	if !ok {
		return 0, ErrBadOrderRef
	}
	idPart, tsPart, ok := strings.Cut(rest, "_")
	if !ok || idPart == "" || tsPart == "" {
		return 0, ErrBadOrderRef
	}
	if _, err := strconv.ParseUint(tsPart, 10, 64); err != nil {
		return 0, ErrBadOrderRef
	}
	id, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrBadOrderRef
	}
	return id, nil
}

// ScaleAmount converts a decimal amount into the gateway's integer
// convention (amount multiplied by 100, no decimal point).  The amount
// must not carry more than two fractional digits; anything finer would
// silently lose money, so it is reported as an error instead.
func ScaleAmount(amount decimal.Decimal) (string, error) {
	scaled := amount.Shift(2)
	if !scaled.IsInteger() {
		return "", fmt.Errorf("gateway: amount %s has sub-cent precision", amount)
	}
	return scaled.String(), nil
}

// RedirectRequest is the input to BuildRedirect: everything request
// specific that the fixed merchant Config does not cover.
type RedirectRequest struct {
	TicketID  uint64
	OrderRef  string          // from FormatOrderRef
	Amount    decimal.Decimal // server-computed total, never client input
	OrderInfo string          // human-readable description shown on the gateway page
	ClientIP  string
	Now       time.Time
}

// Builder constructs signed redirect URLs for the checkout gateway.
type Builder struct {
	cfg    Config
	signer *Signer
}

// NewBuilder returns a Builder for the given merchant configuration.
func NewBuilder(cfg Config, signer *Signer) *Builder {
	return &Builder{cfg: cfg, signer: signer}
}

// Fields assembles the outbound field set for a redirect request.  The
// key set is fixed; validation of the inbound direction lives in the
// reconciliation handler.
func (b *Builder) Fields(req RedirectRequest) (map[string]string, error) {
	amount, err := ScaleAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"vnp_Version":    "2.1.0",
		"vnp_Command":    "pay",
		"vnp_TmnCode":    b.cfg.TmnCode,
		"vnp_Amount":     amount,
		"vnp_CreateDate": req.Now.Format(createDateLayout),
		"vnp_CurrCode":   b.cfg.CurrCode,
		"vnp_IpAddr":     req.ClientIP,
		"vnp_Locale":     b.cfg.Locale,
		"vnp_OrderInfo":  req.OrderInfo,
		"vnp_OrderType":  b.cfg.OrderType,
		"vnp_ReturnUrl":  b.cfg.ReturnURL,
		"vnp_TxnRef":     req.OrderRef,
	}, nil
}

// BuildRedirect produces the full signed checkout URL.  The query
// string is the canonical encoding with the signature appended, so the
// gateway verifies over exactly the bytes we signed.
func (b *Builder) BuildRedirect(req RedirectRequest) (string, error) {
	fields, err := b.Fields(req)
	if err != nil {
		return "", err
	}
	query := Canonicalize(fields)
	sig := b.signer.Sign(fields)
	return b.cfg.PayURL + "?" + query + "&" + FieldSecureHash + "=" + sig, nil
}
