// Package gateway implements the VNPay-style redirect protocol: a
// canonical field encoding shared by the signing and verifying paths,
// HMAC-SHA512 signatures over that encoding, and construction of the
// signed redirect URL together with the order-reference contract that
// lets a callback be mapped back to a ticket.
package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Field names carrying the signature itself.  Both are stripped before
// the canonical string is built: the hash obviously cannot cover
// itself, and the hash-type marker is metadata some gateway versions
// echo back.
const (
	FieldSecureHash     = "vnp_SecureHash"
	FieldSecureHashType = "vnp_SecureHashType"
)

// Config carries the merchant settings shared between the signer and
// the redirect builder.  It is constructed once at startup from the
// environment and injected; nothing in this package reads globals.
type Config struct {
	TmnCode    string // merchant terminal code issued by the gateway
	HashSecret string // shared HMAC secret
	PayURL     string // gateway checkout endpoint the client is redirected to
	ReturnURL  string // where the gateway redirects the browser afterwards
	Locale     string // display locale, e.g. "vn"
	CurrCode   string // ISO currency code, e.g. "VND"
	OrderType  string // gateway order classification, e.g. "other"
}

// Signer signs and verifies gateway field sets.
type Signer struct {
	secret []byte
}

// NewSigner returns a Signer using the shared secret from cfg.
func NewSigner(cfg Config) *Signer {
	return &Signer{secret: []byte(cfg.HashSecret)}
}

// encodeValue is the single encoding rule applied to every field value
// on both the signing and verifying paths.  The redirect builder uses
// it for the query string too, so the bytes the gateway hashes are
// exactly the bytes we hashed.  Any drift here (space vs %20 vs +)
// breaks interoperability with the gateway.
func encodeValue(v string) string {
	return url.QueryEscape(v)
}

// Canonicalize builds the deterministic signing input: the signature
// fields are dropped, the remaining keys are sorted byte-wise
// ascending, each value is passed through encodeValue, and the pairs
// are joined as key=value&key=value.
func Canonicalize(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == FieldSecureHash || k == FieldSecureHashType {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(encodeValue(fields[k]))
	}
	return b.String()
}

// Sign computes the hex-encoded HMAC-SHA512 of the canonical string for
// the given fields.
func (s *Signer) Sign(fields map[string]string) string {
	mac := hmac.New(sha512.New, s.secret)
	mac.Write([]byte(Canonicalize(fields)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature over fields and compares it to the
// asserted one in constant time.  Case differences in the hex digits
// are tolerated because gateways are inconsistent about casing.
func (s *Signer) Verify(fields map[string]string, signature string) bool {
	if signature == "" {
		return false
	}
	expected := s.Sign(fields)
	return hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected))
}
