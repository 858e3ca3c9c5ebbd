// Package qrtoken implements the signed check-in token a patron's
// device renders as a QR code for staff to scan. Generation and
// verification are pure functions over a server-held secret; callers
// drive all persistence side effects after a valid result.
package qrtoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Issuer tags every token produced by this system. Tokens carrying any
// other issuer are rejected before signature verification is attempted.
const Issuer = "biblioflow"

// Version is carried in the token for forward compatibility; the
// verifier does not currently branch on it.
const Version = 1

// MaxAge bounds how long a generated token stays valid. A captured
// token image is useless once this window has elapsed.
const MaxAge = 15 * time.Minute

// Payload is the signed portion of a token: which reservation, for
// which user, minted when.
type Payload struct {
	ReservationID uint64
	UserID        uint64
	IssuedAt      time.Time
}

// Token is the wire form embedded in the QR code. Field names are part
// of the client contract and must not change.
type Token struct {
	PrenotazioneID uint64 `json:"prenotazioneId"`
	UserID         uint64 `json:"userId"`
	Timestamp      int64  `json:"timestamp"`
	Signature      string `json:"signature"`
	Version        int    `json:"version"`
	Issuer         string `json:"issuer"`
}

// ErrorKind discriminates verification failures. Staff UI and audit
// logging treat a forged signature (possible attack) differently from
// an expired token (benign re-scan of an old image).
type ErrorKind string

const (
	KindMalformed     ErrorKind = "malformed"
	KindInvalidIssuer ErrorKind = "invalid-issuer"
	KindBadSignature  ErrorKind = "bad-signature"
	KindExpired       ErrorKind = "expired"
)

// Result is the discriminated outcome of Verify. When Valid is true,
// Payload is populated; otherwise Err and Kind describe the failure.
type Result struct {
	Valid   bool
	Payload *Payload
	Err     string
	Kind    ErrorKind
}

// sign computes the hex HMAC-SHA256 over the deterministic
// concatenation of the three payload fields.
func sign(secret []byte, reservationID, userID uint64, ts int64) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%d:%d:%d", reservationID, userID, ts)
	return hex.EncodeToString(mac.Sum(nil))
}

// Generate mints a signed token binding reservationID to userID at the
// given instant. The timestamp travels as unix milliseconds.
func Generate(secret []byte, reservationID, userID uint64, now time.Time) Token {
	ts := now.UnixMilli()
	return Token{
		PrenotazioneID: reservationID,
		UserID:         userID,
		Timestamp:      ts,
		Signature:      sign(secret, reservationID, userID, ts),
		Version:        Version,
		Issuer:         Issuer,
	}
}

// Encode renders the token as the JSON string embedded in the QR image.
func Encode(t Token) (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify parses and validates a raw token string against the secret and
// the supplied clock. Checks run cheapest-first: shape, issuer,
// signature, then age. The signature comparison is constant-time.
// Tokens minted ahead of the server clock are accepted (skew
// tolerance); only elapsed time beyond MaxAge rejects as expired.
func Verify(secret []byte, raw string, now time.Time) Result {
	var t Token
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return Result{Valid: false, Err: "token is not valid JSON", Kind: KindMalformed}
	}
	if t.PrenotazioneID == 0 || t.UserID == 0 || t.Timestamp == 0 || t.Signature == "" {
		return Result{Valid: false, Err: "token is missing required fields", Kind: KindMalformed}
	}
	if t.Issuer != Issuer {
		return Result{Valid: false, Err: "token was not issued by this system", Kind: KindInvalidIssuer}
	}
	want := sign(secret, t.PrenotazioneID, t.UserID, t.Timestamp)
	if !hmac.Equal([]byte(want), []byte(t.Signature)) {
		return Result{Valid: false, Err: "token signature does not match", Kind: KindBadSignature}
	}
	issued := time.UnixMilli(t.Timestamp)
	if now.Sub(issued) > MaxAge {
		return Result{Valid: false, Err: "token has expired", Kind: KindExpired}
	}
	return Result{
		Valid: true,
		Payload: &Payload{
			ReservationID: t.PrenotazioneID,
			UserID:        t.UserID,
			IssuedAt:      issued,
		},
	}
}
