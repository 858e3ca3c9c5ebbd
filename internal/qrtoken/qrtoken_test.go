package qrtoken

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret-0123456789abcdef")

func TestRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	tok := Generate(secret, 42, 7, now)
	raw, err := Encode(tok)
	require.NoError(t, err)

	res := Verify(secret, raw, now.Add(14*time.Minute))
	require.True(t, res.Valid, "err=%s kind=%s", res.Err, res.Kind)
	assert.Equal(t, uint64(42), res.Payload.ReservationID)
	assert.Equal(t, uint64(7), res.Payload.UserID)
	assert.Equal(t, now.UnixMilli(), res.Payload.IssuedAt.UnixMilli())
}

func TestExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	tok := Generate(secret, 42, 7, now)
	raw, err := Encode(tok)
	require.NoError(t, err)

	res := Verify(secret, raw, now.Add(16*time.Minute))
	require.False(t, res.Valid)
	assert.Equal(t, KindExpired, res.Kind)

	// Exactly at the boundary the token is still accepted.
	res = Verify(secret, raw, now.Add(15*time.Minute))
	assert.True(t, res.Valid)
}

func TestClockSkewTolerated(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	tok := Generate(secret, 42, 7, now)
	raw, err := Encode(tok)
	require.NoError(t, err)

	// Device clock ahead of the server: elapsed time is negative but the
	// token must still verify.
	res := Verify(secret, raw, now.Add(-2*time.Minute))
	assert.True(t, res.Valid)
}

func TestTamperedSignature(t *testing.T) {
	now := time.Now()
	tok := Generate(secret, 42, 7, now)

	// Flip each nibble of the signature in turn; every mutation must be
	// rejected as a bad signature, never as any other kind.
	for i := range tok.Signature {
		mutated := tok
		b := []byte(tok.Signature)
		if b[i] == 'a' {
			b[i] = 'b'
		} else {
			b[i] = 'a'
		}
		mutated.Signature = string(b)
		raw, err := Encode(mutated)
		require.NoError(t, err)
		res := Verify(secret, raw, now)
		require.False(t, res.Valid, "mutation at byte %d accepted", i)
		assert.Equal(t, KindBadSignature, res.Kind)
	}
}

func TestTamperedPayload(t *testing.T) {
	now := time.Now()
	tok := Generate(secret, 42, 7, now)
	tok.PrenotazioneID = 43 // point the signed token at another reservation
	raw, err := Encode(tok)
	require.NoError(t, err)
	res := Verify(secret, raw, now)
	require.False(t, res.Valid)
	assert.Equal(t, KindBadSignature, res.Kind)
}

func TestWrongIssuer(t *testing.T) {
	now := time.Now()
	tok := Generate(secret, 42, 7, now)
	tok.Issuer = "someone-else"
	raw, err := Encode(tok)
	require.NoError(t, err)
	res := Verify(secret, raw, now)
	require.False(t, res.Valid)
	assert.Equal(t, KindInvalidIssuer, res.Kind)
}

func TestMalformed(t *testing.T) {
	now := time.Now()
	for _, raw := range []string{
		"",
		"not json at all",
		`{"prenotazioneId":0,"userId":7,"timestamp":1,"signature":"x","version":1,"issuer":"biblioflow"}`,
		`{"issuer":"biblioflow"}`,
	} {
		res := Verify(secret, raw, now)
		require.False(t, res.Valid, "input %q accepted", raw)
		assert.Equal(t, KindMalformed, res.Kind, "input %q", raw)
	}
}

func TestWireFieldNames(t *testing.T) {
	tok := Generate(secret, 1, 2, time.Now())
	raw, err := Encode(tok)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	for _, k := range []string{"prenotazioneId", "userId", "timestamp", "signature", "version", "issuer"} {
		assert.Contains(t, m, k)
	}
	assert.Equal(t, "biblioflow", m["issuer"])
}
