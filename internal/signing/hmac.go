// Package signing produces and checks the optional HMAC signature sent with
// each webhook delivery.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
)

var (
	ErrBadSignature = errors.New("signature mismatch")
	ErrStale        = errors.New("signature timestamp outside tolerance")
)

// Sign returns "v1=<hex hmac-sha256>" over "<unix seconds>.<payload>".
func Sign(secret string, payload []byte, at time.Time) (signature string, timestamp int64) {
	timestamp = at.Unix()
	return "v1=" + digest(secret, payload, timestamp), timestamp
}

// Verify checks a signature produced by Sign. Subscribers written in Go can
// call it from their webhook handler with the two signature headers. A zero
// tolerance skips the freshness check.
func Verify(secret string, payload []byte, timestamp string, signature string, now time.Time, tolerance time.Duration) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}
	if tolerance > 0 {
		if d := now.Sub(time.Unix(ts, 0)); d > tolerance || d < -tolerance {
			return ErrStale
		}
	}
	expected := "v1=" + digest(secret, payload, ts)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}

func digest(secret string, payload []byte, timestamp int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte{'.'})
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
