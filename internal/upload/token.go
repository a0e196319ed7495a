// Package upload moves the rendered timeline PNG to a remote server.
// Authentication is a per-attempt bearer token: a unix timestamp plus
// an HMAC-SHA256 of that timestamp under the shared secret.
package upload

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultFreshness is how old a token may be before the server rejects
// it. Small clock skew in the future is tolerated equally.
const DefaultFreshness = 5 * time.Minute

var (
	ErrMalformedToken = errors.New("upload: malformed token")
	ErrStaleToken     = errors.New("upload: token outside freshness window")
	ErrBadSignature   = errors.New("upload: signature mismatch")
)

// Sign produces a token "timestamp:hex-signature" for the given instant.
func Sign(secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return ts + ":" + signature(secret, ts)
}

func signature(secret, ts string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a token's shape, freshness and signature. The signature
// comparison is constant-time.
func Verify(secret, token string, now time.Time, freshness time.Duration) error {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}

	ts, sig, ok := strings.Cut(token, ":")
	if !ok || ts == "" || sig == "" {
		return ErrMalformedToken
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrMalformedToken)
	}

	age := now.Sub(time.Unix(unix, 0))
	if age > freshness || age < -freshness {
		return ErrStaleToken
	}

	want := signature(secret, ts)
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return ErrBadSignature
	}
	return nil
}
