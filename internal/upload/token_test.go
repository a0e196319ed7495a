package upload

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var tokenNow = time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

func TestSignVerifyRoundtrip(t *testing.T) {
	token := Sign("s3cret", tokenNow)
	if err := Verify("s3cret", token, tokenNow, 0); err != nil {
		t.Fatal(err)
	}
	// slightly later, still inside the window
	if err := Verify("s3cret", token, tokenNow.Add(2*time.Minute), 0); err != nil {
		t.Fatal(err)
	}
}

func TestVerifyRejectsStale(t *testing.T) {
	token := Sign("s3cret", tokenNow)

	err := Verify("s3cret", token, tokenNow.Add(6*time.Minute), 0)
	if !errors.Is(err, ErrStaleToken) {
		t.Fatalf("err = %v, want stale", err)
	}

	// tokens from the future are equally suspect
	err = Verify("s3cret", token, tokenNow.Add(-6*time.Minute), 0)
	if !errors.Is(err, ErrStaleToken) {
		t.Fatalf("future err = %v, want stale", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token := Sign("s3cret", tokenNow)
	err := Verify("other", token, tokenNow, 0)
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("err = %v, want bad signature", err)
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	token := Sign("s3cret", tokenNow)
	ts, sig, _ := strings.Cut(token, ":")

	// flip one hex digit
	flipped := []byte(sig)
	if flipped[0] == 'a' {
		flipped[0] = 'b'
	} else {
		flipped[0] = 'a'
	}
	err := Verify("s3cret", ts+":"+string(flipped), tokenNow, 0)
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("err = %v, want bad signature", err)
	}
}

func TestVerifyRejectsMalformed(t *testing.T) {
	for _, token := range []string{"", "justonefield", ":", "abc:", ":def", "notanumber:deadbeef"} {
		err := Verify("s3cret", token, tokenNow, 0)
		if !errors.Is(err, ErrMalformedToken) {
			t.Errorf("Verify(%q) = %v, want malformed", token, err)
		}
	}
}

func TestCustomFreshnessWindow(t *testing.T) {
	token := Sign("s3cret", tokenNow)
	if err := Verify("s3cret", token, tokenNow.Add(20*time.Second), 10*time.Second); !errors.Is(err, ErrStaleToken) {
		t.Fatalf("err = %v, want stale under 10s window", err)
	}
	if err := Verify("s3cret", token, tokenNow.Add(5*time.Second), 10*time.Second); err != nil {
		t.Fatal(err)
	}
}
