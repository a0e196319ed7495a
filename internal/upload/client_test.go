package upload

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(url string, maxAttempts int) *Client {
	c := NewClient(url, testSecret, maxAttempts)
	c.baseDelay = time.Millisecond
	return c
}

func TestClientUploadsMultipartWithToken(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		buf := make([]byte, 16)
		n, _ := file.Read(buf)
		gotBody = buf[:n]
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := testClient(ts.URL, 1)
	if err := c.Upload(context.Background(), []byte("png-bytes")); err != nil {
		t.Fatal(err)
	}

	token, ok := strings.CutPrefix(gotAuth, "Bearer ")
	if !ok {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if err := Verify(testSecret, token, time.Now(), 0); err != nil {
		t.Fatalf("token invalid: %v", err)
	}
	if gotContentType == "" || gotBody == nil {
		t.Fatal("multipart body missing")
	}
	if string(gotBody) != "png-bytes" {
		t.Fatalf("body = %q", gotBody)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := testClient(ts.URL, 3)
	if err := c.Upload(context.Background(), []byte("x")); err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestClientDoesNotRetryAuthFailure(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer ts.Close()

	c := testClient(ts.URL, 3)
	err := c.Upload(context.Background(), []byte("x"))
	if err == nil {
		t.Fatal("401 reported as success")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err = %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, 4xx must not retry", got)
	}
}

func TestClientGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := testClient(ts.URL, 2)
	err := c.Upload(context.Background(), []byte("x"))
	if err == nil {
		t.Fatal("exhausted retries reported as success")
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestClientHonorsContextDuringBackoff(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := testClient(ts.URL, 3)
	c.baseDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := c.Upload(ctx, []byte("x"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want canceled", err)
	}
}
