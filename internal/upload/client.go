package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	appLog "github.com/Melokeo/Timetable4Inky/internal/log"
)

// APIError is a non-2xx response from the upload endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upload: server returned %d: %s", e.StatusCode, e.Body)
}

// retryable reports whether another attempt could plausibly succeed.
// Auth and validation failures are final; server errors are not.
func (e *APIError) retryable() bool {
	return e.StatusCode >= 500
}

// Client pushes PNG frames to the remote endpoint, retrying transient
// failures with exponential backoff. Each attempt gets a fresh token.
type Client struct {
	url         string
	secret      string
	maxAttempts int

	httpClient *http.Client
	now        func() time.Time
	baseDelay  time.Duration
}

func NewClient(url, secret string, maxAttempts int) *Client {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Client{
		url:         url,
		secret:      secret,
		maxAttempts: maxAttempts,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		now:         time.Now,
		baseDelay:   2 * time.Second,
	}
}

// Upload sends one encoded PNG. It returns nil once any attempt gets a
// 2xx, and the last error once attempts are exhausted or a final
// (non-retryable) response arrives.
func (c *Client) Upload(ctx context.Context, png []byte) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.baseDelay << (attempt - 2)
			appLog.Debug("retrying upload", "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := c.attempt(ctx, png)
		if err == nil {
			return nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.retryable() {
			return err
		}
		appLog.Warn("upload attempt failed", "attempt", attempt, "err", err)
	}
	return fmt.Errorf("upload: giving up after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *Client) attempt(ctx context.Context, png []byte) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreatePart(pngPartHeader("file", "timeline.png"))
	if err != nil {
		return fmt.Errorf("build multipart: %w", err)
	}
	if _, err := part.Write(png); err != nil {
		return fmt.Errorf("write multipart: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+Sign(c.secret, c.now()))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post frame: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(raw))}
}

func pngPartHeader(field, filename string) textproto.MIMEHeader {
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", "image/png")
	return h
}
