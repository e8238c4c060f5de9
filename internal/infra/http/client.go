// internal/infra/http/client.go
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// errNotFound is returned when a collaborator answers 404.
var errNotFound = errors.New("not found")

// client wraps the shared request/retry behavior of the collaborator clients.
// Server errors and network timeouts are retried with a fixed backoff; client
// errors are not.
type client struct {
	http       *http.Client
	baseURL    string
	maxRetries int
	backoff    time.Duration
}

func newClient(baseURL string, maxRetries int, backoff time.Duration) client {
	return client{
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL:    baseURL,
		maxRetries: maxRetries,
		backoff:    backoff,
	}
}

// doJSON sends one JSON request with retries and decodes the response into out
// when out is non-nil.
func (c client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		err := c.attempt(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		lastErr = err

		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			// Retriable
		} else if errors.Is(err, errServer) {
			// Retriable
		} else {
			return err
		}

		if i == c.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff):
		}
	}
	return fmt.Errorf("request failed after %d retries: %w", c.maxRetries, lastErr)
}

// errServer marks a 5xx response so the retry loop can recognize it.
var errServer = errors.New("server error")

func (c client) attempt(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s %s returned %s", errServer, method, path, resp.Status)
	case resp.StatusCode >= 400:
		// Read a small portion of the body for the error detail.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s returned %s: %s", method, path, resp.Status, string(detail))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
		}
	}
	return nil
}
