package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/reputation-engine/internal/circuitbreaker"
)

// maxErrorBody bounds how much of a failed response body ends up in an error
const maxErrorBody = 512

// StatusError is a non-200 provider response
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d - %s", e.StatusCode, e.Body)
}

// RequestGate admits outbound requests against a shared provider budget
type RequestGate interface {
	Wait(ctx context.Context) error
}

// getJSON performs one GET through the breaker and decodes a 200 response into out.
// There is no retry: the caller decides how to degrade. A nil gate admits everything.
func getJSON(ctx context.Context, client *http.Client, breaker *circuitbreaker.CircuitBreaker, gate RequestGate, url string, headers map[string]string, out interface{}) error {
	if gate != nil {
		if err := gate.Wait(ctx); err != nil {
			return fmt.Errorf("provider budget: %w", err)
		}
	}
	return breaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to make request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		return nil
	})
}
