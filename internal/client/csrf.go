package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// FetchCSRFToken asks the server for a fresh anti-forgery token
func FetchCSRFToken(ctx context.Context, opts Options) (string, error) {
	base, err := newBaseClient(opts, nil)
	if err != nil {
		return "", err
	}

	ctx, cancel := base.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := base.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch csrf token: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return "", fmt.Errorf("csrf endpoint returned status %d: %s", resp.StatusCode, readErrorBody(resp))
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode csrf response: %w", err)
	}
	if payload.Token == "" {
		return "", fmt.Errorf("csrf endpoint returned no token")
	}
	return payload.Token, nil
}
