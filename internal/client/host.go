package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/yourorg/photo-onboarding/internal/model"
)

// FetchHostConfig loads the host page contract for a user from the server
func FetchHostConfig(ctx context.Context, opts Options) (*model.HostConfig, error) {
	base, err := newBaseClient(opts, nil)
	if err != nil {
		return nil, err
	}

	ctx, cancel := base.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := base.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch host config: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("host config endpoint returned status %d: %s", resp.StatusCode, readErrorBody(resp))
	}

	var host model.HostConfig
	if err := json.NewDecoder(resp.Body).Decode(&host); err != nil {
		return nil, fmt.Errorf("failed to decode host config: %w", err)
	}
	return &host, nil
}
