// Package client talks to the remote photo and preview endpoints.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CSRFHeader carries the anti-forgery token on every mutating request
const CSRFHeader = "X-CSRFToken"

// maxErrorBody caps how much of an error response is surfaced to the user
const maxErrorBody = 512

// Options configure a remote endpoint client
type Options struct {
	BaseURL        string
	Path           string
	UserID         string
	CSRFToken      string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

type baseClient struct {
	endpoint   string
	userID     string
	csrfToken  string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

func newBaseClient(opts Options, logger *zap.Logger) (baseClient, error) {
	endpoint, err := joinURL(opts.BaseURL, opts.Path)
	if err != nil {
		return baseClient{}, err
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return baseClient{
		endpoint:   endpoint,
		userID:     opts.UserID,
		csrfToken:  opts.CSRFToken,
		timeout:    opts.RequestTimeout,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// withTimeout bounds a single request. Zero disables the bound.
func (c *baseClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *baseClient) setHeaders(req *http.Request) {
	if c.csrfToken != "" {
		req.Header.Set(CSRFHeader, c.csrfToken)
	}
	req.Header.Set("Accept", "application/json")
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}

// readErrorBody returns the trimmed response text, if any
func readErrorBody(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(body))
}

func joinURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	return u.ResolveReference(ref).String(), nil
}
