// Package preload loads external resources in order before the widget activates.
package preload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/yourorg/photo-onboarding/internal/model"
	"go.uber.org/zap"
)

// Loader fetches and executes a single resource
type Loader interface {
	Load(ctx context.Context, resource string) error
}

// Executor receives the body of a fetched resource
type Executor interface {
	Execute(ctx context.Context, resource string, body []byte) error
}

// ExecutorFunc adapts a function to Executor
type ExecutorFunc func(ctx context.Context, resource string, body []byte) error

// Execute implements Executor
func (f ExecutorFunc) Execute(ctx context.Context, resource string, body []byte) error {
	return f(ctx, resource, body)
}

// Preloader runs resources through a Loader strictly one after another
type Preloader struct {
	loader          Loader
	maxRetries      uint64
	initialInterval time.Duration
	logger          *zap.Logger
}

// NewPreloader creates a new preloader. maxRetries of zero fails on the first error.
func NewPreloader(loader Loader, maxRetries uint64, logger *zap.Logger) *Preloader {
	return &Preloader{
		loader:          loader,
		maxRetries:      maxRetries,
		initialInterval: 200 * time.Millisecond,
		logger:          logger,
	}
}

// Run loads every resource in order. Resource i+1 starts only after i has
// loaded; the first failure stops the sequence and is returned as PreloadFailed.
func (p *Preloader) Run(ctx context.Context, resources []string) error {
	for i, resource := range resources {
		start := time.Now()
		if err := p.loadWithRetry(ctx, resource); err != nil {
			p.logger.Error("failed to preload resource",
				zap.Int("index", i),
				zap.String("resource", resource),
				zap.Error(err))
			return model.NewError(model.PreloadFailed, resource, err)
		}
		p.logger.Debug("preloaded resource",
			zap.Int("index", i),
			zap.String("resource", resource),
			zap.Duration("latency", time.Since(start)))
	}
	return nil
}

func (p *Preloader) loadWithRetry(ctx context.Context, resource string) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.initialInterval
	var b backoff.BackOff = exp
	b = backoff.WithMaxRetries(b, p.maxRetries)
	b = backoff.WithContext(b, ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := p.loader.Load(ctx, resource)
		if err != nil && attempt <= int(p.maxRetries) {
			p.logger.Warn("retrying resource", zap.String("resource", resource), zap.Int("attempt", attempt), zap.Error(err))
		}
		if errors.Is(err, context.Canceled) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

// HTTPLoader fetches resources over HTTP relative to a base URL
type HTTPLoader struct {
	baseURL    string
	httpClient *http.Client
	executor   Executor
	logger     *zap.Logger
}

// NewHTTPLoader creates a new HTTP loader
func NewHTTPLoader(baseURL string, timeout time.Duration, executor Executor, logger *zap.Logger) *HTTPLoader {
	return &HTTPLoader{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		executor: executor,
		logger:   logger,
	}
}

// Load fetches resource and hands its body to the executor
func (l *HTTPLoader) Load(ctx context.Context, resource string) error {
	target, err := l.resolve(resource)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch resource: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("resource returned status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read resource: %w", err)
	}

	if l.executor == nil {
		return nil
	}
	return l.executor.Execute(ctx, resource, body)
}

func (l *HTTPLoader) resolve(resource string) (string, error) {
	ref, err := url.Parse(resource)
	if err != nil {
		return "", fmt.Errorf("invalid resource %q: %w", resource, err)
	}
	if ref.IsAbs() || l.baseURL == "" {
		return ref.String(), nil
	}
	base, err := url.Parse(l.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// Registry is an Executor that records which resources were executed, in order
type Registry struct {
	mu     sync.Mutex
	loaded []string
	sizes  map[string]int
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{sizes: make(map[string]int)}
}

// Execute implements Executor
func (r *Registry) Execute(ctx context.Context, resource string, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = append(r.loaded, resource)
	r.sizes[resource] = len(body)
	return nil
}

// Loaded returns the executed resources in order
func (r *Registry) Loaded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.loaded...)
}
