package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"docextract/internal/port"
)

// circuitState tracks rate-limit backoff for a single provider.
type circuitState struct {
	mu      sync.RWMutex
	resetAt time.Time // zero value = closed (healthy)
}

func (c *circuitState) isOpenWithReset(now time.Time) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetAt, !c.resetAt.IsZero() && now.Before(c.resetAt)
}

func (c *circuitState) open(resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetAt = resetAt
}

// FallbackClient tries providers in order, skipping those with open circuits.
// The next provider is only called when the previous one failed.
type FallbackClient struct {
	clients  []port.VisionModel
	circuits []*circuitState
	names    []string
	logger   *zap.Logger
}

// NewFallbackClient creates a FallbackClient from an ordered list of clients and their names.
func NewFallbackClient(clients []port.VisionModel, names []string) *FallbackClient {
	circuits := make([]*circuitState, len(clients))
	for i := range circuits {
		circuits[i] = &circuitState{}
	}
	return &FallbackClient{
		clients:  clients,
		circuits: circuits,
		names:    names,
		logger:   zap.NewNop(),
	}
}

// WithLogger sets the logger used for fallback decisions.
func (f *FallbackClient) WithLogger(logger *zap.Logger) *FallbackClient {
	if logger != nil {
		f.logger = logger
	}
	return f
}

// Complete sends req to the first provider whose rate-limit circuit is
// closed and moves on only when that provider fails.
func (f *FallbackClient) Complete(ctx context.Context, req port.VisionRequest) (*port.VisionResponse, error) {
	now := time.Now()
	run := fallbackRun{}

	for i, c := range f.clients {
		name := f.names[i]
		if resetAt, open := f.circuits[i].isOpenWithReset(now); open {
			run.skip(name, resetAt)
			continue
		}

		out, err := c.Complete(ctx, req)
		if err == nil {
			if len(run.skipped)+len(run.failed) > 0 {
				f.logger.Info("model provider served after fallback",
					zap.String("provider", name),
					zap.Strings("skipped", run.skipped),
					zap.Strings("failed", run.failed))
			}
			return out, nil
		}

		f.logger.Warn("model provider failed", zap.String("provider", name), zap.Error(err))
		if ctx.Err() != nil {
			return nil, err
		}

		var rlErr *RateLimitError
		if errors.As(err, &rlErr) {
			resetAt := now.Add(rlErr.RetryAfter)
			f.circuits[i].open(resetAt)
			run.rateLimited(name, err, resetAt)
		} else {
			run.fail(name, err)
		}
	}

	f.logger.Warn("no model provider available",
		zap.Strings("skipped", run.skipped),
		zap.Strings("failed", run.failed))
	return nil, run.err()
}

// fallbackRun collects the outcome of one Complete call across providers.
type fallbackRun struct {
	skipped       []string
	failed        []string
	lastErr       error
	hardFailure   bool
	earliestReset time.Time
}

func (r *fallbackRun) skip(name string, resetAt time.Time) {
	r.skipped = append(r.skipped, name)
	r.noteReset(resetAt)
}

func (r *fallbackRun) rateLimited(name string, err error, resetAt time.Time) {
	r.failed = append(r.failed, name)
	r.lastErr = err
	r.noteReset(resetAt)
}

func (r *fallbackRun) fail(name string, err error) {
	r.failed = append(r.failed, name)
	r.lastErr = err
	r.hardFailure = true
}

func (r *fallbackRun) noteReset(resetAt time.Time) {
	if r.earliestReset.IsZero() || resetAt.Before(r.earliestReset) {
		r.earliestReset = resetAt
	}
}

// err reports a RateLimitError when every provider was throttled or skipped,
// so callers can treat the chain as temporarily unavailable.
func (r *fallbackRun) err() error {
	if r.hardFailure {
		return fmt.Errorf("all providers failed (%s): %w", strings.Join(r.failed, ", "), r.lastErr)
	}
	retryAfter := max(time.Until(r.earliestReset), time.Second)
	return NewRateLimitError("all",
		fmt.Errorf("all providers rate limited (%d skipped)", len(r.skipped)),
		int(retryAfter.Seconds()))
}
