package modelclient

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/glinthq/onboardrag/internal/errors"
)

// Client serializes all model traffic through a single bounded FIFO queue.
// Requests are dispatched in enqueue order with a minimum spacing between
// provider calls; transient failures are retried with exponential backoff.
type Client struct {
	provider Provider
	cfg      Config
	queue    chan *request

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	drained   chan struct{}
}

type result struct {
	value any
	err   error
}

type request struct {
	ctx      context.Context
	deadline time.Time
	run      func(ctx context.Context) (any, error)
	out      chan result
}

// New creates a model client over the given provider.
func New(provider Provider, cfg Config) *Client {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultConfig().QueueCapacity
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}
	c := &Client{
		provider: provider,
		cfg:      cfg,
		queue:    make(chan *request, cfg.QueueCapacity),
		done:     make(chan struct{}),
		drained:  make(chan struct{}),
	}
	c.startOnce.Do(func() { go c.dispatch() })
	return c
}

// Dimensions returns the provider's embedding dimensionality.
func (c *Client) Dimensions() int {
	return c.provider.Dimensions()
}

// Embed generates one embedding vector through the queue.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := c.do(ctx, func(ctx context.Context) (any, error) {
		return c.provider.Embed(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// Generate produces text through the queue. Temperature and output length
// are clamped to the safety ceilings regardless of the caller's config.
func (c *Client) Generate(ctx context.Context, system, user string, cfg GenConfig) (string, error) {
	if cfg.Temperature > MaxTemperature {
		cfg.Temperature = MaxTemperature
	}
	if cfg.MaxOutputTokens <= 0 || cfg.MaxOutputTokens > MaxOutputTokenCeiling {
		cfg.MaxOutputTokens = MaxOutputTokenCeiling
	}
	v, err := c.do(ctx, func(ctx context.Context) (any, error) {
		return c.provider.Generate(ctx, system, user, cfg)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Close stops the dispatcher and closes the provider. Queued requests are
// failed with a timeout error.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		<-c.drained
	})
	return c.provider.Close()
}

// do enqueues a request and waits for its outcome. Enqueue fails fast when
// the queue is at capacity; waiting is bounded by the request deadline.
func (c *Client) do(ctx context.Context, run func(ctx context.Context) (any, error)) (any, error) {
	deadline := time.Now().Add(c.cfg.RequestTimeout)
	req := &request{
		ctx:      ctx,
		deadline: deadline,
		run:      run,
		out:      make(chan result, 1),
	}

	select {
	case c.queue <- req:
	default:
		return nil, errors.New(errors.KindModelQueueFull,
			"model request queue is full", nil).
			WithDetail("capacity", strconv.Itoa(c.cfg.QueueCapacity))
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case r := <-req.out:
		return r.value, r.err
	case <-ctx.Done():
		return nil, errors.New(errors.KindModelTimeout, "model request cancelled", ctx.Err())
	case <-timer.C:
		return nil, errors.New(errors.KindModelTimeout, "model request deadline exceeded while queued", nil)
	}
}

// dispatch drains the queue in FIFO order, enforcing the minimum spacing
// between provider calls. A provider retry-after hint delays the next
// dispatch exactly once.
func (c *Client) dispatch() {
	defer close(c.drained)

	var lastDispatch time.Time
	var extraDelay time.Duration

	for {
		select {
		case <-c.done:
			c.failPending()
			return
		case req := <-c.queue:
			if time.Now().After(req.deadline) {
				req.out <- result{err: errors.New(errors.KindModelTimeout,
					"model request expired in queue", nil)}
				continue
			}

			wait := extraDelay
			extraDelay = 0
			if !lastDispatch.IsZero() {
				if gap := c.cfg.MinInterval - time.Since(lastDispatch); gap > wait {
					wait = gap
				}
			}
			if wait > 0 {
				select {
				case <-time.After(wait):
				case <-c.done:
					req.out <- result{err: errors.New(errors.KindModelTimeout, "model client closed", nil)}
					c.failPending()
					return
				}
			}

			lastDispatch = time.Now()
			value, err := c.execute(req)
			if ra := errors.RetryAfterOf(err); ra > 0 {
				if ra > maxBackoff {
					ra = maxBackoff
				}
				extraDelay = ra
			}
			req.out <- result{value: value, err: err}
		}
	}
}

// execute runs one request, retrying only transient failures. Rate-limit
// responses are not retried here; the queue spacing already prevents bursts
// and the dispatcher honors the retry-after hint before the next request.
func (c *Client) execute(req *request) (any, error) {
	backoff := baseBackoff

	for attempt := 0; ; attempt++ {
		ctx, cancel := context.WithDeadline(req.ctx, req.deadline)
		value, err := req.run(ctx)
		cancel()

		if err == nil {
			return value, nil
		}
		if req.ctx.Err() != nil {
			return nil, errors.New(errors.KindModelTimeout, "model request cancelled", req.ctx.Err())
		}
		if !errors.IsRetryable(err) || attempt >= c.cfg.MaxRetries {
			return nil, err
		}

		delay := backoff
		if ra := errors.RetryAfterOf(err); ra > 0 {
			delay = ra
		}
		if delay > maxBackoff {
			delay = maxBackoff
		}
		if time.Now().Add(delay).After(req.deadline) {
			return nil, err
		}

		slog.Debug("retrying model request",
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))

		select {
		case <-time.After(delay):
		case <-req.ctx.Done():
			return nil, errors.New(errors.KindModelTimeout, "model request cancelled", req.ctx.Err())
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// failPending drains any queued requests after shutdown.
func (c *Client) failPending() {
	for {
		select {
		case req := <-c.queue:
			req.out <- result{err: errors.New(errors.KindModelTimeout, "model client closed", nil)}
		default:
			return
		}
	}
}
