package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// Config configures retry behavior.
type Config struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	MaxAttempts int

	// InitialBackoff is the starting backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffFactor is the multiplier applied to backoff after each attempt.
	BackoffFactor float64

	// Jitter is the random jitter factor (0.0-1.0).
	Jitter float64

	// RetryableFunc optionally overrides the default retryability check.
	RetryableFunc func(error) bool
}

// Default is the standard retry configuration.
var Default = Config{
	MaxAttempts:    3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
	BackoffFactor:  2.0,
	Jitter:         0.1,
}

// Aggressive retries more times with shorter backoff.
var Aggressive = Config{
	MaxAttempts:    5,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     10 * time.Second,
	BackoffFactor:  1.5,
	Jitter:         0.2,
}

// None disables retries.
var None = Config{
	MaxAttempts: 1,
}

// Result contains the result of a retried operation.
type Result[T any] struct {
	// Value is the result if successful.
	Value T

	// Err is the final error if all attempts failed.
	Err error

	// Attempts is the number of attempts made.
	Attempts int

	// Duration is the total time spent retrying.
	Duration time.Duration
}

// Do executes a function with retries based on the configuration.
func Do[T any](cfg Config, fn func() (T, error)) Result[T] {
	return DoContext(context.Background(), cfg, func(_ context.Context) (T, error) {
		return fn()
	})
}

// DoContext executes a function with retries, respecting context cancellation.
func DoContext[T any](
	ctx context.Context,
	cfg Config,
	fn func(context.Context) (T, error),
) Result[T] {
	start := time.Now()
	backoff := cfg.InitialBackoff
	var lastErr error

	isRetryable := cfg.RetryableFunc
	if isRetryable == nil {
		isRetryable = IsRetryable
	}

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		// Check context before each attempt
		if err := ctx.Err(); err != nil {
			return Result[T]{
				Err:      &CategorizedError{Err: err, Category: CategoryPermanent, Context: "context cancelled"},
				Attempts: attempt,
				Duration: time.Since(start),
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return Result[T]{
				Value:    result,
				Attempts: attempt + 1,
				Duration: time.Since(start),
			}
		}

		lastErr = err

		if !isRetryable(err) {
			return Result[T]{
				Err: &CategorizedError{
					Err:      err,
					Category: Categorize(err),
					Retries:  attempt + 1,
				},
				Attempts: attempt + 1,
				Duration: time.Since(start),
			}
		}

		// Don't sleep after the last attempt
		if attempt < cfg.MaxAttempts-1 {
			sleepDuration := calculateBackoff(backoff, cfg.Jitter)
			select {
			case <-ctx.Done():
				return Result[T]{
					Err:      &CategorizedError{Err: ctx.Err(), Category: CategoryPermanent, Context: "context cancelled during backoff"},
					Attempts: attempt + 1,
					Duration: time.Since(start),
				}
			case <-time.After(sleepDuration):
			}

			// Increase backoff for next attempt
			backoff = time.Duration(float64(backoff) * cfg.BackoffFactor)
			if backoff > cfg.MaxBackoff {
				backoff = cfg.MaxBackoff
			}
		}
	}

	return Result[T]{
		Err: &CategorizedError{
			Err:      lastErr,
			Category: Categorize(lastErr),
			Retries:  cfg.MaxAttempts,
			Context:  "max retries exceeded",
		},
		Attempts: cfg.MaxAttempts,
		Duration: time.Since(start),
	}
}

// calculateBackoff returns the backoff duration with jitter applied.
func calculateBackoff(base time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return base
	}

	// Calculate jitter: base +/- (base * jitter * random)
	jitterAmount := float64(base) * jitter * (rand.Float64()*2 - 1)
	return time.Duration(float64(base) + jitterAmount)
}

// Option configures retry behavior.
type Option func(*Config)

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(n int) Option {
	return func(cfg *Config) {
		cfg.MaxAttempts = n
	}
}

// WithInitialBackoff sets the initial backoff duration.
func WithInitialBackoff(d time.Duration) Option {
	return func(cfg *Config) {
		cfg.InitialBackoff = d
	}
}

// WithMaxBackoff sets the maximum backoff duration.
func WithMaxBackoff(d time.Duration) Option {
	return func(cfg *Config) {
		cfg.MaxBackoff = d
	}
}

// WithBackoffFactor sets the backoff multiplier.
func WithBackoffFactor(f float64) Option {
	return func(cfg *Config) {
		cfg.BackoffFactor = f
	}
}

// WithJitter sets the jitter factor.
func WithJitter(j float64) Option {
	return func(cfg *Config) {
		cfg.Jitter = j
	}
}

// WithRetryableFunc sets a custom retryability check.
func WithRetryableFunc(fn func(error) bool) Option {
	return func(cfg *Config) {
		cfg.RetryableFunc = fn
	}
}

// NewConfig creates a retry configuration from Default and the given options.
func NewConfig(opts ...Option) Config {
	cfg := Default
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
