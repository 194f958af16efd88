// Package retry provides exponential backoff retry logic for transient
// failures, tuned for backend connection establishment.
//
// # Core Functions
//
//   - Do: execute a function with retry and exponential backoff
//   - DoWithResult: execute with retry, returning both result and error
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s delay (normal operations)
//   - Dial(): 5 attempts, 100ms-3s delay (backend connection setup)
//   - Persistent(): 30 attempts, 200ms-10s delay (critical resources)
//
// # Error Classification
//
// The loop stops early for errors that repetition cannot fix: anything
// wrapped with NonRetryable, plus invalid-input, not-found, and fatal errors
// from the errors package. Unknown errors are treated as transient and
// retried.
//
// # Usage
//
// Connection establishment with backoff:
//
//	pool, err := retry.DoWithResult(ctx, retry.Dial(), func() (*pgxpool.Pool, error) {
//	    return pgxpool.NewWithConfig(ctx, poolCfg)
//	})
//
// # Context Cancellation
//
// All retry operations respect context cancellation and stop immediately,
// both during operation execution and during a backoff delay.
package retry
