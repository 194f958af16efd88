package provider

import "context"

// Provider is the capability contract every memory storage backend must
// implement. All blocking operations take a context so per-attempt timeouts
// and caller cancellation propagate into the backend.
type Provider interface {
	// Remember stores a memory and returns the created record.
	Remember(ctx context.Context, p RememberParams) (*Memory, error)

	// Recall retrieves memories matching the query, most relevant first.
	Recall(ctx context.Context, p RecallParams) ([]Memory, error)

	// Delete removes a memory by namespace and ID. Returns
	// errors.ErrNotFound when no such record exists.
	Delete(ctx context.Context, p DeleteParams) error

	// ListMemories enumerates stored memories matching the filters.
	ListMemories(ctx context.Context, p ListParams) ([]Memory, error)

	// HealthCheck probes backend liveness. A nil return means the backend
	// can currently serve operations.
	HealthCheck(ctx context.Context) error

	// Close releases the backend's underlying connections or clients.
	Close() error
}
