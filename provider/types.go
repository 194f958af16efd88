package provider

import "time"

// Memory is a single stored memory record as seen by callers. Concrete
// backends map this onto their own storage representation.
type Memory struct {
	ID         string            `json:"id"`
	Namespace  string            `json:"namespace"`
	Content    string            `json:"content"`
	Kind       string            `json:"kind,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	Provenance string            `json:"provenance,omitempty"` // backend name that served the record
}

// RememberParams holds parameters for storing a memory.
type RememberParams struct {
	Namespace string
	Content   string
	Kind      string
	Metadata  map[string]string
}

// RecallParams holds parameters for retrieving memories by query.
type RecallParams struct {
	Namespace string
	Query     string
	Limit     int
}

// ListParams holds parameters for listing memories.
type ListParams struct {
	Namespace string
	Kind      string
	Limit     int
	Offset    int
}

// DeleteParams holds parameters for deleting a memory.
type DeleteParams struct {
	Namespace string
	ID        string
}

// OperationType identifies the substrate operation being executed. Failover
// rules and circuit breakers are keyed per operation type.
type OperationType string

const (
	// OpRemember stores a new memory
	OpRemember OperationType = "remember"
	// OpRecall retrieves memories by query
	OpRecall OperationType = "recall"
	// OpDelete removes a memory
	OpDelete OperationType = "delete"
	// OpList enumerates memories
	OpList OperationType = "list"
	// OpHealthCheck probes backend liveness
	OpHealthCheck OperationType = "health_check"
)

// OperationTypes lists all operation types in a stable order.
func OperationTypes() []OperationType {
	return []OperationType{OpRemember, OpRecall, OpDelete, OpList, OpHealthCheck}
}
