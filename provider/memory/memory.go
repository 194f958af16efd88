// Package memory implements the provider contract with a process-local map.
// It is the default backend for tests and local development; recall is a
// linear substring scan, so it is not suitable for large corpora.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Arunosaur/ninaivalaigal-sub001/errors"
	"github.com/Arunosaur/ninaivalaigal-sub001/provider"
)

// Provider is a thread-safe in-process memory backend.
type Provider struct {
	mu      sync.RWMutex
	records map[string]map[string]provider.Memory // namespace -> id -> record
	closed  bool
}

// New creates an empty in-process provider.
func New() *Provider {
	return &Provider{
		records: make(map[string]map[string]provider.Memory),
	}
}

// Register installs the factory for provider.TypeMemory.
func Register() error {
	return provider.RegisterFactory(provider.TypeMemory, func(provider.Config) (provider.Provider, error) {
		return New(), nil
	})
}

// Remember stores a memory under a generated ID.
func (p *Provider) Remember(_ context.Context, params provider.RememberParams) (*provider.Memory, error) {
	if params.Namespace == "" {
		return nil, errors.ErrEmptyNamespace
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errors.ErrNoConnection
	}

	ns, ok := p.records[params.Namespace]
	if !ok {
		ns = make(map[string]provider.Memory)
		p.records[params.Namespace] = ns
	}

	mem := provider.Memory{
		ID:        uuid.NewString(),
		Namespace: params.Namespace,
		Content:   params.Content,
		Kind:      params.Kind,
		Metadata:  cloneMeta(params.Metadata),
		CreatedAt: time.Now().UTC(),
	}
	ns[mem.ID] = mem

	out := mem
	return &out, nil
}

// Recall returns records whose content contains the query, newest first.
func (p *Provider) Recall(_ context.Context, params provider.RecallParams) ([]provider.Memory, error) {
	if params.Namespace == "" {
		return nil, errors.ErrEmptyNamespace
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, errors.ErrNoConnection
	}

	query := strings.ToLower(params.Query)
	var results []provider.Memory
	for _, mem := range p.records[params.Namespace] {
		if query == "" || strings.Contains(strings.ToLower(mem.Content), query) {
			results = append(results, mem)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	if params.Limit > 0 && len(results) > params.Limit {
		results = results[:params.Limit]
	}
	return results, nil
}

// Delete removes a record by namespace and ID.
func (p *Provider) Delete(_ context.Context, params provider.DeleteParams) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.ErrNoConnection
	}

	ns, ok := p.records[params.Namespace]
	if !ok {
		return errors.ErrNotFound
	}
	if _, ok := ns[params.ID]; !ok {
		return errors.ErrNotFound
	}
	delete(ns, params.ID)
	return nil
}

// ListMemories enumerates records, newest first.
func (p *Provider) ListMemories(_ context.Context, params provider.ListParams) ([]provider.Memory, error) {
	if params.Namespace == "" {
		return nil, errors.ErrEmptyNamespace
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, errors.ErrNoConnection
	}

	var results []provider.Memory
	for _, mem := range p.records[params.Namespace] {
		if params.Kind != "" && mem.Kind != params.Kind {
			continue
		}
		results = append(results, mem)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	if params.Offset > 0 {
		if params.Offset >= len(results) {
			return []provider.Memory{}, nil
		}
		results = results[params.Offset:]
	}
	if params.Limit > 0 && len(results) > params.Limit {
		results = results[:params.Limit]
	}
	return results, nil
}

// HealthCheck reports liveness; an in-process store is healthy unless closed.
func (p *Provider) HealthCheck(context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return errors.ErrNoConnection
	}
	return nil
}

// Close marks the provider closed; subsequent operations fail.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func cloneMeta(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
