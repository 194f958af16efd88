// Package redis implements the provider contract on Redis. Each memory is a
// JSON blob keyed by namespace and ID, with a per-namespace sorted set scored
// by creation time for newest-first listing. Recall is a substring scan over
// the namespace; intended for small, hot corpora rather than archival search.
package redis

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Arunosaur/ninaivalaigal-sub001/errors"
	"github.com/Arunosaur/ninaivalaigal-sub001/pkg/retry"
	"github.com/Arunosaur/ninaivalaigal-sub001/provider"
)

// Provider is a Redis-backed memory store.
type Provider struct {
	client *goredis.Client
}

// New creates a Redis provider from a redis:// connection URL and verifies
// connectivity with a bounded ping.
func New(ctx context.Context, connURL string) (*Provider, error) {
	if connURL == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Redis", "New", "connection URL is required")
	}

	opts, err := goredis.ParseURL(connURL)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Redis", "New", "connection URL parsing")
	}

	client := goredis.NewClient(opts)
	err = retry.Do(ctx, retry.Dial(), func() error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, errors.WrapTransient(err, "Redis", "New", "initial ping")
	}

	return &Provider{client: client}, nil
}

// Register installs the factory for provider.TypeRedis.
func Register() error {
	return provider.RegisterFactory(provider.TypeRedis, func(cfg provider.Config) (provider.Provider, error) {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		return New(ctx, cfg.ConnectionString)
	})
}

func recordKey(namespace, id string) string {
	return "mem:" + namespace + ":" + id
}

func indexKey(namespace string) string {
	return "mem:index:" + namespace
}

// Remember stores one memory blob and indexes it.
func (p *Provider) Remember(ctx context.Context, params provider.RememberParams) (*provider.Memory, error) {
	if params.Namespace == "" {
		return nil, errors.ErrEmptyNamespace
	}

	mem := provider.Memory{
		ID:        uuid.NewString(),
		Namespace: params.Namespace,
		Content:   params.Content,
		Kind:      params.Kind,
		Metadata:  params.Metadata,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(mem)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Redis", "Remember", "record encoding")
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, recordKey(mem.Namespace, mem.ID), data, 0)
	pipe.ZAdd(ctx, indexKey(mem.Namespace), goredis.Z{
		Score:  float64(mem.CreatedAt.UnixNano()),
		Member: mem.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.WrapTransient(err, "Redis", "Remember", "pipeline exec")
	}

	return &mem, nil
}

// Recall scans the namespace newest-first and returns substring matches.
func (p *Provider) Recall(ctx context.Context, params provider.RecallParams) ([]provider.Memory, error) {
	if params.Namespace == "" {
		return nil, errors.ErrEmptyNamespace
	}

	all, err := p.loadNamespace(ctx, params.Namespace)
	if err != nil {
		return nil, errors.Wrap(err, "Redis", "Recall", "namespace load")
	}

	query := strings.ToLower(params.Query)
	results := make([]provider.Memory, 0, len(all))
	for _, mem := range all {
		if query == "" || strings.Contains(strings.ToLower(mem.Content), query) {
			results = append(results, mem)
			if params.Limit > 0 && len(results) >= params.Limit {
				break
			}
		}
	}
	return results, nil
}

// Delete removes one memory blob and its index entry.
func (p *Provider) Delete(ctx context.Context, params provider.DeleteParams) error {
	removed, err := p.client.Del(ctx, recordKey(params.Namespace, params.ID)).Result()
	if err != nil {
		return errors.WrapTransient(err, "Redis", "Delete", "record delete")
	}
	if removed == 0 {
		return errors.ErrNotFound
	}
	if err := p.client.ZRem(ctx, indexKey(params.Namespace), params.ID).Err(); err != nil {
		return errors.WrapTransient(err, "Redis", "Delete", "index delete")
	}
	return nil
}

// ListMemories enumerates memories newest-first.
func (p *Provider) ListMemories(ctx context.Context, params provider.ListParams) ([]provider.Memory, error) {
	if params.Namespace == "" {
		return nil, errors.ErrEmptyNamespace
	}

	all, err := p.loadNamespace(ctx, params.Namespace)
	if err != nil {
		return nil, errors.Wrap(err, "Redis", "ListMemories", "namespace load")
	}

	results := make([]provider.Memory, 0, len(all))
	for _, mem := range all {
		if params.Kind != "" && mem.Kind != params.Kind {
			continue
		}
		results = append(results, mem)
	}

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

// HealthCheck pings the server.
func (p *Provider) HealthCheck(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return errors.WrapTransient(err, "Redis", "HealthCheck", "ping")
	}
	return nil
}

// Close closes the client connection pool.
func (p *Provider) Close() error {
	return p.client.Close()
}

// loadNamespace fetches all records for a namespace, newest first. Records
// whose blob disappeared between index read and fetch are skipped.
func (p *Provider) loadNamespace(ctx context.Context, namespace string) ([]provider.Memory, error) {
	ids, err := p.client.ZRevRange(ctx, indexKey(namespace), 0, -1).Result()
	if err != nil {
		return nil, errors.WrapTransient(err, "Redis", "loadNamespace", "index read")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = recordKey(namespace, id)
	}

	blobs, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.WrapTransient(err, "Redis", "loadNamespace", "record fetch")
	}

	memories := make([]provider.Memory, 0, len(blobs))
	for _, blob := range blobs {
		s, ok := blob.(string)
		if !ok {
			continue
		}
		var mem provider.Memory
		if err := json.Unmarshal([]byte(s), &mem); err != nil {
			return nil, errors.WrapInvalid(err, "Redis", "loadNamespace", "record decoding")
		}
		memories = append(memories, mem)
	}
	return memories, nil
}
