// Package postgres implements the provider contract on PostgreSQL using
// pgxpool. Each memory is one row; recall is ILIKE substring matching over
// content, newest first.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/Arunosaur/ninaivalaigal-sub001/errors"
	"github.com/Arunosaur/ninaivalaigal-sub001/pkg/retry"
	"github.com/Arunosaur/ninaivalaigal-sub001/provider"
)

const schema = `
CREATE TABLE IF NOT EXISTS memories (
	id          TEXT PRIMARY KEY,
	namespace   TEXT NOT NULL,
	content     TEXT NOT NULL,
	kind        TEXT NOT NULL DEFAULT '',
	metadata    JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_memories_ns ON memories(namespace);
CREATE INDEX IF NOT EXISTS idx_memories_ns_kind ON memories(namespace, kind);
CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at DESC);
`

// Provider is a PostgreSQL-backed memory store.
type Provider struct {
	pool *pgxpool.Pool
}

// New opens a connection pool against connString and ensures the schema
// exists. The pool is created lazily by pgx; connectivity problems surface on
// first use or HealthCheck.
func New(ctx context.Context, connString string) (*Provider, error) {
	if connString == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Postgres", "New", "connection string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Postgres", "New", "connection string parsing")
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.WrapTransient(err, "Postgres", "New", "pool creation")
	}

	p := &Provider{pool: pool}

	// Schema migration retries through transient startup failures, e.g. the
	// database still coming up
	err = retry.Do(ctx, retry.Dial(), func() error {
		_, execErr := pool.Exec(ctx, schema)
		return execErr
	})
	if err != nil {
		pool.Close()
		return nil, errors.WrapTransient(err, "Postgres", "New", "schema migration")
	}

	return p, nil
}

// Register installs the factory for provider.TypePostgres.
func Register() error {
	return provider.RegisterFactory(provider.TypePostgres, func(cfg provider.Config) (provider.Provider, error) {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		return New(ctx, cfg.ConnectionString)
	})
}

// newID generates a sortable record ID. ulid.Make uses the package's locked
// entropy reader, so provider instances are safe to share across goroutines.
func newID() string {
	return ulid.Make().String()
}

// Remember inserts one memory row.
func (p *Provider) Remember(ctx context.Context, params provider.RememberParams) (*provider.Memory, error) {
	if params.Namespace == "" {
		return nil, errors.ErrEmptyNamespace
	}

	mem := provider.Memory{
		ID:        newID(),
		Namespace: params.Namespace,
		Content:   params.Content,
		Kind:      params.Kind,
		Metadata:  params.Metadata,
		CreatedAt: time.Now().UTC(),
	}

	_, err := p.pool.Exec(ctx,
		`INSERT INTO memories (id, namespace, content, kind, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		mem.ID, mem.Namespace, mem.Content, mem.Kind, mem.Metadata, mem.CreatedAt)
	if err != nil {
		return nil, errors.WrapTransient(err, "Postgres", "Remember", "insert")
	}

	return &mem, nil
}

// Recall returns rows whose content matches the query, newest first.
func (p *Provider) Recall(ctx context.Context, params provider.RecallParams) ([]provider.Memory, error) {
	if params.Namespace == "" {
		return nil, errors.ErrEmptyNamespace
	}

	query := `SELECT id, namespace, content, kind, metadata, created_at
		FROM memories WHERE namespace = $1`
	args := []any{params.Namespace}

	if params.Query != "" {
		query += ` AND content ILIKE $2`
		args = append(args, "%"+escapeLike(params.Query)+"%")
	}
	query += ` ORDER BY created_at DESC`
	if params.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, params.Limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapTransient(err, "Postgres", "Recall", "select")
	}
	defer rows.Close()

	return scanMemories(rows)
}

// Delete removes one memory row.
func (p *Provider) Delete(ctx context.Context, params provider.DeleteParams) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM memories WHERE namespace = $1 AND id = $2`,
		params.Namespace, params.ID)
	if err != nil {
		return errors.WrapTransient(err, "Postgres", "Delete", "delete")
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrNotFound
	}
	return nil
}

// ListMemories enumerates rows for a namespace, newest first.
func (p *Provider) ListMemories(ctx context.Context, params provider.ListParams) ([]provider.Memory, error) {
	if params.Namespace == "" {
		return nil, errors.ErrEmptyNamespace
	}

	query := `SELECT id, namespace, content, kind, metadata, created_at
		FROM memories WHERE namespace = $1`
	args := []any{params.Namespace}

	if params.Kind != "" {
		query += ` AND kind = $2`
		args = append(args, params.Kind)
	}
	query += ` ORDER BY created_at DESC`
	if params.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, params.Limit)
	}
	if params.Offset > 0 {
		query += fmt.Sprintf(` OFFSET %d`, params.Offset)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapTransient(err, "Postgres", "ListMemories", "select")
	}
	defer rows.Close()

	return scanMemories(rows)
}

// HealthCheck pings the pool.
func (p *Provider) HealthCheck(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return errors.WrapTransient(err, "Postgres", "HealthCheck", "ping")
	}
	return nil
}

// Close closes the connection pool.
func (p *Provider) Close() error {
	p.pool.Close()
	return nil
}

func scanMemories(rows pgx.Rows) ([]provider.Memory, error) {
	var memories []provider.Memory
	for rows.Next() {
		var mem provider.Memory
		if err := rows.Scan(&mem.ID, &mem.Namespace, &mem.Content, &mem.Kind, &mem.Metadata, &mem.CreatedAt); err != nil {
			return nil, errors.WrapTransient(err, "Postgres", "scanMemories", "row scan")
		}
		memories = append(memories, mem)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapTransient(err, "Postgres", "scanMemories", "row iteration")
	}
	return memories, nil
}

// escapeLike escapes LIKE metacharacters in user queries.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
