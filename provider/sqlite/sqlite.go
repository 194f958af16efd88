// Package sqlite implements the provider contract on an embedded SQLite
// database via the modernc driver. Suited for single-node deployments and as
// a durable local fallback behind a network backend.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/Arunosaur/ninaivalaigal-sub001/errors"
	"github.com/Arunosaur/ninaivalaigal-sub001/provider"
)

// Provider is a SQLite-backed memory store.
type Provider struct {
	db *sql.DB
}

// New opens or creates a SQLite database at the given path.
func New(dbPath string) (*Provider, error) {
	if dbPath == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "SQLite", "New", "database path is required")
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapFatal(err, "SQLite", "New", "database directory creation")
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, errors.WrapFatal(err, "SQLite", "New", "database open")
	}

	p := &Provider{db: db}

	if err := p.migrate(); err != nil {
		db.Close()
		return nil, errors.WrapFatal(err, "SQLite", "New", "schema migration")
	}

	return p, nil
}

// Register installs the factory for provider.TypeSQLite. The connection
// string is the database file path.
func Register() error {
	return provider.RegisterFactory(provider.TypeSQLite, func(cfg provider.Config) (provider.Provider, error) {
		return New(cfg.ConnectionString)
	})
}

func (p *Provider) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id          TEXT PRIMARY KEY,
		namespace   TEXT NOT NULL,
		content     TEXT NOT NULL,
		kind        TEXT NOT NULL DEFAULT '',
		metadata    TEXT,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_ns ON memories(namespace);
	CREATE INDEX IF NOT EXISTS idx_memories_ns_kind ON memories(namespace, kind);
	CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at DESC);
	`
	_, err := p.db.Exec(schema)
	return err
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

	var meta any
	if len(mem.Metadata) > 0 {
		data, err := json.Marshal(mem.Metadata)
		if err != nil {
			return nil, errors.WrapInvalid(err, "SQLite", "Remember", "metadata encoding")
		}
		meta = string(data)
	}

	_, err := p.db.ExecContext(ctx,
		`INSERT INTO memories (id, namespace, content, kind, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		mem.ID, mem.Namespace, mem.Content, mem.Kind, meta, mem.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, errors.WrapTransient(err, "SQLite", "Remember", "insert")
	}

	return &mem, nil
}

// Recall returns rows whose content matches the query, newest first.
func (p *Provider) Recall(ctx context.Context, params provider.RecallParams) ([]provider.Memory, error) {
	if params.Namespace == "" {
		return nil, errors.ErrEmptyNamespace
	}

	query := `SELECT id, namespace, content, kind, metadata, created_at
		FROM memories WHERE namespace = ?`
	args := []any{params.Namespace}

	if params.Query != "" {
		query += ` AND content LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(params.Query)+"%")
	}
	query += ` ORDER BY created_at DESC`
	if params.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, params.Limit)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapTransient(err, "SQLite", "Recall", "select")
	}
	defer rows.Close()

	return scanMemories(rows)
}

// Delete removes one memory row.
func (p *Provider) Delete(ctx context.Context, params provider.DeleteParams) error {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM memories WHERE namespace = ? AND id = ?`,
		params.Namespace, params.ID)
	if err != nil {
		return errors.WrapTransient(err, "SQLite", "Delete", "delete")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.WrapTransient(err, "SQLite", "Delete", "rows affected")
	}
	if affected == 0 {
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
		FROM memories WHERE namespace = ?`
	args := []any{params.Namespace}

	if params.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, params.Kind)
	}
	query += ` ORDER BY created_at DESC`
	if params.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, params.Limit)
	}
	if params.Offset > 0 {
		query += fmt.Sprintf(` OFFSET %d`, params.Offset)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapTransient(err, "SQLite", "ListMemories", "select")
	}
	defer rows.Close()

	return scanMemories(rows)
}

// HealthCheck pings the database.
func (p *Provider) HealthCheck(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return errors.WrapTransient(err, "SQLite", "HealthCheck", "ping")
	}
	return nil
}

// Close closes the database handle.
func (p *Provider) Close() error {
	return p.db.Close()
}

func scanMemories(rows *sql.Rows) ([]provider.Memory, error) {
	var memories []provider.Memory
	for rows.Next() {
		var (
			mem       provider.Memory
			meta      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&mem.ID, &mem.Namespace, &mem.Content, &mem.Kind, &meta, &createdAt); err != nil {
			return nil, errors.WrapTransient(err, "SQLite", "scanMemories", "row scan")
		}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &mem.Metadata); err != nil {
				return nil, errors.WrapInvalid(err, "SQLite", "scanMemories", "metadata decoding")
			}
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, errors.WrapInvalid(err, "SQLite", "scanMemories", "timestamp parsing")
		}
		mem.CreatedAt = ts
		memories = append(memories, mem)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapTransient(err, "SQLite", "scanMemories", "row iteration")
	}
	return memories, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
