// Package mem0 implements the provider contract against a mem0 HTTP sidecar.
// The sidecar exposes a small JSON API; requests carry a shared-secret bearer
// token. The substrate never depends on the sidecar's internal storage.
package mem0

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Arunosaur/ninaivalaigal-sub001/errors"
	"github.com/Arunosaur/ninaivalaigal-sub001/provider"
)

// Config holds sidecar connection settings.
type Config struct {
	BaseURL      string
	SharedSecret string
	Timeout      time.Duration
}

// Provider is an HTTP client for the mem0 sidecar.
type Provider struct {
	baseURL      string
	sharedSecret string
	httpClient   *http.Client
}

// New creates a sidecar-backed provider. The base URL is validated here;
// reachability is only determined by HealthCheck.
func New(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Mem0", "New", "base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.WrapInvalid(err, "Mem0", "New", "base URL validation")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Provider{
		baseURL:      cfg.BaseURL,
		sharedSecret: cfg.SharedSecret,
		httpClient:   &http.Client{Timeout: timeout},
	}, nil
}

// Register installs the factory for provider.TypeMem0HTTP. The connection
// string is the sidecar base URL; the shared secret rides in config metadata.
func Register() error {
	return provider.RegisterFactory(provider.TypeMem0HTTP, func(cfg provider.Config) (provider.Provider, error) {
		return New(Config{
			BaseURL:      cfg.ConnectionString,
			SharedSecret: cfg.Metadata["shared_secret"],
			Timeout:      cfg.Timeout,
		})
	})
}

// memoryPayload is the sidecar's wire representation of a memory record.
type memoryPayload struct {
	ID        string            `json:"id"`
	Namespace string            `json:"namespace"`
	Content   string            `json:"content"`
	Kind      string            `json:"kind,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func (m memoryPayload) toMemory() provider.Memory {
	return provider.Memory{
		ID:        m.ID,
		Namespace: m.Namespace,
		Content:   m.Content,
		Kind:      m.Kind,
		Metadata:  m.Metadata,
		CreatedAt: m.CreatedAt,
	}
}

// Remember stores a memory via POST /memories.
func (p *Provider) Remember(ctx context.Context, params provider.RememberParams) (*provider.Memory, error) {
	if params.Namespace == "" {
		return nil, errors.ErrEmptyNamespace
	}

	body := map[string]any{
		"namespace": params.Namespace,
		"content":   params.Content,
		"kind":      params.Kind,
		"metadata":  params.Metadata,
	}

	var out memoryPayload
	if err := p.doJSON(ctx, http.MethodPost, "/memories", body, &out); err != nil {
		return nil, errors.Wrap(err, "Mem0", "Remember", "sidecar request")
	}
	mem := out.toMemory()
	return &mem, nil
}

// Recall searches memories via POST /memories/search.
func (p *Provider) Recall(ctx context.Context, params provider.RecallParams) ([]provider.Memory, error) {
	if params.Namespace == "" {
		return nil, errors.ErrEmptyNamespace
	}

	body := map[string]any{
		"namespace": params.Namespace,
		"query":     params.Query,
		"limit":     params.Limit,
	}

	var out struct {
		Results []memoryPayload `json:"results"`
	}
	if err := p.doJSON(ctx, http.MethodPost, "/memories/search", body, &out); err != nil {
		return nil, errors.Wrap(err, "Mem0", "Recall", "sidecar request")
	}

	memories := make([]provider.Memory, 0, len(out.Results))
	for _, r := range out.Results {
		memories = append(memories, r.toMemory())
	}
	return memories, nil
}

// Delete removes a memory via DELETE /memories/{id}.
func (p *Provider) Delete(ctx context.Context, params provider.DeleteParams) error {
	path := "/memories/" + url.PathEscape(params.ID) + "?namespace=" + url.QueryEscape(params.Namespace)
	if err := p.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return errors.Wrap(err, "Mem0", "Delete", "sidecar request")
	}
	return nil
}

// ListMemories enumerates memories via GET /memories.
func (p *Provider) ListMemories(ctx context.Context, params provider.ListParams) ([]provider.Memory, error) {
	if params.Namespace == "" {
		return nil, errors.ErrEmptyNamespace
	}

	q := url.Values{}
	q.Set("namespace", params.Namespace)
	if params.Kind != "" {
		q.Set("kind", params.Kind)
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		q.Set("offset", strconv.Itoa(params.Offset))
	}

	var out struct {
		Memories []memoryPayload `json:"memories"`
	}
	if err := p.doJSON(ctx, http.MethodGet, "/memories?"+q.Encode(), nil, &out); err != nil {
		return nil, errors.Wrap(err, "Mem0", "ListMemories", "sidecar request")
	}

	memories := make([]provider.Memory, 0, len(out.Memories))
	for _, m := range out.Memories {
		memories = append(memories, m.toMemory())
	}
	return memories, nil
}

// HealthCheck probes GET /health.
func (p *Provider) HealthCheck(ctx context.Context) error {
	if err := p.doJSON(ctx, http.MethodGet, "/health", nil, nil); err != nil {
		return errors.WrapTransient(err, "Mem0", "HealthCheck", "sidecar probe")
	}
	return nil
}

// Close releases idle connections held by the HTTP client.
func (p *Provider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// doJSON issues one request against the sidecar, decoding a JSON response
// into out when out is non-nil. HTTP 404 maps to errors.ErrNotFound so the
// failover loop can abort instead of retrying.
func (p *Provider) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.sharedSecret != "" {
		req.Header.Set("Authorization", "Bearer "+p.sharedSecret)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errors.WrapTransient(err, "Mem0", "doJSON", "sidecar round trip")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return errors.ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sidecar HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
