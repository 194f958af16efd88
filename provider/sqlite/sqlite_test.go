package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arunosaur/ninaivalaigal-sub001/errors"
	"github.com/Arunosaur/ninaivalaigal-sub001/provider"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(filepath.Join(t.TempDir(), "memories.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestRememberRecallRoundTrip(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	mem, err := p.Remember(ctx, provider.RememberParams{
		Namespace: "notes",
		Content:   "rotate the staging credentials",
		Kind:      "note",
		Metadata:  map[string]string{"source": "test"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, mem.ID)

	results, err := p.Recall(ctx, provider.RecallParams{Namespace: "notes", Query: "staging"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, mem.ID, results[0].ID)
	assert.Equal(t, "test", results[0].Metadata["source"])
}

func TestRecallEscapesLikeWildcards(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	_, err := p.Remember(ctx, provider.RememberParams{Namespace: "n", Content: "100% done"})
	require.NoError(t, err)
	_, err = p.Remember(ctx, provider.RememberParams{Namespace: "n", Content: "100 percent done"})
	require.NoError(t, err)

	results, err := p.Recall(ctx, provider.RecallParams{Namespace: "n", Query: "100%"})
	require.NoError(t, err)
	assert.Len(t, results, 1, "%% must match literally, not as a wildcard")
}

func TestDeleteMissingRowIsNotFound(t *testing.T) {
	p := newTestProvider(t)

	err := p.Delete(context.Background(), provider.DeleteParams{Namespace: "n", ID: "nope"})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestListMemoriesFiltersByKind(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	for _, kind := range []string{"note", "note", "fact"} {
		_, err := p.Remember(ctx, provider.RememberParams{Namespace: "n", Content: "body", Kind: kind})
		require.NoError(t, err)
	}

	notes, err := p.ListMemories(ctx, provider.ListParams{Namespace: "n", Kind: "note"})
	require.NoError(t, err)
	assert.Len(t, notes, 2)
}

func TestConcurrentRemembersProduceUniqueIDs(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	const goroutines = 8
	const perGoroutine = 20

	ids := make(chan string, goroutines*perGoroutine)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				mem, err := p.Remember(ctx, provider.RememberParams{
					Namespace: "concurrent",
					Content:   "shared instance write",
				})
				assert.NoError(t, err)
				if mem != nil {
					ids <- mem.ID
				}
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{})
	for id := range ids {
		_, dup := seen[id]
		assert.False(t, dup, "duplicate ID %s", id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, goroutines*perGoroutine)
}
