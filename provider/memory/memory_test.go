package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arunosaur/ninaivalaigal-sub001/errors"
	"github.com/Arunosaur/ninaivalaigal-sub001/provider"
)

func TestRememberAndRecall(t *testing.T) {
	p := New()
	ctx := context.Background()

	mem, err := p.Remember(ctx, provider.RememberParams{
		Namespace: "notes",
		Content:   "deploy checklist for the staging cluster",
		Kind:      "note",
		Metadata:  map[string]string{"source": "test"},
	})
	require.NoError(t, err)
	require.NotNil(t, mem)
	assert.NotEmpty(t, mem.ID)
	assert.Equal(t, "notes", mem.Namespace)
	assert.False(t, mem.CreatedAt.IsZero())

	results, err := p.Recall(ctx, provider.RecallParams{
		Namespace: "notes",
		Query:     "staging",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, mem.ID, results[0].ID)
	assert.Equal(t, "test", results[0].Metadata["source"])
}

func TestRecallIsCaseInsensitive(t *testing.T) {
	p := New()
	ctx := context.Background()

	_, err := p.Remember(ctx, provider.RememberParams{
		Namespace: "notes",
		Content:   "Rotate the API Keys",
	})
	require.NoError(t, err)

	results, err := p.Recall(ctx, provider.RecallParams{Namespace: "notes", Query: "api keys"})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestRecallRespectsNamespaceIsolation(t *testing.T) {
	p := New()
	ctx := context.Background()

	_, err := p.Remember(ctx, provider.RememberParams{Namespace: "alpha", Content: "shared term"})
	require.NoError(t, err)

	results, err := p.Recall(ctx, provider.RecallParams{Namespace: "beta", Query: "shared"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRememberRequiresNamespace(t *testing.T) {
	p := New()

	_, err := p.Remember(context.Background(), provider.RememberParams{Content: "orphan"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestDeleteRemovesRecord(t *testing.T) {
	p := New()
	ctx := context.Background()

	mem, err := p.Remember(ctx, provider.RememberParams{Namespace: "notes", Content: "ephemeral"})
	require.NoError(t, err)

	require.NoError(t, p.Delete(ctx, provider.DeleteParams{Namespace: "notes", ID: mem.ID}))

	err = p.Delete(ctx, provider.DeleteParams{Namespace: "notes", ID: mem.ID})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestDeleteUnknownNamespaceIsNotFound(t *testing.T) {
	p := New()

	err := p.Delete(context.Background(), provider.DeleteParams{Namespace: "ghost", ID: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestListMemoriesFiltersAndPaginates(t *testing.T) {
	p := New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := p.Remember(ctx, provider.RememberParams{
			Namespace: "notes", Content: "note body", Kind: "note",
		})
		require.NoError(t, err)
	}
	_, err := p.Remember(ctx, provider.RememberParams{
		Namespace: "notes", Content: "a fact", Kind: "fact",
	})
	require.NoError(t, err)

	notes, err := p.ListMemories(ctx, provider.ListParams{Namespace: "notes", Kind: "note"})
	require.NoError(t, err)
	assert.Len(t, notes, 3)

	page, err := p.ListMemories(ctx, provider.ListParams{Namespace: "notes", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := p.ListMemories(ctx, provider.ListParams{Namespace: "notes", Offset: 2})
	require.NoError(t, err)
	assert.Len(t, rest, 2)

	past, err := p.ListMemories(ctx, provider.ListParams{Namespace: "notes", Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestClosedProviderRejectsOperations(t *testing.T) {
	p := New()
	ctx := context.Background()

	_, err := p.Remember(ctx, provider.RememberParams{Namespace: "notes", Content: "x"})
	require.NoError(t, err)

	require.NoError(t, p.Close())

	_, err = p.Remember(ctx, provider.RememberParams{Namespace: "notes", Content: "y"})
	assert.Error(t, err)
	_, err = p.Recall(ctx, provider.RecallParams{Namespace: "notes"})
	assert.Error(t, err)
	assert.Error(t, p.HealthCheck(ctx))
}
