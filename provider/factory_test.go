package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arunosaur/ninaivalaigal-sub001/errors"
)

type nopProvider struct{}

func (nopProvider) Remember(context.Context, RememberParams) (*Memory, error) { return &Memory{}, nil }
func (nopProvider) Recall(context.Context, RecallParams) ([]Memory, error)    { return nil, nil }
func (nopProvider) Delete(context.Context, DeleteParams) error                { return nil }
func (nopProvider) ListMemories(context.Context, ListParams) ([]Memory, error) {
	return nil, nil
}
func (nopProvider) HealthCheck(context.Context) error { return nil }
func (nopProvider) Close() error                      { return nil }

func TestRegisterFactoryRejectsDuplicates(t *testing.T) {
	// Factory registration is global process state, so the test uses a type
	// name no real backend claims.
	typ := Type("factory_test_backend")
	factory := func(Config) (Provider, error) { return nopProvider{}, nil }

	require.NoError(t, RegisterFactory(typ, factory))

	err := RegisterFactory(typ, factory)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestRegisterFactoryRejectsNil(t *testing.T) {
	err := RegisterFactory(Type("factory_test_nil"), nil)
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestNewRequiresRegisteredFactory(t *testing.T) {
	_, err := New(Config{
		Name:         "orphan",
		ProviderType: TypePostgres,
	})
	// No factory is registered in this package's tests for the real backend
	// types, so dispatch fails as invalid.
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestNewValidatesConfigFirst(t *testing.T) {
	_, err := New(Config{Name: "", ProviderType: TypeMemory})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}
