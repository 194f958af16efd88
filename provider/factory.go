package provider

import (
	"fmt"
	"sync"

	"github.com/Arunosaur/ninaivalaigal-sub001/errors"
)

// Factory constructs a provider instance from its configuration.
type Factory func(cfg Config) (Provider, error)

var (
	factoryMu sync.RWMutex
	factories = make(map[Type]Factory)
)

// RegisterFactory registers a factory for a provider type. Concrete backend
// packages call this from their Register function; registering the same type
// twice is a programming error.
func RegisterFactory(t Type, f Factory) error {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	if f == nil {
		return errors.WrapFatal(
			fmt.Errorf("factory for %s cannot be nil", t),
			"Provider", "RegisterFactory", "factory validation")
	}
	if _, exists := factories[t]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("factory for %s already registered", t),
			"Provider", "RegisterFactory", "duplicate registration")
	}

	factories[t] = f
	return nil
}

// New dispatches construction to the factory registered for the config's
// provider type.
func New(cfg Config) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Provider", "New", "config validation")
	}

	factoryMu.RLock()
	f, ok := factories[cfg.ProviderType]
	factoryMu.RUnlock()

	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("no factory registered for provider type %s", cfg.ProviderType),
			"Provider", "New", "factory lookup")
	}

	return f(cfg.WithDefaults())
}

// RegisteredTypes returns the provider types that currently have factories.
func RegisteredTypes() []Type {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	types := make([]Type, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}
	return types
}
