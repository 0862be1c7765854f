package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/phonalign/internal/coach"
)

// ErrProviderNotRegistered is returned by [Registry.CreateCoach] when no
// factory has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// CoachFactory builds a feedback completer from the coach section.
type CoachFactory func(CoachConfig) (coach.Completer, error)

// Registry maps coach provider names to their constructor functions. It is
// safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	coach map[string]CoachFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{coach: make(map[string]CoachFactory)}
}

// RegisterCoach registers a coach provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterCoach(name string, factory CoachFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coach[name] = factory
}

// CoachProviders returns the registered provider names in sorted order.
func (r *Registry) CoachProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.coach))
	for name := range r.coach {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// CreateCoach instantiates a completer using the factory registered under
// cfg.Provider. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateCoach(cfg CoachConfig) (coach.Completer, error) {
	r.mu.RLock()
	factory, ok := r.coach[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: coach/%q", ErrProviderNotRegistered, cfg.Provider)
	}
	return factory(cfg)
}
