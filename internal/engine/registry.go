package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnknownBackend is returned when no backend is registered under a name
	ErrUnknownBackend = errors.New("unknown engine backend")

	// ErrInit marks a failed one-time backend initialization
	ErrInit = errors.New("engine initialization failed")
)

// Backend describes one engine implementation
type Backend struct {
	// Name is the lookup key (case-insensitive)
	Name string

	// Init runs once per process before the first handle is created, e.g. to
	// load a compiled engine payload. Optional.
	Init func(ctx context.Context) error

	// New creates a handle
	New Constructor
}

type registered struct {
	backend Backend
	once    *Once
}

// Registry manages engine backends. Backends are interchangeable behind Driver.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]*registered
}

// NewRegistry creates a registry with the given backends
func NewRegistry(backends ...Backend) *Registry {
	r := &Registry{
		backends: make(map[string]*registered),
	}
	for _, b := range backends {
		r.Register(b)
	}
	return r
}

// Register registers (or replaces) a backend
func (r *Registry) Register(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[strings.ToLower(b.Name)] = &registered{
		backend: b,
		once:    NewOnce(b.Init),
	}
}

// Names returns the registered backend names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

// Initialize runs the backend's one-time initialization, sharing the result
// with every concurrent and later caller
func (r *Registry) Initialize(ctx context.Context, name string) error {
	reg, err := r.lookup(name)
	if err != nil {
		return err
	}
	if err := reg.once.Do(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInit, reg.backend.Name, err)
	}
	return nil
}

// Constructor returns a constructor for the named backend that initializes
// the backend on first use
func (r *Registry) Constructor(name string) (Constructor, error) {
	reg, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, opts Options) (Driver, error) {
		if err := reg.once.Do(ctx); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInit, reg.backend.Name, err)
		}
		return reg.backend.New(ctx, opts)
	}, nil
}

// Open initializes the named backend if needed and creates a handle
func (r *Registry) Open(ctx context.Context, name string, opts Options) (Driver, error) {
	newDriver, err := r.Constructor(name)
	if err != nil {
		return nil, err
	}
	return newDriver(ctx, opts)
}

func (r *Registry) lookup(name string) (*registered, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.backends[strings.ToLower(name)]
	if !ok || reg.backend.New == nil {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownBackend, name, strings.Join(r.namesLocked(), ", "))
	}
	return reg, nil
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.backends))
	for _, reg := range r.backends {
		names = append(names, reg.backend.Name)
	}
	sort.Strings(names)
	return names
}
