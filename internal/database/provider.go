package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Backend bundles the stores of one storage implementation.
type Backend struct {
	Name        string
	Owners      OwnerWriter
	Departments DepartmentStore
	Attendance  AttendanceStore
	// Close releases the underlying connection, may be nil
	Close func(ctx context.Context) error
}

// Opener connects a backend. It is registered by the backend packages so that
// this package does not import them.
type Opener func(ctx context.Context) (*Backend, error)

var (
	openers   = make(map[string]Opener)
	openersMu sync.RWMutex
)

// RegisterBackend registers a backend opener under name, replacing any previous one.
func RegisterBackend(name string, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[name] = open
}

// RegisteredBackends returns the names of all registered backends.
func RegisteredBackends() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()
	names := make([]string, 0, len(openers))
	for name := range openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open connects the backend registered under name.
func Open(ctx context.Context, name string) (*Backend, error) {
	openersMu.RLock()
	open, ok := openers[name]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown database backend %q (available: %v)", name, RegisteredBackends())
	}

	backend, err := open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", name, err)
	}
	backend.Name = name
	return backend, nil
}

// Shutdown closes the backend if it has a Close function.
func (b *Backend) Shutdown(ctx context.Context) error {
	if b == nil || b.Close == nil {
		return nil
	}
	return b.Close(ctx)
}
