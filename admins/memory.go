package admins

import (
	"context"
	"slices"
	"sync"

	"github.com/ggoodman/webadmin-go/identity"
)

// MemoryBackend keeps the persisted set in process memory. It suits tests
// and deployments that re-bootstrap admins on every start.
type MemoryBackend struct {
	mu     sync.Mutex
	ids    []identity.Identity
	writes int
}

// NewMemoryBackend returns a backend initially holding ids.
func NewMemoryBackend(ids []identity.Identity) *MemoryBackend {
	return &MemoryBackend{ids: slices.Clone(ids)}
}

func (m *MemoryBackend) ReadAll(ctx context.Context) ([]identity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.ids), nil
}

func (m *MemoryBackend) WriteAll(ctx context.Context, ids []identity.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = slices.Clone(ids)
	m.writes++
	return nil
}

// Writes returns how many times WriteAll has been called.
func (m *MemoryBackend) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
