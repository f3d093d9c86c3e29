package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"

	"relay/internal/domain"
)

var (
	ErrDuplicateCapability = errors.New("capability already registered")
	ErrNotFound            = errors.New("capability not found")
)

// Registry is the process-wide capability catalog. Registration happens once
// during startup wiring; after that the registry is read-only and shared
// across sessions without locking concerns.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]domain.Capability
	order  []string
}

func New() *Registry {
	return &Registry{byName: make(map[string]domain.Capability)}
}

func (r *Registry) Register(cap domain.Capability) error {
	name := strings.TrimSpace(cap.Name)
	if name == "" {
		return fmt.Errorf("capability name is required")
	}
	if cap.Version != "" {
		if _, err := semver.NewVersion(cap.Version); err != nil {
			return fmt.Errorf("capability %s version %q: %w", name, cap.Version, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCapability, name)
	}
	cap.Name = name
	r.byName[name] = cap
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) Lookup(name string) (domain.Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cap, ok := r.byName[name]
	if !ok {
		return domain.Capability{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return cap, nil
}

// All returns registered capabilities in registration order.
func (r *Registry) All() []domain.Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Capability, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
