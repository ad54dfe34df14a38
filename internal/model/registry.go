package model

import (
	"fmt"
	"sort"
	"sync"

	"RestJSON/internal/logger"
	"RestJSON/internal/rescue"
)

// Registry holds every resource. It is filled during setup and frozen
// before the server starts; afterwards it is read without locking.
type Registry struct {
	mu              sync.Mutex
	builders        map[string]*Builder
	hooks           map[string][]func(*Builder)
	resources       map[string]*Resource
	frozen          bool
	defaultPageSize int
	cache           JoinCache
}

func NewRegistry() *Registry {
	return &Registry{
		builders:        map[string]*Builder{},
		hooks:           map[string][]func(*Builder){},
		resources:       map[string]*Resource{},
		defaultPageSize: DefaultPageSize,
		cache:           NewMemoryJoinCache(0, 0),
	}
}

// InitRegistry loads dir, applies code hooks and freezes the registry.
func InitRegistry(dir string, pageSize int, hooks map[string]func(*Builder)) (*Registry, error) {
	r := NewRegistry()
	if pageSize > 0 {
		r.defaultPageSize = pageSize
	}
	if err := r.LoadDir(dir); err != nil {
		return nil, fmt.Errorf("load error: %w", err)
	}
	for name, fn := range hooks {
		r.Extend(name, fn)
	}
	if err := r.Freeze(); err != nil {
		return nil, fmt.Errorf("link error: %w", err)
	}
	return r, nil
}

// UseJoinCache swaps the through-path cache.
func (r *Registry) UseJoinCache(c JoinCache) {
	if c != nil {
		r.cache = c
	}
}

func (r *Registry) JoinCache() JoinCache { return r.cache }

// Add registers a builder. Names must be unique.
func (r *Registry) Add(b *Builder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return rescue.Configuration("registry is frozen, cannot add %q", b.Name())
	}
	if _, exists := r.builders[b.Name()]; exists {
		return rescue.Configuration("resource %q declared twice", b.Name())
	}
	r.builders[b.Name()] = b
	return nil
}

// Extend queues fn to run against the named builder before freezing.
func (r *Registry) Extend(name string, fn func(*Builder)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[name] = append(r.hooks[name], fn)
}

// Freeze builds every resource, links relations and checks every
// through path. Any failure is a configuration error.
func (r *Registry) Freeze() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return nil
	}
	for name := range r.hooks {
		if _, ok := r.builders[name]; !ok {
			return rescue.Configuration("extension for unknown resource %q", name)
		}
	}
	for _, name := range sortedKeys(r.builders) {
		b := r.builders[name]
		for _, fn := range r.hooks[name] {
			fn(b)
		}
		res, err := b.Build()
		if err != nil {
			return err
		}
		r.resources[name] = res
	}
	if err := r.linkRelations(); err != nil {
		return err
	}
	for _, name := range sortedKeys(r.resources) {
		res := r.resources[name]
		for _, tp := range res.throughs {
			if _, err := r.ResolveThrough(res, tp.Hops, tp.Attribute); err != nil {
				return fmt.Errorf("%s.%s: %w", name, tp.Param, err)
			}
		}
	}
	r.frozen = true
	r.builders = nil
	r.hooks = nil
	logger.Info("registry_frozen", map[string]any{"resources": len(r.resources)})
	return nil
}

func (r *Registry) Get(name string) (*Resource, bool) {
	res, ok := r.resources[name]
	return res, ok
}

func (r *Registry) Names() []string {
	return sortedKeys(r.resources)
}

// Resolve returns the resource reached from res through association.
func (r *Registry) Resolve(res *Resource, association string) (*Resource, bool) {
	if res == nil {
		return nil, false
	}
	rel, ok := res.relations[association]
	if !ok || rel.target == nil {
		return nil, false
	}
	return rel.target, true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
