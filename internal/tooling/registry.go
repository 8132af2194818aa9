package tooling

import (
	"fmt"
	"sync"
)

// Registry resolves tool names to implementations. Names must be unique
// across the flattened set of tools handed to NewRegistry, including tools
// nested inside grouped/array arguments, since two tools sharing a name
// would make a model's toolUse block ambiguous to dispatch.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry builds a registry from one or more slices of tools (accepting
// variadic slices lets callers pass several pre-grouped tool sets without
// flattening them by hand first). Returns an error naming the first
// duplicate name encountered.
func NewRegistry(groups ...[]Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool)}
	for _, group := range groups {
		for _, t := range group {
			if err := r.add(t); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

func (r *Registry) add(t Tool) error {
	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tooling: duplicate tool name %q", name)
	}
	r.tools[name] = t
	return nil
}

// Register adds a tool after construction. Returns an error if its name
// collides with an already-registered tool.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.add(t)
}

// Get resolves a tool by name in O(1).
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Specs returns the Spec of every registered tool, in no particular order,
// for handing to a model as its available-tools list.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Spec, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.ToolSpec())
	}
	return out
}
