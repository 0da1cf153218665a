package grizzly

import (
	"sort"
	"sync"
)

// ParseTypeRegistry holds the set of named parse types a step library can
// register. A parse type that carries an enumeration of literal
// alternatives expands a placeholder of that type into the cross product
// of those alternatives during pattern normalization.
type ParseTypeRegistry struct {
	mu      sync.RWMutex
	types   map[string][]string
	payload map[string]bool
}

// NewParseTypeRegistry returns an empty registry.
func NewParseTypeRegistry() *ParseTypeRegistry {
	return &ParseTypeRegistry{types: make(map[string][]string), payload: make(map[string]bool)}
}

// MarkPayloadType records name (a placeholder type name) as referring to a
// filename under the workspace's configured payload directory, per
// .grizzly.yaml's payload_types.
func (r *ParseTypeRegistry) MarkPayloadType(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payload[name] = true
}

// IsPayloadType reports whether name was registered via MarkPayloadType.
func (r *ParseTypeRegistry) IsPayloadType(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.payload[name]
}

// Register associates name with a set of literal alternatives. Alternatives
// are stored sorted lexicographically so that expansion order is stable
// regardless of the registration order the step library reported them in.
func (r *ParseTypeRegistry) Register(name string, alternatives []string) {
	sorted := make([]string, len(alternatives))
	copy(sorted, alternatives)
	sort.Strings(sorted)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[name] = sorted
}

// Lookup returns the alternatives registered for name, if any.
func (r *ParseTypeRegistry) Lookup(name string) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	alts, ok := r.types[name]

	return alts, ok
}

// DefaultParseTypes seeds the handful of parse types grizzly's built-in step
// library ships with. A Source Loader rebuild augments this registry with
// whatever the workspace's step library additionally registers.
func DefaultParseTypes() *ParseTypeRegistry {
	r := NewParseTypeRegistry()
	r.Register("Method", []string{"get", "post", "put", "delete", "head", "patch", "options"})
	r.Register("Direction", []string{"to", "from"})
	r.Register("StrictResponse", []string{"post", "get", "put"})
	r.Register("Condition", []string{"is", "is not"})

	return r
}
