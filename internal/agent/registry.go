package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/pysugar/digital-twin/internal/auth/token"
)

// RunFunc executes a tool against its provider with a resolved credential.
// Tools without a provider dependency receive a zero Credential.
type RunFunc func(ctx context.Context, cred token.Credential, args map[string]any) (string, error)

// Descriptor declares one tool: name, model-facing parameter schema, the
// provider it depends on (empty for none) and its executor function.
type Descriptor struct {
	Name        string
	Description string
	Provider    string
	Schema      json.RawMessage
	Run         RunFunc

	compiled *jsonschema.Schema
}

// Registry is the closed set of known tools. Tool dispatch goes through
// this table only; a name the model invents fails closed instead of
// reaching any dynamic lookup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Descriptor
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Descriptor)}
}

// Register adds a tool, compiling its parameter schema. Registering the
// same name twice replaces the earlier entry.
func (r *Registry) Register(d *Descriptor) error {
	compiled, err := jsonschema.CompileString(d.Name+".schema.json", string(d.Schema))
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", d.Name, err)
	}
	d.compiled = compiled

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[d.Name]; !exists {
		r.order = append(r.order, d.Name)
	}
	r.tools[d.Name] = d
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[name]
	return d, ok
}

// Available filters the registry to tools whose provider dependency is in
// the connected set (or who have none). This list is what gets advertised
// to the model, so disconnected providers are invisible to it rather than
// erroring at call time.
func (r *Registry) Available(connectedProviders []string) []*Descriptor {
	connected := make(map[string]bool, len(connectedProviders))
	for _, p := range connectedProviders {
		connected[p] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Descriptor
	for _, name := range r.order {
		d := r.tools[name]
		if d.Provider == "" || connected[d.Provider] {
			out = append(out, d)
		}
	}
	return out
}

// Validate checks arguments against the tool's declared parameter shape.
func (d *Descriptor) Validate(args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}
	return d.compiled.Validate(normalizeForSchema(args))
}

// normalizeForSchema round-trips args through JSON so numeric values take
// the json.Number-free form the validator expects regardless of how the
// caller decoded them.
func normalizeForSchema(args map[string]any) any {
	raw, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return args
	}
	return v
}
